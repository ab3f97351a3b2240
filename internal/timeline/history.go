package timeline

import "github.com/jaki95/timeline-editor/internal/domain"

// DefaultHistoryLimit bounds both the undo and redo stacks.
const DefaultHistoryLimit = 50

// history holds full track snapshots. Snapshots are never mutated after
// being pushed, since every operation works on a fresh clone.
type history struct {
	limit int
	undo  [][]domain.Track
	redo  [][]domain.Track
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &history{limit: limit}
}

// record pushes the pre-mutation state and invalidates redo.
func (h *history) record(prev []domain.Track) {
	h.undo = push(h.undo, prev, h.limit)
	h.redo = nil
}

func (h *history) stepBack(current []domain.Track) ([]domain.Track, bool) {
	if len(h.undo) == 0 {
		return nil, false
	}
	prev := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = push(h.redo, current, h.limit)
	return prev, true
}

func (h *history) stepForward(current []domain.Track) ([]domain.Track, bool) {
	if len(h.redo) == 0 {
		return nil, false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = push(h.undo, current, h.limit)
	return next, true
}

func (h *history) reset() {
	h.undo = nil
	h.redo = nil
}

func push(stack [][]domain.Track, snapshot []domain.Track, limit int) [][]domain.Track {
	stack = append(stack, snapshot)
	if len(stack) > limit {
		stack = stack[len(stack)-limit:]
	}
	return stack
}
