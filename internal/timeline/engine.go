// Package timeline implements the editing engine that owns the track set,
// selection, clipboard and undo history of an editing session.
package timeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/jaki95/timeline-editor/internal/ids"
	"github.com/jaki95/timeline-editor/internal/storage"
)

// TracksKey is the record id under which the track set is persisted.
const TracksKey = "timeline_tracks"

// FileLookup resolves catalog entries referenced by clips.
type FileLookup interface {
	Get(id string) (domain.MediaFile, bool)
}

// Options configures an Engine.
type Options struct {
	Store        storage.RecordStore
	Files        FileLookup
	IDs          ids.Generator
	HistoryLimit int
	Logger       *slog.Logger
}

// Engine is the single source of truth for the timeline. Every mutation
// replaces the track slice with an edited clone, so snapshots held by the
// history never alias live state.
type Engine struct {
	mu          sync.Mutex
	tracks      []domain.Track
	selection   []string
	clipboard   []domain.Clip
	currentTime float64
	history     *history

	store  storage.RecordStore
	files  FileLookup
	ids    ids.Generator
	logger *slog.Logger
}

// New creates an engine and loads the persisted track set. Any load failure
// falls back to the default tracks.
func New(ctx context.Context, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	generator := opts.IDs
	if generator == nil {
		generator = ids.NewUUIDGenerator()
	}

	e := &Engine{
		history: newHistory(opts.HistoryLimit),
		store:   opts.Store,
		files:   opts.Files,
		ids:     generator,
		logger:  logger,
	}
	e.tracks = e.load(ctx)
	return e
}

func (e *Engine) load(ctx context.Context) []domain.Track {
	if e.store == nil {
		return domain.DefaultTracks()
	}

	records, err := e.store.GetAll(ctx)
	if err != nil {
		e.logger.Warn("Failed to read persisted timeline, starting empty", "error", err)
		return domain.DefaultTracks()
	}

	for _, record := range records {
		if record.ID != TracksKey {
			continue
		}
		var tracks []domain.Track
		if err := json.Unmarshal(record.Data, &tracks); err != nil {
			e.logger.Warn("Failed to parse persisted timeline, starting empty", "error", err)
			return domain.DefaultTracks()
		}
		if len(tracks) == 0 {
			break
		}
		return e.sanitize(tracks)
	}
	return domain.DefaultTracks()
}

// sanitize repairs state written by older sessions: colliding or missing
// clip ids are regenerated and clips are re-pointed at their track.
func (e *Engine) sanitize(tracks []domain.Track) []domain.Track {
	seen := make(map[string]bool)
	repaired := 0
	for i := range tracks {
		track := &tracks[i]
		if track.Clips == nil {
			track.Clips = []domain.Clip{}
		}
		for j := range track.Clips {
			clip := &track.Clips[j]
			if clip.ID == "" || seen[clip.ID] {
				clip.ID = e.ids.NewID("clip")
				repaired++
			}
			seen[clip.ID] = true
			clip.TrackID = track.ID
			clip.TrimStart = math.Max(0, clip.TrimStart)
			clip.TrimEnd = math.Max(0, clip.TrimEnd)
			if clip.Duration <= 0 {
				clip.Duration = domain.MinClipDuration
			}
		}
		track.SortClips()
	}
	if repaired > 0 {
		e.logger.Warn("Repaired duplicate clip ids in persisted timeline", "count", repaired)
	}
	return tracks
}

// persist writes the whole track set. Failures are logged, never returned:
// an edit succeeds even when the store is unavailable.
func (e *Engine) persist(ctx context.Context) {
	if e.store == nil {
		return
	}
	data, err := json.Marshal(e.tracks)
	if err != nil {
		e.logger.Error("Failed to encode timeline", "error", err)
		return
	}
	record := storage.Record{ID: TracksKey, Data: data, UpdatedAt: time.Now().UTC()}
	if err := e.store.Put(ctx, record); err != nil {
		e.logger.Warn("Failed to persist timeline", "error", err)
	}
}

// mutate runs edit against a clone of the tracks. On success the clone
// becomes the live state; when recordHistory is set the previous state is
// pushed first.
func (e *Engine) mutate(ctx context.Context, recordHistory bool, edit func(tracks []domain.Track) error) error {
	next := domain.CloneTracks(e.tracks)
	if err := edit(next); err != nil {
		return err
	}
	if recordHistory {
		e.history.record(e.tracks)
	}
	e.tracks = next
	e.clampPlayhead()
	e.persist(ctx)
	return nil
}

func (e *Engine) clampPlayhead() {
	if d := domain.Duration(e.tracks); e.currentTime > d {
		e.currentTime = d
	}
}

// Tracks returns a deep copy of the current track set.
func (e *Engine) Tracks() []domain.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CloneTracks(e.tracks)
}

// Snapshot returns the current timeline view.
func (e *Engine) Snapshot() domain.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.NewTimeline(e.tracks)
}

// Duration returns the derived timeline duration.
func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.Duration(e.tracks)
}

// CurrentTime returns the playhead position.
func (e *Engine) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTime
}

// SetCurrentTime moves the playhead, clamped to [0, duration].
func (e *Engine) SetCurrentTime(t float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentTime = math.Min(math.Max(0, t), domain.Duration(e.tracks))
	return e.currentTime
}

// Clip looks up a clip by id across all tracks.
func (e *Engine) Clip(id string) (domain.Clip, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, j, track := findClip(e.tracks, id)
	if track == nil {
		return domain.Clip{}, false
	}
	return track.Clips[j], true
}

// CanUndo reports whether Undo would change the timeline.
func (e *Engine) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history.undo) > 0
}

// CanRedo reports whether Redo would change the timeline.
func (e *Engine) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history.redo) > 0
}

// Undo restores the state before the last recorded mutation.
func (e *Engine) Undo(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev, ok := e.history.stepBack(e.tracks)
	if !ok {
		return ErrNothingToUndo
	}
	e.restore(ctx, prev)
	return nil
}

// Redo reapplies the last undone mutation.
func (e *Engine) Redo(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, ok := e.history.stepForward(e.tracks)
	if !ok {
		return ErrNothingToRedo
	}
	e.restore(ctx, next)
	return nil
}

// restore swaps in a history snapshot exactly as it was recorded, lock
// flags included.
func (e *Engine) restore(ctx context.Context, snapshot []domain.Track) {
	e.tracks = domain.CloneTracks(snapshot)
	e.clampPlayhead()
	e.persist(ctx)
}

// Reset discards all content and history and returns to the default tracks.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks = domain.DefaultTracks()
	e.selection = nil
	e.clipboard = nil
	e.currentTime = 0
	e.history.reset()
	e.persist(ctx)
}

func findTrack(tracks []domain.Track, id string) *domain.Track {
	for i := range tracks {
		if tracks[i].ID == id {
			return &tracks[i]
		}
	}
	return nil
}

// findClip returns the track index, clip index and track holding clip id.
func findClip(tracks []domain.Track, id string) (int, int, *domain.Track) {
	for i := range tracks {
		for j := range tracks[i].Clips {
			if tracks[i].Clips[j].ID == id {
				return i, j, &tracks[i]
			}
		}
	}
	return -1, -1, nil
}

// firstTrack returns the first track of kind, preferring unlocked tracks.
// With allowLocked set it falls back to a locked track of the same kind.
func firstTrack(tracks []domain.Track, kind domain.Kind, allowLocked bool) *domain.Track {
	var fallback *domain.Track
	for i := range tracks {
		if tracks[i].Kind != kind {
			continue
		}
		if !tracks[i].Locked {
			return &tracks[i]
		}
		if fallback == nil {
			fallback = &tracks[i]
		}
	}
	if allowLocked {
		return fallback
	}
	return nil
}
