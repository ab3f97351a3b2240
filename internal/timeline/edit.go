package timeline

import (
	"context"
	"math"

	"github.com/jaki95/timeline-editor/internal/domain"
)

// splitEpsilon keeps the playhead from splitting a clip right at its edge.
const splitEpsilon = 0.01

// SplitAtPlayhead splits every selected clip that strictly contains at into
// two clips with fresh ids. Clips on locked tracks are skipped. The
// selection is cleared afterwards.
func (e *Engine) SplitAtPlayhead(ctx context.Context, at float64) ([]domain.Clip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.selection) == 0 {
		return nil, ErrNoSplittableClipAtPlayhead
	}
	selected := toSet(e.selection)

	var created []domain.Clip
	err := e.mutate(ctx, true, func(tracks []domain.Track) error {
		for i := range tracks {
			track := &tracks[i]
			if track.Locked {
				continue
			}

			var clips []domain.Clip
			changed := false
			for _, c := range track.Clips {
				if !selected[c.ID] || at <= c.StartTime+splitEpsilon || at >= c.End()-splitEpsilon {
					clips = append(clips, c)
					continue
				}

				splitPoint := at - c.StartTime

				first := c
				first.ID = e.ids.NewID("clip")
				first.Duration = splitPoint
				first.TrimEnd = c.TrimEnd + (c.Duration - splitPoint)

				second := c
				second.ID = e.ids.NewID("clip")
				second.StartTime = at
				second.Duration = c.Duration - splitPoint
				second.TrimStart = c.TrimStart + splitPoint

				clips = append(clips, first, second)
				created = append(created, first, second)
				changed = true
			}

			if changed {
				track.Clips = clips
				track.SortClips()
			}
		}

		if len(created) == 0 {
			return ErrNoSplittableClipAtPlayhead
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.selection = nil
	return created, nil
}

// CopySelection replaces the clipboard with copies of the selected clips
// and returns how many were copied.
func (e *Engine) CopySelection() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copySelection()
}

func (e *Engine) copySelection() (int, error) {
	if len(e.selection) == 0 {
		return 0, ErrEmptySelection
	}
	selected := toSet(e.selection)

	var copied []domain.Clip
	for _, track := range e.tracks {
		for _, c := range track.Clips {
			if selected[c.ID] {
				copied = append(copied, c)
			}
		}
	}
	if len(copied) == 0 {
		return 0, ErrEmptySelection
	}

	e.clipboard = copied
	return len(copied), nil
}

// CutSelection copies the selection to the clipboard and deletes it.
func (e *Engine) CutSelection(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.copySelection(); err != nil {
		return 0, err
	}
	return e.deleteClips(ctx, nil)
}

// PasteClipboard inserts the clipboard at time at, keeping the relative
// spacing of the copied clips. Each clip goes to the first unlocked track of
// its kind, falling back to a locked one of that kind. Pasted clips become
// the selection.
func (e *Engine) PasteClipboard(ctx context.Context, at float64) ([]domain.Clip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.clipboard) == 0 {
		return nil, ErrClipboardEmpty
	}

	earliest := math.Inf(1)
	for _, c := range e.clipboard {
		earliest = math.Min(earliest, c.StartTime)
	}
	at = math.Max(0, at)

	var pasted []domain.Clip
	err := e.mutate(ctx, true, func(tracks []domain.Track) error {
		touched := make(map[string]*domain.Track)
		for _, c := range e.clipboard {
			track := firstTrack(tracks, c.Kind, true)
			if track == nil {
				e.logger.Debug("No track for pasted clip", "kind", c.Kind, "file", c.FileID)
				continue
			}

			clip := c
			clip.ID = e.ids.NewID("clip")
			clip.TrackID = track.ID
			clip.StartTime = at + (c.StartTime - earliest)

			track.Clips = append(track.Clips, clip)
			touched[track.ID] = track
			pasted = append(pasted, clip)
		}

		if len(pasted) == 0 {
			return ErrNoTrackAvailable
		}
		for _, track := range touched {
			track.SortClips()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.selection = make([]string, 0, len(pasted))
	for _, c := range pasted {
		e.selection = append(e.selection, c.ID)
	}
	return pasted, nil
}

// ExtractAudio detaches the audio of the selected video clips onto the first
// unlocked audio track. The video clips are muted and flagged as having no
// audio, so a repeated call does nothing and returns no clips.
func (e *Engine) ExtractAudio(ctx context.Context) ([]domain.Clip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.selection) == 0 {
		return nil, ErrEmptySelection
	}
	if firstTrack(e.tracks, domain.KindAudio, false) == nil {
		return nil, ErrNoAudioTrackAvailable
	}
	selected := toSet(e.selection)

	pending := false
	for _, track := range e.tracks {
		if track.Kind != domain.KindVideo {
			continue
		}
		for _, c := range track.Clips {
			if selected[c.ID] && c.HasAudio {
				pending = true
			}
		}
	}
	if !pending {
		return nil, nil
	}

	var extracted []domain.Clip
	err := e.mutate(ctx, true, func(tracks []domain.Track) error {
		audioTrack := firstTrack(tracks, domain.KindAudio, false)

		for i := range tracks {
			if tracks[i].Kind != domain.KindVideo {
				continue
			}
			for j := range tracks[i].Clips {
				video := &tracks[i].Clips[j]
				if !selected[video.ID] || !video.HasAudio {
					continue
				}

				audio := *video
				audio.ID = e.ids.NewID("clip")
				audio.Kind = domain.KindAudio
				audio.TrackID = audioTrack.ID
				audio.Muted = false
				audio.Volume = domain.FullVolume
				extracted = append(extracted, audio)

				video.Muted = true
				video.HasAudio = false
			}
		}

		audioTrack.Clips = append(audioTrack.Clips, extracted...)
		audioTrack.SortClips()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return extracted, nil
}
