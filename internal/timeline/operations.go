package timeline

import (
	"context"
	"fmt"
	"math"

	"github.com/jaki95/timeline-editor/internal/domain"
)

// PlaceClip adds file to the first unlocked track of its kind, appended
// after the clip that starts last on that track. dropTime is accepted for
// API symmetry with pointer drops but never used as the start position.
func (e *Engine) PlaceClip(ctx context.Context, file domain.MediaFile, trackKind domain.Kind, dropTime float64) (domain.Clip, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if trackKind != "" && trackKind != file.Kind {
		e.logger.Debug("Drop target kind differs from file kind, using file kind",
			"file", file.ID, "fileKind", file.Kind, "trackKind", trackKind)
	}

	var placed domain.Clip
	err := e.mutate(ctx, true, func(tracks []domain.Track) error {
		track := firstTrack(tracks, file.Kind, false)
		if track == nil {
			return fmt.Errorf("%w: %s", ErrNoTrackAvailable, file.Kind)
		}

		// Clips are kept sorted, so the last one has the latest start. An
		// earlier clip that ends later does not move the append point.
		start := 0.0
		if n := len(track.Clips); n > 0 {
			start = track.Clips[n-1].End()
		}

		duration := file.Duration
		if duration <= 0 {
			duration = domain.DefaultClipDuration
		}

		placed = domain.Clip{
			ID:        e.ids.NewID("clip"),
			Kind:      file.Kind,
			TrackID:   track.ID,
			FileID:    file.ID,
			StartTime: start,
			Duration:  duration,
			Volume:    domain.FullVolume,
			HasAudio:  true,
		}
		track.Clips = append(track.Clips, placed)
		track.SortClips()
		return nil
	})
	if err != nil {
		return domain.Clip{}, err
	}

	e.logger.Debug("Placed clip", "clip", placed.ID, "track", placed.TrackID,
		"start", placed.StartTime, "duration", placed.Duration, "dropTime", dropTime)
	return placed, nil
}

// MoveClip sets the start time of a clip, clamped at zero. Overlaps are allowed.
func (e *Engine) MoveClip(ctx context.Context, clipID string, newStartTime float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mutate(ctx, true, func(tracks []domain.Track) error {
		_, j, track := findClip(tracks, clipID)
		if track == nil {
			return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
		}
		if track.Locked {
			return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
		}
		track.Clips[j].StartTime = math.Max(0, newStartTime)
		track.SortClips()
		return nil
	})
}

// TrimClip sets the trim window of a clip and recomputes its duration from
// the source file length. The start time is not touched; callers dragging a
// left edge must pair this with MoveClip.
func (e *Engine) TrimClip(ctx context.Context, clipID string, trimStart, trimEnd float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mutate(ctx, true, func(tracks []domain.Track) error {
		_, j, track := findClip(tracks, clipID)
		if track == nil {
			return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
		}
		if track.Locked {
			return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
		}

		clip := &track.Clips[j]
		fileDuration := clip.TrimStart + clip.Duration + clip.TrimEnd
		if e.files != nil {
			if file, ok := e.files.Get(clip.FileID); ok && file.Duration > 0 {
				fileDuration = file.Duration
			}
		}

		clip.TrimStart = math.Max(0, trimStart)
		clip.TrimEnd = math.Max(0, trimEnd)
		clip.Duration = math.Max(domain.MinClipDuration, fileDuration-clip.TrimStart-clip.TrimEnd)
		return nil
	})
}

// DeleteClips removes the given clips, or the current selection when no ids
// are passed. Clips on locked tracks are left in place. It returns the
// number of clips removed.
func (e *Engine) DeleteClips(ctx context.Context, clipIDs ...string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteClips(ctx, clipIDs)
}

func (e *Engine) deleteClips(ctx context.Context, clipIDs []string) (int, error) {
	if len(clipIDs) == 0 {
		clipIDs = e.selection
	}
	if len(clipIDs) == 0 {
		return 0, ErrEmptySelection
	}
	targets := toSet(clipIDs)

	removed := make(map[string]bool)
	err := e.mutate(ctx, true, func(tracks []domain.Track) error {
		lockedHits := 0
		for i := range tracks {
			track := &tracks[i]
			kept := track.Clips[:0]
			for _, c := range track.Clips {
				switch {
				case !targets[c.ID]:
					kept = append(kept, c)
				case track.Locked:
					lockedHits++
					kept = append(kept, c)
				default:
					removed[c.ID] = true
				}
			}
			track.Clips = kept
		}

		if len(removed) == 0 {
			if lockedHits > 0 {
				return ErrTrackLocked
			}
			return ErrClipNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.selection = without(e.selection, targets)
	return len(removed), nil
}

// ToggleTrackMute flips the mute flag of a track and returns the new value.
func (e *Engine) ToggleTrackMute(ctx context.Context, trackID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var muted bool
	err := e.mutate(ctx, true, func(tracks []domain.Track) error {
		track := findTrack(tracks, trackID)
		if track == nil {
			return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
		}
		track.Muted = !track.Muted
		muted = track.Muted
		return nil
	})
	return muted, err
}

// ToggleTrackLock flips the lock flag of a track. Locking is a workflow
// preference, so it is persisted but not recorded in history.
func (e *Engine) ToggleTrackLock(ctx context.Context, trackID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var locked bool
	err := e.mutate(ctx, false, func(tracks []domain.Track) error {
		track := findTrack(tracks, trackID)
		if track == nil {
			return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
		}
		track.Locked = !track.Locked
		locked = track.Locked
		return nil
	})
	return locked, err
}

// SetTrackVolume sets a track's volume percentage, clamped to [0, 100].
func (e *Engine) SetTrackVolume(ctx context.Context, trackID string, volume int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mutate(ctx, true, func(tracks []domain.Track) error {
		track := findTrack(tracks, trackID)
		if track == nil {
			return fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
		}
		track.Volume = clampVolume(volume)
		return nil
	})
}

// SetClipVolume sets a clip's volume percentage, clamped to [0, 100].
func (e *Engine) SetClipVolume(ctx context.Context, clipID string, volume int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mutate(ctx, true, func(tracks []domain.Track) error {
		_, j, track := findClip(tracks, clipID)
		if track == nil {
			return fmt.Errorf("%w: %s", ErrClipNotFound, clipID)
		}
		if track.Locked {
			return fmt.Errorf("%w: %s", ErrTrackLocked, track.ID)
		}
		track.Clips[j].Volume = clampVolume(volume)
		return nil
	})
}

// RemoveClipsForFile deletes every clip referencing fileID, regardless of
// track locks, and purges it from the clipboard. History is only recorded
// when something was removed.
func (e *Engine) RemoveClipsForFile(ctx context.Context, fileID string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clipboard := e.clipboard[:0:0]
	for _, c := range e.clipboard {
		if c.FileID != fileID {
			clipboard = append(clipboard, c)
		}
	}
	e.clipboard = clipboard

	removed := make(map[string]bool)
	for _, track := range e.tracks {
		for _, c := range track.Clips {
			if c.FileID == fileID {
				removed[c.ID] = true
			}
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	err := e.mutate(ctx, true, func(tracks []domain.Track) error {
		for i := range tracks {
			kept := tracks[i].Clips[:0]
			for _, c := range tracks[i].Clips {
				if c.FileID != fileID {
					kept = append(kept, c)
				}
			}
			tracks[i].Clips = kept
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	e.selection = without(e.selection, removed)
	e.logger.Info("Removed clips for deleted file", "file", fileID, "count", len(removed))
	return len(removed), nil
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > domain.FullVolume {
		return domain.FullVolume
	}
	return v
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func without(values []string, drop map[string]bool) []string {
	var out []string
	for _, v := range values {
		if !drop[v] {
			out = append(out, v)
		}
	}
	return out
}
