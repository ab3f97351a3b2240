package playback

import (
	"context"
	"fmt"
	"time"

	"github.com/jaki95/timeline-editor/internal/domain"
)

// MediaElement is one decoder bound to a single source file. Load may
// complete asynchronously; the element signals OnReady once it can seek and
// play. Methods other than Load must not call back into the Synchronizer.
type MediaElement interface {
	Load(ctx context.Context, file domain.MediaFile) error
	Play() error
	Pause()
	Seek(seconds float64)
	Position() float64
	SetVolume(volume float64)
	OnReady(fn func())
	OnEnded(fn func())
	Close() error
}

// ElementFactory creates an element for the clip that is about to become active.
type ElementFactory func(clip domain.Clip) MediaElement

// Clock is the time source driving the tick loop.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// LoadError reports an element that could not load its source.
type LoadError struct {
	TrackID string
	ClipID  string
	FileID  string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s for clip %s on %s: %v", e.FileID, e.ClipID, e.TrackID, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
