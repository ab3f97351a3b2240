package timeline

import "errors"

// Validation failures. An operation that returns one of these leaves the
// timeline unchanged and records no history.
var (
	ErrNoTrackAvailable           = errors.New("no unlocked track available for this media type")
	ErrNoAudioTrackAvailable      = errors.New("no unlocked audio track available")
	ErrNoSplittableClipAtPlayhead = errors.New("no selected clip at the playhead")
	ErrClipboardEmpty             = errors.New("clipboard is empty")
	ErrEmptySelection             = errors.New("no clips selected")
	ErrClipNotFound               = errors.New("clip not found")
	ErrTrackNotFound              = errors.New("track not found")
	ErrTrackLocked                = errors.New("track is locked")
	ErrNothingToUndo              = errors.New("nothing to undo")
	ErrNothingToRedo              = errors.New("nothing to redo")
)
