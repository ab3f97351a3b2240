package export

import (
	"errors"
	"fmt"
)

var (
	ErrNoVideoTrack      = errors.New("timeline has no video track")
	ErrNoVideoClips      = errors.New("no video clips found")
	ErrNoInputs          = errors.New("no files to process")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// ProcessingError is a failed transcoder call, tagged with the step that
// issued it.
type ProcessingError struct {
	Step string
	Err  error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("export step %s failed: %v", e.Step, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}
