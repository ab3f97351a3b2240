package job

import "errors"

var (
	ErrNotFound     = errors.New("job not found")
	ErrInvalidState = errors.New("invalid job state")
	ErrNotReady     = errors.New("job result not ready")
)
