package job

import (
	"context"
	"time"

	"github.com/jaki95/timeline-editor/internal/progress"
)

// Constants for job status
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Constants for progress percentages
const (
	ProgressStart         = 0
	ProgressProcessingEnd = 99
	ProgressComplete      = 100
)

// Constants for pagination
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Status represents the current state of an export job.
type Status struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Format    string     `json:"format"`
	Progress  int        `json:"progress"`
	Message   string     `json:"message"`
	Error     string     `json:"error,omitempty"`
	FileName  string     `json:"fileName,omitempty"`
	MimeType  string     `json:"mimeType,omitempty"`
	Size      int        `json:"size,omitempty"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	resultKey  string
	tracker    *progress.ProgressTracker
	cancelFunc context.CancelFunc
}

// Done reports whether the job reached a final state.
func (s *Status) Done() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed || s.Status == StatusCancelled
}

// Request represents the request body for starting an export.
type Request struct {
	Format string `json:"format"`
}

// Response represents a page of jobs.
type Response struct {
	Jobs       []*Status `json:"jobs"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalJobs  int       `json:"totalJobs"`
	TotalPages int       `json:"totalPages"`
}
