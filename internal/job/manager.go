// Package job tracks background export jobs and keeps their results.
package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/jaki95/timeline-editor/internal/ids"
	"github.com/jaki95/timeline-editor/internal/progress"
	"github.com/jaki95/timeline-editor/internal/storage"
)

// Options configures a Manager.
type Options struct {
	Results storage.BlobStore
	IDs     ids.Generator
	Logger  *slog.Logger
}

// Manager handles job management
type Manager struct {
	mu      sync.RWMutex
	jobs    map[string]*Status
	order   []string
	results storage.BlobStore
	ids     ids.Generator
	logger  *slog.Logger
}

// NewManager creates a new job manager. Results are kept in memory when no
// store is configured.
func NewManager(opts Options) *Manager {
	m := &Manager{
		jobs:    make(map[string]*Status),
		results: opts.Results,
		ids:     opts.IDs,
		logger:  opts.Logger,
	}
	if m.results == nil {
		m.results = storage.NewMemoryBlobStore()
	}
	if m.ids == nil {
		m.ids = ids.NewUUIDGenerator()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// CreateJob registers a pending job. The returned context is cancelled by CancelJob.
func (m *Manager) CreateJob(format string) (*Status, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())

	job := &Status{
		ID:         m.ids.NewID("export"),
		Status:     StatusPending,
		Format:     format,
		Progress:   ProgressStart,
		Message:    "Job created",
		StartTime:  time.Now(),
		tracker:    progress.NewProgressTracker(),
		cancelFunc: cancel,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	m.mu.Unlock()

	m.logger.Info("Created export job", "job", job.ID, "format", format)
	return job.snapshot(), ctx
}

func (s *Status) snapshot() *Status {
	c := *s
	if s.EndTime != nil {
		end := *s.EndTime
		c.EndTime = &end
	}
	return &c
}

func (m *Manager) get(jobID string) (*Status, error) {
	job, exists := m.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return job, nil
}

// GetJob returns a copy of the job's current status.
func (m *Manager) GetJob(jobID string) (*Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, err := m.get(jobID)
	if err != nil {
		return nil, err
	}
	return job.snapshot(), nil
}

// Tracker returns the progress tracker of a job.
func (m *Manager) Tracker(jobID string) (*progress.ProgressTracker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, err := m.get(jobID)
	if err != nil {
		return nil, err
	}
	return job.tracker, nil
}

// StartJob moves a pending job to processing.
func (m *Manager) StartJob(jobID string) error {
	m.mu.Lock()
	job, err := m.get(jobID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if job.Status != StatusPending {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, job.Status)
	}
	job.Status = StatusProcessing
	job.Message = "Preparing inputs"
	tracker := job.tracker
	m.mu.Unlock()

	tracker.UpdateProgress(progress.StagePreparing, ProgressStart, "Preparing inputs")
	return nil
}

// UpdateJobProgress records render progress, capped below completion.
func (m *Manager) UpdateJobProgress(jobID string, pct int, message string) error {
	pct = min(max(pct, ProgressStart), ProgressProcessingEnd)

	m.mu.Lock()
	job, err := m.get(jobID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if job.Done() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, job.Status)
	}
	job.Progress = max(job.Progress, pct)
	job.Message = message
	tracker := job.tracker
	m.mu.Unlock()

	tracker.UpdateProgress(progress.StageRendering, pct, message)
	return nil
}

// UpdateJobStep records the transcoder step a job is running.
func (m *Manager) UpdateJobStep(jobID, name string, index, total int) error {
	tracker, err := m.Tracker(jobID)
	if err != nil {
		return err
	}
	tracker.UpdateStep(name, index, total)
	return nil
}

// CompleteJob stores the output and marks the job completed.
func (m *Manager) CompleteJob(ctx context.Context, jobID, fileName, mimeType string, data []byte) error {
	m.mu.RLock()
	job, err := m.get(jobID)
	var done bool
	if err == nil {
		done = job.Done()
	}
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	if done {
		return fmt.Errorf("%w: job already finished", ErrInvalidState)
	}

	key := path.Join("exports", jobID, fileName)
	if err := m.results.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mimeType); err != nil {
		return fmt.Errorf("failed to store export result: %w", err)
	}

	m.mu.Lock()
	if job.Done() {
		m.mu.Unlock()
		m.deleteResult(key)
		return fmt.Errorf("%w: %s", ErrInvalidState, job.Status)
	}
	job.Status = StatusCompleted
	job.Progress = ProgressComplete
	job.Message = "Export completed"
	job.FileName = fileName
	job.MimeType = mimeType
	job.Size = len(data)
	job.resultKey = key
	end := time.Now()
	job.EndTime = &end
	tracker := job.tracker
	m.mu.Unlock()

	tracker.UpdateProgress(progress.StageComplete, ProgressComplete, "Export completed")
	m.logger.Info("Export job completed", "job", jobID, "file", fileName, "bytes", len(data))
	return nil
}

// FailJob marks the job failed. Cancelled jobs keep their state.
func (m *Manager) FailJob(jobID string, cause error) error {
	m.mu.Lock()
	job, err := m.get(jobID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if job.Done() {
		m.mu.Unlock()
		return nil
	}
	job.Status = StatusFailed
	job.Error = cause.Error()
	job.Message = "Export failed"
	end := time.Now()
	job.EndTime = &end
	tracker := job.tracker
	m.mu.Unlock()

	tracker.SetError(cause)
	m.logger.Error("Export job failed", "job", jobID, "error", cause)
	return nil
}

// CancelJob cancels a job
func (m *Manager) CancelJob(jobID string) error {
	m.mu.Lock()
	job, err := m.get(jobID)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	if job.Status != StatusProcessing && job.Status != StatusPending {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, job.Status)
	}

	job.cancelFunc()
	job.Status = StatusCancelled
	job.Message = "Job cancelled by user"
	endTime := time.Now()
	job.EndTime = &endTime
	tracker := job.tracker
	progressValue := job.Progress
	m.mu.Unlock()

	tracker.UpdateProgress(progress.StageCancelled, progressValue, "Job cancelled by user")
	return nil
}

// OpenResult returns the stored output of a completed job.
func (m *Manager) OpenResult(ctx context.Context, jobID string) (io.ReadCloser, *Status, error) {
	m.mu.RLock()
	job, err := m.get(jobID)
	if err != nil {
		m.mu.RUnlock()
		return nil, nil, err
	}
	status := job.snapshot()
	m.mu.RUnlock()

	if status.Status != StatusCompleted {
		return nil, status, fmt.Errorf("%w: %s", ErrNotReady, status.Status)
	}
	rc, err := m.results.Open(ctx, status.resultKey)
	if err != nil {
		return nil, status, err
	}
	return rc, status, nil
}

// DeleteJob drops a finished job and its stored result.
func (m *Manager) DeleteJob(ctx context.Context, jobID string) error {
	m.mu.Lock()
	job, err := m.get(jobID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if !job.Done() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, job.Status)
	}
	delete(m.jobs, jobID)
	for i, id := range m.order {
		if id == jobID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	key := job.resultKey
	m.mu.Unlock()

	if key == "" {
		return nil
	}
	if err := m.results.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete export result: %w", err)
	}
	return nil
}

func (m *Manager) deleteResult(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.results.Delete(ctx, key); err != nil {
		m.logger.Warn("Failed to delete orphaned export result", "key", key, "error", err)
	}
}

// ListJobs lists jobs newest first with pagination
func (m *Manager) ListJobs(page, pageSize int) *Response {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	m.mu.RLock()
	jobs := make([]*Status, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		jobs = append(jobs, m.jobs[m.order[i]].snapshot())
	}
	m.mu.RUnlock()

	total := len(jobs)
	start := min((page-1)*pageSize, total)
	end := min(start+pageSize, total)

	return &Response{
		Jobs:       jobs[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalJobs:  total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}
