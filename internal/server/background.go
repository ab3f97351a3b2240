package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/jaki95/timeline-editor/internal/export"
)

// runExport renders tracks for jobID. It runs on its own goroutine and
// reports everything through the job manager.
func (s *Server) runExport(ctx context.Context, jobID string, tracks []domain.Track, format export.Format) {
	if err := s.jobs.StartJob(jobID); err != nil {
		s.logger.Warn("Export job not started", "job", jobID, "error", err)
		return
	}

	transcoder, err := s.newTranscoder()
	if err != nil {
		s.failJob(jobID, fmt.Errorf("failed to create transcoder: %w", err))
		return
	}
	defer func() {
		if err := transcoder.Close(); err != nil {
			s.logger.Warn("Failed to release transcoder", "job", jobID, "error", err)
		}
	}()

	orchestrator := export.New(export.Options{
		Transcoder: transcoder,
		Content:    s.catalog,
		Logger:     s.logger.With("job", jobID),
	})

	result, err := orchestrator.Export(ctx, tracks, export.Request{Format: format}, func(pct int) {
		if err := s.jobs.UpdateJobProgress(jobID, pct, fmt.Sprintf("Rendering %d%%", pct)); err != nil {
			s.logger.Debug("Dropped progress update", "job", jobID, "error", err)
		}
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			s.logger.Info("Export job cancelled", "job", jobID)
			return
		}
		s.failJob(jobID, err)
		return
	}

	// The store write must finish even if the job is cancelled right now.
	storeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.jobs.CompleteJob(storeCtx, jobID, result.FileName, result.MimeType, result.Data); err != nil {
		s.failJob(jobID, err)
	}
}

func (s *Server) failJob(jobID string, cause error) {
	if err := s.jobs.FailJob(jobID, cause); err != nil {
		s.logger.Error("Failed to record export failure", "job", jobID, "error", err)
	}
}
