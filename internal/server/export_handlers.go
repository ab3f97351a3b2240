package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/timeline-editor/internal/export"
	"github.com/jaki95/timeline-editor/internal/job"
)

// createExport starts a background render of the current timeline.
func (s *Server) createExport(c *gin.Context) {
	var req job.Request
	if !s.bindOptional(c, &req) {
		return
	}
	if req.Format == "" {
		req.Format = s.cfg.Editor.DefaultExportFormat
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		s.respondError(c, err)
		return
	}

	// Validate up front so obvious mistakes are reported synchronously.
	tracks := s.engine.Tracks()
	clips, err := export.VideoClips(tracks)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if _, err := export.BuildPlan(clips, s.catalog, format, time.Now()); err != nil {
		s.respondError(c, err)
		return
	}

	status, ctx := s.jobs.CreateJob(string(format))
	go s.runExport(ctx, status.ID, tracks, format)

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Export started",
		"jobId":   status.ID,
	})
}

func (s *Server) listFormats(c *gin.Context) {
	formats := export.SupportedFormats()
	out := make([]gin.H, 0, len(formats))
	for _, f := range formats {
		out = append(out, gin.H{"format": f, "mimeType": f.MimeType()})
	}
	c.JSON(http.StatusOK, gin.H{"formats": out})
}

// getExport returns the status of an export job.
func (s *Server) getExport(c *gin.Context) {
	status, err := s.jobs.GetJob(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) cancelExport(c *gin.Context) {
	if err := s.jobs.CancelJob(c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Export cancelled"})
}

func (s *Server) deleteExport(c *gin.Context) {
	if err := s.jobs.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Export deleted"})
}

// listExports handles listing export jobs, newest first.
func (s *Server) listExports(c *gin.Context) {
	page := 1
	pageSize := job.DefaultPageSize

	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if ps := c.Query("pageSize"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= job.MaxPageSize {
			pageSize = parsed
		}
	}

	c.JSON(http.StatusOK, s.jobs.ListJobs(page, pageSize))
}

// downloadExport streams the output of a completed export.
func (s *Server) downloadExport(c *gin.Context) {
	rc, status, err := s.jobs.OpenResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, int64(status.Size), status.MimeType, rc, attachment(status.FileName))
	s.logger.Debug("Served export", "job", status.ID, "file", status.FileName, "bytes", status.Size)
}
