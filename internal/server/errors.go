package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/timeline-editor/internal/audio"
	"github.com/jaki95/timeline-editor/internal/catalog"
	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/jaki95/timeline-editor/internal/downloader"
	"github.com/jaki95/timeline-editor/internal/export"
	"github.com/jaki95/timeline-editor/internal/job"
	"github.com/jaki95/timeline-editor/internal/storage"
	"github.com/jaki95/timeline-editor/internal/timeline"
)

var ErrInvalidRequest = errors.New("invalid request")

// statusCodes maps domain errors to HTTP status codes, checked in order.
var statusCodes = []struct {
	err  error
	code int
}{
	{ErrInvalidRequest, http.StatusBadRequest},
	{timeline.ErrClipNotFound, http.StatusNotFound},
	{timeline.ErrTrackNotFound, http.StatusNotFound},
	{catalog.ErrFileNotFound, http.StatusNotFound},
	{job.ErrNotFound, http.StatusNotFound},
	{storage.ErrNotFound, http.StatusNotFound},
	{timeline.ErrTrackLocked, http.StatusLocked},
	{timeline.ErrNoTrackAvailable, http.StatusConflict},
	{timeline.ErrNoAudioTrackAvailable, http.StatusConflict},
	{timeline.ErrNoSplittableClipAtPlayhead, http.StatusConflict},
	{timeline.ErrClipboardEmpty, http.StatusConflict},
	{timeline.ErrEmptySelection, http.StatusConflict},
	{timeline.ErrNothingToUndo, http.StatusConflict},
	{timeline.ErrNothingToRedo, http.StatusConflict},
	{job.ErrInvalidState, http.StatusConflict},
	{job.ErrNotReady, http.StatusConflict},
	{export.ErrNoVideoTrack, http.StatusConflict},
	{export.ErrNoVideoClips, http.StatusConflict},
	{export.ErrNoInputs, http.StatusConflict},
	{export.ErrUnsupportedFormat, http.StatusBadRequest},
	{domain.ErrUnsupportedMedia, http.StatusUnsupportedMediaType},
	{audio.ErrInvalidRange, http.StatusBadRequest},
	{audio.ErrUnsupportedAudioFormat, http.StatusBadRequest},
	{downloader.ErrNotMedia, http.StatusUnprocessableEntity},
	{downloader.ErrEmptyFile, http.StatusUnprocessableEntity},
	{downloader.ErrBadResponse, http.StatusBadGateway},
	{downloader.ErrTooLarge, http.StatusRequestEntityTooLarge},
}

func statusFor(err error) int {
	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Unmapped errors are logged.
func (s *Server) respondError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}
