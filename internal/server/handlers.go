package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/timeline-editor/internal/catalog"
	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/jaki95/timeline-editor/internal/timeline"
)

// bind decodes the JSON body into req, answering 400 on failure.
func (s *Server) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return false
	}
	return true
}

// bindOptional is bind for endpoints whose body may be omitted.
func (s *Server) bindOptional(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return s.bind(c, req)
}

func (s *Server) state() TimelineResponse {
	snap := s.engine.Snapshot()
	selection := s.engine.Selection()
	if selection == nil {
		selection = []string{}
	}
	return TimelineResponse{
		Tracks:        snap.Tracks,
		Duration:      snap.Duration,
		CurrentTime:   s.engine.CurrentTime(),
		Selection:     selection,
		ClipboardSize: s.engine.ClipboardSize(),
		CanUndo:       s.engine.CanUndo(),
		CanRedo:       s.engine.CanRedo(),
	}
}

func (s *Server) clipsResponse(clips []domain.Clip) ClipsResponse {
	if clips == nil {
		clips = []domain.Clip{}
	}
	return ClipsResponse{Clips: clips, Timeline: s.state()}
}

// at returns the requested position, defaulting to the playhead.
func (s *Server) at(req TimeRequest) float64 {
	if req.At != nil {
		return *req.At
	}
	return s.engine.CurrentTime()
}

func (s *Server) getTimeline(c *gin.Context) {
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) resetTimeline(c *gin.Context) {
	s.engine.Reset(c.Request.Context())
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) placeClip(c *gin.Context) {
	var req PlaceClipRequest
	if !s.bind(c, &req) {
		return
	}

	file, ok := s.catalog.Get(req.FileID)
	if !ok {
		s.respondError(c, fmt.Errorf("%w: %s", catalog.ErrFileNotFound, req.FileID))
		return
	}

	clip, err := s.engine.PlaceClip(c.Request.Context(), file, req.TrackType, req.DropTime)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.clipsResponse([]domain.Clip{clip}))
}

func (s *Server) getClip(c *gin.Context) {
	id := c.Param("id")
	clip, ok := s.engine.Clip(id)
	if !ok {
		s.respondError(c, fmt.Errorf("%w: %s", timeline.ErrClipNotFound, id))
		return
	}
	c.JSON(http.StatusOK, clip)
}

func (s *Server) moveClip(c *gin.Context) {
	var req MoveClipRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.engine.MoveClip(c.Request.Context(), c.Param("id"), *req.StartTime); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) trimClip(c *gin.Context) {
	var req TrimClipRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.engine.TrimClip(c.Request.Context(), c.Param("id"), req.TrimStart, req.TrimEnd); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) setClipVolume(c *gin.Context) {
	var req VolumeRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.engine.SetClipVolume(c.Request.Context(), c.Param("id"), *req.Volume); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) deleteClip(c *gin.Context) {
	s.deleteClips(c, []string{c.Param("id")})
}

// deleteSelection deletes the listed clips, or the selection when the body
// names none.
func (s *Server) deleteSelection(c *gin.Context) {
	var req DeleteClipsRequest
	if !s.bindOptional(c, &req) {
		return
	}
	s.deleteClips(c, req.ClipIDs)
}

func (s *Server) deleteClips(c *gin.Context, ids []string) {
	n, err := s.engine.DeleteClips(c.Request.Context(), ids...)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n, "timeline": s.state()})
}

func (s *Server) toggleTrackMute(c *gin.Context) {
	muted, err := s.engine.ToggleTrackMute(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"muted": muted, "timeline": s.state()})
}

func (s *Server) toggleTrackLock(c *gin.Context) {
	locked, err := s.engine.ToggleTrackLock(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": locked, "timeline": s.state()})
}

func (s *Server) setTrackVolume(c *gin.Context) {
	var req VolumeRequest
	if !s.bind(c, &req) {
		return
	}
	if err := s.engine.SetTrackVolume(c.Request.Context(), c.Param("id"), *req.Volume); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) selectClip(c *gin.Context) {
	var req SelectRequest
	if !s.bind(c, &req) {
		return
	}
	s.engine.Select(req.ClipID, req.Shift)
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) clearSelection(c *gin.Context) {
	s.engine.ClearSelection()
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) setPlayhead(c *gin.Context) {
	var req PlayheadRequest
	if !s.bind(c, &req) {
		return
	}
	s.engine.SetCurrentTime(*req.Time)
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) split(c *gin.Context) {
	var req TimeRequest
	if !s.bindOptional(c, &req) {
		return
	}
	clips, err := s.engine.SplitAtPlayhead(c.Request.Context(), s.at(req))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.clipsResponse(clips))
}

func (s *Server) extractAudio(c *gin.Context) {
	clips, err := s.engine.ExtractAudio(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.clipsResponse(clips))
}

func (s *Server) copySelection(c *gin.Context) {
	n, err := s.engine.CopySelection()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"copied": n, "timeline": s.state()})
}

func (s *Server) cutSelection(c *gin.Context) {
	n, err := s.engine.CutSelection(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cut": n, "timeline": s.state()})
}

func (s *Server) paste(c *gin.Context) {
	var req TimeRequest
	if !s.bindOptional(c, &req) {
		return
	}
	clips, err := s.engine.PasteClipboard(c.Request.Context(), s.at(req))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.clipsResponse(clips))
}

func (s *Server) undo(c *gin.Context) {
	if err := s.engine.Undo(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) redo(c *gin.Context) {
	if err := s.engine.Redo(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) getShortcuts(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Shortcuts(c.Request.Context()))
}

func (s *Server) saveShortcuts(c *gin.Context) {
	shortcuts := timeline.DefaultShortcuts()
	if !s.bind(c, &shortcuts) {
		return
	}
	if err := s.engine.SaveShortcuts(c.Request.Context(), shortcuts); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shortcuts)
}

func (s *Server) resetShortcuts(c *gin.Context) {
	if err := s.engine.ResetShortcuts(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, timeline.DefaultShortcuts())
}
