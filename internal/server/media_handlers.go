package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/timeline-editor/internal/audio"
	"github.com/jaki95/timeline-editor/internal/catalog"
	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/jaki95/timeline-editor/internal/downloader"
)

func (s *Server) maxUpload() int64 {
	return s.cfg.Server.MaxUploadMB << 20
}

func (s *Server) listMedia(c *gin.Context) {
	files := s.catalog.List()
	if files == nil {
		files = []domain.MediaFile{}
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (s *Server) getMedia(c *gin.Context) {
	file, ok := s.lookupFile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, file)
}

func (s *Server) lookupFile(c *gin.Context) (domain.MediaFile, bool) {
	id := c.Param("id")
	file, ok := s.catalog.Get(id)
	if !ok {
		s.respondError(c, fmt.Errorf("%w: %s", catalog.ErrFileNotFound, id))
	}
	return file, ok
}

// uploadMedia ingests a multipart "file" field into the catalog.
func (s *Server) uploadMedia(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		return
	}
	if header.Size > s.maxUpload() {
		s.respondError(c, fmt.Errorf("%w: %d bytes", downloader.ErrTooLarge, header.Size))
		return
	}

	f, err := header.Open()
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer f.Close()

	file, err := s.catalog.Ingest(c.Request.Context(), header.Filename, header.Size, header.Header.Get("Content-Type"), f)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}

// importMedia fetches a remote file and ingests it.
func (s *Server) importMedia(c *gin.Context) {
	var req ImportRequest
	if !s.bind(c, &req) {
		return
	}
	if !s.downloader.SupportsURL(req.URL) {
		s.respondError(c, fmt.Errorf("%w: unsupported url %q", ErrInvalidRequest, req.URL))
		return
	}

	ctx := c.Request.Context()
	lastPct := -1
	dl, err := s.downloader.Fetch(ctx, req.URL, func(read, total int64) {
		if total <= 0 {
			return
		}
		if pct := int(read * 100 / total); pct/10 != lastPct/10 {
			lastPct = pct
			s.logger.Debug("Importing media", "url", req.URL, "progress", pct)
		}
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer dl.Body.Close()

	file, err := s.catalog.Ingest(ctx, dl.Name, dl.Size, dl.ContentType, dl.Body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info("Imported media", "url", req.URL, "file", file.ID, "name", file.Name)
	c.JSON(http.StatusCreated, file)
}

func (s *Server) streamMedia(c *gin.Context) {
	file, ok := s.lookupFile(c)
	if !ok {
		return
	}
	rc, err := s.catalog.Open(c.Request.Context(), file.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, file.Size, contentType(file), rc, nil)
}

func (s *Server) setMediaDuration(c *gin.Context) {
	var req DurationRequest
	if !s.bind(c, &req) {
		return
	}
	file, err := s.catalog.SetDuration(c.Request.Context(), c.Param("id"), *req.Duration)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

// deleteMedia removes a file. Its clips leave the timeline with it.
func (s *Server) deleteMedia(c *gin.Context) {
	if err := s.catalog.Remove(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.state())
}

func (s *Server) readClip(c *gin.Context, id string) (audio.Clip, error) {
	file, ok := s.catalog.Get(id)
	if !ok {
		return audio.Clip{}, fmt.Errorf("%w: %s", catalog.ErrFileNotFound, id)
	}
	rc, err := s.catalog.Open(c.Request.Context(), id)
	if err != nil {
		return audio.Clip{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return audio.Clip{}, fmt.Errorf("failed to read %s: %w", id, err)
	}
	return audio.Clip{Name: file.Name, Data: data}, nil
}

// trimMedia cuts a range out of a file into a new catalog entry.
func (s *Server) trimMedia(c *gin.Context) {
	var req TrimMediaRequest
	if !s.bind(c, &req) {
		return
	}
	in, err := s.readClip(c, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	data, err := s.tools.Trim(c.Request.Context(), in, *req.Start, *req.End)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.ingestBytes(c, derivedName(in.Name, "trim"), data)
}

// extractMediaAudio saves the audio of a video file as a new catalog entry.
func (s *Server) extractMediaAudio(c *gin.Context) {
	var req ExtractAudioRequest
	if !s.bindOptional(c, &req) {
		return
	}
	id := c.Param("id")
	if file, ok := s.catalog.Get(id); ok && file.Kind != domain.KindVideo {
		s.respondError(c, fmt.Errorf("%w: %s is not a video", ErrInvalidRequest, file.Name))
		return
	}
	in, err := s.readClip(c, id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	format := req.Format
	if format == "" {
		format = "wav"
	}
	data, err := s.tools.ExtractAudio(c.Request.Context(), in, format)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.ingestBytes(c, derivedName(withExt(in.Name, format), "audio"), data)
}

// mergeMedia joins files in order into a new catalog entry.
func (s *Server) mergeMedia(c *gin.Context) {
	var req MergeMediaRequest
	if !s.bind(c, &req) {
		return
	}

	inputs := make([]audio.Clip, 0, len(req.FileIDs))
	for _, id := range req.FileIDs {
		in, err := s.readClip(c, id)
		if err != nil {
			s.respondError(c, err)
			return
		}
		inputs = append(inputs, in)
	}

	data, err := s.tools.Merge(c.Request.Context(), inputs)
	if err != nil {
		s.respondError(c, err)
		return
	}

	name := req.Name
	if name == "" {
		name = derivedName(inputs[0].Name, "merged")
	}
	s.ingestBytes(c, name, data)
}

func (s *Server) ingestBytes(c *gin.Context, name string, data []byte) {
	file, err := s.catalog.Ingest(c.Request.Context(), name, int64(len(data)), "", bytes.NewReader(data))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, file)
}
