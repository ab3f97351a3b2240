// Package server exposes the timeline engine, media catalog and export jobs
// over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jaki95/timeline-editor/config"
	"github.com/jaki95/timeline-editor/internal/audio"
	"github.com/jaki95/timeline-editor/internal/catalog"
	"github.com/jaki95/timeline-editor/internal/downloader"
	"github.com/jaki95/timeline-editor/internal/export"
	"github.com/jaki95/timeline-editor/internal/job"
	"github.com/jaki95/timeline-editor/internal/timeline"
)

// Transcoder is an export transcoder that owns a scratch directory.
type Transcoder interface {
	export.Transcoder
	Close() error
}

// TranscoderFactory creates an isolated transcoder for one export.
type TranscoderFactory func() (Transcoder, error)

// AudioTools cuts and joins audio files.
type AudioTools interface {
	Trim(ctx context.Context, in audio.Clip, start, end float64) ([]byte, error)
	Merge(ctx context.Context, inputs []audio.Clip) ([]byte, error)
	ExtractAudio(ctx context.Context, in audio.Clip, format string) ([]byte, error)
}

// Deps are the components the server routes requests to.
type Deps struct {
	Engine        *timeline.Engine
	Catalog       *catalog.Catalog
	Jobs          *job.Manager
	Downloader    downloader.Downloader
	Tools         AudioTools
	NewTranscoder TranscoderFactory
	Logger        *slog.Logger
}

// Server handles HTTP requests for the timeline editor
type Server struct {
	cfg    *config.Config
	router *gin.Engine

	engine        *timeline.Engine
	catalog       *catalog.Catalog
	jobs          *job.Manager
	downloader    downloader.Downloader
	tools         AudioTools
	newTranscoder TranscoderFactory
	upgrader      websocket.Upgrader
	logger        *slog.Logger
}

// New creates a new HTTP server instance. Media removals cascade into the
// timeline, so clips never point at a deleted file.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:           cfg,
		router:        gin.New(),
		engine:        deps.Engine,
		catalog:       deps.Catalog,
		jobs:          deps.Jobs,
		downloader:    deps.Downloader,
		tools:         deps.Tools,
		newTranscoder: deps.NewTranscoder,
		logger:        deps.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.jobs == nil {
		s.jobs = job.NewManager(job.Options{Logger: s.logger})
	}
	if s.downloader == nil {
		s.downloader = downloader.NewHTTPDownloader(cfg.Server.MaxUploadMB << 20)
	}
	if s.tools == nil {
		s.tools = audio.NewTools(ffmpegOptions(cfg, s.logger))
	}
	if s.newTranscoder == nil {
		opts := ffmpegOptions(cfg, s.logger)
		s.newTranscoder = func() (Transcoder, error) {
			t, err := audio.NewFFmpegTranscoder(opts)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	}

	s.catalog.OnRemove(func(ctx context.Context, fileID string) error {
		_, err := s.engine.RemoveClipsForFile(ctx, fileID)
		return err
	})

	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func ffmpegOptions(cfg *config.Config, logger *slog.Logger) audio.Options {
	return audio.Options{
		FFmpegPath:  cfg.FFmpeg.FFmpegPath,
		FFprobePath: cfg.FFmpeg.FFprobePath,
		WorkDir:     cfg.FFmpeg.WorkDir,
		Logger:      logger,
	}
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	s.router.GET("/health", s.health)

	api := s.router.Group("/api/v1")

	tl := api.Group("/timeline")
	{
		tl.GET("", s.getTimeline)
		tl.DELETE("", s.resetTimeline)

		tl.POST("/clips", s.placeClip)
		tl.DELETE("/clips", s.deleteSelection)
		tl.GET("/clips/:id", s.getClip)
		tl.DELETE("/clips/:id", s.deleteClip)
		tl.PUT("/clips/:id/position", s.moveClip)
		tl.PUT("/clips/:id/trim", s.trimClip)
		tl.PUT("/clips/:id/volume", s.setClipVolume)

		tl.POST("/tracks/:id/mute", s.toggleTrackMute)
		tl.POST("/tracks/:id/lock", s.toggleTrackLock)
		tl.PUT("/tracks/:id/volume", s.setTrackVolume)

		tl.POST("/selection", s.selectClip)
		tl.DELETE("/selection", s.clearSelection)

		tl.PUT("/playhead", s.setPlayhead)
		tl.POST("/split", s.split)
		tl.POST("/extract-audio", s.extractAudio)

		tl.POST("/clipboard/copy", s.copySelection)
		tl.POST("/clipboard/cut", s.cutSelection)
		tl.POST("/clipboard/paste", s.paste)

		tl.POST("/history/undo", s.undo)
		tl.POST("/history/redo", s.redo)
	}

	media := api.Group("/media")
	{
		media.GET("", s.listMedia)
		media.POST("", s.uploadMedia)
		media.POST("/import", s.importMedia)
		media.POST("/merge", s.mergeMedia)
		media.GET("/:id", s.getMedia)
		media.GET("/:id/content", s.streamMedia)
		media.PUT("/:id/duration", s.setMediaDuration)
		media.POST("/:id/trim", s.trimMedia)
		media.POST("/:id/extract-audio", s.extractMediaAudio)
		media.DELETE("/:id", s.deleteMedia)
	}

	exports := api.Group("/exports")
	{
		exports.POST("", s.createExport)
		exports.GET("", s.listExports)
		exports.GET("/formats", s.listFormats)
		exports.GET("/:id", s.getExport)
		exports.POST("/:id/cancel", s.cancelExport)
		exports.DELETE("/:id", s.deleteExport)
		exports.GET("/:id/download", s.downloadExport)
		exports.GET("/:id/events", s.exportEvents)
	}

	shortcuts := api.Group("/shortcuts")
	{
		shortcuts.GET("", s.getShortcuts)
		shortcuts.PUT("", s.saveShortcuts)
		shortcuts.DELETE("", s.resetShortcuts)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Handled request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// health handles health check requests
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"service":   "timeline-editor",
	})
}
