package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/jaki95/timeline-editor/internal/playback"
	"github.com/spf13/cobra"
)

var (
	previewFrom   float64
	previewVolume int
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Play the saved timeline headlessly and print what each track plays",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, slog.Default())
		if err != nil {
			return err
		}
		defer a.Close()

		return runPreview(ctx, a, cmd.OutOrStdout(), previewFrom, previewVolume)
	},
}

func init() {
	previewCmd.Flags().Float64Var(&previewFrom, "from", 0, "start position in seconds")
	previewCmd.Flags().IntVar(&previewVolume, "volume", domain.FullVolume, "global volume percentage")
	rootCmd.AddCommand(previewCmd)
}

// runPreview plays the timeline from the given position until it ends or
// ctx is cancelled.
func runPreview(ctx context.Context, a *app, out io.Writer, from float64, volume int) error {
	tr := &tracer{out: out, now: a.engine.CurrentTime}
	done := make(chan struct{})
	var once sync.Once
	var started atomic.Bool

	duration := a.engine.Duration()
	player := playback.New(playback.Options{
		Source: a.engine,
		Files:  a.catalog,
		NewElement: func(clip domain.Clip) playback.MediaElement {
			return &traceElement{tracer: tr, track: clip.TrackID}
		},
		DriftThreshold: a.cfg.Playback.DriftThreshold,
		TickInterval:   a.cfg.Playback.TickInterval,
		OnTime: func(t float64) {
			if started.Load() && t >= duration {
				once.Do(func() { close(done) })
			}
		},
		OnError: func(err error) {
			tr.printf("error: %v", err)
		},
		Logger: a.logger,
	})
	defer player.Close()

	player.SetVolume(volume)
	player.Seek(from)
	started.Store(true)
	player.Play()
	tr.printf("playing to %.2fs", duration)

	select {
	case <-done:
		tr.printf("end of timeline")
	case <-ctx.Done():
		player.Pause()
		tr.printf("stopped")
	}
	return nil
}

// tracer serialises preview output from the tick loop and element
// callbacks, stamping each line with the playhead.
type tracer struct {
	mu  sync.Mutex
	out io.Writer
	now func() float64
}

func (t *tracer) printf(format string, args ...any) {
	at := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "[%7.2fs] %s\n", at, fmt.Sprintf(format, args...))
}

// traceElement stands in for a decoder. It keeps its position from the wall
// clock and reports every call.
type traceElement struct {
	tracer *tracer
	track  string
	file   domain.MediaFile
	ready  func()

	mu      sync.Mutex
	pos     float64
	started time.Time
	playing bool
}

func (e *traceElement) Load(_ context.Context, file domain.MediaFile) error {
	e.file = file
	e.tracer.printf("%s: load %s", e.track, file.Name)
	if e.ready != nil {
		e.ready()
	}
	return nil
}

func (e *traceElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.playing {
		e.started = time.Now()
		e.playing = true
		e.tracer.printf("%s: play %s from %.2fs", e.track, e.file.Name, e.pos)
	}
	return nil
}

func (e *traceElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pos = e.positionLocked()
	e.playing = false
	e.tracer.printf("%s: pause %s at %.2fs", e.track, e.file.Name, e.pos)
}

func (e *traceElement) Seek(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pos = seconds
	e.started = time.Now()
	e.tracer.printf("%s: seek %s to %.2fs", e.track, e.file.Name, seconds)
}

func (e *traceElement) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *traceElement) positionLocked() float64 {
	if !e.playing {
		return e.pos
	}
	return e.pos + time.Since(e.started).Seconds()
}

func (e *traceElement) SetVolume(volume float64) {
	e.tracer.printf("%s: gain %.2f", e.track, volume)
}

func (e *traceElement) OnReady(fn func()) { e.ready = fn }

func (e *traceElement) OnEnded(func()) {}

func (e *traceElement) Close() error {
	e.tracer.printf("%s: release %s", e.track, e.file.Name)
	return nil
}
