// Package export renders the video track of a timeline into a single file
// through an external transcoder.
package export

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jaki95/timeline-editor/internal/domain"
)

// Transcoder runs commands against a private file namespace. Progress is
// reported during Execute as the fraction in [0, 1] of duration, the
// expected output length in seconds, written so far.
type Transcoder interface {
	WriteInput(ctx context.Context, handle string, data []byte) error
	Execute(ctx context.Context, args []string, duration float64, onProgress func(fraction float64)) error
	ReadOutput(ctx context.Context, handle string) ([]byte, error)
	DeleteHandle(ctx context.Context, handle string) error
}

// Content resolves clips to their files and bytes.
type Content interface {
	FileLookup
	Open(ctx context.Context, id string) (io.ReadCloser, error)
}

// Options configures an Orchestrator.
type Options struct {
	Transcoder Transcoder
	Content    Content
	Now        func() time.Time
	Logger     *slog.Logger
}

// Request selects the export target.
type Request struct {
	Format Format
}

// Result is a finished export.
type Result struct {
	FileName string
	MimeType string
	Data     []byte
}

// Orchestrator builds and runs export plans.
type Orchestrator struct {
	transcoder Transcoder
	content    Content
	now        func() time.Time
	logger     *slog.Logger
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		transcoder: opts.Transcoder,
		content:    opts.Content,
		now:        opts.Now,
		logger:     opts.Logger,
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Export renders the clips of the first video track. onProgress receives
// whole percentages: at most 99 while the transcoder runs, then 100 once
// the output has been read. Every handle is deleted before returning.
func (o *Orchestrator) Export(ctx context.Context, tracks []domain.Track, req Request, onProgress func(percent int)) (*Result, error) {
	clips, err := VideoClips(tracks)
	if err != nil {
		return nil, err
	}

	plan, err := BuildPlan(clips, o.content, req.Format, o.now())
	if err != nil {
		return nil, err
	}

	o.logger.Info("Starting export", "format", plan.Format, "inputs", len(plan.Inputs), "steps", len(plan.Steps), "output", plan.Output)
	defer o.cleanup(plan)

	if err := o.writeInputs(ctx, plan); err != nil {
		return nil, err
	}

	progress := newProgressMapper(len(plan.Steps), onProgress)
	for i, step := range plan.Steps {
		o.logger.Debug("Running export step", "step", step.Name, "args", step.Args)
		if err := o.transcoder.Execute(ctx, step.Args, step.Duration, progress.forStep(i)); err != nil {
			return nil, &ProcessingError{Step: step.Name, Err: err}
		}
	}

	data, err := o.transcoder.ReadOutput(ctx, plan.Output)
	if err != nil {
		return nil, &ProcessingError{Step: "read " + plan.Output, Err: err}
	}
	progress.complete()

	o.logger.Info("Export finished", "output", plan.Output, "bytes", len(data))
	return &Result{FileName: plan.Output, MimeType: plan.Format.MimeType(), Data: data}, nil
}

// VideoClips returns the clips of the first video track, the only track an
// export renders.
func VideoClips(tracks []domain.Track) ([]domain.Clip, error) {
	for _, t := range tracks {
		if t.Kind != domain.KindVideo {
			continue
		}
		if len(t.Clips) == 0 {
			return nil, ErrNoVideoClips
		}
		return t.Clips, nil
	}
	return nil, ErrNoVideoTrack
}

func (o *Orchestrator) writeInputs(ctx context.Context, plan Plan) error {
	for _, in := range plan.Inputs {
		data, err := o.readFile(ctx, in.FileID)
		if err != nil {
			return &ProcessingError{Step: "read " + in.FileID, Err: err}
		}
		if err := o.transcoder.WriteInput(ctx, in.Handle, data); err != nil {
			return &ProcessingError{Step: "write " + in.Handle, Err: err}
		}
	}
	if plan.ConcatList != "" {
		if err := o.transcoder.WriteInput(ctx, concatListHandle, []byte(plan.ConcatList)); err != nil {
			return &ProcessingError{Step: "write " + concatListHandle, Err: err}
		}
	}
	return nil
}

func (o *Orchestrator) readFile(ctx context.Context, fileID string) ([]byte, error) {
	rc, err := o.content.Open(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// cleanup runs on a fresh context so a cancelled export still releases its handles.
func (o *Orchestrator) cleanup(plan Plan) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, handle := range plan.Handles() {
		if err := o.transcoder.DeleteHandle(ctx, handle); err != nil {
			o.logger.Warn("Failed to delete export handle", "handle", handle, "error", err)
		}
	}
}

// progressMapper spreads per-step fractions evenly over the whole export.
type progressMapper struct {
	mu     sync.Mutex
	steps  int
	last   int
	report func(int)
}

func newProgressMapper(steps int, report func(int)) *progressMapper {
	return &progressMapper{steps: max(1, steps), last: -1, report: report}
}

func (m *progressMapper) forStep(i int) func(float64) {
	return func(fraction float64) {
		fraction = math.Min(1, math.Max(0, fraction))
		overall := (float64(i) + fraction) / float64(m.steps)
		m.emit(min(99, int(math.Floor(overall*100))))
	}
}

func (m *progressMapper) complete() {
	m.emit(100)
}

func (m *progressMapper) emit(pct int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pct <= m.last {
		return
	}
	m.last = pct
	if m.report != nil {
		m.report(pct)
	}
}
