// Package audio runs FFmpeg and FFprobe on behalf of the editor: rendering
// exports inside a private working directory, probing media durations and
// the standalone trim and merge tools.
package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	ErrInvalidHandle  = errors.New("invalid handle")
	ErrHandleNotFound = errors.New("handle not found")
)

// ffmpegError wraps FFmpeg command errors with additional context
type ffmpegError struct {
	cmd     string
	output  string
	wrapped error
}

func (e *ffmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %s\nCommand: %s\nOutput: %s", e.wrapped, e.cmd, e.output)
}

func (e *ffmpegError) Unwrap() error {
	return e.wrapped
}

// newFFmpegError creates a new ffmpegError with truncated command output
func newFFmpegError(cmd *exec.Cmd, output []byte, err error) error {
	cmdStr := cmd.String()
	if len(cmdStr) > 200 {
		cmdStr = cmdStr[:200] + "..."
	}
	out := string(output)
	if len(out) > 2000 {
		out = "..." + out[len(out)-2000:]
	}
	return &ffmpegError{
		cmd:     cmdStr,
		output:  out,
		wrapped: err,
	}
}

// Options locates the binaries and the parent of the working directories.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	WorkDir     string
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.FFmpegPath == "" {
		o.FFmpegPath = "ffmpeg"
	}
	if o.FFprobePath == "" {
		o.FFprobePath = "ffprobe"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// FFmpegTranscoder executes FFmpeg commands against handles, which are plain
// file names inside its own temporary directory. Create one per export so
// concurrent renders never share handles.
type FFmpegTranscoder struct {
	ffmpegPath string
	dir        string
	logger     *slog.Logger
}

func NewFFmpegTranscoder(opts Options) (*FFmpegTranscoder, error) {
	opts = opts.withDefaults()
	if opts.WorkDir != "" {
		if err := os.MkdirAll(opts.WorkDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create work directory: %w", err)
		}
	}
	dir, err := os.MkdirTemp(opts.WorkDir, "transcode_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create transcode directory: %w", err)
	}
	return &FFmpegTranscoder{ffmpegPath: opts.FFmpegPath, dir: dir, logger: opts.Logger}, nil
}

// Dir returns the working directory that handles resolve against.
func (t *FFmpegTranscoder) Dir() string {
	return t.dir
}

func (t *FFmpegTranscoder) resolve(handle string) (string, error) {
	if handle == "" || handle == "." || handle == ".." || strings.ContainsAny(handle, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return filepath.Join(t.dir, handle), nil
}

func (t *FFmpegTranscoder) WriteInput(ctx context.Context, handle string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := t.resolve(handle)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", handle, err)
	}
	return nil
}

// Execute runs ffmpeg with args inside the working directory and reports
// the fraction of duration written so far. A zero duration falls back to
// the first input duration in ffmpeg's banner.
func (t *FFmpegTranscoder) Execute(ctx context.Context, args []string, duration float64, onProgress func(float64)) error {
	full := append([]string{"-y", "-nostats", "-progress", "pipe:1"}, args...)
	cmd := exec.CommandContext(ctx, t.ffmpegPath, full...)
	cmd.Dir = t.dir

	stderr := &lockedBuffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach ffmpeg stdout: %w", err)
	}

	t.logger.Debug("Running ffmpeg", "args", full, "dir", t.dir)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	reportProgress(stdout, stderr, duration, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newFFmpegError(cmd, stderr.Bytes(), err)
	}
	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

func (t *FFmpegTranscoder) ReadOutput(ctx context.Context, handle string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := t.resolve(handle)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrHandleNotFound, handle)
	}
	return data, err
}

// DeleteHandle removes a handle. Missing handles are not an error.
func (t *FFmpegTranscoder) DeleteHandle(_ context.Context, handle string) error {
	path, err := t.resolve(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", handle, err)
	}
	return nil
}

// Close removes the working directory and everything left in it.
func (t *FFmpegTranscoder) Close() error {
	return os.RemoveAll(t.dir)
}

var durationPattern = regexp.MustCompile(`Duration: (\d+:\d{2}:\d{2}(?:\.\d+)?)`)

// parseDuration extracts the first input duration from ffmpeg's banner.
func parseDuration(stderr string) (float64, bool) {
	m := durationPattern.FindStringSubmatch(stderr)
	if m == nil {
		return 0, false
	}
	seconds, err := timeToSeconds(m[1])
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return seconds, true
}

// reportProgress reads ffmpeg's -progress key=value stream until EOF,
// measuring out_time against total when it is known.
func reportProgress(stdout io.Reader, stderr *lockedBuffer, total float64, onProgress func(float64)) {
	total = max(0, total)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || onProgress == nil {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			if total == 0 {
				total, _ = parseDuration(stderr.String())
			}
			us, err := strconv.ParseInt(value, 10, 64)
			if err != nil || total == 0 || us < 0 {
				continue
			}
			onProgress(min(1, float64(us)/1e6/total))
		case "progress":
			if value == "end" {
				onProgress(1)
			}
		}
	}
	// Drain so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, stdout)
}

// timeToSeconds converts a timestamp like "1:23:45.67" or "45:23" to seconds.
func timeToSeconds(timestamp string) (float64, error) {
	parts := strings.Split(timestamp, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp format: %s", timestamp)
	}
	var total float64
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", timestamp, err)
		}
		if v < 0 {
			return 0, fmt.Errorf("invalid timestamp %q: negative field", timestamp)
		}
		total = total*60 + v
	}
	return total, nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
