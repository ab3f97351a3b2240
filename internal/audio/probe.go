package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

var ErrUnknownDuration = errors.New("duration not reported")

// Prober measures media duration with ffprobe, streaming the content over stdin.
type Prober struct {
	ffprobePath string
}

func NewProber(opts Options) *Prober {
	return &Prober{ffprobePath: opts.withDefaults().FFprobePath}
}

func (p *Prober) Probe(ctx context.Context, r io.Reader) (float64, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		"-i", "pipe:0",
	)
	cmd.Stdin = r
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, newFFmpegError(cmd, stderr.Bytes(), err)
	}
	return parseProbeOutput(string(output))
}

func parseProbeOutput(output string) (float64, error) {
	value := strings.TrimSpace(output)
	if value == "" || value == "N/A" {
		return 0, ErrUnknownDuration
	}
	d, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ffprobe duration %q: %w", value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownDuration, value)
	}
	return d, nil
}
