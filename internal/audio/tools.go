package audio

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange           = errors.New("invalid trim range")
	ErrUnsupportedAudioFormat = errors.New("unsupported audio format")
)

// extractCodecs holds the encoder arguments for each extraction format.
var extractCodecs = map[string][]string{
	"wav": {"-c:a", "pcm_s16le"},
	"mp3": {"-c:a", "libmp3lame", "-b:a", "192k"},
}

// Clip is a named piece of media for the standalone tools.
type Clip struct {
	Name string
	Data []byte
}

func (c Clip) ext() string {
	if i := strings.LastIndex(c.Name, "."); i >= 0 && i < len(c.Name)-1 {
		return strings.ToLower(c.Name[i+1:])
	}
	return "mp3"
}

// Tools performs lossless trim and merge plus audio extraction, each call in
// a fresh working directory.
type Tools struct {
	opts Options
}

func NewTools(opts Options) *Tools {
	return &Tools{opts: opts.withDefaults()}
}

// Trim cuts [start, end) out of in without re-encoding.
func (t *Tools) Trim(ctx context.Context, in Clip, start, end float64) ([]byte, error) {
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: %.3f-%.3f", ErrInvalidRange, start, end)
	}

	tc, err := NewFFmpegTranscoder(t.opts)
	if err != nil {
		return nil, err
	}
	defer tc.Close()

	input := "input." + in.ext()
	output := "trimmed." + in.ext()
	if err := tc.WriteInput(ctx, input, in.Data); err != nil {
		return nil, err
	}

	args := []string{
		"-i", input,
		"-ss", strconv.FormatFloat(start, 'f', -1, 64),
		"-to", strconv.FormatFloat(end, 'f', -1, 64),
		"-c", "copy",
		output,
	}
	if err := tc.Execute(ctx, args, end-start, nil); err != nil {
		return nil, fmt.Errorf("trim failed: %w", err)
	}
	return tc.ReadOutput(ctx, output)
}

// Merge concatenates inputs in order without re-encoding. The output uses
// the container of the first input.
func (t *Tools) Merge(ctx context.Context, inputs []Clip) ([]byte, error) {
	if len(inputs) < 2 {
		return nil, fmt.Errorf("merge needs at least two inputs, got %d", len(inputs))
	}

	tc, err := NewFFmpegTranscoder(t.opts)
	if err != nil {
		return nil, err
	}
	defer tc.Close()

	var list strings.Builder
	for i, in := range inputs {
		handle := fmt.Sprintf("input%d.%s", i, in.ext())
		if err := tc.WriteInput(ctx, handle, in.Data); err != nil {
			return nil, err
		}
		fmt.Fprintf(&list, "file '%s'\n", handle)
	}
	if err := tc.WriteInput(ctx, "concat.txt", []byte(list.String())); err != nil {
		return nil, err
	}

	output := "merged." + inputs[0].ext()
	args := []string{"-f", "concat", "-safe", "0", "-i", "concat.txt", "-c", "copy", output}
	if err := tc.Execute(ctx, args, 0, nil); err != nil {
		return nil, fmt.Errorf("merge failed: %w", err)
	}
	return tc.ReadOutput(ctx, output)
}

// ExtractAudio decodes the audio stream of in into a standalone file,
// dropping any video. format is wav or mp3; empty means wav.
func (t *Tools) ExtractAudio(ctx context.Context, in Clip, format string) ([]byte, error) {
	format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if format == "" {
		format = "wav"
	}
	codec, ok := extractCodecs[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAudioFormat, format)
	}

	tc, err := NewFFmpegTranscoder(t.opts)
	if err != nil {
		return nil, err
	}
	defer tc.Close()

	input := "input." + in.ext()
	output := "extracted." + format
	if err := tc.WriteInput(ctx, input, in.Data); err != nil {
		return nil, err
	}

	args := append([]string{"-i", input, "-vn"}, codec...)
	if err := tc.Execute(ctx, append(args, output), 0, nil); err != nil {
		return nil, fmt.Errorf("audio extraction failed: %w", err)
	}
	return tc.ReadOutput(ctx, output)
}
