package export

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jaki95/timeline-editor/internal/domain"
)

const (
	concatListHandle = "concat.txt"
	defaultInputExt  = "mp4"
)

// FileLookup resolves the files referenced by clips.
type FileLookup interface {
	Get(id string) (domain.MediaFile, bool)
}

// Input is a source file written to the transcoder under Handle.
type Input struct {
	Handle string
	FileID string
}

// Step is one transcoder invocation. Duration is the length of the media
// it writes, in seconds.
type Step struct {
	Name     string
	Args     []string
	Duration float64
}

// Plan is the full list of transcoder calls for one export.
type Plan struct {
	Format     Format
	Inputs     []Input
	ConcatList string
	Steps      []Step
	Output     string
}

// Handles returns every handle the plan creates.
func (p Plan) Handles() []string {
	var handles []string
	for _, in := range p.Inputs {
		handles = append(handles, in.Handle)
	}
	for _, s := range p.Steps {
		if s.Name != "render" {
			handles = append(handles, s.Args[len(s.Args)-1])
		}
	}
	if p.ConcatList != "" {
		handles = append(handles, concatListHandle)
	}
	return append(handles, p.Output)
}

// BuildPlan turns the clips of the video track into transcoder steps.
// Clips whose file is unknown are skipped. Several clips are joined through
// a concat list, with trimmed clips cut losslessly into segments first.
func BuildPlan(clips []domain.Clip, files FileLookup, format Format, at time.Time) (Plan, error) {
	if _, ok := formats[format]; !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	sorted := append([]domain.Clip(nil), clips...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	plan := Plan{
		Format: format,
		Output: fmt.Sprintf("export_%d.%s", at.UnixMilli(), format),
	}

	var used []domain.Clip
	var exts []string
	for i, clip := range sorted {
		file, ok := files.Get(clip.FileID)
		if !ok {
			slog.Warn("Skipping clip with missing file", "clip", clip.ID, "file", clip.FileID)
			continue
		}
		ext := file.Extension()
		if ext == "" {
			ext = defaultInputExt
		}
		plan.Inputs = append(plan.Inputs, Input{Handle: fmt.Sprintf("input%d.%s", i, ext), FileID: clip.FileID})
		used = append(used, clip)
		exts = append(exts, ext)
	}
	if len(plan.Inputs) == 0 {
		return Plan{}, ErrNoInputs
	}

	if len(plan.Inputs) == 1 {
		args := []string{"-i", plan.Inputs[0].Handle}
		if trimmed(used[0]) {
			args = append(args, trimArgs(used[0])...)
		}
		args = append(args, format.encoderArgs(false)...)
		plan.Steps = []Step{{Name: "render", Args: append(args, plan.Output), Duration: used[0].Duration}}
		return plan, nil
	}

	var list strings.Builder
	var total float64
	for i, in := range plan.Inputs {
		total += used[i].Duration
		handle := in.Handle
		if trimmed(used[i]) {
			handle = fmt.Sprintf("segment%d.%s", i, exts[i])
			args := append([]string{"-i", in.Handle}, trimArgs(used[i])...)
			args = append(args, "-c", "copy", handle)
			plan.Steps = append(plan.Steps, Step{Name: "trim " + in.Handle, Args: args, Duration: used[i].Duration})
		}
		fmt.Fprintf(&list, "file '%s'\n", handle)
	}
	plan.ConcatList = list.String()

	args := []string{"-f", "concat", "-safe", "0", "-i", concatListHandle}
	args = append(args, format.encoderArgs(true)...)
	plan.Steps = append(plan.Steps, Step{Name: "render", Args: append(args, plan.Output), Duration: total})
	return plan, nil
}

func trimmed(c domain.Clip) bool {
	return c.TrimStart > 0 || c.TrimEnd > 0
}

func trimArgs(c domain.Clip) []string {
	return []string{"-ss", formatSeconds(c.TrimStart), "-to", formatSeconds(c.TrimStart + c.Duration)}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
