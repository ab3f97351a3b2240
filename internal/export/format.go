package export

import (
	"fmt"
	"strings"
)

// Format is an export target container.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
)

type formatSpec struct {
	mimeType string
	// codec holds the encoder flags; single and concat differ only for mp3.
	codec       []string
	singleExtra []string
	concatExtra []string
}

var formats = map[Format]formatSpec{
	FormatMP4: {
		mimeType: "video/mp4",
		codec:    []string{"-c:v", "libx264", "-preset", "ultrafast", "-crf", "28"},
	},
	FormatWebM: {
		mimeType: "video/webm",
		codec:    []string{"-c:v", "libvpx-vp9", "-deadline", "realtime", "-crf", "35"},
	},
	FormatMP3: {
		mimeType:    "audio/mpeg",
		codec:       []string{"-vn", "-c:a", "libmp3lame"},
		singleExtra: []string{"-b:a", "192k"},
		concatExtra: []string{"-q:a", "4"},
	},
	FormatWAV: {
		mimeType: "audio/wav",
		codec:    []string{"-vn", "-c:a", "pcm_s16le"},
	},
}

// ParseFormat normalizes a user supplied format name.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	if _, ok := formats[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

// MimeType returns the content type of exported files.
func (f Format) MimeType() string {
	return formats[f].mimeType
}

func (f Format) encoderArgs(concat bool) []string {
	spec := formats[f]
	args := append([]string(nil), spec.codec...)
	if concat {
		return append(args, spec.concatExtra...)
	}
	return append(args, spec.singleExtra...)
}

// SupportedFormats lists every export format.
func SupportedFormats() []Format {
	return []Format{FormatMP4, FormatWebM, FormatMP3, FormatWAV}
}
