package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Kind identifies whether a file, clip or track carries video or audio.
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// ErrUnsupportedMedia is returned when a file is neither video nor audio.
var ErrUnsupportedMedia = errors.New("unsupported media type")

var (
	videoExtensions = []string{".mp4", ".webm", ".mkv", ".avi", ".mov", ".wmv", ".flv"}
	audioExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".aac", ".wma"}
)

// MediaFile is an ingested source file. Only Duration changes after creation.
type MediaFile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Kind      Kind      `json:"type"`
	Duration  float64   `json:"duration"`
	SourceRef string    `json:"sourceRef"`
	Format    string    `json:"format,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Extension returns the lower-cased extension of the file name without the dot.
func (f MediaFile) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
}

// DetectKind resolves the kind of a file from its name, falling back to the
// MIME type prefix when the extension is unknown.
func DetectKind(name, contentType string) (Kind, error) {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range videoExtensions {
		if ext == e {
			return KindVideo, nil
		}
	}
	for _, e := range audioExtensions {
		if ext == e {
			return KindAudio, nil
		}
	}

	switch {
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo, nil
	case strings.HasPrefix(contentType, "audio/"):
		return KindAudio, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, name)
}
