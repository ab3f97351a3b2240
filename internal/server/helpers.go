package server

import (
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/jaki95/timeline-editor/internal/domain"
)

// SanitizeFilename sanitizes a filename by removing invalid characters
func SanitizeFilename(name string) string {
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\n', '\r', '\t':
			return '_'
		}
		return r
	}, name)

	result = strings.Trim(result, " .")
	if result == "" {
		result = "untitled"
	}
	return result
}

var mediaTypes = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mkv":  "video/x-matroska",
	"avi":  "video/x-msvideo",
	"mov":  "video/quicktime",
	"wmv":  "video/x-ms-wmv",
	"flv":  "video/x-flv",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"flac": "audio/flac",
	"ogg":  "audio/ogg",
	"aac":  "audio/aac",
	"wma":  "audio/x-ms-wma",
}

// contentType guesses the MIME type of a media file from its extension.
func contentType(file domain.MediaFile) string {
	if t, ok := mediaTypes[file.Extension()]; ok {
		return t
	}
	if t := mime.TypeByExtension("." + file.Extension()); t != "" {
		return t
	}
	return "application/octet-stream"
}

// attachment builds a Content-Disposition header for a download.
func attachment(name string) map[string]string {
	return map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": SanitizeFilename(name)}),
	}
}

// derivedName names the output of a tool run on name, keeping its extension.
func derivedName(name, suffix string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = ".mp3"
	}
	return fmt.Sprintf("%s_%s%s", SanitizeFilename(base), suffix, ext)
}

// withExt replaces the extension of name.
func withExt(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + "." + strings.TrimPrefix(ext, ".")
}
