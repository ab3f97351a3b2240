package downloader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

var (
	ErrNotMedia    = errors.New("remote file is not a media file")
	ErrTooLarge    = errors.New("remote file exceeds size limit")
	ErrEmptyFile   = errors.New("downloaded file is empty")
	ErrBadResponse = errors.New("unexpected response status")
)

const sniffLen = 512

// HTTPDownloader handles downloading from generic HTTP URLs
type HTTPDownloader struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPDownloader creates a downloader. maxBytes <= 0 disables the size limit.
func NewHTTPDownloader(maxBytes int64) *HTTPDownloader {
	return &HTTPDownloader{
		client:   &http.Client{Timeout: 30 * time.Minute},
		maxBytes: maxBytes,
	}
}

// SupportsURL checks if the URL is a plain HTTP or HTTPS URL
func (d *HTTPDownloader) SupportsURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch opens the remote file after checking its leading bytes look like media.
func (d *HTTPDownloader) Fetch(ctx context.Context, rawURL string, progress ProgressCallback) (*Download, error) {
	if !d.SupportsURL(rawURL) {
		return nil, fmt.Errorf("unsupported URL: %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", ErrBadResponse, resp.StatusCode)
	}
	if d.maxBytes > 0 && resp.ContentLength > d.maxBytes {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	contentType := resp.Header.Get("Content-Type")
	name := fileName(rawURL, resp.Header.Get("Content-Disposition"), contentType)

	body := &countingBody{
		r:        resp.Body,
		total:    resp.ContentLength,
		max:      d.maxBytes,
		progress: progress,
	}
	buffered := bufio.NewReaderSize(body, sniffLen)
	header, err := buffered.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}
	if len(header) == 0 {
		resp.Body.Close()
		return nil, ErrEmptyFile
	}
	if err := validateMediaHeader(header); err != nil {
		resp.Body.Close()
		return nil, err
	}

	slog.Info("Fetching remote media", "url", rawURL, "name", name, "size", resp.ContentLength, "contentType", contentType)
	return &Download{
		Name:        name,
		ContentType: contentType,
		Size:        resp.ContentLength,
		Body:        struct {
			io.Reader
			io.Closer
		}{buffered, resp.Body},
	}, nil
}

// fileName picks a name from Content-Disposition, then the URL path, and
// makes sure it carries an extension.
func fileName(rawURL, disposition, contentType string) string {
	name := ""
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			name = path.Base(strings.ReplaceAll(params["filename"], `\`, "/"))
		}
	}
	if name == "" || name == "." || name == "/" {
		if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
			name = path.Base(u.Path)
		}
	}
	if name == "" || name == "." || name == "/" {
		name = "media_file"
	}

	if path.Ext(name) == "" {
		ext := ".mp3"
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
				ext = exts[0]
			} else if strings.HasPrefix(mediaType, "video/") {
				ext = ".mp4"
			}
		}
		name += ext
	}
	return name
}

// validateMediaHeader checks the file signature of common audio and video containers.
func validateMediaHeader(header []byte) error {
	if len(header) < 4 {
		return fmt.Errorf("%w: file too small", ErrNotMedia)
	}

	switch {
	case header[0] == 0xFF && (header[1]&0xE0) == 0xE0: // MP3 or ADTS frame
		return nil
	case string(header[:3]) == "ID3",
		string(header[:3]) == "FLV",
		string(header[:4]) == "RIFF", // WAV, AVI
		string(header[:4]) == "fLaC",
		string(header[:4]) == "OggS",
		string(header[:4]) == "\x1A\x45\xDF\xA3", // Matroska, WebM
		string(header[:4]) == "\x30\x26\xB2\x75": // ASF: WMV, WMA
		return nil
	case len(header) >= 8 && string(header[4:8]) == "ftyp": // MP4, M4A, MOV
		return nil
	}

	checkLen := min(len(header), 100)
	headerStr := strings.ToLower(string(header[:checkLen]))
	if strings.Contains(headerStr, "<html") || strings.Contains(headerStr, "<!doctype") {
		return fmt.Errorf("%w: response looks like HTML, check the URL", ErrNotMedia)
	}
	if strings.Contains(headerStr, "error") || strings.Contains(headerStr, "not found") {
		return fmt.Errorf("%w: response looks like an error message, check the URL", ErrNotMedia)
	}

	// Let ffprobe have the final say on unknown signatures.
	slog.Warn("Could not verify media format, proceeding anyway", "header", fmt.Sprintf("%x", header[:min(len(header), 16)]))
	return nil
}

type countingBody struct {
	r        io.Reader
	read     int64
	total    int64
	max      int64
	progress ProgressCallback
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.read += int64(n)
	if b.max > 0 && b.read > b.max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, b.max)
	}
	if n > 0 && b.progress != nil {
		b.progress(b.read, b.total)
	}
	return n, err
}
