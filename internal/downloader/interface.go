// Package downloader fetches media from remote URLs for import into the catalog.
package downloader

import (
	"context"
	"io"
)

// ProgressCallback receives the bytes read so far and the expected total,
// which is -1 when the server did not announce a length.
type ProgressCallback func(read, total int64)

// Download is an open remote file. The caller must close Body.
type Download struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// Downloader opens media from a URL.
type Downloader interface {
	Fetch(ctx context.Context, url string, progress ProgressCallback) (*Download, error)
	SupportsURL(url string) bool
}
