// Package catalog keeps the ingested media files an editing session can
// place on the timeline.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jaki95/timeline-editor/internal/domain"
	"github.com/jaki95/timeline-editor/internal/ids"
	"github.com/jaki95/timeline-editor/internal/storage"
)

var ErrFileNotFound = errors.New("media file not found")

// Prober measures the duration of media content in seconds.
type Prober interface {
	Probe(ctx context.Context, r io.Reader) (float64, error)
}

// RemoveHook runs when a file leaves the catalog, before its bytes are released.
type RemoveHook func(ctx context.Context, fileID string) error

// Options configures a Catalog.
type Options struct {
	Records storage.RecordStore
	Blobs   storage.BlobStore
	Prober  Prober
	IDs     ids.Generator
	Now     func() time.Time
	Logger  *slog.Logger
}

// Catalog holds file metadata in memory, persists it as one record per
// file and keeps the bytes in a BlobStore.
type Catalog struct {
	mu    sync.RWMutex
	files map[string]domain.MediaFile
	hooks []RemoveHook

	records storage.RecordStore
	blobs   storage.BlobStore
	prober  Prober
	ids     ids.Generator
	now     func() time.Time
	logger  *slog.Logger
}

// New creates an empty catalog. Call Load to restore persisted entries.
func New(opts Options) *Catalog {
	c := &Catalog{
		files:   make(map[string]domain.MediaFile),
		records: opts.Records,
		blobs:   opts.Blobs,
		prober:  opts.Prober,
		ids:     opts.IDs,
		now:     opts.Now,
		logger:  opts.Logger,
	}
	if c.ids == nil {
		c.ids = ids.NewUUIDGenerator()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// OnRemove registers a hook that runs for every removed file.
func (c *Catalog) OnRemove(hook RemoveHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Load restores persisted entries. Undecodable records are skipped.
func (c *Catalog) Load(ctx context.Context) error {
	if c.records == nil {
		return nil
	}
	records, err := c.records.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load media records: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range records {
		var file domain.MediaFile
		if err := json.Unmarshal(r.Data, &file); err != nil || file.ID == "" {
			c.logger.Warn("Skipping unreadable media record", "id", r.ID, "error", err)
			continue
		}
		c.files[file.ID] = file
	}
	c.logger.Debug("Loaded media catalog", "files", len(c.files))
	return nil
}

// Ingest stores content as a new media file and probes its duration. A
// failed probe leaves the duration at zero.
func (c *Catalog) Ingest(ctx context.Context, name string, size int64, contentType string, content io.Reader) (domain.MediaFile, error) {
	kind, err := domain.DetectKind(name, contentType)
	if err != nil {
		return domain.MediaFile{}, err
	}

	id := c.ids.NewID("file")
	file := domain.MediaFile{
		ID:        id,
		Name:      name,
		Size:      size,
		Kind:      kind,
		SourceRef: fmt.Sprintf("media/%s/%s", id, safeName(name)),
		CreatedAt: c.now().UTC(),
	}
	file.Format = file.Extension()

	counter := &countingReader{r: content}
	if err := c.blobs.Put(ctx, file.SourceRef, counter, size, contentType); err != nil {
		return domain.MediaFile{}, fmt.Errorf("failed to store %s: %w", name, err)
	}
	if file.Size <= 0 {
		file.Size = counter.n
	}

	if d, err := c.probe(ctx, file.SourceRef); err != nil {
		c.logger.Warn("Failed to probe media duration", "file", id, "name", name, "error", err)
	} else {
		file.Duration = d
	}

	if err := c.save(ctx, file); err != nil {
		if delErr := c.blobs.Delete(ctx, file.SourceRef); delErr != nil {
			c.logger.Warn("Failed to release media after save error", "file", id, "error", delErr)
		}
		return domain.MediaFile{}, err
	}

	c.mu.Lock()
	c.files[id] = file
	c.mu.Unlock()

	c.logger.Info("Ingested media file", "file", id, "name", name, "kind", kind, "duration", file.Duration)
	return file, nil
}

func (c *Catalog) probe(ctx context.Context, sourceRef string) (float64, error) {
	if c.prober == nil {
		return 0, errors.New("no prober configured")
	}
	rc, err := c.blobs.Open(ctx, sourceRef)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return c.prober.Probe(ctx, rc)
}

// SetDuration records a duration measured outside the catalog.
func (c *Catalog) SetDuration(ctx context.Context, id string, duration float64) (domain.MediaFile, error) {
	c.mu.Lock()
	file, ok := c.files[id]
	if !ok {
		c.mu.Unlock()
		return domain.MediaFile{}, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	file.Duration = duration
	c.files[id] = file
	c.mu.Unlock()

	return file, c.save(ctx, file)
}

func (c *Catalog) save(ctx context.Context, file domain.MediaFile) error {
	if c.records == nil {
		return nil
	}
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode media record %s: %w", file.ID, err)
	}
	record := storage.Record{ID: file.ID, Data: data, UpdatedAt: c.now().UTC()}
	if err := c.records.Put(ctx, record); err != nil {
		return fmt.Errorf("failed to persist media record %s: %w", file.ID, err)
	}
	return nil
}

// Get returns the file with the given id.
func (c *Catalog) Get(id string) (domain.MediaFile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	file, ok := c.files[id]
	return file, ok
}

// List returns all files, newest first.
func (c *Catalog) List() []domain.MediaFile {
	c.mu.RLock()
	files := make([]domain.MediaFile, 0, len(c.files))
	for _, f := range c.files {
		files = append(files, f)
	}
	c.mu.RUnlock()

	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].ID < files[j].ID
		}
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files
}

// Open returns the bytes of a file. The caller closes the reader.
func (c *Catalog) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	file, ok := c.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	return c.blobs.Open(ctx, file.SourceRef)
}

// Remove runs the remove hooks, then drops the record and releases the
// bytes. Cleanup failures are returned after the entry is gone.
func (c *Catalog) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	file, ok := c.files[id]
	hooks := append([]RemoveHook(nil), c.hooks...)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}

	for _, hook := range hooks {
		if err := hook(ctx, id); err != nil {
			return fmt.Errorf("remove hook failed for %s: %w", id, err)
		}
	}

	c.mu.Lock()
	delete(c.files, id)
	c.mu.Unlock()

	var errs []error
	if c.records != nil {
		if err := c.records.Delete(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete media record %s: %w", id, err))
		}
	}
	if err := c.blobs.Delete(ctx, file.SourceRef); err != nil {
		errs = append(errs, fmt.Errorf("failed to release %s: %w", file.SourceRef, err))
	}

	c.logger.Info("Removed media file", "file", id, "name", file.Name)
	return errors.Join(errs...)
}

// Clear removes every file.
func (c *Catalog) Clear(ctx context.Context) error {
	var errs []error
	for _, f := range c.List() {
		if err := c.Remove(ctx, f.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// safeName keeps blob keys to a single path segment.
func safeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	if s := string(out); s != "" && s != "." && s != ".." {
		return s
	}
	return "file"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
