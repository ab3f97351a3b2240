package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore implements RecordStore as one JSON file per record.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a record store rooted at dir/namespace.
func NewLocalStore(dir, namespace string) (*LocalStore, error) {
	if err := validateKeyPart(namespace); err != nil {
		return nil, err
	}
	root := filepath.Join(dir, namespace)
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", root, err)
	}
	return &LocalStore{dir: root}, nil
}

func (s *LocalStore) path(id string) (string, error) {
	if err := validateKeyPart(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Put writes the record atomically by renaming a temp file over the target.
func (s *LocalStore) Put(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(record.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".record_*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write record %s: %w", record.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close record %s: %w", record.ID, err)
	}
	return os.Rename(tmp.Name(), path)
}

func (s *LocalStore) GetAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	files, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var records []Record
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", file.Name(), err)
		}

		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", file.Name(), err)
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *LocalStore) Delete(_ context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove record %s: %w", id, err)
	}
	return nil
}

func (s *LocalStore) Clear(ctx context.Context) error {
	records, err := s.GetAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		if err := s.Delete(ctx, r.ID); err != nil {
			return err
		}
	}
	return nil
}

// LocalFileStorage implements BlobStore on the local filesystem.
type LocalFileStorage struct {
	dataDir string
}

// NewLocalFileStorage creates a new local file storage instance
func NewLocalFileStorage(dataDir string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(dataDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dataDir, err)
	}
	return &LocalFileStorage{dataDir: dataDir}, nil
}

// resolve maps a slash-separated key to a path inside the data directory.
func (s *LocalFileStorage) resolve(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return filepath.Join(s.dataDir, filepath.FromSlash(key)), nil
}

func (s *LocalFileStorage) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", key, err)
	}
	if _, err := io.Copy(f, &contextReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write file %s: %w", key, err)
	}
	return f.Close()
}

func (s *LocalFileStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, err
}

func (s *LocalFileStorage) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file %s: %w", key, err)
	}
	// Drop the per-file directory once it is empty; os.Remove leaves non-empty dirs alone.
	if dir := filepath.Dir(path); dir != filepath.Clean(s.dataDir) {
		os.Remove(dir)
	}
	return nil
}

func (s *LocalFileStorage) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func validateKeyPart(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
