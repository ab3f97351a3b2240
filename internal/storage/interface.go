package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid key")
)

// Record is a single entry in a RecordStore.
type Record struct {
	ID        string    `json:"id"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordStore is a key-value store of small serialized records, scoped to
// one namespace per instance.
type RecordStore interface {
	Put(ctx context.Context, record Record) error

	GetAll(ctx context.Context) ([]Record, error)

	Delete(ctx context.Context, id string) error

	Clear(ctx context.Context) error
}

// BlobStore holds media bytes and export outputs.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	Open(ctx context.Context, key string) (io.ReadCloser, error)

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)
}
