package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a RedisStore connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore implements RecordStore as a single redis hash per namespace.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions, namespace string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return NewRedisStoreFromClient(client, opts.Prefix, namespace), nil
}

// NewRedisStoreFromClient shares an existing client between namespaces.
func NewRedisStoreFromClient(client *redis.Client, prefix, namespace string) *RedisStore {
	if prefix == "" {
		prefix = "timeline"
	}
	return &RedisStore{
		client: client,
		key:    prefix + ":" + namespace,
	}
}

func (s *RedisStore) Put(ctx context.Context, record Record) error {
	if record.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidKey)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", record.ID, err)
	}
	if err := s.client.HSet(ctx, s.key, record.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to store record %s: %w", record.ID, err)
	}
	return nil
}

func (s *RedisStore) GetAll(ctx context.Context) ([]Record, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.key, err)
	}

	records := make([]Record, 0, len(values))
	for id, raw := range values {
		var record Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.HDel(ctx, s.key, id).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
