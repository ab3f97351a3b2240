package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaki95/timeline-editor/config"
	"github.com/jaki95/timeline-editor/internal/audio"
	"github.com/jaki95/timeline-editor/internal/catalog"
	"github.com/jaki95/timeline-editor/internal/job"
	"github.com/jaki95/timeline-editor/internal/storage"
	"github.com/jaki95/timeline-editor/internal/timeline"
	"github.com/redis/go-redis/v9"
)

const (
	timelineNamespace = "timeline"
	mediaNamespace    = "media"
)

// app holds the components every command shares.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	blobs   storage.BlobStore
	catalog *catalog.Catalog
	engine  *timeline.Engine
	jobs    *job.Manager

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	records, err := a.openRecords(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	blobs, err := a.openBlobs(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.blobs = blobs

	mediaStore, err := records(mediaNamespace)
	if err != nil {
		a.Close()
		return nil, err
	}
	timelineStore, err := records(timelineNamespace)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.catalog = catalog.New(catalog.Options{
		Records: mediaStore,
		Blobs:   blobs,
		Prober:  audio.NewProber(ffmpegOptions(cfg, logger)),
		Logger:  logger,
	})
	if err := a.catalog.Load(ctx); err != nil {
		logger.Warn("Starting with an empty media catalog", "error", err)
	}

	a.engine = timeline.New(ctx, timeline.Options{
		Store:        timelineStore,
		Files:        a.catalog,
		HistoryLimit: cfg.Editor.HistoryLimit,
		Logger:       logger,
	})
	a.jobs = job.NewManager(job.Options{Results: blobs, Logger: logger})
	return a, nil
}

func ffmpegOptions(cfg *config.Config, logger *slog.Logger) audio.Options {
	return audio.Options{
		FFmpegPath:  cfg.FFmpeg.FFmpegPath,
		FFprobePath: cfg.FFmpeg.FFprobePath,
		WorkDir:     cfg.FFmpeg.WorkDir,
		Logger:      logger,
	}
}

// openRecords returns a constructor for namespaced record stores sharing
// one backend connection.
func (a *app) openRecords(ctx context.Context) (func(namespace string) (storage.RecordStore, error), error) {
	rc := a.cfg.Storage.Records
	switch rc.Type {
	case "memory":
		return func(string) (storage.RecordStore, error) {
			return storage.NewMemoryStore(), nil
		}, nil

	case "local":
		return func(namespace string) (storage.RecordStore, error) {
			return storage.NewLocalStore(rc.Dir, namespace)
		}, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Redis.Addr,
			Password: rc.Redis.Password,
			DB:       rc.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", rc.Redis.Addr, err)
		}
		a.closers = append(a.closers, client.Close)
		return func(namespace string) (storage.RecordStore, error) {
			return storage.NewRedisStoreFromClient(client, rc.Redis.Prefix, namespace), nil
		}, nil

	case "postgres":
		db, err := storage.OpenPostgres(ctx, rc.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		return func(namespace string) (storage.RecordStore, error) {
			return storage.NewPostgresStore(db, namespace), nil
		}, nil
	}
	return nil, fmt.Errorf("unknown records storage type %q", rc.Type)
}

func (a *app) openBlobs(ctx context.Context) (storage.BlobStore, error) {
	mc := a.cfg.Storage.Media
	switch mc.Type {
	case "memory":
		return storage.NewMemoryBlobStore(), nil

	case "local":
		return storage.NewLocalFileStorage(mc.Dir)

	case "gcs":
		gcs, err := storage.NewGCSStorage(ctx, mc.GCS.Bucket, mc.GCS.Prefix, mc.GCS.CredentialsFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		return gcs, nil

	case "minio":
		return storage.NewMinioStorage(ctx, storage.MinioOptions{
			Endpoint:  mc.Minio.Endpoint,
			AccessKey: mc.Minio.AccessKey,
			SecretKey: mc.Minio.SecretKey,
			Bucket:    mc.Minio.Bucket,
			UseSSL:    mc.Minio.UseSSL,
		})
	}
	return nil, fmt.Errorf("unknown media storage type %q", mc.Type)
}

// Close releases backend connections in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
