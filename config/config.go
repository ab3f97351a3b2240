package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel int       `yaml:"log_level"`
	Log      LogConfig `yaml:"log"`

	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	FFmpeg   FFmpegConfig   `yaml:"ffmpeg"`
	Editor   EditorConfig   `yaml:"editor"`
	Playback PlaybackConfig `yaml:"playback"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// MaxUploadMB bounds uploads and URL imports.
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

type StorageConfig struct {
	Records RecordsConfig `yaml:"records"`
	Media   MediaConfig   `yaml:"media"`
}

// RecordsConfig selects where timeline and catalog records live.
type RecordsConfig struct {
	// Type of storage: "memory", "local", "redis" or "postgres"
	Type     string         `yaml:"type"`
	Dir      string         `yaml:"dir"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// MediaConfig selects where media bytes and export results live.
type MediaConfig struct {
	// Type of storage: "local", "gcs" or "minio"
	Type  string      `yaml:"type"`
	Dir   string      `yaml:"dir"`
	GCS   GCSConfig   `yaml:"gcs"`
	Minio MinioConfig `yaml:"minio"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type FFmpegConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`
	WorkDir     string `yaml:"work_dir"`
}

type EditorConfig struct {
	HistoryLimit        int    `yaml:"history_limit"`
	DefaultExportFormat string `yaml:"default_export_format"`
}

type PlaybackConfig struct {
	DriftThreshold float64       `yaml:"drift_threshold"`
	TickInterval   time.Duration `yaml:"tick_interval"`
}

// Load reads the YAML file at path, applies environment overrides (a .env
// file in the working directory is loaded first when present) and fills in
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config *Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	config.applyDefaults()
	return config, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	config := &Config{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}
	if err := config.applyEnv(); err != nil {
		slog.Warn("Ignoring invalid environment override", "error", err)
	}
	config.applyDefaults()
	return config
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("TIMELINE_PORT", &c.Server.Port)
	setString("REDIS_ADDR", &c.Storage.Records.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Storage.Records.Redis.Password)
	setString("POSTGRES_DSN", &c.Storage.Records.Postgres.DSN)
	setString("MINIO_ACCESS_KEY", &c.Storage.Media.Minio.AccessKey)
	setString("MINIO_SECRET_KEY", &c.Storage.Media.Minio.SecretKey)
	setString("GCS_CREDENTIALS_FILE", &c.Storage.Media.GCS.CredentialsFile)

	if v, ok := os.LookupEnv("TIMELINE_LOG_LEVEL"); ok {
		level, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TIMELINE_LOG_LEVEL %q: %w", v, err)
		}
		c.LogLevel = level
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 2048
	}

	if c.Storage.Records.Type == "" {
		c.Storage.Records.Type = "local"
	}
	if c.Storage.Records.Dir == "" {
		c.Storage.Records.Dir = "data/records"
	}
	if c.Storage.Records.Redis.Addr == "" {
		c.Storage.Records.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Storage.Records.Redis.Prefix == "" {
		c.Storage.Records.Redis.Prefix = "timeline"
	}

	if c.Storage.Media.Type == "" {
		c.Storage.Media.Type = "local"
	}
	if c.Storage.Media.Dir == "" {
		c.Storage.Media.Dir = "data/media"
	}

	if c.FFmpeg.FFmpegPath == "" {
		c.FFmpeg.FFmpegPath = "ffmpeg"
	}
	if c.FFmpeg.FFprobePath == "" {
		c.FFmpeg.FFprobePath = "ffprobe"
	}

	if c.Editor.HistoryLimit <= 0 {
		c.Editor.HistoryLimit = 50
	}
	if c.Editor.DefaultExportFormat == "" {
		c.Editor.DefaultExportFormat = "mp4"
	}

	if c.Playback.DriftThreshold <= 0 {
		c.Playback.DriftThreshold = 0.3
	}
	if c.Playback.TickInterval <= 0 {
		c.Playback.TickInterval = 16 * time.Millisecond
	}

	if c.Log.File != "" {
		if c.Log.MaxSizeMB <= 0 {
			c.Log.MaxSizeMB = 100
		}
		if c.Log.MaxBackups <= 0 {
			c.Log.MaxBackups = 5
		}
		if c.Log.MaxAgeDays <= 0 {
			c.Log.MaxAgeDays = 30
		}
	}
}
