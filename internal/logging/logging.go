// Package logging installs the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/jaki95/timeline-editor/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds a JSON logger at the configured level, writing to stdout and,
// when a log file is configured, to a rotating file as well. The logger is
// installed as the slog default and returned together with a close func for
// the file writer.
func Setup(cfg *config.Config) (*slog.Logger, func() error) {
	out, closer := writer(os.Stdout, cfg.Log)
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)
	return logger, closer
}

func writer(stdout io.Writer, cfg config.LogConfig) (io.Writer, func() error) {
	if cfg.File == "" {
		return stdout, func() error { return nil }
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return io.MultiWriter(stdout, rotator), rotator.Close
}
