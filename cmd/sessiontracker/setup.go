package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/goodtune/sessiontracker/internal/config"
	"github.com/goodtune/sessiontracker/internal/storage"
	"github.com/goodtune/sessiontracker/internal/storage/bolt"
	"github.com/goodtune/sessiontracker/internal/storage/redis"
	"github.com/goodtune/sessiontracker/internal/storage/sqlite"
)

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "redis":
		return redis.Open(cfg.Redis)
	case "bolt":
		return bolt.Open(cfg.Path)
	case "sqlite":
		return sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be redis, bolt or sqlite)", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration. When a log file
// is configured it is written in addition to stdout and rotated by size; the
// returned rotator is nil otherwise.
func setupLogger(cfg config.LoggingConfig, stdout io.Writer) (zerolog.Logger, *lumberjack.Logger) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	out := stdout
	if cfg.Format == "text" {
		out = zerolog.ConsoleWriter{Out: stdout}
	}

	var rotator *lumberjack.Logger
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		// the file always gets JSON
		out = zerolog.MultiLevelWriter(out, rotator)
	}

	return zerolog.New(out).With().Timestamp().Logger(), rotator
}

// quietLogger is used by the one-shot subcommands.
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}
