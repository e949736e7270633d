package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/sessiontracker/internal/config"
)

func TestOpenStorage(t *testing.T) {
	for _, typ := range []string{"bolt", "sqlite"} {
		t.Run(typ, func(t *testing.T) {
			store, err := openStorage(config.StorageConfig{
				Type: typ,
				Path: filepath.Join(t.TempDir(), "sessions.db"),
			})
			if err != nil {
				t.Fatalf("openStorage: %v", err)
			}
			if err := store.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
	}

	if _, err := openStorage(config.StorageConfig{Type: "mongodb"}); err == nil {
		t.Error("expected error for unsupported storage type")
	}
}

func TestSetupLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	var buf bytes.Buffer
	logger, rotator := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	if rotator != nil {
		t.Error("rotator created without a log file")
	}

	logger.Info().Msg("hidden")
	logger.Warn().Str("k", "v").Msg("shown")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "shown" || entry["k"] != "v" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetupLogger_File(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	path := filepath.Join(t.TempDir(), "sessiontracker.log")
	var buf bytes.Buffer
	logger, rotator := setupLogger(config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, &buf)
	if rotator == nil {
		t.Fatal("expected a rotator")
	}
	defer rotator.Close()

	logger.Info().Msg("to both")
	if rotator.Filename != path {
		t.Errorf("Filename = %q", rotator.Filename)
	}
	if buf.Len() == 0 {
		t.Error("stdout writer got nothing")
	}
}

func TestUnknownKeys(t *testing.T) {
	got := unknownKeys([]string{"server.api_port", "sessions.daily_budgte", "storage.redis.password", "api.allowed_origins"})
	if len(got) != 1 || got[0] != "sessions.daily_budgte" {
		t.Errorf("unknownKeys = %v", got)
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(90*time.Minute + 400*time.Millisecond); got != "1h30m0s" {
		t.Errorf("formatDuration = %q", got)
	}
}
