package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "WORKER_COUNT", "JOB_TTL", "RANDOM_SEED", "LOG_LEVEL", "TOP_SECTIONS"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.WorkerCount != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", cfg.JobTTL)
	}
	if cfg.RandomSeed != 42 || cfg.TopSections != 15 {
		t.Errorf("unexpected ranking defaults seed=%d top=%d", cfg.RandomSeed, cfg.TopSections)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("JOB_TTL", "90s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LATENT_COMPONENTS", "not-a-number")
	t.Setenv("RANDOM_SEED", "7")

	cfg := Load()
	if cfg.WorkerCount != 2 {
		t.Errorf("expected non-positive worker count clamped to 2, got %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != 90*time.Second {
		t.Errorf("expected 90s, got %v", cfg.JobTTL)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("expected debug, got %v", cfg.LogLevel)
	}
	if cfg.LatentComponents != 100 {
		t.Errorf("expected unparsable value to fall back to 100, got %d", cfg.LatentComponents)
	}
	if cfg.RandomSeed != 7 {
		t.Errorf("expected seed 7, got %d", cfg.RandomSeed)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("MAX_FEATURES", "0")
	if err := Load().Validate(); err == nil {
		t.Error("expected error for zero MAX_FEATURES")
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.env")
	bad := filepath.Join(dir, "bad.env")
	if err := os.WriteFile(good, []byte("DOCSIFT_DOTENV_CHECK=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("PORT=\"9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("DOCSIFT_DOTENV_CHECK") })

	tests := []struct {
		name string
		file string
		warn bool
	}{
		{"missing file", filepath.Join(dir, "absent.env"), false},
		{"valid file", good, false},
		{"unterminated quote", bad, true},
		{"directory", dir, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, nil))
			loadDotenv(log, tt.file)

			warned := strings.Contains(buf.String(), "level=WARN") && strings.Contains(buf.String(), "config.dotenv")
			if warned != tt.warn {
				t.Errorf("expected warn=%v, got log %q", tt.warn, buf.String())
			}
		})
	}

	if got := os.Getenv("DOCSIFT_DOTENV_CHECK"); got != "from-file" {
		t.Errorf("expected value from valid file, got %q", got)
	}
}
