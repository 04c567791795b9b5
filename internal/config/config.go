package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount          int
	MaxQueueSize         int
	MaxConcurrentExtract int

	// Upload limits
	MaxUploadBytes     int64
	MaxFilesPerRequest int

	// Job state
	JobTTL          time.Duration
	CleanupInterval time.Duration

	// Heuristics override file (YAML)
	HeuristicsFile string

	// Result sizes
	TopSections    int
	RefinePool     int
	TopSubsections int

	// Vector space model
	LatentComponents int
	MaxFeatures      int
	RandomSeed       uint64

	LogLevel slog.Level
}

// Load reads configuration from the environment, after applying a .env file
// in the working directory when one exists.
func Load() Config {
	loadDotenv(slog.Default())

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCSIFT_API_KEY"),

		WorkerCount:          envInt("WORKER_COUNT", 2),
		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentExtract: envInt("MAX_CONCURRENT_EXTRACT", 4),

		MaxUploadBytes:     envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		MaxFilesPerRequest: envInt("MAX_FILES_PER_REQUEST", 20),

		JobTTL:          envDuration("JOB_TTL", 1*time.Hour),
		CleanupInterval: envDuration("CLEANUP_INTERVAL", 5*time.Minute),

		HeuristicsFile: os.Getenv("HEURISTICS_FILE"),

		TopSections:    envInt("TOP_SECTIONS", 15),
		RefinePool:     envInt("REFINE_POOL", 20),
		TopSubsections: envInt("TOP_SUBSECTIONS", 10),

		LatentComponents: envInt("LATENT_COMPONENTS", 100),
		MaxFeatures:      envInt("MAX_FEATURES", 5000),
		RandomSeed:       envUint64("RANDOM_SEED", 42),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentExtract <= 0 {
		cfg.MaxConcurrentExtract = 4
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	return cfg
}

// loadDotenv applies the given files (".env" when none) without overriding
// variables already set. A missing file is normal; anything else is logged.
func loadDotenv(log *slog.Logger, files ...string) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("config.dotenv", "error", err)
	}
}

func (c Config) Validate() error {
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxFilesPerRequest <= 0 {
		return fmt.Errorf("MAX_FILES_PER_REQUEST must be positive, got %d", c.MaxFilesPerRequest)
	}
	if c.TopSections <= 0 || c.RefinePool <= 0 || c.TopSubsections <= 0 {
		return fmt.Errorf("TOP_SECTIONS, REFINE_POOL and TOP_SUBSECTIONS must be positive")
	}
	if c.LatentComponents <= 0 {
		return fmt.Errorf("LATENT_COMPONENTS must be positive, got %d", c.LatentComponents)
	}
	if c.MaxFeatures <= 0 {
		return fmt.Errorf("MAX_FEATURES must be positive, got %d", c.MaxFeatures)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envUint64(key string, fallback uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(os.Getenv(key)))); err != nil {
		return fallback
	}
	return lvl
}
