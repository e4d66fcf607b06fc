// Package config reads service settings from the environment.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docstruct/internal/analyzer"
	"github.com/dgallion1/docstruct/internal/chunker"
	"github.com/dgallion1/docstruct/internal/confidence"
	"github.com/dgallion1/docstruct/internal/correction"
	"github.com/dgallion1/docstruct/internal/pathstore"
	"github.com/dgallion1/docstruct/internal/redisstore"
)

// Profile store backends.
const (
	StoreMemory    = "memory"
	StoreFile      = "file"
	StorePathstore = "pathstore"
	StoreRedis     = "redis"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Analysis
	ChapterLevel        int
	WordDuration        float64
	SentencePreview     int
	Locale              string
	ConfidenceThreshold float64
	ScoringProfile      string // Optional YAML file with signal weights.

	// Narration chunking defaults
	DefaultChunkSize    int
	DefaultChunkOverlap int
	MinChunk            int

	// Correction profiles
	ProfileStore    string
	ProfileDir      string
	PathstoreURL    string
	PathstoreAPIKey string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string

	// Latency window for /api/stats
	MetricsWindow time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCSTRUCT_API_KEY"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		ChapterLevel:        envInt("CHAPTER_LEVEL", 1),
		WordDuration:        envFloat("WORD_DURATION", 0.5),
		SentencePreview:     envInt("SENTENCE_PREVIEW", 3),
		Locale:              envOr("LOCALE", "en"),
		ConfidenceThreshold: envFloat("CONFIDENCE_THRESHOLD", 0.6),
		ScoringProfile:      os.Getenv("SCORING_PROFILE"),

		DefaultChunkSize:    envInt("DEFAULT_CHUNK_SIZE", 1500),
		DefaultChunkOverlap: envInt("DEFAULT_CHUNK_OVERLAP", 0),
		MinChunk:            envInt("MIN_CHUNK", 100),

		ProfileStore:    strings.ToLower(envOr("PROFILE_STORE", StoreMemory)),
		ProfileDir:      envOr("PROFILE_DIR", "./profiles"),
		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),
		RedisAddr:       envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         envInt("REDIS_DB", 0),
		RedisPrefix:     envOr("REDIS_PREFIX", redisstore.DefaultPrefix),

		MetricsWindow: envDuration("METRICS_WINDOW", 1*time.Hour),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.SentencePreview <= 0 {
		cfg.SentencePreview = 3
	}
	if cfg.DefaultChunkSize <= 0 {
		cfg.DefaultChunkSize = 1500
	}
	if cfg.DefaultChunkOverlap < 0 {
		cfg.DefaultChunkOverlap = 0
	}
	if cfg.MetricsWindow <= 0 {
		cfg.MetricsWindow = 1 * time.Hour
	}

	return cfg
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.ChapterLevel < 1 || c.ChapterLevel > 6 {
		return fmt.Errorf("CHAPTER_LEVEL must be between 1 and 6, got %d", c.ChapterLevel)
	}
	if c.WordDuration <= 0 {
		return fmt.Errorf("WORD_DURATION must be positive, got %v", c.WordDuration)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.DefaultChunkOverlap > 0 && c.DefaultChunkOverlap >= c.DefaultChunkSize {
		return fmt.Errorf("DEFAULT_CHUNK_OVERLAP (%d) must be smaller than DEFAULT_CHUNK_SIZE (%d)", c.DefaultChunkOverlap, c.DefaultChunkSize)
	}
	switch c.ProfileStore {
	case StoreMemory:
	case StoreFile:
		if c.ProfileDir == "" {
			return fmt.Errorf("PROFILE_DIR is required when PROFILE_STORE=file")
		}
	case StorePathstore:
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("PATHSTORE_API_KEY is required when PROFILE_STORE=pathstore")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when PROFILE_STORE=redis")
		}
	default:
		return fmt.Errorf("PROFILE_STORE must be memory, file, pathstore or redis, got %q", c.ProfileStore)
	}
	return nil
}

// Analyzer builds the analyzer configuration, loading the scoring profile
// when one is set.
func (c Config) Analyzer() (analyzer.Config, error) {
	ac := analyzer.DefaultConfig()
	ac.Detect.ChapterLevel = c.ChapterLevel
	ac.Segment.WordDuration = c.WordDuration
	ac.Segment.Locale = c.Locale
	ac.Tree.PreviewSentences = c.SentencePreview
	ac.Validate.MinConfidence = c.ConfidenceThreshold
	ac.BatchConcurrency = c.WorkerCount

	if c.ScoringProfile != "" {
		sc, err := confidence.LoadConfig(c.ScoringProfile)
		if err != nil {
			return ac, err
		}
		ac.Scoring = sc
	}
	return ac, nil
}

// Chunker returns the default narration chunking settings.
func (c Config) Chunker() chunker.Config {
	return chunker.Config{
		ChunkSize:    c.DefaultChunkSize,
		ChunkOverlap: c.DefaultChunkOverlap,
		MinChunk:     c.MinChunk,
	}
}

// Profiles opens the configured correction profile store. The returned
// close function releases its resources.
func (c Config) Profiles() (correction.ProfileStore, func(), error) {
	switch c.ProfileStore {
	case StoreFile:
		fs, err := correction.NewFileStore(c.ProfileDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	case StorePathstore:
		client := pathstore.NewClient(c.PathstoreURL, c.PathstoreAPIKey)
		return pathstore.NewProfileStore(client), client.Close, nil
	case StoreRedis:
		rs, err := redisstore.Dial(context.Background(), c.RedisAddr, c.RedisPassword, c.RedisDB, c.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { rs.Close() }, nil
	default:
		return correction.NewMemoryStore(), func() {}, nil
	}
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
