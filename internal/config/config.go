// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dvloznov/auditor-agent/internal/scoring"
	"github.com/dvloznov/auditor-agent/internal/validation"
)

// Defaults
const (
	DefaultPort           = "8000"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultMaxUploadBytes = 32 << 20
	DefaultTimeFallback   = "batch"
	DefaultGeminiModel    = "gemini-1.5-flash"
	DefaultJobWorkers     = 2
	DefaultJobBuffer      = 100
)

// Config holds all application configuration
type Config struct {
	Port      string `env:"PORT" validate:"required,numeric"`
	LogLevel  string `env:"LOG_LEVEL" validate:"oneof=trace debug info warn warning error disabled off"`
	LogFormat string `env:"LOG_FORMAT" validate:"oneof=console json"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" validate:"min=1,dive,required"`
	MaxUploadBytes     int64    `env:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	TimeFallback       string   `env:"TIME_FALLBACK" validate:"oneof=batch row"`

	// Google Cloud (all optional; features are disabled when unset)
	GCPProject      string `env:"GCP_PROJECT" validate:"required_with=BigQueryDataset"`
	GCSBucket       string `env:"GCS_BUCKET"`
	BigQueryDataset string `env:"BQ_DATASET"`

	// LLM
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" validate:"required"`

	// Background jobs
	JobWorkers int `env:"JOB_WORKERS" validate:"min=1,max=64"`
	JobBuffer  int `env:"JOB_BUFFER" validate:"min=1"`
}

// LLMConfig is the subset of Config the LLM client needs.
type LLMConfig struct {
	APIKey string
	Model  string
}

// Load reads configuration from environment variables. Any .env files are
// loaded first without overriding variables already set; with no arguments
// a .env in the working directory is used if present.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	maxUpload, err := getEnvInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)
	if err != nil {
		return nil, err
	}
	workers, err := getEnvInt64("JOB_WORKERS", DefaultJobWorkers)
	if err != nil {
		return nil, err
	}
	buffer, err := getEnvInt64("JOB_BUFFER", DefaultJobBuffer)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", DefaultLogLevel)),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", DefaultLogFormat)),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MaxUploadBytes:     maxUpload,
		TimeFallback:       strings.ToLower(getEnv("TIME_FALLBACK", DefaultTimeFallback)),
		GCPProject:         os.Getenv("GCP_PROJECT"),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		BigQueryDataset:    os.Getenv("BQ_DATASET"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", DefaultGeminiModel),
		JobWorkers:         int(workers),
		JobBuffer:          int(buffer),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its rules.
func (c *Config) Validate() error {
	if err := validation.New("env").Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// ScoringOptions returns the default per-batch scoring options.
func (c *Config) ScoringOptions() scoring.Options {
	fb, _ := scoring.ParseTimeFallback(c.TimeFallback)
	return scoring.Options{TimeFallback: fb}
}

// LLM returns the LLM client settings. The API key is only reachable
// through this accessor.
func (c *Config) LLM() LLMConfig {
	return LLMConfig{APIKey: c.GeminiAPIKey, Model: c.GeminiModel}
}

// BigQueryEnabled reports whether the analysis-run ledger is configured.
func (c *Config) BigQueryEnabled() bool {
	return c.GCPProject != "" && c.BigQueryDataset != ""
}

// StorageEnabled reports whether reports are uploaded to GCS.
func (c *Config) StorageEnabled() bool {
	return c.GCSBucket != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return i, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
