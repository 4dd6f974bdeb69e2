package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/auditor-agent/internal/scoring"
)

var configKeys = []string{
	"PORT", "LOG_LEVEL", "LOG_FORMAT", "CORS_ALLOWED_ORIGINS", "MAX_UPLOAD_BYTES",
	"TIME_FALLBACK", "GCP_PROJECT", "GCS_BUCKET", "BQ_DATASET", "GEMINI_API_KEY",
	"GEMINI_MODEL", "JOB_WORKERS", "JOB_BUFFER",
}

// clearEnv blanks every key so ambient variables cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, ":8000", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, int64(DefaultMaxUploadBytes), cfg.MaxUploadBytes)
	assert.Equal(t, scoring.FallbackBatch, cfg.ScoringOptions().TimeFallback)
	assert.Equal(t, DefaultGeminiModel, cfg.LLM().Model)
	assert.Empty(t, cfg.LLM().APIKey)
	assert.Equal(t, DefaultJobWorkers, cfg.JobWorkers)
	assert.Equal(t, DefaultJobBuffer, cfg.JobBuffer)
	assert.False(t, cfg.BigQueryEnabled())
	assert.False(t, cfg.StorageEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("TIME_FALLBACK", "row")
	t.Setenv("GCP_PROJECT", "audit-prod")
	t.Setenv("BQ_DATASET", "auditor")
	t.Setenv("GCS_BUCKET", "audit-reports")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("JOB_WORKERS", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, scoring.FallbackPerRow, cfg.ScoringOptions().TimeFallback)
	assert.Equal(t, LLMConfig{APIKey: "secret", Model: DefaultGeminiModel}, cfg.LLM())
	assert.Equal(t, 4, cfg.JobWorkers)
	assert.True(t, cfg.BigQueryEnabled())
	assert.True(t, cfg.StorageEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"port not numeric", map[string]string{"PORT": "http"}, "PORT must be numeric"},
		{"unknown fallback", map[string]string{"TIME_FALLBACK": "never"}, "TIME_FALLBACK must be one of [batch row]"},
		{"unknown format", map[string]string{"LOG_FORMAT": "xml"}, "LOG_FORMAT must be one of [console json]"},
		{"zero workers", map[string]string{"JOB_WORKERS": "0"}, "JOB_WORKERS must be at least 1"},
		{"workers not integer", map[string]string{"JOB_WORKERS": "two"}, "JOB_WORKERS must be an integer"},
		{"dataset without project", map[string]string{"BQ_DATASET": "auditor"}, "GCP_PROJECT is required when BigQueryDataset is set"},
		{"negative upload limit", map[string]string{"MAX_UPLOAD_BYTES": "-1"}, "MAX_UPLOAD_BYTES must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	// godotenv only fills variables that are unset, so drop PORT entirely.
	require.NoError(t, os.Unsetenv("PORT"))
	require.NoError(t, os.Unsetenv("GEMINI_MODEL"))
	t.Setenv("LOG_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7000\nLOG_LEVEL=error\nGEMINI_MODEL=gemini-test\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("GEMINI_MODEL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "gemini-test", cfg.LLM().Model)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}
