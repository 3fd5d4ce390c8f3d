package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"ENVIRONMENT", "HTTP_ADDR", "HOST", "PORT", "API_PREFIX", "ALLOWED_ORIGINS",
	"MAX_BODY_BYTES", "MAX_BATCH_SIZE", "SHUTDOWN_TIMEOUT", "MODEL_NAME", "ARTIFACT_DIR",
	"DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "NATS_ENABLED", "NATS_URL", "STREAM_NAME",
	"SUBJECT", "QUEUE_DURABLE", "QUEUE_MAX_MSGS", "QUEUE_MAX_AGE", "ACK_WAIT",
	"WORKER_CONCURRENCY", "MONITORING_TOPIC", "BACKPRESSURE_THRESHOLD",
}

// clearEnv unsets every variable Load reads and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedKeys {
		if old, ok := os.LookupEnv(k); ok {
			t.Cleanup(func() { os.Setenv(k, old) })
		} else {
			t.Cleanup(func() { os.Unsetenv(k) })
		}
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "0.0.0.0:8000", cfg.HTTPAddr)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, defaultOrigins, cfg.AllowedOrigins)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.Equal(t, 1000, cfg.MaxBatchSize)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "data/model", cfg.ArtifactDir)
	assert.False(t, cfg.NatsEnabled)
	assert.Equal(t, "PREDICT", cfg.Stream)
	assert.Equal(t, "prediction.request.student-grade", cfg.Subject)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9000")
	t.Setenv("API_PREFIX", "v2/")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("MAX_BATCH_SIZE", "not-a-number")
	t.Setenv("ACK_WAIT", "bogus")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddr)
	assert.Equal(t, "/v2", cfg.APIPrefix)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.NatsEnabled)
	assert.Equal(t, 1000, cfg.MaxBatchSize)
	assert.Equal(t, 30*time.Second, cfg.AckWait)
}

func TestEmptyPrefixDisablesMount(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_PREFIX", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.APIPrefix)
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("# predictor\nHTTP_ADDR=:8181\nMODEL_NAME=\"por-grades\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8181", cfg.HTTPAddr)
	assert.Equal(t, "por-grades", cfg.ModelName)
	assert.Equal(t, "prediction.request.por-grades", cfg.Subject)
}

func TestLoadMissingEnvFileOnlyWarns(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "student-grade", cfg.ModelName)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
