package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "STUDIO_BASE_URL", "STUDIO_TRANSPORT", "STUDIO_RATE_RPS", "STUDIO_RATE_BURST",
		"STUDIO_TRACE_DIR", "LOG_FILE_PATH", "STUDIO_API_KEY", "STUDIO_USER_ID",
		"ARTIFACT_BACKEND", "ARTIFACT_S3_ENDPOINT", "ARTIFACT_S3_REGION", "ARTIFACT_S3_ACCESS_KEY",
		"ARTIFACT_S3_SECRET_KEY", "ARTIFACT_S3_BUCKET", "ARTIFACT_S3_USE_SSL", "ARTIFACT_S3_URL_EXPIRY",
		"ARTIFACT_PG_DSN", "MINIO_ROOT_USER", "MINIO_ROOT_PASSWORD",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "http://localhost:8000", cfg.BaseURL)
	assert.Equal(t, "sse", cfg.Transport)
	assert.Equal(t, 0.0, cfg.RateRPS)
	assert.Equal(t, 1, cfg.RateBurst)
	assert.Equal(t, BackendMemory, cfg.Artifact.Backend)
	assert.Equal(t, "localhost:9000", cfg.Artifact.Endpoint)
	assert.False(t, cfg.Artifact.UseSSL)
	assert.Equal(t, time.Hour, cfg.Artifact.URLExpiry)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("STUDIO_BASE_URL", "https://studio.example/")
	t.Setenv("STUDIO_TRANSPORT", "Connect")
	t.Setenv("STUDIO_RATE_RPS", "2.5")
	t.Setenv("STUDIO_RATE_BURST", "4")
	t.Setenv("ARTIFACT_BACKEND", "s3")
	t.Setenv("ARTIFACT_S3_ENDPOINT", "s3.example")
	t.Setenv("MINIO_ROOT_USER", "minio")
	t.Setenv("ARTIFACT_S3_URL_EXPIRY", "15m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://studio.example", cfg.BaseURL)
	assert.Equal(t, "connect", cfg.Transport)
	assert.Equal(t, 2.5, cfg.RateRPS)
	assert.Equal(t, 4, cfg.RateBurst)
	assert.Equal(t, "minio", cfg.Artifact.AccessKey)
	assert.True(t, cfg.Artifact.UseSSL)
	assert.Equal(t, 15*time.Minute, cfg.Artifact.URLExpiry)
	assert.True(t, cfg.IsProduction())
}

func TestLoadRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{
		"STUDIO_TRANSPORT":       "carrier-pigeon",
		"STUDIO_RATE_RPS":        "fast",
		"STUDIO_RATE_BURST":      "1.5",
		"ARTIFACT_BACKEND":       "tape",
		"ARTIFACT_S3_URL_EXPIRY": "soon",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}

	clearEnv(t)
	t.Setenv("ARTIFACT_BACKEND", "postgres")
	_, err := Load()
	assert.ErrorContains(t, err, "ARTIFACT_PG_DSN")
}
