package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	BaseURL   string
	Transport string
	RateRPS   float64
	RateBurst int
	// TraceDir enables per-run JSONL traces when set.
	TraceDir string
	LogFile  string
	APIKey   string
	UserID   string
	Artifact ArtifactConfig
}

type ArtifactConfig struct {
	Backend     string
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	Bucket      string
	UseSSL      bool
	URLExpiry   time.Duration
	PostgresDSN string
}

const (
	BackendMemory   = "memory"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
)

// IsProduction reports whether logs should be machine-readable only.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), "local")
	rps, err := floatEnv("STUDIO_RATE_RPS", 0)
	if err != nil {
		return nil, err
	}
	burst, err := intEnv("STUDIO_RATE_BURST", 1)
	if err != nil {
		return nil, err
	}
	artifact, err := loadArtifactConfig(env)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:       env,
		BaseURL:   strings.TrimRight(firstNonEmpty(strings.TrimSpace(os.Getenv("STUDIO_BASE_URL")), "http://localhost:8000"), "/"),
		Transport: strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("STUDIO_TRANSPORT")), "sse")),
		RateRPS:   rps,
		RateBurst: burst,
		TraceDir:  strings.TrimSpace(os.Getenv("STUDIO_TRACE_DIR")),
		LogFile:   firstNonEmpty(strings.TrimSpace(os.Getenv("LOG_FILE_PATH")), "logs/genstudio.log"),
		APIKey:    strings.TrimSpace(os.Getenv("STUDIO_API_KEY")),
		UserID:    strings.TrimSpace(os.Getenv("STUDIO_USER_ID")),
		Artifact:  artifact,
	}
	switch cfg.Transport {
	case "sse", "connect", "ws":
	default:
		return nil, fmt.Errorf("STUDIO_TRANSPORT: unknown transport %q", cfg.Transport)
	}
	return cfg, nil
}

func loadArtifactConfig(env string) (ArtifactConfig, error) {
	local := strings.EqualFold(env, "local")
	expiry := time.Hour
	if raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_URL_EXPIRY")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return ArtifactConfig{}, fmt.Errorf("ARTIFACT_S3_URL_EXPIRY: %w", err)
		}
		expiry = d
	}
	cfg := ArtifactConfig{
		Backend:     strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_BACKEND")), BackendMemory)),
		Endpoint:    strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT")),
		Region:      firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey:   firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey:   firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:      firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "genstudio-artifacts"),
		UseSSL:      boolEnv("ARTIFACT_S3_USE_SSL", !local),
		URLExpiry:   expiry,
		PostgresDSN: strings.TrimSpace(os.Getenv("ARTIFACT_PG_DSN")),
	}
	if local && cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:9000"
	}
	switch cfg.Backend {
	case BackendMemory, BackendS3:
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return ArtifactConfig{}, fmt.Errorf("ARTIFACT_PG_DSN is required for the postgres backend")
		}
	default:
		return ArtifactConfig{}, fmt.Errorf("ARTIFACT_BACKEND: unknown backend %q", cfg.Backend)
	}
	return cfg, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func boolEnv(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
