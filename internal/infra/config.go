package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Upload backends understood by LoadConfig.
const (
	UploadBackendMemory = "memory"
	UploadBackendFile   = "file"
	UploadBackendRedis  = "redis"
	UploadBackendS3     = "s3"
)

// Policies applied when the generation service is unavailable or fails.
const (
	OnUnavailableError = "error"
	OnUnavailableMock  = "mock"
)

// DefaultFallbackImageURL is the placeholder returned when the real pipeline is not usable.
const DefaultFallbackImageURL = "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=400&h=400&fit=crop&crop=face"

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration

	ReplicateAPIToken     string
	ReplicateBaseURL      string
	ReplicateModelVersion string
	SubmitTimeout         time.Duration
	PollRequestTimeout    time.Duration
	PollMaxAttempts       int
	PollInterval          time.Duration
	FallbackImageURL      string
	OnUnavailable         string
	OutputURLDenylist     []string
	MaxInlineImageBytes   int

	UploadBackend    string
	UploadMaxBytes   int64
	StoragePath      string
	PublicBaseURL    string
	RedisURL         string
	UploadTTL        time.Duration
	S3Bucket         string
	AWSRegion        string
	S3Endpoint       string
	S3PresignExpires time.Duration

	DatabaseURL string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "3000"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 330)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		ReplicateAPIToken:     strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN")),
		ReplicateBaseURL:      getEnv("REPLICATE_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModelVersion: getEnv("REPLICATE_MODEL_VERSION", "smoosh-sh/baby-mystic:ba5ab694"),
		SubmitTimeout:         time.Second * time.Duration(getEnvInt("REPLICATE_SUBMIT_TIMEOUT_SECONDS", 10)),
		PollRequestTimeout:    time.Second * time.Duration(getEnvInt("REPLICATE_POLL_TIMEOUT_SECONDS", 10)),
		PollMaxAttempts:       getEnvInt("POLL_MAX_ATTEMPTS", 4),
		PollInterval:          time.Millisecond * time.Duration(getEnvInt("POLL_INTERVAL_MS", 2000)),
		FallbackImageURL:      getEnv("FALLBACK_IMAGE_URL", DefaultFallbackImageURL),
		OnUnavailable:         strings.ToLower(getEnv("ON_UNAVAILABLE", OnUnavailableError)),
		OutputURLDenylist:     getEnvList("OUTPUT_URL_DENYLIST", []string{"nsfw", "inappropriate", "placeholder"}),
		MaxInlineImageBytes:   getEnvInt("MAX_INLINE_IMAGE_BYTES", 1<<20),

		UploadBackend:    strings.ToLower(getEnv("UPLOAD_BACKEND", UploadBackendMemory)),
		UploadMaxBytes:   int64(getEnvInt("UPLOAD_MAX_BYTES", 10<<20)),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		PublicBaseURL:    strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		RedisURL:         os.Getenv("REDIS_URL"),
		UploadTTL:        time.Second * time.Duration(getEnvInt("UPLOAD_TTL_SECONDS", 0)),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3PresignExpires: time.Second * time.Duration(getEnvInt("S3_PRESIGN_SECONDS", 3600)),

		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	switch cfg.OnUnavailable {
	case OnUnavailableError, OnUnavailableMock:
	default:
		return nil, fmt.Errorf("ON_UNAVAILABLE must be %q or %q, got %q", OnUnavailableMock, OnUnavailableError, cfg.OnUnavailable)
	}

	switch cfg.UploadBackend {
	case UploadBackendMemory, UploadBackendFile:
	case UploadBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the redis upload backend")
		}
	case UploadBackendS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required for the s3 upload backend")
		}
	default:
		return nil, fmt.Errorf("unsupported UPLOAD_BACKEND %q", cfg.UploadBackend)
	}

	if cfg.PollMaxAttempts < 0 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must not be negative")
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 10 * time.Second
	}
	if cfg.PollRequestTimeout <= 0 {
		cfg.PollRequestTimeout = 10 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
