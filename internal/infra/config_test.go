package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("REPLICATE_API_TOKEN", "")
	t.Setenv("POLL_MAX_ATTEMPTS", "")
	t.Setenv("POLL_INTERVAL_MS", "")
	t.Setenv("ON_UNAVAILABLE", "")
	t.Setenv("UPLOAD_BACKEND", "")
	t.Setenv("OUTPUT_URL_DENYLIST", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "3000" {
		t.Fatalf("Port = %q, want 3000", cfg.Port)
	}
	if cfg.ReplicateAPIToken != "" {
		t.Fatalf("expected no replicate token, got %q", cfg.ReplicateAPIToken)
	}
	if cfg.PollMaxAttempts != 4 || cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll policy = %d x %s, want 4 x 2s", cfg.PollMaxAttempts, cfg.PollInterval)
	}
	if cfg.SubmitTimeout != 10*time.Second {
		t.Fatalf("SubmitTimeout = %s, want 10s", cfg.SubmitTimeout)
	}
	if cfg.OnUnavailable != OnUnavailableError {
		t.Fatalf("OnUnavailable = %q, want %q", cfg.OnUnavailable, OnUnavailableError)
	}
	if cfg.UploadBackend != UploadBackendMemory {
		t.Fatalf("UploadBackend = %q, want memory", cfg.UploadBackend)
	}
	if cfg.FallbackImageURL != DefaultFallbackImageURL {
		t.Fatalf("FallbackImageURL mismatch: %q", cfg.FallbackImageURL)
	}
	if len(cfg.OutputURLDenylist) != 3 {
		t.Fatalf("OutputURLDenylist = %#v", cfg.OutputURLDenylist)
	}
}

func TestLoadConfigParsesLists(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")
	t.Setenv("OUTPUT_URL_DENYLIST", "blocked")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins = %#v, want %#v", cfg.CORSAllowedOrigins, want)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
	if len(cfg.OutputURLDenylist) != 1 || cfg.OutputURLDenylist[0] != "blocked" {
		t.Fatalf("OutputURLDenylist = %#v", cfg.OutputURLDenylist)
	}
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("ON_UNAVAILABLE", "guess")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unknown ON_UNAVAILABLE")
	}
}

func TestLoadConfigBackendRequirements(t *testing.T) {
	t.Setenv("UPLOAD_BACKEND", "redis")
	t.Setenv("REDIS_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when REDIS_URL missing")
	}

	t.Setenv("UPLOAD_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error when S3_BUCKET missing")
	}

	t.Setenv("UPLOAD_BACKEND", "tape")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected error for unsupported backend")
	}
}

func TestLoadConfigMockPolicy(t *testing.T) {
	t.Setenv("ON_UNAVAILABLE", "MOCK")
	t.Setenv("UPLOAD_BACKEND", "")
	t.Setenv("REPLICATE_API_TOKEN", " r8_token ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.OnUnavailable != OnUnavailableMock {
		t.Fatalf("OnUnavailable = %q, want mock", cfg.OnUnavailable)
	}
	if cfg.ReplicateAPIToken != "r8_token" {
		t.Fatalf("token not trimmed: %q", cfg.ReplicateAPIToken)
	}
}
