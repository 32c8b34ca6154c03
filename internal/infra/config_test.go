package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("STORE", "")
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("TRANSFORM_TIMEOUT_SECONDS", "")
	t.Setenv("UPSTREAM_MAX_RPS", "")
	t.Setenv("DEFAULT_LOCALE", "")
	t.Setenv("MAINTENANCE_SCHEDULE", "")
	t.Setenv("TRUSTED_PROXY_HOPS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Store != StorePostgres {
		t.Fatalf("Store = %q, want %q", cfg.Store, StorePostgres)
	}
	if cfg.PublicBaseURL != "http://localhost:8080" {
		t.Fatalf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
	if cfg.TransformTimeout != 60*time.Second {
		t.Fatalf("TransformTimeout = %s", cfg.TransformTimeout)
	}
	if cfg.UpstreamMaxRPS != 0 {
		t.Fatalf("UpstreamMaxRPS = %v, want unlimited", cfg.UpstreamMaxRPS)
	}
	if cfg.RegistrationCredits != 3 {
		t.Fatalf("RegistrationCredits = %d", cfg.RegistrationCredits)
	}
	if cfg.DefaultLocale != "tr" {
		t.Fatalf("DefaultLocale = %q", cfg.DefaultLocale)
	}
	if cfg.AuthRateLimit != 5 || cfg.AuthRateWindow != 5*time.Minute {
		t.Fatalf("auth rate limit = %d per %s", cfg.AuthRateLimit, cfg.AuthRateWindow)
	}
	if cfg.TrustedProxyHops != 0 {
		t.Fatalf("TrustedProxyHops = %d, want 0", cfg.TrustedProxyHops)
	}
	if cfg.MaintenanceSchedule != "@every 15m" {
		t.Fatalf("MaintenanceSchedule = %q", cfg.MaintenanceSchedule)
	}
}

func TestLoadConfigPublicBaseURLTrimsSlash(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PUBLIC_BASE_URL", "https://drawtica.example.com/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PublicBaseURL != "https://drawtica.example.com" {
		t.Fatalf("PublicBaseURL = %q", cfg.PublicBaseURL)
	}
}

func TestLoadConfigMemoryStoreSkipsDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("STORE", "memory")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com , ,https://b.example.com")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Store != StoreMemory {
		t.Fatalf("Store = %q", cfg.Store)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database url", env: map[string]string{"DATABASE_URL": "", "JWT_SECRET": "s", "STORE": "postgres"}},
		{name: "missing jwt secret", env: map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET": ""}},
		{name: "unknown store", env: map[string]string{"JWT_SECRET": "s", "STORE": "sqlite"}},
		{name: "non-positive timeout", env: map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET": "s", "TRANSFORM_TIMEOUT_SECONDS": "0"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("STORE", "")
			t.Setenv("TRANSFORM_TIMEOUT_SECONDS", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
