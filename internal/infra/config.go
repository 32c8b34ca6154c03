package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string
	Port                string
	DatabaseURL         string
	Store               string
	MigrateOnStart      bool
	JWTSecret           string
	TokenTTL            time.Duration
	PublicBaseURL       string
	RegistrationCredits int

	GeminiAPIKey     string
	GeminiModel      string
	GeminiBaseURL    string
	UseMockModel     bool
	TransformTimeout time.Duration
	UpstreamMaxRPS   float64

	AuthRateLimit  int
	AuthRateWindow time.Duration
	RedisURL       string
	// TrustedProxyHops is how many reverse proxies in front of the API append
	// to X-Forwarded-For. Zero keys rate limits on the peer address.
	TrustedProxyHops int

	ResendAPIKey         string
	MailFrom             string
	BillingWebhookSecret string

	GeoIPDBPath        string
	DefaultLocale      string
	CORSAllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	MaintenanceSchedule string
	WorkerMetricsAddr   string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:              getEnv("APP_ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		Store:               strings.ToLower(getEnv("STORE", StorePostgres)),
		MigrateOnStart:      getEnvBool("MIGRATE_ON_START", false),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		TokenTTL:            time.Hour * time.Duration(getEnvInt("TOKEN_TTL_HOURS", 168)),
		RegistrationCredits: getEnvInt("REGISTRATION_CREDITS", 3),

		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash-preview-image-generation"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		UseMockModel:     getEnvBool("USE_MOCK_MODEL", false),
		TransformTimeout: time.Second * time.Duration(getEnvInt("TRANSFORM_TIMEOUT_SECONDS", 60)),
		UpstreamMaxRPS:   getEnvFloat("UPSTREAM_MAX_RPS", 0),

		AuthRateLimit:  getEnvInt("AUTH_RATE_LIMIT", 5),
		AuthRateWindow: time.Second * time.Duration(getEnvInt("AUTH_RATE_WINDOW_SECONDS", 300)),
		RedisURL:       os.Getenv("REDIS_URL"),

		TrustedProxyHops: getEnvInt("TRUSTED_PROXY_HOPS", 0),

		ResendAPIKey:         os.Getenv("RESEND_API_KEY"),
		MailFrom:             getEnv("MAIL_FROM", "Drawtica <noreply@drawtica.local>"),
		BillingWebhookSecret: os.Getenv("BILLING_WEBHOOK_SECRET"),

		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "tr"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 90)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),

		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "@every 15m"),
		WorkerMetricsAddr:   os.Getenv("WORKER_METRICS_ADDR"),
	}
	cfg.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+cfg.Port), "/")

	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, cfg.Store)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.TransformTimeout <= 0 {
		return nil, fmt.Errorf("TRANSFORM_TIMEOUT_SECONDS must be positive")
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

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
