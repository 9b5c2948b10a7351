package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Payment provider
	ProviderBaseURL  string
	ProviderAPIKey   string
	ProviderPageSize int

	// WhatsApp transport
	WhatsAppAPIURL string
	WhatsAppToken  string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int // concurrent tenant runs in a scheduler sweep

	// Cache
	CacheTTL time.Duration

	// Scheduler
	SchedulerInterval time.Duration
	RunMarkerTTL      time.Duration

	// Observability
	OTLPEndpoint string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT / Auth
	JWTSecret string

	// OpenAI (template suggestions)
	OpenAIKey   string
	OpenAIModel string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		ProviderBaseURL:  getEnv("PROVIDER_BASE_URL", "https://api.asaas.com/v3"),
		ProviderAPIKey:   getEnv("PROVIDER_API_KEY", ""),
		ProviderPageSize: getEnvInt("PROVIDER_PAGE_SIZE", 100),

		WhatsAppAPIURL: getEnv("WHATSAPP_API_URL", "http://localhost:3000"),
		WhatsAppToken:  getEnv("WHATSAPP_TOKEN", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 30*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 5),

		CacheTTL: getEnvDuration("CACHE_TTL", 24*time.Hour),

		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", time.Minute),
		RunMarkerTTL:      getEnvDuration("RUN_MARKER_TTL", 48*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "billzap-default-dev-secret-change-me"),

		OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
