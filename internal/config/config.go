package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// VoxCPM inference backend (proxy upstream)
	VoxCPMBaseURL     string
	EnableHealthCheck bool

	// Public base URL the Go client library talks to
	PublicAPIBase string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseJWTSecret  string

	// Profile storage: "supabase" (PostgREST) or "postgres" (direct SQL)
	ProfileStore string
	DatabaseURL  string

	// OTP
	RedisURL         string
	OTPTTL           time.Duration
	OTPCooldown      time.Duration
	OTPMaxAttempts   int
	OTPVerifiedTTL   time.Duration
	RequireSignupOTP bool
	RequireResetOTP  bool

	// Captcha
	TurnstileSiteKey   string
	TurnstileSecretKey string

	// Mail delivery for OTP codes (webhook); empty means log only
	MailWebhookURL   string
	MailWebhookToken string
	MailFrom         string

	// Ledger events
	KafkaBrokers     []string
	KafkaLedgerTopic string

	// Feature flags
	EnablePassword bool

	// Admin
	AdminAPIKey string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Rate limiting (per client IP, auth and OTP routes)
	RateLimitRPS   float64
	RateLimitBurst int

	// CORS for the JSON API (the proxy always answers with "*")
	CORSAllowedOrigins []string

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		VoxCPMBaseURL:     upstreamBase(firstEnv("VOXCPM_BASE_URL", "NEXT_PUBLIC_VOXCPM_BASE")),
		EnableHealthCheck: getEnvBool("NEXT_PUBLIC_ENABLE_HEALTH_CHECK", false),

		PublicAPIBase: getEnv("NEXT_PUBLIC_API_BASE", ""),

		SupabaseURL:        strings.TrimRight(firstEnv("NEXT_PUBLIC_SUPABASE_URL", "SUPABASE_URL"), "/"),
		SupabaseAnonKey:    firstEnv("NEXT_PUBLIC_SUPABASE_ANON_KEY", "SUPABASE_ANON_KEY"),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		SupabaseJWTSecret:  getEnv("SUPABASE_JWT_SECRET", ""),

		ProfileStore: getEnv("PROFILE_STORE", "supabase"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		OTPTTL:           getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPCooldown:      getEnvDuration("OTP_COOLDOWN", 60*time.Second),
		OTPMaxAttempts:   getEnvInt("OTP_MAX_ATTEMPTS", 5),
		OTPVerifiedTTL:   getEnvDuration("OTP_VERIFIED_TTL", 10*time.Minute),
		RequireSignupOTP: getEnvBool("REQUIRE_SIGNUP_OTP", false),
		RequireResetOTP:  getEnvBool("REQUIRE_RESET_OTP", false),

		TurnstileSiteKey:   getEnv("NEXT_PUBLIC_TURNSTILE_SITE_KEY", ""),
		TurnstileSecretKey: getEnv("TURNSTILE_SECRET_KEY", ""),

		MailWebhookURL:   getEnv("MAIL_WEBHOOK_URL", ""),
		MailWebhookToken: getEnv("MAIL_WEBHOOK_TOKEN", ""),
		MailFrom:         getEnv("MAIL_FROM", "Voicerly <no-reply@voicerly.app>"),

		KafkaBrokers:     getEnvList("KAFKA_BROKERS"),
		KafkaLedgerTopic: getEnv("KAFKA_LEDGER_TOPIC", "voicerly.credits"),

		EnablePassword: getEnvBool("NEXT_PUBLIC_ENABLE_PASSWORD", true),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 2),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 2),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),

		CORSAllowedOrigins: getEnvListDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// TurnstileEnabled reports whether send-otp must carry a captcha token.
func (c *Config) TurnstileEnabled() bool {
	return c.TurnstileSiteKey != "" && c.TurnstileSecretKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// upstreamBase drops trailing slashes and rejects browser-relative bases
// such as "/api/voxcpm", which would point the proxy at itself.
func upstreamBase(v string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
		return ""
	}
	return v
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvBool accepts "1"/"true"/"yes"/"on" (any case) as true and "0"/"false"/"no"/"off" as false.
func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
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

func getEnvList(key string) []string {
	return getEnvListDefault(key, nil)
}

func getEnvListDefault(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
