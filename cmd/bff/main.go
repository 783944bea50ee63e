package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voicerly/voicerly-bff/internal/config"
	"github.com/voicerly/voicerly-bff/internal/handler"
	"github.com/voicerly/voicerly-bff/internal/infra/cache"
	"github.com/voicerly/voicerly-bff/internal/infra/client"
	"github.com/voicerly/voicerly-bff/internal/infra/events"
	"github.com/voicerly/voicerly-bff/internal/infra/observability"
	"github.com/voicerly/voicerly-bff/internal/infra/otpstore"
	"github.com/voicerly/voicerly-bff/internal/infra/postgres"
	"github.com/voicerly/voicerly-bff/internal/infra/resilience"
	"github.com/voicerly/voicerly-bff/internal/infra/supabase"
	"github.com/voicerly/voicerly-bff/internal/port"
	"github.com/voicerly/voicerly-bff/internal/proxy"
	"github.com/voicerly/voicerly-bff/internal/service"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	// --- Load env files (for local development) ---
	_, _ = config.LoadDotEnv(".env.local", ".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "voicerly-bff")
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("profile_store", cfg.ProfileStore),
		zap.Bool("enable_password", cfg.EnablePassword),
		zap.Bool("turnstile", cfg.TurnstileEnabled()),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Int("kafka_brokers", len(cfg.KafkaBrokers)),
		zap.Bool("voxcpm_configured", cfg.VoxCPMBaseURL != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "voicerly-bff")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	supabaseCB := resilience.NewCircuitBreaker("supabase")
	mailCB := resilience.NewCircuitBreaker("mail")
	captchaCB := resilience.NewCircuitBreaker("turnstile")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()

	var supabaseClient *supabase.Client
	if cfg.SupabaseURL != "" {
		supabaseClient = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			supabaseCB,
			resilienceCfg,
			logger,
		)
	} else {
		logger.Warn("Supabase not configured, credit RPCs will fail with CONFIG_MISSING")
	}

	// --- Profile store ---
	var profiles port.ProfileStore
	switch cfg.ProfileStore {
	case "postgres":
		if cfg.DatabaseURL == "" {
			logger.Fatal("PROFILE_STORE=postgres requires DATABASE_URL")
		}
		db, err := postgres.Connect(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close()
		store := postgres.NewProfileStore(db, logger)
		if err := store.EnsureSchema(startCtx); err != nil {
			logger.Fatal("failed to prepare schema", zap.Error(err))
		}
		profiles = store
		logger.Info("profiles stored in postgres")
	default:
		if supabaseClient == nil {
			logger.Fatal("PROFILE_STORE=supabase requires SUPABASE_URL")
		}
		profiles = supabaseClient
		logger.Info("profiles stored in Supabase", zap.String("supabase_url", cfg.SupabaseURL))
	}

	// --- OTP store ---
	var otpStore port.OTPStore
	if cfg.RedisURL != "" {
		rdb, err := otpstore.NewRedis(startCtx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		otpStore = rdb
		logger.Info("OTP codes stored in redis")
	} else {
		mem := otpstore.NewMemory(cfg.OTPTTL)
		defer mem.Close()
		otpStore = mem
		logger.Warn("REDIS_URL not set, OTP codes kept in process memory")
	}

	// --- Ledger events ---
	var ledger port.LedgerPublisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaLedgerTopic, logger)
		if err != nil {
			logger.Fatal("failed to create kafka producer", zap.Error(err))
		}
		ledger = pub
		logger.Info("ledger events enabled", zap.String("topic", cfg.KafkaLedgerTopic))
	}
	defer ledger.Close()

	// --- Mail & captcha ---
	var mailer port.Mailer
	if cfg.MailWebhookURL != "" {
		mailer = client.NewWebhookMailer(httpClient, cfg.MailWebhookURL, cfg.MailWebhookToken, cfg.MailFrom, mailCB, resilienceCfg)
	} else {
		mailer = client.NewLogMailer(logger)
		logger.Warn("MAIL_WEBHOOK_URL not set, OTP codes are only logged")
	}

	var captcha port.CaptchaVerifier
	if cfg.TurnstileEnabled() {
		captcha = client.NewTurnstileVerifier(httpClient, client.TurnstileVerifyURL, cfg.TurnstileSecretKey, captchaCB, logger)
	}

	// --- Hosted auth ---
	var provider port.AuthProvider
	if cfg.SupabaseURL != "" && cfg.SupabaseAnonKey != "" {
		provider = supabase.NewAuthAdapter(httpClient, cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceKey, supabaseCB, logger)
	}

	// --- Services ---
	otpSvc := service.NewOTPService(otpStore, mailer, captcha, metrics, service.OTPConfig{
		TTL:         cfg.OTPTTL,
		Cooldown:    cfg.OTPCooldown,
		VerifiedTTL: cfg.OTPVerifiedTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
	}, logger)

	authSvc := service.NewAuthService(profiles, provider, otpSvc, ledger, metrics, service.AuthOptions{
		RequireSignupOTP: cfg.RequireSignupOTP,
		RequireResetOTP:  cfg.RequireResetOTP,
	}, logger)

	var rpc port.CreditsRPC
	if supabaseClient != nil {
		rpc = supabaseClient
	}
	creditsSvc := service.NewCreditsService(rpc, ledger, metrics, logger)

	var voxcpm port.Pinger
	if cfg.EnableHealthCheck && cfg.VoxCPMBaseURL != "" {
		voxcpm = client.NewVoxCPMPinger(httpClient, cfg.VoxCPMBaseURL)
	}
	healthSvc := service.NewHealthService(logger).
		Register("profiles", profiles).
		Register("otp-store", otpStore).
		Register("voxcpm", voxcpm)

	voxProxy := proxy.NewVoxCPM(cfg.VoxCPMBaseURL, proxy.NewTransport(), metrics, logger)

	// --- Router ---
	limiters := cache.New[*rate.Limiter](10 * time.Minute)
	defer limiters.Close()

	router := handler.NewRouter(handler.Services{
		Auth:    authSvc,
		OTP:     otpSvc,
		Credits: creditsSvc,
		Health:  healthSvc,
		Proxy:   voxProxy,
	}, handler.Options{
		EnablePassword:     cfg.EnablePassword,
		AdminAPIKey:        cfg.AdminAPIKey,
		JWTSecret:          cfg.SupabaseJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
		Limiters:           limiters,
	}, metrics, logger)

	// --- Server ---
	// No WriteTimeout: proxied audio streams can run longer than any fixed budget.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
