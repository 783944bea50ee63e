package handler

import (
	"net/http"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/cache"
	"github.com/voicerly/voicerly-bff/internal/infra/observability"
	"github.com/voicerly/voicerly-bff/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("handler")

// limiterIdleTTL is how long a per-IP limiter survives without traffic.
const limiterIdleTTL = 10 * time.Minute

// Services bundles everything the routes call into.
type Services struct {
	Auth    *service.AuthService
	OTP     *service.OTPService
	Credits *service.CreditsService
	Health  *service.HealthService
	// Proxy serves /api/voxcpm/*; the prefix is stripped before it runs.
	Proxy http.Handler
}

// Options carries the route-level settings from config.
type Options struct {
	EnablePassword     bool
	AdminAPIKey        string
	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	// Limiters holds per-IP rate limiters; a fresh cache is used when nil.
	Limiters *cache.InMemory[*rate.Limiter]
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, opts Options, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, domain.CodeNotFound, "Route not found")
	})

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Health))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- VoxCPM proxy (sets its own CORS headers) ---
	if svc.Proxy != nil {
		voxcpm := http.StripPrefix("/api/voxcpm", svc.Proxy)
		r.Handle("/api/voxcpm", voxcpm)
		r.Handle("/api/voxcpm/*", voxcpm)
	}

	limiters := opts.Limiters
	if limiters == nil {
		limiters = cache.New[*rate.Limiter](limiterIdleTTL)
	}
	limited := RateLimitMiddleware(limiters, opts.RateLimitRPS, opts.RateLimitBurst, logger)

	// --- JSON API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-Admin-Key"},
			MaxAge:         300,
		}))

		r.Get("/metrics/usage", usageHandler(metrics))

		if svc.OTP != nil {
			r.With(limited).Post("/send-otp", sendOTPHandler(svc.OTP, logger))
			r.With(limited).Post("/verify-otp", verifyOTPHandler(svc.OTP, logger))
		}

		if svc.Auth != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Use(limited)
				r.Post("/login", loginHandler(svc.Auth, logger))
				if opts.EnablePassword {
					r.Post("/signup", signupHandler(svc.Auth, logger))
					r.Post("/login-with-password", loginWithPasswordHandler(svc.Auth, logger))
					r.Post("/reset-password", resetPasswordHandler(svc.Auth, logger))
				}
			})

			r.With(AdminKeyMiddleware(opts.AdminAPIKey, logger)).
				Post("/admin/create-user", adminCreateUserHandler(svc.Auth, logger))
		}

		if svc.Credits != nil {
			r.Route("/rpc", func(r chi.Router) {
				r.Use(BearerAuthMiddleware(opts.JWTSecret, logger))
				r.Post("/deduct-credits", deductCreditsHandler(svc.Credits, logger))
				r.Post("/grant-signup-bonus", grantSignupBonusHandler(svc.Credits, logger))
				r.Post("/update-profile", updateProfileHandler(svc.Credits, logger))
				r.Get("/profile", profileHandler(svc.Credits, logger))
			})
		}
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

func healthzHandler(healthSvc *service.HealthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if healthSvc == nil {
			writeJSON(w, http.StatusOK, domain.HealthStatus{
				Status: domain.StatusHealthy,
				Services: []domain.ServiceHealth{{
					Name:        "voicerly-bff",
					Status:      domain.StatusHealthy,
					LastChecked: time.Now().UTC().Format(time.RFC3339),
				}},
			})
			return
		}
		writeJSON(w, http.StatusOK, healthSvc.Check(r.Context()))
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func usageHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, http.StatusOK, metrics.Snapshot())
	}
}
