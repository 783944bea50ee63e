package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/cache"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type contextKey string

const callerKey contextKey = "caller"

// accessClaims is the subset of a Supabase access token the BFF reads.
type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// BearerAuthMiddleware extracts the caller's Supabase access token and puts a
// *domain.Caller into the context. With a secret the HS256 signature is
// checked; without one the token is only decoded and expiry-checked, and
// Supabase still rejects a forged token when the RPC runs.
func BearerAuthMiddleware(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "Missing bearer token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "Invalid authorization header")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			claims, err := parseAccessToken(tokenString, secret)
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "Invalid or expired session")
				return
			}

			ctx := context.WithValue(r.Context(), callerKey, &domain.Caller{
				UserID:      claims.Subject,
				Email:       claims.Email,
				AccessToken: tokenString,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseAccessToken(tokenString, secret string) (*accessClaims, error) {
	claims := &accessClaims{}
	if secret != "" {
		_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			return nil, err
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, err
		}
		if claims.ExpiresAt != nil && !claims.ExpiresAt.After(time.Now()) {
			return nil, jwt.ErrTokenExpired
		}
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// CallerFromContext returns the authenticated caller, or nil.
func CallerFromContext(ctx context.Context) *domain.Caller {
	c, _ := ctx.Value(callerKey).(*domain.Caller)
	return c
}

// RateLimitMiddleware applies a token bucket per client IP. Limiters live in
// limiters and expire with its TTL once a client goes quiet.
func RateLimitMiddleware(limiters *cache.InMemory[*rate.Limiter], rps float64, burst int, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rps <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			limiter := limiters.GetOrSet(ip, func() *rate.Limiter {
				return rate.NewLimiter(rate.Limit(rps), burst)
			})
			if !limiter.Allow() {
				logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", r.URL.Path))
				handleServiceError(w, &domain.ErrRateLimited{}, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminKeyMiddleware guards admin routes with the X-Admin-Key header.
func AdminKeyMiddleware(key string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				handleServiceError(w, &domain.ErrMissingConfig{Key: "ADMIN_API_KEY"}, logger)
				return
			}
			got := r.Header.Get("X-Admin-Key")
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				logger.Warn("admin: bad key", zap.String("remote_addr", r.RemoteAddr))
				writeError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "Invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port RealIP may leave on RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
