// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
)

// ProfileStore persists password-based accounts in the profiles table.
// Implemented by the Supabase PostgREST adapter and the direct SQL store.
type ProfileStore interface {
	// GetByEmail returns nil, nil when no profile matches.
	GetByEmail(ctx context.Context, email string) (*domain.Profile, error)
	// Create inserts a profile; a duplicate email yields *domain.ErrConflict.
	Create(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	// UpdatePasswordHash yields *domain.ErrNotFound when the email is unknown.
	UpdatePasswordHash(ctx context.Context, email, hash string) error
	Ping(ctx context.Context) error
}

// CreditsRPC calls the balance stored procedures with the caller's own token.
type CreditsRPC interface {
	DeductCredits(ctx context.Context, accessToken string, cost float64, reason string) (int64, error)
	GrantSignupBonus(ctx context.Context, accessToken string) (int64, error)
	UpdateProfile(ctx context.Context, accessToken, displayName string) error
	GetOwnProfile(ctx context.Context, accessToken, userID string) (*domain.ProfileSnapshot, error)
}

// AuthProvider is the hosted auth service (GoTrue).
type AuthProvider interface {
	SignIn(ctx context.Context, email, password string) (*domain.TokenLoginResponse, error)
	// AdminCreateUser returns the existing user with Created=false when the email is taken.
	AdminCreateUser(ctx context.Context, email, password string) (*domain.AdminUser, error)
}

// OTPStore keeps pending codes, resend cooldowns and verified markers.
type OTPStore interface {
	// AcquireCooldown atomically starts a cooldown for email. When one is
	// already running it returns false and the time left.
	AcquireCooldown(ctx context.Context, email string, ttl time.Duration) (bool, time.Duration, error)
	ReleaseCooldown(ctx context.Context, email string) error

	Save(ctx context.Context, rec *domain.OTPRecord, ttl time.Duration) error
	// Get returns nil, nil when no live code exists.
	Get(ctx context.Context, email string) (*domain.OTPRecord, error)
	IncrementAttempts(ctx context.Context, email string) (int, error)
	Delete(ctx context.Context, email string) error

	MarkVerified(ctx context.Context, email string, ttl time.Duration) error
	// ConsumeVerified removes the marker and reports whether it existed.
	ConsumeVerified(ctx context.Context, email string) (bool, error)

	Ping(ctx context.Context) error
}

// Mailer delivers one-time codes.
type Mailer interface {
	SendOTP(ctx context.Context, msg *domain.OTPMessage) error
}

// CaptchaVerifier checks a bot-protection token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// LedgerPublisher emits credit ledger events.
type LedgerPublisher interface {
	Publish(ctx context.Context, ev *domain.LedgerEvent) error
	Close() error
}

// Pinger is a dependency probed by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}
