// Package service holds the BFF's use cases. AuthService handles password
// accounts against the profiles table plus GoTrue token login and admin user
// creation.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/observability"
	"github.com/voicerly/voicerly-bff/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var authTracer = otel.Tracer("service/auth")

const bcryptCost = 12

// AuthOptions toggles the OTP gates and the hashing cost.
type AuthOptions struct {
	RequireSignupOTP bool
	RequireResetOTP  bool
	// BcryptCost defaults to 12 when zero.
	BcryptCost int
}

// AuthService orchestrates authentication flows.
type AuthService struct {
	profiles port.ProfileStore
	provider port.AuthProvider
	otp      *OTPService
	ledger   port.LedgerPublisher
	metrics  *observability.Metrics
	opts     AuthOptions
	now      func() time.Time
	logger   *zap.Logger
}

// NewAuthService creates a new auth service. provider may be nil when GoTrue
// is not configured; the token login and admin routes then fail with
// *domain.ErrMissingConfig.
func NewAuthService(
	profiles port.ProfileStore,
	provider port.AuthProvider,
	otp *OTPService,
	ledger port.LedgerPublisher,
	metrics *observability.Metrics,
	opts AuthOptions,
	logger *zap.Logger,
) *AuthService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcryptCost
	}
	return &AuthService{
		profiles: profiles,
		provider: provider,
		otp:      otp,
		ledger:   ledger,
		metrics:  metrics,
		opts:     opts,
		now:      time.Now,
		logger:   logger,
	}
}

// ============================================================
// Signup: POST /api/auth/signup
// ============================================================

func (s *AuthService) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.UserResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Signup")
	defer span.End()

	email := domain.NormalizeEmail(req.Email)
	password := req.Password
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return nil, err
	}

	// Duplicates are rejected before the OTP gate so a 409 leaves the
	// verified marker in place.
	existing, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check existing profile: %w", err)
	}
	if existing != nil {
		return nil, &domain.ErrConflict{Message: "Email already registered"}
	}

	if err := s.otpGate(ctx, email, req.Code, s.opts.RequireSignupOTP); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p := &domain.Profile{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if name := strings.TrimSpace(req.DisplayName); name != "" {
		p.DisplayName = &name
	}

	created, err := s.profiles.Create(ctx, p)
	if err != nil {
		var conflict *domain.ErrConflict
		if errors.As(err, &conflict) {
			return nil, err
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	span.SetAttributes(attribute.String("user.id", created.ID))

	s.metrics.IncrSignup()
	publishLedger(ctx, s.ledger, s.logger, &domain.LedgerEvent{
		ID:         uuid.NewString(),
		Type:       domain.LedgerSignup,
		UserID:     created.ID,
		NewBalance: created.Credits,
		At:         s.now().UTC(),
	})

	s.logger.Info("profile created", zap.String("user_id", created.ID))
	return &domain.UserResponse{User: created.Public()}, nil
}

// otpGate verifies an inline code when one is supplied; otherwise, when
// required, it consumes the marker left by an earlier /api/verify-otp.
func (s *AuthService) otpGate(ctx context.Context, email, code string, required bool) error {
	code = strings.TrimSpace(code)
	if code == "" && !required {
		return nil
	}
	if s.otp == nil {
		return &domain.ErrMissingConfig{Key: "OTP store"}
	}
	if code != "" {
		if err := s.otp.Verify(ctx, email, code); err != nil {
			return err
		}
		// Verify leaves a marker behind; the gate uses it up right away.
		_, err := s.otp.ConsumeVerified(ctx, email)
		return err
	}

	ok, err := s.otp.ConsumeVerified(ctx, email)
	if err != nil {
		return fmt.Errorf("consume otp marker: %w", err)
	}
	if !ok {
		return &domain.ErrInvalidCode{}
	}
	return nil
}

// publishLedger emits ev and only logs failures; balances are already committed.
func publishLedger(ctx context.Context, ledger port.LedgerPublisher, logger *zap.Logger, ev *domain.LedgerEvent) {
	if ledger == nil {
		return
	}
	if err := ledger.Publish(ctx, ev); err != nil {
		logger.Warn("ledger: publish failed",
			zap.String("type", ev.Type),
			zap.String("user_id", ev.UserID),
			zap.Error(err),
		)
	}
}
