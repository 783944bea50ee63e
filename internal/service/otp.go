package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/observability"
	"github.com/voicerly/voicerly-bff/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var otpTracer = otel.Tracer("service/otp")

// OTPConfig holds the code lifetimes.
type OTPConfig struct {
	TTL         time.Duration
	Cooldown    time.Duration
	VerifiedTTL time.Duration
	MaxAttempts int
}

// OTPService issues and checks one-time email codes.
type OTPService struct {
	store    port.OTPStore
	mailer   port.Mailer
	captcha  port.CaptchaVerifier
	metrics  *observability.Metrics
	cfg      OTPConfig
	now      func() time.Time
	generate func() (string, error)
	logger   *zap.Logger
}

// NewOTPService creates the service. A nil captcha disables Turnstile checks.
func NewOTPService(store port.OTPStore, mailer port.Mailer, captcha port.CaptchaVerifier, metrics *observability.Metrics, cfg OTPConfig, logger *zap.Logger) *OTPService {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.VerifiedTTL <= 0 {
		cfg.VerifiedTTL = cfg.TTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &OTPService{
		store:    store,
		mailer:   mailer,
		captcha:  captcha,
		metrics:  metrics,
		cfg:      cfg,
		now:      time.Now,
		generate: generateCode,
		logger:   logger,
	}
}

// WithClock replaces the time source.
func (s *OTPService) WithClock(now func() time.Time) *OTPService {
	s.now = now
	return s
}

// WithGenerator replaces the code generator.
func (s *OTPService) WithGenerator(gen func() (string, error)) *OTPService {
	s.generate = gen
	return s
}

// ============================================================
// Send: POST /api/send-otp
// ============================================================

func (s *OTPService) Send(ctx context.Context, req *domain.SendOTPRequest, remoteIP string) (*domain.SendOTPResponse, error) {
	ctx, span := otpTracer.Start(ctx, "OTPService.Send")
	defer span.End()

	email := domain.NormalizeEmail(req.Email)
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}

	if s.captcha != nil {
		if err := s.captcha.Verify(ctx, req.TurnstileToken, remoteIP); err != nil {
			return nil, err
		}
	}

	ok, remaining, err := s.store.AcquireCooldown(ctx, email, s.cfg.Cooldown)
	if err != nil {
		return nil, fmt.Errorf("acquire cooldown: %w", err)
	}
	if !ok {
		s.metrics.IncrOTP(observability.OTPCooldown)
		s.logger.Info("otp: send cooldown active", zap.Duration("remaining", remaining))
		return nil, &domain.ErrCooldown{Remaining: remaining}
	}

	code, err := s.generate()
	if err != nil {
		s.releaseCooldown(ctx, email)
		return nil, fmt.Errorf("generate code: %w", err)
	}

	rec := &domain.OTPRecord{
		Email:     email,
		Code:      code,
		RequestID: uuid.NewString(),
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}
	if err := s.store.Save(ctx, rec, s.cfg.TTL); err != nil {
		s.releaseCooldown(ctx, email)
		return nil, fmt.Errorf("save code: %w", err)
	}

	if err := s.mailer.SendOTP(ctx, &domain.OTPMessage{
		To:        email,
		Code:      code,
		ExpiresIn: s.cfg.TTL,
		RequestID: rec.RequestID,
	}); err != nil {
		s.metrics.IncrOTP(observability.OTPDelivFail)
		s.metrics.IncrExternalError("mail")
		s.logger.Error("otp: delivery failed", zap.String("request_id", rec.RequestID), zap.Error(err))
		s.releaseCooldown(ctx, email)
		if derr := s.store.Delete(ctx, email); derr != nil {
			s.logger.Warn("otp: delete undelivered code failed", zap.Error(derr))
		}
		return nil, err
	}

	s.metrics.IncrOTP(observability.OTPSent)
	s.logger.Info("otp: code sent", zap.String("request_id", rec.RequestID))

	return &domain.SendOTPResponse{
		CooldownSeconds: int(s.cfg.Cooldown / time.Second),
		ExpiresIn:       int(s.cfg.TTL / time.Second),
	}, nil
}

func (s *OTPService) releaseCooldown(ctx context.Context, email string) {
	if err := s.store.ReleaseCooldown(ctx, email); err != nil {
		s.logger.Warn("otp: release cooldown failed", zap.Error(err))
	}
}

// ============================================================
// Verify: POST /api/verify-otp
// ============================================================

// Verify checks code for email. A match consumes the code and leaves a
// verified marker for the OTP-gated signup and reset routes.
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	ctx, span := otpTracer.Start(ctx, "OTPService.Verify")
	defer span.End()

	email = domain.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	if !domain.ValidOTPCode(code) {
		return &domain.ErrValidation{Field: "code", Message: "Code must be 6 digits"}
	}

	rec, err := s.store.Get(ctx, email)
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if rec == nil || rec.Expired(s.now()) {
		if rec != nil {
			_ = s.store.Delete(ctx, email)
		}
		s.metrics.IncrOTP(observability.OTPRejected)
		return &domain.ErrInvalidCode{}
	}

	// A code that already used up its attempts stays dead even if an
	// earlier delete did not land.
	if rec.Attempts >= s.cfg.MaxAttempts {
		_ = s.store.Delete(ctx, email)
		s.metrics.IncrOTP(observability.OTPRejected)
		return &domain.ErrInvalidCode{}
	}

	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		attempts, err := s.store.IncrementAttempts(ctx, email)
		if err != nil {
			return fmt.Errorf("count attempt: %w", err)
		}
		if attempts >= s.cfg.MaxAttempts {
			_ = s.store.Delete(ctx, email)
			s.logger.Warn("otp: max attempts reached", zap.String("request_id", rec.RequestID))
		}
		s.metrics.IncrOTP(observability.OTPRejected)
		return &domain.ErrInvalidCode{}
	}

	if err := s.store.Delete(ctx, email); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if err := s.store.MarkVerified(ctx, email, s.cfg.VerifiedTTL); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}

	s.metrics.IncrOTP(observability.OTPVerified)
	return nil
}

// ConsumeVerified removes the verified marker for email and reports whether
// it was present.
func (s *OTPService) ConsumeVerified(ctx context.Context, email string) (bool, error) {
	return s.store.ConsumeVerified(ctx, domain.NormalizeEmail(email))
}

// generateCode returns a uniformly random six-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
