package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/observability"
	"github.com/voicerly/voicerly-bff/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var creditsTracer = otel.Tracer("service/credits")

// CreditsService validates balance mutations and forwards them to the
// backend stored procedures with the caller's own token.
type CreditsService struct {
	rpc     port.CreditsRPC
	ledger  port.LedgerPublisher
	metrics *observability.Metrics
	now     func() time.Time
	logger  *zap.Logger
}

// NewCreditsService creates a new credits service.
func NewCreditsService(rpc port.CreditsRPC, ledger port.LedgerPublisher, metrics *observability.Metrics, logger *zap.Logger) *CreditsService {
	return &CreditsService{
		rpc:     rpc,
		ledger:  ledger,
		metrics: metrics,
		now:     time.Now,
		logger:  logger,
	}
}

// requireCaller checks the Bearer identity and that a backend is wired.
func (s *CreditsService) requireCaller(c *domain.Caller) error {
	if c == nil || c.AccessToken == "" {
		return &domain.ErrUnauthorized{Message: "Missing bearer token"}
	}
	if s.rpc == nil {
		return &domain.ErrMissingConfig{Key: "SUPABASE_URL"}
	}
	return nil
}

// ============================================================
// DeductCredits: POST /api/rpc/deduct-credits
// ============================================================

func (s *CreditsService) DeductCredits(ctx context.Context, caller *domain.Caller, req *domain.DeductCreditsRequest) (*domain.BalanceResult, error) {
	ctx, span := creditsTracer.Start(ctx, "CreditsService.DeductCredits")
	defer span.End()

	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	if math.IsNaN(req.Cost) || math.IsInf(req.Cost, 0) || req.Cost <= 0 {
		return nil, &domain.ErrValidation{Field: "cost", Message: "Cost must be a positive number"}
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, &domain.ErrValidation{Field: "reason", Message: "Reason is required"}
	}
	span.SetAttributes(
		attribute.Float64("credits.cost", req.Cost),
		attribute.String("credits.reason", reason),
	)

	balance, err := s.rpc.DeductCredits(ctx, caller.AccessToken, req.Cost, reason)
	if err != nil {
		s.logger.Warn("credits: deduct failed", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, err
	}

	s.metrics.AddCreditsDeducted(req.Cost)
	publishLedger(ctx, s.ledger, s.logger, &domain.LedgerEvent{
		ID:         uuid.NewString(),
		Type:       domain.LedgerDeduct,
		UserID:     caller.UserID,
		Amount:     req.Cost,
		Reason:     reason,
		NewBalance: balance,
		At:         s.now().UTC(),
	})
	return &domain.BalanceResult{NewBalance: balance}, nil
}

// ============================================================
// GrantSignupBonus: POST /api/rpc/grant-signup-bonus
// ============================================================

// GrantSignupBonus is safe to repeat; the stored procedure grants at most once.
func (s *CreditsService) GrantSignupBonus(ctx context.Context, caller *domain.Caller) (*domain.BalanceResult, error) {
	ctx, span := creditsTracer.Start(ctx, "CreditsService.GrantSignupBonus")
	defer span.End()

	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}

	balance, err := s.rpc.GrantSignupBonus(ctx, caller.AccessToken)
	if err != nil {
		s.logger.Warn("credits: signup bonus failed", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, err
	}

	s.metrics.IncrBonus()
	publishLedger(ctx, s.ledger, s.logger, &domain.LedgerEvent{
		ID:         uuid.NewString(),
		Type:       domain.LedgerBonus,
		UserID:     caller.UserID,
		NewBalance: balance,
		At:         s.now().UTC(),
	})
	return &domain.BalanceResult{NewBalance: balance}, nil
}

// ============================================================
// UpdateProfile: POST /api/rpc/update-profile
// ============================================================

// UpdateProfile renames the caller and reads the row back; it only succeeds
// once the stored name matches.
func (s *CreditsService) UpdateProfile(ctx context.Context, caller *domain.Caller, displayName string) (*domain.ProfileSnapshot, error) {
	ctx, span := creditsTracer.Start(ctx, "CreditsService.UpdateProfile")
	defer span.End()

	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "p_display_name", Message: "Display name is required"}
	}

	if err := s.rpc.UpdateProfile(ctx, caller.AccessToken, name); err != nil {
		return nil, err
	}

	snap, err := s.rpc.GetOwnProfile(ctx, caller.AccessToken, caller.UserID)
	if err != nil {
		return nil, err
	}
	if snap.DisplayName == nil || *snap.DisplayName != name {
		s.logger.Warn("credits: profile read-back mismatch", zap.String("user_id", caller.UserID))
		return nil, &domain.ErrRPC{Function: "update_profile", Message: "Profile update could not be confirmed"}
	}
	return snap, nil
}

// ============================================================
// Profile: GET /api/rpc/profile
// ============================================================

func (s *CreditsService) Profile(ctx context.Context, caller *domain.Caller) (*domain.ProfileSnapshot, error) {
	ctx, span := creditsTracer.Start(ctx, "CreditsService.Profile")
	defer span.End()

	if err := s.requireCaller(caller); err != nil {
		return nil, err
	}
	return s.rpc.GetOwnProfile(ctx, caller.AccessToken, caller.UserID)
}
