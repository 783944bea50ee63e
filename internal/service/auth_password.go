package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/voicerly/voicerly-bff/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================
// ResetPassword: POST /api/auth/reset-password
// ============================================================

func (s *AuthService) ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error {
	ctx, span := authTracer.Start(ctx, "AuthService.ResetPassword")
	defer span.End()

	email := domain.NormalizeEmail(req.Email)
	password := req.NewPassword
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	if err := domain.ValidatePassword(password); err != nil {
		var v *domain.ErrValidation
		if errors.As(err, &v) {
			v.Field = "newPassword"
		}
		return err
	}

	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get profile: %w", err)
	}
	if profile == nil {
		return &domain.ErrNotFound{Resource: "user", ID: email}
	}

	if err := s.otpGate(ctx, email, req.Code, s.opts.RequireResetOTP); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.profiles.UpdatePasswordHash(ctx, email, string(hash)); err != nil {
		var nf *domain.ErrNotFound
		if errors.As(err, &nf) {
			return err
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.logger.Info("password reset completed", zap.String("user_id", profile.ID))
	return nil
}
