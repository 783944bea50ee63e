package service

import (
	"context"
	"fmt"

	"github.com/voicerly/voicerly-bff/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "Invalid email or password"

// ============================================================
// LoginWithPassword: POST /api/auth/login-with-password
// ============================================================

// LoginWithPassword checks the bcrypt hash in the profiles table. Unknown
// emails and wrong passwords produce the same error.
func (s *AuthService) LoginWithPassword(ctx context.Context, req *domain.PasswordLoginRequest) (*domain.UserResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.LoginWithPassword")
	defer span.End()

	email := domain.NormalizeEmail(req.Email)
	password := req.Password
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &domain.ErrValidation{Field: "password", Message: "Password is required"}
	}

	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if profile == nil || profile.PasswordHash == "" {
		return nil, &domain.ErrUnauthorized{Message: invalidCredentials}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("login: wrong password", zap.String("user_id", profile.ID))
		return nil, &domain.ErrUnauthorized{Message: invalidCredentials}
	}

	span.SetAttributes(attribute.String("user.id", profile.ID))
	s.logger.Info("user logged in", zap.String("user_id", profile.ID))
	return &domain.UserResponse{User: profile.Public()}, nil
}

// ============================================================
// Login: POST /api/auth/login (GoTrue password grant)
// ============================================================

func (s *AuthService) Login(ctx context.Context, req *domain.PasswordLoginRequest) (*domain.TokenLoginResponse, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	email := domain.NormalizeEmail(req.Email)
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if req.Password == "" {
		return nil, &domain.ErrValidation{Field: "password", Message: "Password is required"}
	}
	if s.provider == nil {
		return nil, &domain.ErrMissingConfig{Key: "SUPABASE_URL"}
	}

	resp, err := s.provider.SignIn(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", resp.UserID))
	return resp, nil
}

// ============================================================
// AdminCreateUser: POST /api/admin/create-user
// ============================================================

func (s *AuthService) AdminCreateUser(ctx context.Context, req *domain.AdminCreateUserRequest) (*domain.AdminUser, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.AdminCreateUser")
	defer span.End()

	email := domain.NormalizeEmail(req.Email)
	password := req.Password
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, &domain.ErrMissingConfig{Key: "SUPABASE_SERVICE_ROLE_KEY"}
	}

	user, err := s.provider.AdminCreateUser(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin: auth user ensured",
		zap.String("user_id", user.ID),
		zap.Bool("created", user.Created),
	)
	return user, nil
}
