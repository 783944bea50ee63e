package handler

import (
	"net/http"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Authentication
// ============================================================

func signupHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/signup")
		defer span.End()

		var req domain.SignupRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := authSvc.Signup(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeOK(w, http.StatusCreated, resp)
	}
}

func loginWithPasswordHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/login-with-password")
		defer span.End()

		var req domain.PasswordLoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := authSvc.LoginWithPassword(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeOK(w, http.StatusOK, resp)
	}
}

func loginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/login")
		defer span.End()

		var req domain.PasswordLoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeOK(w, http.StatusOK, resp)
	}
}

func resetPasswordHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/auth/reset-password")
		defer span.End()

		var req domain.ResetPasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := authSvc.ResetPassword(ctx, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeOK(w, http.StatusOK, struct{}{})
	}
}

// ============================================================
// Admin
// ============================================================

func adminCreateUserHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/admin/create-user")
		defer span.End()

		var req domain.AdminCreateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user, err := authSvc.AdminCreateUser(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		status := http.StatusOK
		if user.Created {
			status = http.StatusCreated
		}
		writeOK(w, status, user)
	}
}
