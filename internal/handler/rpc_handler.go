package handler

import (
	"net/http"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Credit RPCs (Bearer-authenticated)
// ============================================================

func deductCreditsHandler(creditsSvc *service.CreditsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/rpc/deduct-credits")
		defer span.End()

		var req domain.DeductCreditsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		res, err := creditsSvc.DeductCredits(ctx, CallerFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeOK(w, http.StatusOK, res)
	}
}

func grantSignupBonusHandler(creditsSvc *service.CreditsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/rpc/grant-signup-bonus")
		defer span.End()

		res, err := creditsSvc.GrantSignupBonus(ctx, CallerFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeOK(w, http.StatusOK, res)
	}
}

func updateProfileHandler(creditsSvc *service.CreditsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/rpc/update-profile")
		defer span.End()

		var req domain.UpdateProfileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		snap, err := creditsSvc.UpdateProfile(ctx, CallerFromContext(ctx), req.Name())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeOK(w, http.StatusOK, snap)
	}
}

func profileHandler(creditsSvc *service.CreditsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/rpc/profile")
		defer span.End()

		snap, err := creditsSvc.Profile(ctx, CallerFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeOK(w, http.StatusOK, snap)
	}
}
