package handler

import (
	"net/http"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// One-time codes
// ============================================================

func sendOTPHandler(otpSvc *service.OTPService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/send-otp")
		defer span.End()

		var req domain.SendOTPRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		resp, err := otpSvc.Send(ctx, &req, clientIP(r))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeOK(w, http.StatusOK, resp)
	}
}

func verifyOTPHandler(otpSvc *service.OTPService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/verify-otp")
		defer span.End()

		var req domain.VerifyOTPRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := otpSvc.Verify(ctx, req.Email, req.Code); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeOK(w, http.StatusOK, domain.VerifyOTPResponse{Verified: true})
	}
}
