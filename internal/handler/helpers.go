package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeOK wraps data in a success envelope.
func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, domain.Ok(data))
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, domain.Err(code, msg))
}

// decodeJSON reads at most 1 MiB into dst. An empty body leaves dst zeroed
// and unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &domain.ErrValidation{Field: "body", Message: "Request body too large"}
	}
	return &domain.ErrValidation{Field: "body", Message: "Invalid JSON body"}
}

func retryAfter(w http.ResponseWriter, d time.Duration) {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var invalidCode *domain.ErrInvalidCode
	var notFound *domain.ErrNotFound
	var conflict *domain.ErrConflict
	var cooldown *domain.ErrCooldown
	var rateLimited *domain.ErrRateLimited
	var rpcErr *domain.ErrRPC
	var circuitOpen *domain.ErrCircuitOpen
	var missingConfig *domain.ErrMissingConfig
	var unreachable *domain.ErrUpstreamUnreachable
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("field", validation.Field), zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, domain.CodeValidation, validation.Message)
	case errors.As(err, &invalidCode):
		logger.Warn("invalid verification code")
		writeError(w, http.StatusUnauthorized, domain.CodeInvalidCode, invalidCode.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, domain.CodeUnauthorized, unauthorized.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, domain.CodeNotFound, notFound.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, domain.CodeConflict, conflict.Error())
	case errors.As(err, &cooldown):
		retryAfter(w, cooldown.Remaining)
		writeError(w, http.StatusTooManyRequests, domain.CodeCooldown, cooldown.Error())
	case errors.As(err, &rateLimited):
		retryAfter(w, time.Second)
		writeError(w, http.StatusTooManyRequests, domain.CodeRateLimited, rateLimited.Error())
	case errors.As(err, &rpcErr):
		logger.Warn("rpc rejected", zap.String("function", rpcErr.Function), zap.String("error", rpcErr.Message))
		writeError(w, http.StatusInternalServerError, domain.CodeRPC, rpcErr.Message)
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, domain.CodeUnavailable, "Service temporarily unavailable, please retry shortly")
	case errors.As(err, &missingConfig):
		logger.Error("missing configuration", zap.String("key", missingConfig.Key))
		writeError(w, http.StatusInternalServerError, domain.CodeConfigMissing, missingConfig.Error())
	case errors.As(err, &unreachable):
		logger.Error("upstream unreachable", zap.Error(err))
		writeError(w, http.StatusBadGateway, domain.CodeUpstreamUnreachable, unreachable.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusInternalServerError, domain.CodeUpstream, "Upstream service error ("+external.Service+")")
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, domain.CodeInternal, "internal server error")
	}
}
