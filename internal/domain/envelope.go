package domain

// ============================================================
// Response envelope shared by every route handler and the Go client.
// ============================================================

// Error codes carried in Envelope.Error.Code.
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInvalidCode         = "INVALID_CODE"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeCooldown            = "COOLDOWN"
	CodeRateLimited         = "RATE_LIMITED"
	CodeRPC                 = "RPC_ERROR"
	CodeUpstream            = "UPSTREAM_ERROR"
	CodeUpstreamUnreachable = "UPSTREAM_UNREACHABLE"
	CodeConfigMissing       = "CONFIG_MISSING"
	CodeUnavailable         = "SERVICE_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// Envelope is the single response shape: {ok, data?, error?}.
type Envelope[T any] struct {
	OK    bool      `json:"ok"`
	Data  T         `json:"data,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

// APIError is the error half of the envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Ok builds a success envelope.
func Ok[T any](data T) Envelope[T] {
	return Envelope[T]{OK: true, Data: data}
}

// Err builds a failure envelope.
func Err(code, message string) Envelope[any] {
	return Envelope[any]{OK: false, Error: &APIError{Code: code, Message: message}}
}
