package domain

import (
	"fmt"
	"time"
)

// Error types for consistent error handling across the BFF.
// Each one maps to exactly one HTTP status and envelope code in the handler layer.

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Message
}

// ErrUnauthorized indicates invalid credentials or a missing/invalid bearer token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrInvalidCode indicates an invalid or expired verification code.
type ErrInvalidCode struct{}

func (e *ErrInvalidCode) Error() string {
	return "Invalid or expired verification code"
}

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	if e.Resource == "user" {
		return "User not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConflict indicates a resource already exists (e.g. duplicate email).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrCooldown is returned while a resend cooldown is still running.
type ErrCooldown struct {
	Remaining time.Duration
}

func (e *ErrCooldown) Error() string {
	secs := int(e.Remaining.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("Please wait %ds before requesting another code", secs)
}

// ErrRateLimited indicates the caller exceeded the per-client request budget.
type ErrRateLimited struct{}

func (e *ErrRateLimited) Error() string {
	return "Too many requests, please slow down"
}

// ErrRPC indicates a stored procedure call was rejected by the backend.
type ErrRPC struct {
	Function string
	Message  string
}

func (e *ErrRPC) Error() string {
	return e.Message
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrMissingConfig indicates a required configuration value is not set.
type ErrMissingConfig struct {
	Key string
}

func (e *ErrMissingConfig) Error() string {
	return fmt.Sprintf("%s is not set", e.Key)
}

// ErrUpstreamUnreachable indicates the proxy could not reach its backend at all.
type ErrUpstreamUnreachable struct {
	Err error
}

func (e *ErrUpstreamUnreachable) Error() string {
	return fmt.Sprintf("Upstream fetch error: %v", e.Err)
}

func (e *ErrUpstreamUnreachable) Unwrap() error {
	return e.Err
}
