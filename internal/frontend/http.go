// Package frontend is a Go client for the BFF. It carries the flows the web
// UI runs in the browser: the OTP controller with its resend cooldown,
// credential validation, session storage, and the Bearer-authenticated
// credit calls.
package frontend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/voicerly/voicerly-bff/internal/domain"
)

// APIError is a failure envelope returned by the BFF.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// PostJSON POSTs body to url and decodes the envelope's data into T. A
// non-empty token is sent as a Bearer credential.
func PostJSON[T any](ctx context.Context, c *http.Client, url, token string, body any) (T, error) {
	return doJSON[T](ctx, c, http.MethodPost, url, token, body)
}

// GetJSON is PostJSON for GET routes.
func GetJSON[T any](ctx context.Context, c *http.Client, url, token string) (T, error) {
	return doJSON[T](ctx, c, http.MethodGet, url, token, nil)
}

func doJSON[T any](ctx context.Context, c *http.Client, method, url, token string, body any) (T, error) {
	var zero T

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return zero, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	var env domain.Envelope[T]
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return zero, &APIError{
			Status:  resp.StatusCode,
			Code:    domain.CodeInternal,
			Message: fmt.Sprintf("unexpected response (%d %s)", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}
	if !env.OK {
		apiErr := &APIError{Status: resp.StatusCode, Code: domain.CodeInternal, Message: http.StatusText(resp.StatusCode)}
		if env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return zero, apiErr
	}
	return env.Data, nil
}
