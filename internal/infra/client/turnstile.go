package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// TurnstileVerifyURL is Cloudflare's siteverify endpoint.
const TurnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

type turnstileResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

// TurnstileVerifier checks captcha tokens with Cloudflare Turnstile.
type TurnstileVerifier struct {
	httpClient *http.Client
	verifyURL  string
	secret     string
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewTurnstileVerifier creates a verifier; an empty verifyURL uses Cloudflare's.
func NewTurnstileVerifier(httpClient *http.Client, verifyURL, secret string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *TurnstileVerifier {
	if verifyURL == "" {
		verifyURL = TurnstileVerifyURL
	}
	return &TurnstileVerifier{
		httpClient: httpClient,
		verifyURL:  verifyURL,
		secret:     secret,
		cb:         cb,
		logger:     logger,
	}
}

// Verify returns *domain.ErrValidation when the token is missing or rejected.
// Tokens are single-use, so the call is never retried.
func (v *TurnstileVerifier) Verify(ctx context.Context, token, remoteIP string) error {
	ctx, span := tracer.Start(ctx, "Turnstile.Verify")
	defer span.End()

	if strings.TrimSpace(token) == "" {
		return &domain.ErrValidation{Field: "turnstileToken", Message: "Captcha verification required"}
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	res, err := v.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := v.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("turnstile returned status %d", resp.StatusCode)
		}
		var out turnstileResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode turnstile response: %w", err)
		}
		return &out, nil
	})
	if resilience.IsOpen(err) {
		return &domain.ErrCircuitOpen{Service: "turnstile"}
	}
	if err != nil {
		return &domain.ErrExternalService{Service: "turnstile", Err: err}
	}

	out := res.(*turnstileResponse)
	if !out.Success {
		v.logger.Warn("turnstile: token rejected", zap.Strings("error_codes", out.ErrorCodes))
		return &domain.ErrValidation{Field: "turnstileToken", Message: "Captcha verification failed"}
	}
	return nil
}
