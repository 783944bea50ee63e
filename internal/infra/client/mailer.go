// Package client holds outbound HTTP clients for third-party services.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

// mailPayload is the JSON posted to the mail webhook.
type mailPayload struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Text      string `json:"text"`
	Code      string `json:"code"`
	ExpiresIn int    `json:"expires_in"`
	RequestID string `json:"request_id"`
}

// WebhookMailer delivers OTP codes through a transactional mail webhook.
type WebhookMailer struct {
	httpClient *http.Client
	url        string
	token      string
	from       string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewWebhookMailer creates a new WebhookMailer.
func NewWebhookMailer(httpClient *http.Client, url, token, from string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *WebhookMailer {
	return &WebhookMailer{
		httpClient: httpClient,
		url:        url,
		token:      token,
		from:       from,
		cb:         cb,
		cfg:        cfg,
	}
}

// SendOTP posts the code to the webhook with retry, circuit breaker, and tracing.
func (m *WebhookMailer) SendOTP(ctx context.Context, msg *domain.OTPMessage) error {
	ctx, span := tracer.Start(ctx, "WebhookMailer.SendOTP")
	defer span.End()
	span.SetAttributes(attribute.String("otp.request_id", msg.RequestID))

	minutes := int(msg.ExpiresIn.Minutes())
	body, err := json.Marshal(mailPayload{
		From:      m.from,
		To:        msg.To,
		Subject:   "Your Voicerly verification code",
		Text:      fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", msg.Code, minutes),
		Code:      msg.Code,
		ExpiresIn: int(msg.ExpiresIn.Seconds()),
		RequestID: msg.RequestID,
	})
	if err != nil {
		return err
	}

	_, err = m.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, m.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Content-Type", "application/json")
			// same key on every retry
			req.Header.Set("Idempotency-Key", msg.RequestID)
			if m.token != "" {
				req.Header.Set("Authorization", "Bearer "+m.token)
			}

			resp, err := m.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return resilience.Permanent(fmt.Errorf("mail webhook returned status %d", resp.StatusCode))
			}
			if resp.StatusCode >= 300 {
				return fmt.Errorf("mail webhook returned status %d", resp.StatusCode)
			}
			return nil
		})
	})
	if resilience.IsOpen(err) {
		return &domain.ErrCircuitOpen{Service: "mail"}
	}
	if err != nil {
		return &domain.ErrExternalService{Service: "mail", Err: err}
	}
	return nil
}

// LogMailer writes codes to the log instead of sending them. Development only.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendOTP(_ context.Context, msg *domain.OTPMessage) error {
	m.logger.Debug("mail: otp code (log mailer)",
		zap.String("to", msg.To),
		zap.String("code", msg.Code),
		zap.String("request_id", msg.RequestID),
	)
	return nil
}
