package domain

import "time"

// OTPRecord is a pending one-time code for an email address.
type OTPRecord struct {
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	Attempts  int       `json:"attempts"`
	RequestID string    `json:"request_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the code is past its expiry.
func (r *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// SendOTPRequest is the body of POST /api/send-otp.
type SendOTPRequest struct {
	Email          string `json:"email"`
	TurnstileToken string `json:"turnstileToken,omitempty"`
}

// SendOTPResponse tells the browser how long to wait before resending.
type SendOTPResponse struct {
	CooldownSeconds int `json:"cooldown_seconds"`
	ExpiresIn       int `json:"expires_in"`
}

// VerifyOTPRequest is the body of POST /api/verify-otp.
type VerifyOTPRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyOTPResponse confirms a successful verification.
type VerifyOTPResponse struct {
	Verified bool `json:"verified"`
}

// OTPMessage is handed to a Mailer for delivery.
type OTPMessage struct {
	To        string
	Code      string
	ExpiresIn time.Duration
	RequestID string
}
