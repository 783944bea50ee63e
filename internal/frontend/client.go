package frontend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
)

// ErrNotAuthenticated is returned by credit calls when no session is stored.
var ErrNotAuthenticated = errors.New("not authenticated")

// Client talks to the BFF's JSON routes.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions SessionStore
}

// NewClient creates a client for baseURL (for example NEXT_PUBLIC_API_BASE).
// A nil httpClient gets a 30 s timeout; a nil store keeps the session in memory.
func NewClient(baseURL string, httpClient *http.Client, store SessionStore) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		sessions: store,
	}
}

func (c *Client) url(path string) string { return c.baseURL + path }

// Session returns the stored session, or nil.
func (c *Client) Session() (*Session, error) { return c.sessions.Load() }

func (c *Client) token() (string, error) {
	s, err := c.sessions.Load()
	if err != nil {
		return "", err
	}
	if s == nil || s.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	return s.AccessToken, nil
}

// ============================================================
// OTP
// ============================================================

func (c *Client) SendOTP(ctx context.Context, email, turnstileToken string) (*domain.SendOTPResponse, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	resp, err := PostJSON[domain.SendOTPResponse](ctx, c.http, c.url("/api/send-otp"), "",
		domain.SendOTPRequest{Email: email, TurnstileToken: turnstileToken})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) VerifyOTP(ctx context.Context, email, code string) error {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if !domain.ValidOTPCode(code) {
		return &domain.ErrValidation{Field: "code", Message: "Code must be 6 digits"}
	}
	_, err := PostJSON[domain.VerifyOTPResponse](ctx, c.http, c.url("/api/verify-otp"), "",
		domain.VerifyOTPRequest{Email: email, Code: code})
	return err
}

// ============================================================
// Accounts
// ============================================================

// Signup creates a password account and stores a token-less session for it.
func (c *Client) Signup(ctx context.Context, req *domain.SignupRequest) (*domain.PublicUser, error) {
	body := *req
	body.Email = domain.NormalizeEmail(body.Email)
	if err := checkAccount(body.Email, body.Password, "password", body.Code); err != nil {
		return nil, err
	}
	resp, err := PostJSON[domain.UserResponse](ctx, c.http, c.url("/api/auth/signup"), "", body)
	if err != nil {
		return nil, err
	}
	return c.rememberUser(&resp.User)
}

// LoginWithPassword checks the password against the profiles table.
func (c *Client) LoginWithPassword(ctx context.Context, email, password string) (*domain.PublicUser, error) {
	req, err := loginRequest(email, password)
	if err != nil {
		return nil, err
	}
	resp, err := PostJSON[domain.UserResponse](ctx, c.http, c.url("/api/auth/login-with-password"), "", req)
	if err != nil {
		return nil, err
	}
	return c.rememberUser(&resp.User)
}

// Login signs in with the hosted auth service and stores the access token
// used by the credit calls.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	req, err := loginRequest(email, password)
	if err != nil {
		return nil, err
	}
	resp, err := PostJSON[domain.TokenLoginResponse](ctx, c.http, c.url("/api/auth/login"), "", req)
	if err != nil {
		return nil, err
	}
	s := &Session{AccessToken: resp.AccessToken, UserID: resp.UserID, Email: resp.Email}
	if err := c.sessions.Save(s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

func (c *Client) ResetPassword(ctx context.Context, req *domain.ResetPasswordRequest) error {
	body := *req
	body.Email = domain.NormalizeEmail(body.Email)
	if err := checkAccount(body.Email, body.NewPassword, "newPassword", body.Code); err != nil {
		return err
	}
	_, err := PostJSON[struct{}](ctx, c.http, c.url("/api/auth/reset-password"), "", body)
	return err
}

// checkAccount applies the server's email and password rules before a
// signup or reset leaves the process. An optional inline code must be
// well formed.
func checkAccount(email, password, passwordField, code string) error {
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	if err := domain.ValidatePassword(password); err != nil {
		return &domain.ErrValidation{Field: passwordField, Message: err.Error()}
	}
	if code = strings.TrimSpace(code); code != "" && !domain.ValidOTPCode(code) {
		return &domain.ErrValidation{Field: "code", Message: "Code must be 6 digits"}
	}
	return nil
}

func loginRequest(email, password string) (domain.PasswordLoginRequest, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmail(email); err != nil {
		return domain.PasswordLoginRequest{}, err
	}
	if password == "" {
		return domain.PasswordLoginRequest{}, &domain.ErrValidation{Field: "password", Message: "Password is required"}
	}
	return domain.PasswordLoginRequest{Email: email, Password: password}, nil
}

// Logout forgets the stored session.
func (c *Client) Logout() error { return c.sessions.Clear() }

func (c *Client) rememberUser(u *domain.PublicUser) (*domain.PublicUser, error) {
	s, err := c.sessions.Load()
	if err != nil {
		return nil, err
	}
	if s == nil || s.UserID != u.ID {
		s = &Session{UserID: u.ID, Email: u.Email}
	}
	s.User = u
	if err := c.sessions.Save(s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return u, nil
}

// ============================================================
// Credits
// ============================================================

// DeductCredits spends cost credits and returns the new balance.
func (c *Client) DeductCredits(ctx context.Context, cost float64, reason string) (int64, error) {
	tok, err := c.token()
	if err != nil {
		return 0, err
	}
	reason = strings.TrimSpace(reason)
	if math.IsNaN(cost) || math.IsInf(cost, 0) || cost <= 0 {
		return 0, &domain.ErrValidation{Field: "cost", Message: "Cost must be a positive number"}
	}
	if reason == "" {
		return 0, &domain.ErrValidation{Field: "reason", Message: "Reason is required"}
	}

	res, err := PostJSON[domain.BalanceResult](ctx, c.http, c.url("/api/rpc/deduct-credits"), tok,
		domain.DeductCreditsRequest{Cost: cost, Reason: reason})
	if err != nil {
		return 0, err
	}
	return res.NewBalance, nil
}

// GrantSignupBonus is safe to call on every sign-in.
func (c *Client) GrantSignupBonus(ctx context.Context) (int64, error) {
	tok, err := c.token()
	if err != nil {
		return 0, err
	}
	res, err := PostJSON[domain.BalanceResult](ctx, c.http, c.url("/api/rpc/grant-signup-bonus"), tok, struct{}{})
	if err != nil {
		return 0, err
	}
	return res.NewBalance, nil
}

// UpdateProfile renames the signed-in user; the server confirms by reading
// the row back.
func (c *Client) UpdateProfile(ctx context.Context, displayName string) (*domain.ProfileSnapshot, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "p_display_name", Message: "Display name is required"}
	}
	snap, err := PostJSON[domain.ProfileSnapshot](ctx, c.http, c.url("/api/rpc/update-profile"), tok,
		domain.UpdateProfileRequest{PDisplayName: name})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Profile reads the signed-in user's display name and balance.
func (c *Client) Profile(ctx context.Context) (*domain.ProfileSnapshot, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	snap, err := GetJSON[domain.ProfileSnapshot](ctx, c.http, c.url("/api/rpc/profile"), tok)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
