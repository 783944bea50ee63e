package frontend

import (
	"strings"

	"github.com/voicerly/voicerly-bff/internal/domain"
)

// SignupForm mirrors the signup page. Verified is true once the OTP flow for
// Email has succeeded.
type SignupForm struct {
	Email       string
	Password    string
	Confirm     string
	DisplayName string
	Code        string
	Verified    bool
}

// Validate checks the form before anything is sent. With requireOTP the email
// must already be verified and a six digit code entered.
func (f *SignupForm) Validate(requireOTP bool) error {
	email := domain.NormalizeEmail(f.Email)
	if err := domain.ValidateEmail(email); err != nil {
		return err
	}
	if err := domain.ValidatePassword(f.Password); err != nil {
		return err
	}
	if f.Password != f.Confirm {
		return &domain.ErrValidation{Field: "confirm", Message: "Passwords do not match"}
	}
	if requireOTP {
		if !f.Verified {
			return &domain.ErrValidation{Field: "code", Message: "Please verify your email first"}
		}
		if !domain.ValidOTPCode(f.Code) {
			return &domain.ErrValidation{Field: "code", Message: "Code must be 6 digits"}
		}
	}
	return nil
}

// Request builds the signup body.
func (f *SignupForm) Request() *domain.SignupRequest {
	return &domain.SignupRequest{
		Email:       domain.NormalizeEmail(f.Email),
		Password:    f.Password,
		DisplayName: strings.TrimSpace(f.DisplayName),
		Code:        f.Code,
	}
}

type LoginForm struct {
	Email    string
	Password string
}

func (f *LoginForm) Validate() error {
	if err := domain.ValidateEmail(domain.NormalizeEmail(f.Email)); err != nil {
		return err
	}
	if f.Password == "" {
		return &domain.ErrValidation{Field: "password", Message: "Password is required"}
	}
	return nil
}

// ResetForm mirrors the forgot-password page.
type ResetForm struct {
	Email       string
	NewPassword string
	Confirm     string
	Code        string
	Verified    bool
}

func (f *ResetForm) Validate(requireOTP bool) error {
	if err := domain.ValidateEmail(domain.NormalizeEmail(f.Email)); err != nil {
		return err
	}
	if err := domain.ValidatePassword(f.NewPassword); err != nil {
		return &domain.ErrValidation{Field: "newPassword", Message: err.Error()}
	}
	if f.NewPassword != f.Confirm {
		return &domain.ErrValidation{Field: "confirm", Message: "Passwords do not match"}
	}
	if requireOTP && (!f.Verified || !domain.ValidOTPCode(f.Code)) {
		return &domain.ErrValidation{Field: "code", Message: "Please verify your email first"}
	}
	return nil
}

func (f *ResetForm) Request() *domain.ResetPasswordRequest {
	return &domain.ResetPasswordRequest{
		Email:       domain.NormalizeEmail(f.Email),
		NewPassword: f.NewPassword,
		Code:        f.Code,
	}
}
