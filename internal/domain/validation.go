package domain

import (
	"regexp"
	"strings"
)

// OTPLength is the number of digits in a verification code.
const OTPLength = 6

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	otpPattern   = regexp.MustCompile(`^\d{6}$`)
)

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email looks like local@domain.tld.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidatePassword enforces length >= 8 with at least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &ErrValidation{Field: "password", Message: "Password must be at least 8 characters"}
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return &ErrValidation{Field: "password", Message: "Password must contain letters and numbers"}
	}
	return nil
}

// ValidateEmail returns an ErrValidation for malformed addresses.
func ValidateEmail(email string) error {
	if email == "" {
		return &ErrValidation{Field: "email", Message: "Email is required"}
	}
	if !ValidEmail(email) {
		return &ErrValidation{Field: "email", Message: "Invalid email format"}
	}
	return nil
}

// ValidOTPCode reports whether code is exactly six ASCII digits.
func ValidOTPCode(code string) bool {
	return otpPattern.MatchString(code)
}

// SanitizeOTPInput drops every non-digit and keeps at most six digits.
func SanitizeOTPInput(input string) string {
	var b strings.Builder
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == OTPLength {
				break
			}
		}
	}
	return b.String()
}
