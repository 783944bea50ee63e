package domain

import "time"

// ============================================================
// Profiles & authentication
// ============================================================

// Profile is a row of the profiles table. PasswordHash never leaves the server.
type Profile struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"password_hash,omitempty" db:"password_hash"`
	DisplayName  *string   `json:"display_name" db:"display_name"`
	Credits      int64     `json:"credits" db:"credits"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PublicUser is the user shape returned to the browser.
type PublicUser struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName *string `json:"display_name"`
	Credits     int64   `json:"credits"`
}

// Public strips server-only fields.
func (p *Profile) Public() PublicUser {
	return PublicUser{
		ID:          p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Credits:     p.Credits,
	}
}

// SignupRequest is the body of POST /api/auth/signup.
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
	Code        string `json:"code,omitempty"`
}

// PasswordLoginRequest is the body of POST /api/auth/login-with-password and /api/auth/login.
type PasswordLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordRequest is the body of POST /api/auth/reset-password.
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
	Code        string `json:"code,omitempty"`
}

// UserResponse wraps a PublicUser in the data field.
type UserResponse struct {
	User PublicUser `json:"user"`
}

// TokenLoginResponse is returned by the GoTrue-backed login.
type TokenLoginResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
}

// AdminCreateUserRequest is the body of POST /api/admin/create-user.
type AdminCreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AdminUser is the result of an admin user creation.
type AdminUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Created bool   `json:"created"`
}
