package domain

import "time"

// ============================================================
// Credit ledger (stored procedures on the backend)
// ============================================================

// DeductCreditsRequest is the body of POST /api/rpc/deduct-credits.
type DeductCreditsRequest struct {
	Cost   float64 `json:"cost"`
	Reason string  `json:"reason"`
}

// UpdateProfileRequest is the body of POST /api/rpc/update-profile.
// DisplayName is accepted as an alias of PDisplayName.
type UpdateProfileRequest struct {
	PDisplayName string `json:"p_display_name"`
	DisplayName  string `json:"displayName,omitempty"`
}

// Name returns whichever display name field was supplied.
func (r *UpdateProfileRequest) Name() string {
	if r.PDisplayName != "" {
		return r.PDisplayName
	}
	return r.DisplayName
}

// BalanceResult is returned by deduct_credits and grant_signup_bonus.
type BalanceResult struct {
	NewBalance int64 `json:"new_balance"`
}

// ProfileSnapshot is the read-back of the caller's own profile row.
type ProfileSnapshot struct {
	DisplayName *string `json:"display_name"`
	Credits     int64   `json:"credits"`
}

// Ledger event types.
const (
	LedgerSignup = "signup"
	LedgerDeduct = "deduct"
	LedgerBonus  = "bonus"
)

// LedgerEvent is published after every successful balance mutation.
type LedgerEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	NewBalance int64     `json:"new_balance"`
	At         time.Time `json:"at"`
}

// Caller identifies the authenticated user behind a Bearer token.
type Caller struct {
	UserID      string
	Email       string
	AccessToken string
}
