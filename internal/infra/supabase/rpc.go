package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// CreditsRPC implementation: stored procedures called with the
// caller's access token. Never the service role key.
// ============================================================

// Stored procedure names.
const (
	fnDeductCredits    = "deduct_credits"
	fnGrantSignupBonus = "grant_signup_bonus"
	fnUpdateProfile    = "update_profile"
)

func (c *Client) callRPC(ctx context.Context, accessToken, fn string, args map[string]any) ([]byte, error) {
	if args == nil {
		args = map[string]any{}
	}
	return c.doRequest(ctx, http.MethodPost, "rpc/"+fn, args, c.userCreds(accessToken), "")
}

type balanceRow struct {
	NewBalance *float64 `json:"new_balance"`
}

// parseBalance accepts [{"new_balance":N}], {"new_balance":N} or a bare N.
func parseBalance(body []byte) (int64, error) {
	b := bytes.TrimSpace(body)
	if len(b) == 0 {
		return 0, fmt.Errorf("empty rpc result")
	}

	var v *float64
	switch b[0] {
	case '[':
		var rows []balanceRow
		if err := json.Unmarshal(b, &rows); err != nil {
			return 0, fmt.Errorf("decode rpc result: %w", err)
		}
		if len(rows) > 0 {
			v = rows[0].NewBalance
		}
	case '{':
		var row balanceRow
		if err := json.Unmarshal(b, &row); err != nil {
			return 0, fmt.Errorf("decode rpc result: %w", err)
		}
		v = row.NewBalance
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return 0, fmt.Errorf("decode rpc result: %w", err)
		}
		v = &f
	}

	if v == nil {
		return 0, fmt.Errorf("rpc result has no new_balance")
	}
	return int64(math.Round(*v)), nil
}

func (c *Client) balanceRPC(ctx context.Context, accessToken, fn string, args map[string]any) (int64, error) {
	var balance int64
	err := c.execute(ctx, false, func() error {
		body, err := c.callRPC(ctx, accessToken, fn, args)
		if err != nil {
			return err
		}
		balance, err = parseBalance(body)
		if err != nil {
			return resilience.Permanent(err)
		}
		return nil
	})
	if err != nil {
		return 0, rpcError(fn, err)
	}
	return balance, nil
}

// DeductCredits calls deduct_credits and returns the new balance.
func (c *Client) DeductCredits(ctx context.Context, accessToken string, cost float64, reason string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Supabase.DeductCredits")
	defer span.End()
	span.SetAttributes(attribute.Float64("credits.cost", cost))

	return c.balanceRPC(ctx, accessToken, fnDeductCredits, map[string]any{
		"cost":   cost,
		"reason": reason,
	})
}

// GrantSignupBonus calls grant_signup_bonus; the procedure itself prevents double grants.
func (c *Client) GrantSignupBonus(ctx context.Context, accessToken string) (int64, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GrantSignupBonus")
	defer span.End()

	return c.balanceRPC(ctx, accessToken, fnGrantSignupBonus, nil)
}

// UpdateProfile calls update_profile with the new display name.
func (c *Client) UpdateProfile(ctx context.Context, accessToken, displayName string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProfile")
	defer span.End()

	err := c.execute(ctx, false, func() error {
		_, err := c.callRPC(ctx, accessToken, fnUpdateProfile, map[string]any{
			"p_display_name": displayName,
		})
		return err
	})
	return rpcError(fnUpdateProfile, err)
}

// GetOwnProfile reads the caller's display name and balance. Row level
// security scopes the query to the token owner; userID narrows it further
// when known.
func (c *Client) GetOwnProfile(ctx context.Context, accessToken, userID string) (*domain.ProfileSnapshot, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOwnProfile")
	defer span.End()

	path := "profiles?select=display_name,credits&limit=1"
	if userID != "" {
		path += "&id=eq." + url.QueryEscape(userID)
	}

	var snap *domain.ProfileSnapshot
	err := c.execute(ctx, true, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path, nil, c.userCreds(accessToken), "")
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "profile", ID: userID})
		}
		var rows []domain.ProfileSnapshot
		if err := json.Unmarshal(body, &rows); err != nil {
			return resilience.Permanent(fmt.Errorf("decode profile: %w", err))
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "profile", ID: userID})
		}
		snap = &rows[0]
		return nil
	})
	if err != nil {
		return nil, rpcError("profiles", err)
	}
	return snap, nil
}
