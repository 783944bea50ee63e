package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// ProfileStore implementation: profiles table via PostgREST
// ============================================================

const profileColumns = "id,email,password_hash,display_name,credits,created_at"

// profileRow maps the profiles table columns.
type profileRow struct {
	ID           string  `json:"id"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"password_hash"`
	DisplayName  *string `json:"display_name"`
	Credits      *int64  `json:"credits"`
	CreatedAt    string  `json:"created_at"`
}

func (r *profileRow) toDomain() *domain.Profile {
	p := &domain.Profile{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		DisplayName:  r.DisplayName,
	}
	if r.Credits != nil {
		p.Credits = *r.Credits
	}
	if t, err := time.Parse(time.RFC3339Nano, r.CreatedAt); err == nil {
		p.CreatedAt = t
	}
	return p
}

func decodeFirstProfile(body []byte) (*domain.Profile, error) {
	if isEmpty(body) {
		return nil, nil
	}
	var rows []profileRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode profiles: %w", err))
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

// GetByEmail looks a profile up by its normalized email.
func (c *Client) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfileByEmail")
	defer span.End()

	var profile *domain.Profile
	err := c.execute(ctx, true, func() error {
		path := fmt.Sprintf("profiles?select=%s&email=eq.%s&limit=1", profileColumns, url.QueryEscape(email))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		profile, err = decodeFirstProfile(body)
		return err
	})
	if err != nil {
		return nil, storeError("supabase/profiles", err)
	}
	return profile, nil
}

// Create inserts a new profile row.
func (c *Client) Create(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateProfile")
	defer span.End()
	span.SetAttributes(attribute.String("profile.id", p.ID))

	data := map[string]any{
		"id":            p.ID,
		"email":         p.Email,
		"password_hash": p.PasswordHash,
		"display_name":  p.DisplayName,
		"created_at":    p.CreatedAt.UTC().Format(time.RFC3339),
	}

	var created *domain.Profile
	err := c.execute(ctx, false, func() error {
		body, err := c.doPost(ctx, "profiles", data)
		if err != nil {
			if apiErr, ok := asAPIError(err); ok && (apiErr.Code == "23505" || apiErr.Status == 409) {
				return resilience.Permanent(&domain.ErrConflict{Message: "Email already registered"})
			}
			return err
		}
		created, err = decodeFirstProfile(body)
		return err
	})
	if err != nil {
		return nil, storeError("supabase/profiles", err)
	}
	if created == nil {
		created = p
	}
	return created, nil
}

// UpdatePasswordHash replaces the stored hash for email.
func (c *Client) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdatePasswordHash")
	defer span.End()

	err := c.execute(ctx, false, func() error {
		path := fmt.Sprintf("profiles?email=eq.%s", url.QueryEscape(email))
		body, err := c.doPatch(ctx, path, map[string]any{"password_hash": hash})
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "user", ID: email})
		}
		return nil
	})
	return storeError("supabase/profiles", err)
}

// Ping checks that the profiles table is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	_, err := c.doGet(ctx, "profiles?select=id&limit=1")
	return err
}
