package supabase

import (
	"context"
	"net/http"
	"strings"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
	"go.uber.org/zap"
)

// AuthAdapter implements port.AuthProvider on top of Supabase Auth (GoTrue).
type AuthAdapter struct {
	public gotrue.Client
	admin  gotrue.Client
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewAuthAdapter builds GoTrue clients against <supabaseURL>/auth/v1. Sign-in
// uses the anon key; admin calls carry the service role key as bearer.
func NewAuthAdapter(httpClient *http.Client, supabaseURL, anonKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *AuthAdapter {
	authURL := strings.TrimRight(supabaseURL, "/") + "/auth/v1"

	public := gotrue.New("", anonKey).WithCustomGoTrueURL(authURL)
	admin := gotrue.New("", serviceRoleKey).WithCustomGoTrueURL(authURL).WithToken(serviceRoleKey)
	if httpClient != nil {
		public = public.WithClient(*httpClient)
		admin = admin.WithClient(*httpClient)
	}

	return &AuthAdapter{public: public, admin: admin, cb: cb, logger: logger}
}

// isClientError reports whether a gotrue-go error carries a 4xx status.
func isClientError(err error) bool {
	msg := err.Error()
	for _, code := range []string{"400", "401", "403", "404", "422"} {
		if strings.Contains(msg, "status code "+code) || strings.Contains(msg, "status "+code) {
			return true
		}
	}
	return false
}

func (a *AuthAdapter) run(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := a.cb.Execute(func() (any, error) {
		res, err := fn()
		if err != nil && isClientError(err) {
			return nil, resilience.Permanent(err)
		}
		return res, err
	})
	if resilience.IsOpen(err) {
		return nil, &domain.ErrCircuitOpen{Service: "supabase-auth"}
	}
	return res, err
}

// SignIn exchanges email and password for an access token.
func (a *AuthAdapter) SignIn(ctx context.Context, email, password string) (*domain.TokenLoginResponse, error) {
	ctx, span := tracer.Start(ctx, "SupabaseAuth.SignIn")
	defer span.End()

	res, err := a.run(ctx, func() (any, error) {
		return a.public.SignInWithEmailPassword(email, password)
	})
	if err != nil {
		if resilience.IsPermanent(err) {
			return nil, &domain.ErrUnauthorized{Message: "Invalid email or password"}
		}
		if _, open := err.(*domain.ErrCircuitOpen); open {
			return nil, err
		}
		a.logger.Error("supabase-auth: sign in failed", zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "supabase/auth", Err: err}
	}

	tok := res.(*types.TokenResponse)
	if tok.AccessToken == "" {
		return nil, &domain.ErrUnauthorized{Message: "Invalid email or password"}
	}

	return &domain.TokenLoginResponse{
		AccessToken: tok.AccessToken,
		UserID:      tok.User.ID.String(),
		Email:       tok.User.Email,
	}, nil
}

// AdminCreateUser creates a confirmed user, or returns the existing one.
func (a *AuthAdapter) AdminCreateUser(ctx context.Context, email, password string) (*domain.AdminUser, error) {
	ctx, span := tracer.Start(ctx, "SupabaseAuth.AdminCreateUser")
	defer span.End()

	existing, err := a.findUser(ctx, email)
	if err != nil {
		return nil, a.adminError(err)
	}
	if existing != nil {
		return existing, nil
	}

	pw := password
	created, err := a.run(ctx, func() (any, error) {
		return a.admin.AdminCreateUser(types.AdminCreateUserRequest{
			Email:        email,
			Password:     &pw,
			EmailConfirm: true,
		})
	})
	if err != nil {
		// The list call only sees the first page, so the user can still exist.
		if isAlreadyRegistered(err) {
			a.logger.Info("supabase-auth: user already registered")
			return &domain.AdminUser{Email: email, Created: false}, nil
		}
		return nil, a.adminError(err)
	}

	u := created.(*types.AdminCreateUserResponse)
	a.logger.Info("supabase-auth: user created", zap.String("user_id", u.ID.String()))
	return &domain.AdminUser{ID: u.ID.String(), Email: u.Email, Created: true}, nil
}

// findUser scans the first page of auth users for email.
func (a *AuthAdapter) findUser(ctx context.Context, email string) (*domain.AdminUser, error) {
	listed, err := a.run(ctx, func() (any, error) {
		return a.admin.AdminListUsers()
	})
	if err != nil {
		return nil, err
	}
	for _, u := range listed.(*types.AdminListUsersResponse).Users {
		if strings.EqualFold(u.Email, email) {
			return &domain.AdminUser{ID: u.ID.String(), Email: u.Email, Created: false}, nil
		}
	}
	return nil, nil
}

// isAlreadyRegistered matches GoTrue's 422 for a duplicate email.
func isAlreadyRegistered(err error) bool {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "status code 422") {
		return false
	}
	return strings.Contains(msg, "email_exists") || strings.Contains(msg, "already been registered") ||
		strings.Contains(msg, "already registered")
}

func (a *AuthAdapter) adminError(err error) error {
	if _, open := err.(*domain.ErrCircuitOpen); open {
		return err
	}
	a.logger.Error("supabase-auth: admin call failed", zap.Error(err))
	return &domain.ErrExternalService{Service: "supabase/auth-admin", Err: err}
}
