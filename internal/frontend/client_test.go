package frontend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/frontend"
)

// fakeBFF serves just enough of the BFF for the client tests.
type fakeBFF struct {
	hits       atomic.Int32
	balance    int64
	bonusGiven bool
	name       *string
}

func (f *fakeBFF) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	write := func(w http.ResponseWriter, status int, env any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(env)
	}
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				write(w, http.StatusUnauthorized, domain.Err(domain.CodeUnauthorized, "Missing bearer token"))
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req domain.PasswordLoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret123" {
			write(w, http.StatusUnauthorized, domain.Err(domain.CodeUnauthorized, "Invalid email or password"))
			return
		}
		write(w, http.StatusOK, domain.Ok(domain.TokenLoginResponse{AccessToken: "tok-1", UserID: "u-1", Email: req.Email}))
	})
	mux.HandleFunc("POST /api/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		var req domain.SignupRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		write(w, http.StatusCreated, domain.Ok(domain.UserResponse{User: domain.PublicUser{ID: "u-2", Email: req.Email}}))
	})
	mux.HandleFunc("POST /api/rpc/deduct-credits", authed(func(w http.ResponseWriter, r *http.Request) {
		var req domain.DeductCreditsRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if int64(req.Cost) > f.balance {
			write(w, http.StatusInternalServerError, domain.Err(domain.CodeRPC, "Insufficient credits"))
			return
		}
		f.balance -= int64(req.Cost)
		write(w, http.StatusOK, domain.Ok(domain.BalanceResult{NewBalance: f.balance}))
	}))
	mux.HandleFunc("POST /api/rpc/grant-signup-bonus", authed(func(w http.ResponseWriter, r *http.Request) {
		if !f.bonusGiven {
			f.bonusGiven = true
			f.balance += 50
		}
		write(w, http.StatusOK, domain.Ok(domain.BalanceResult{NewBalance: f.balance}))
	}))
	mux.HandleFunc("POST /api/rpc/update-profile", authed(func(w http.ResponseWriter, r *http.Request) {
		var req domain.UpdateProfileRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		n := req.Name()
		f.name = &n
		write(w, http.StatusOK, domain.Ok(domain.ProfileSnapshot{DisplayName: f.name, Credits: f.balance}))
	}))
	mux.HandleFunc("GET /api/rpc/profile", authed(func(w http.ResponseWriter, r *http.Request) {
		write(w, http.StatusOK, domain.Ok(domain.ProfileSnapshot{DisplayName: f.name, Credits: f.balance}))
	}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func loggedIn(t *testing.T, bff *fakeBFF) *frontend.Client {
	t.Helper()
	srv := bff.server(t)
	c := frontend.NewClient(srv.URL+"/", srv.Client(), nil)
	_, err := c.Login(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)
	return c
}

func TestClient_DeductCredits(t *testing.T) {
	bff := &fakeBFF{balance: 90}
	c := loggedIn(t, bff)

	bal, err := c.DeductCredits(context.Background(), 50, "tts:generate")
	require.NoError(t, err)
	assert.Equal(t, int64(40), bal)

	_, err = c.DeductCredits(context.Background(), 50, "tts:generate")
	var apiErr *frontend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, domain.CodeRPC, apiErr.Code)
	assert.Equal(t, "Insufficient credits", apiErr.Message)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestClient_DeductCredits_LocalValidation(t *testing.T) {
	bff := &fakeBFF{balance: 90}
	c := loggedIn(t, bff)
	before := bff.hits.Load()

	_, err := c.DeductCredits(context.Background(), 0, "x")
	var v *domain.ErrValidation
	require.ErrorAs(t, err, &v)

	_, err = c.DeductCredits(context.Background(), 5, "   ")
	require.ErrorAs(t, err, &v)
	assert.Equal(t, before, bff.hits.Load())
}

func TestClient_GrantSignupBonusIdempotent(t *testing.T) {
	bff := &fakeBFF{}
	c := loggedIn(t, bff)

	first, err := c.GrantSignupBonus(context.Background())
	require.NoError(t, err)
	second, err := c.GrantSignupBonus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(50), first)
	assert.Equal(t, first, second)
}

func TestClient_NotAuthenticated(t *testing.T) {
	bff := &fakeBFF{balance: 10}
	srv := bff.server(t)
	c := frontend.NewClient(srv.URL, srv.Client(), nil)

	_, err := c.DeductCredits(context.Background(), 1, "x")
	assert.ErrorIs(t, err, frontend.ErrNotAuthenticated)
	_, err = c.GrantSignupBonus(context.Background())
	assert.ErrorIs(t, err, frontend.ErrNotAuthenticated)
	_, err = c.UpdateProfile(context.Background(), "Ana")
	assert.ErrorIs(t, err, frontend.ErrNotAuthenticated)
	_, err = c.Profile(context.Background())
	assert.ErrorIs(t, err, frontend.ErrNotAuthenticated)

	assert.Zero(t, bff.hits.Load())
}

func TestClient_LoginSavesSessionAndLogoutClears(t *testing.T) {
	bff := &fakeBFF{}
	srv := bff.server(t)
	store := frontend.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	c := frontend.NewClient(srv.URL, srv.Client(), store)

	s, err := c.Login(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", s.AccessToken)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "u-1", loaded.UserID)

	require.NoError(t, c.Logout())
	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestClient_LoginFailure(t *testing.T) {
	bff := &fakeBFF{}
	srv := bff.server(t)
	c := frontend.NewClient(srv.URL, srv.Client(), nil)

	_, err := c.Login(context.Background(), "ana@example.com", "wrong")
	var apiErr *frontend.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, domain.CodeUnauthorized, apiErr.Code)

	s, err := c.Session()
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestClient_UpdateProfileAndProfile(t *testing.T) {
	bff := &fakeBFF{balance: 7}
	c := loggedIn(t, bff)

	snap, err := c.UpdateProfile(context.Background(), "  Ana  ")
	require.NoError(t, err)
	require.NotNil(t, snap.DisplayName)
	assert.Equal(t, "Ana", *snap.DisplayName)

	got, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Credits)
}

func TestClient_SignupRemembersUser(t *testing.T) {
	bff := &fakeBFF{}
	srv := bff.server(t)
	c := frontend.NewClient(srv.URL, srv.Client(), nil)

	form := &frontend.SignupForm{Email: "Bia@Example.com", Password: "abc12345", Confirm: "abc12345"}
	require.NoError(t, form.Validate(false))

	u, err := c.Signup(context.Background(), form.Request())
	require.NoError(t, err)
	assert.Equal(t, "bia@example.com", u.Email)

	s, err := c.Session()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Empty(t, s.AccessToken)
	assert.Equal(t, "u-2", s.UserID)
}

func TestClient_SendOTPRejectsMalformedEmail(t *testing.T) {
	bff := &fakeBFF{}
	srv := bff.server(t)
	c := frontend.NewClient(srv.URL, srv.Client(), nil)

	_, err := c.SendOTP(context.Background(), "nope", "")
	var v *domain.ErrValidation
	require.ErrorAs(t, err, &v)
	assert.Zero(t, bff.hits.Load())
}

func TestClient_MalformedInputStaysLocal(t *testing.T) {
	bff := &fakeBFF{}
	srv := bff.server(t)
	c := frontend.NewClient(srv.URL, srv.Client(), nil)
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"verify bad email", func() error { return c.VerifyOTP(ctx, "nope", "123456") }, "email"},
		{"verify short code", func() error { return c.VerifyOTP(ctx, "ana@example.com", "12") }, "code"},
		{"signup bad email", func() error {
			_, err := c.Signup(ctx, &domain.SignupRequest{Email: "ana@", Password: "abc12345"})
			return err
		}, "email"},
		{"signup weak password", func() error {
			_, err := c.Signup(ctx, &domain.SignupRequest{Email: "ana@example.com", Password: "abcdefgh"})
			return err
		}, "password"},
		{"signup bad code", func() error {
			_, err := c.Signup(ctx, &domain.SignupRequest{Email: "ana@example.com", Password: "abc12345", Code: "12a"})
			return err
		}, "code"},
		{"password login bad email", func() error {
			_, err := c.LoginWithPassword(ctx, "ana.example.com", "secret123")
			return err
		}, "email"},
		{"password login empty password", func() error {
			_, err := c.LoginWithPassword(ctx, "ana@example.com", "")
			return err
		}, "password"},
		{"login bad email", func() error {
			_, err := c.Login(ctx, "", "secret123")
			return err
		}, "email"},
		{"login empty password", func() error {
			_, err := c.Login(ctx, "ana@example.com", "")
			return err
		}, "password"},
		{"reset short password", func() error {
			return c.ResetPassword(ctx, &domain.ResetPasswordRequest{Email: "ana@example.com", NewPassword: "ab1"})
		}, "newPassword"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v *domain.ErrValidation
			require.ErrorAs(t, tt.call(), &v)
			assert.Equal(t, tt.field, v.Field)
		})
	}
	assert.Zero(t, bff.hits.Load())
}

