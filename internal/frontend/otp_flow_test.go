package frontend_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/frontend"
)

type fakeOTPAPI struct {
	mu        sync.Mutex
	sends     int
	verifies  int
	sendErr   error
	verifyErr error
	cooldown  int
}

func (f *fakeOTPAPI) SendOTP(_ context.Context, _, _ string) (*domain.SendOTPResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &domain.SendOTPResponse{CooldownSeconds: f.cooldown, ExpiresIn: 600}, nil
}

func (f *fakeOTPAPI) VerifyOTP(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifies++
	return f.verifyErr
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newFlow(api *fakeOTPAPI) (*frontend.OTPFlow, *clock) {
	clk := &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	f := frontend.NewOTPFlow(api).WithClock(clk.Now)
	return f, clk
}

func TestOTPFlow_SendStartsCooldown(t *testing.T) {
	api := &fakeOTPAPI{}
	flow, clk := newFlow(api)
	defer flow.Close()

	flow.SetEmail("  Ana@Example.com ")
	require.NoError(t, flow.SendCode(context.Background()))
	assert.Equal(t, frontend.StateSent, flow.State())
	assert.Equal(t, 60, flow.Cooldown())
	assert.Equal(t, "ana@example.com", flow.Email())

	clk.Advance(10 * time.Second)
	err := flow.SendCode(context.Background())
	var cd *domain.ErrCooldown
	require.ErrorAs(t, err, &cd)
	assert.Equal(t, 50*time.Second, cd.Remaining)
	assert.Equal(t, 1, api.sends)

	clk.Advance(51 * time.Second)
	assert.Equal(t, 0, flow.Cooldown())
	require.NoError(t, flow.SendCode(context.Background()))
	assert.Equal(t, 2, api.sends)
}

func TestOTPFlow_ServerCooldownSeconds(t *testing.T) {
	api := &fakeOTPAPI{cooldown: 30}
	flow, _ := newFlow(api)
	defer flow.Close()

	flow.SetEmail("ana@example.com")
	require.NoError(t, flow.SendCode(context.Background()))
	assert.Equal(t, 30, flow.Cooldown())
}

func TestOTPFlow_MalformedEmailNoNetwork(t *testing.T) {
	api := &fakeOTPAPI{}
	flow, _ := newFlow(api)

	flow.SetEmail("not-an-email")
	err := flow.SendCode(context.Background())

	var v *domain.ErrValidation
	require.ErrorAs(t, err, &v)
	assert.Equal(t, 0, api.sends)
	assert.Equal(t, frontend.StateIdle, flow.State())
}

func TestOTPFlow_Debounce(t *testing.T) {
	api := &fakeOTPAPI{sendErr: errors.New("mail down")}
	flow, clk := newFlow(api)

	flow.SetEmail("ana@example.com")
	require.Error(t, flow.SendCode(context.Background()))
	assert.ErrorIs(t, flow.SendCode(context.Background()), frontend.ErrDebounced)
	assert.Equal(t, 1, api.sends)

	clk.Advance(time.Second)
	require.Error(t, flow.SendCode(context.Background()))
	assert.Equal(t, 2, api.sends)
}

func TestOTPFlow_SendFailureKeepsCooldown(t *testing.T) {
	api := &fakeOTPAPI{sendErr: &frontend.APIError{Status: 500, Code: domain.CodeUpstream, Message: "Failed to send email"}}
	flow, _ := newFlow(api)

	var notes []string
	flow.OnNotify = func(kind, msg string) { notes = append(notes, kind+":"+msg) }

	flow.SetEmail("ana@example.com")
	require.Error(t, flow.SendCode(context.Background()))

	assert.Equal(t, frontend.StateError, flow.State())
	assert.Equal(t, 0, flow.Cooldown())
	assert.EqualError(t, flow.Err(), "Failed to send email")
	assert.Equal(t, []string{"error:Failed to send email"}, notes)
}

func TestOTPFlow_VerifyResetsCooldown(t *testing.T) {
	api := &fakeOTPAPI{}
	flow, _ := newFlow(api)
	defer flow.Close()

	flow.SetEmail("ana@example.com")
	require.NoError(t, flow.SendCode(context.Background()))
	require.Equal(t, 60, flow.Cooldown())

	flow.SetCode("12-34 56 789")
	assert.Equal(t, "123456", flow.Code())

	require.NoError(t, flow.VerifyCode(context.Background()))
	assert.True(t, flow.Verified())
	assert.Equal(t, 0, flow.Cooldown())
}

func TestOTPFlow_VerifyRejectsShortCodeLocally(t *testing.T) {
	api := &fakeOTPAPI{}
	flow, _ := newFlow(api)

	flow.SetEmail("ana@example.com")
	flow.SetCode("123")

	var v *domain.ErrValidation
	require.ErrorAs(t, flow.VerifyCode(context.Background()), &v)
	assert.Equal(t, 0, api.verifies)
}

func TestOTPFlow_VerifyFailure(t *testing.T) {
	api := &fakeOTPAPI{verifyErr: &frontend.APIError{Status: 401, Code: domain.CodeInvalidCode, Message: "Invalid or expired verification code"}}
	flow, _ := newFlow(api)

	flow.SetEmail("ana@example.com")
	flow.SetCode("000000")

	require.Error(t, flow.VerifyCode(context.Background()))
	assert.Equal(t, frontend.StateError, flow.State())
	assert.False(t, flow.Verified())
}

func TestOTPFlow_SetEmailResets(t *testing.T) {
	api := &fakeOTPAPI{}
	flow, _ := newFlow(api)
	defer flow.Close()

	flow.SetEmail("ana@example.com")
	require.NoError(t, flow.SendCode(context.Background()))
	flow.SetCode("123456")

	flow.SetEmail("bia@example.com")
	assert.Equal(t, frontend.StateIdle, flow.State())
	assert.Equal(t, 0, flow.Cooldown())
	assert.Empty(t, flow.Code())
}
