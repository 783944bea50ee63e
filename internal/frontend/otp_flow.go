package frontend

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
)

// OTPState is the verification widget's current step.
type OTPState string

const (
	StateIdle      OTPState = "idle"
	StateSending   OTPState = "sending"
	StateSent      OTPState = "sent"
	StateVerifying OTPState = "verifying"
	StateVerified  OTPState = "verified"
	StateError     OTPState = "error"
)

const (
	defaultCooldown = 60 * time.Second
	debounceWindow  = 800 * time.Millisecond
	tickInterval    = time.Second
)

// ErrDebounced is returned for a repeated click inside the debounce window
// or while a request is still in flight.
var ErrDebounced = errors.New("request already in progress")

// OTPAPI is the subset of the BFF the flow needs. *Client satisfies it.
type OTPAPI interface {
	SendOTP(ctx context.Context, email, turnstileToken string) (*domain.SendOTPResponse, error)
	VerifyOTP(ctx context.Context, email, code string) error
}

// OTPFlow drives the send / resend / verify cycle for one email address.
// OnTick receives the remaining cooldown seconds once per second; OnNotify
// receives toast-style messages ("success" or "error"). Both are optional and
// must be set before the first SendCode.
type OTPFlow struct {
	api OTPAPI
	now func() time.Time

	OnTick   func(remaining int)
	OnNotify func(kind, message string)

	mu            sync.Mutex
	email         string
	code          string
	turnstile     string
	state         OTPState
	err           error
	inFlight      bool
	lastClick     time.Time
	cooldownUntil time.Time
	gen           uint64
	stopTicker    context.CancelFunc
}

func NewOTPFlow(api OTPAPI) *OTPFlow {
	return &OTPFlow{api: api, now: time.Now, state: StateIdle}
}

// WithClock replaces the time source.
func (f *OTPFlow) WithClock(now func() time.Time) *OTPFlow {
	f.now = now
	return f
}

// SetEmail switches the address. Any running cooldown is dropped and the flow
// starts over.
func (f *OTPFlow) SetEmail(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.email = domain.NormalizeEmail(email)
	f.code = ""
	f.state = StateIdle
	f.err = nil
	f.inFlight = false
	f.cooldownUntil = time.Time{}
	f.gen++
	f.stopTickerLocked()
}

// SetCode keeps only the first six digits of input.
func (f *OTPFlow) SetCode(input string) {
	f.mu.Lock()
	f.code = domain.SanitizeOTPInput(input)
	f.mu.Unlock()
}

func (f *OTPFlow) SetTurnstileToken(token string) {
	f.mu.Lock()
	f.turnstile = token
	f.mu.Unlock()
}

func (f *OTPFlow) Email() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.email
}

func (f *OTPFlow) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code
}

func (f *OTPFlow) State() OTPState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *OTPFlow) Verified() bool { return f.State() == StateVerified }

// Err returns the last failure, if the flow is in the error state.
func (f *OTPFlow) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Cooldown returns the whole seconds left before another code may be sent.
func (f *OTPFlow) Cooldown() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cooldownLocked()
}

func (f *OTPFlow) cooldownLocked() int {
	left := f.cooldownUntil.Sub(f.now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

// SendCode requests a code for the current email.
func (f *OTPFlow) SendCode(ctx context.Context) error {
	f.mu.Lock()
	now := f.now()
	if f.inFlight || (!f.lastClick.IsZero() && now.Sub(f.lastClick) < debounceWindow) {
		f.mu.Unlock()
		return ErrDebounced
	}
	f.lastClick = now

	if err := domain.ValidateEmail(f.email); err != nil {
		f.mu.Unlock()
		return err
	}
	if left := f.cooldownLocked(); left > 0 {
		f.mu.Unlock()
		return &domain.ErrCooldown{Remaining: time.Duration(left) * time.Second}
	}

	f.inFlight = true
	f.state = StateSending
	f.err = nil
	email, token, gen := f.email, f.turnstile, f.gen
	f.mu.Unlock()

	resp, err := f.api.SendOTP(ctx, email, token)

	f.mu.Lock()
	if gen != f.gen {
		// email changed while the request was out
		f.mu.Unlock()
		return err
	}
	f.inFlight = false
	if err != nil {
		f.state = StateError
		f.err = err
		f.mu.Unlock()
		f.notify("error", err.Error())
		return err
	}

	cooldown := defaultCooldown
	if resp != nil && resp.CooldownSeconds > 0 {
		cooldown = time.Duration(resp.CooldownSeconds) * time.Second
	}
	f.state = StateSent
	f.cooldownUntil = f.now().Add(cooldown)
	f.startTickerLocked()
	f.mu.Unlock()

	f.notify("success", "Verification code sent to "+email)
	return nil
}

// VerifyCode checks the entered code with the server.
func (f *OTPFlow) VerifyCode(ctx context.Context) error {
	f.mu.Lock()
	if err := domain.ValidateEmail(f.email); err != nil {
		f.mu.Unlock()
		return err
	}
	if !domain.ValidOTPCode(f.code) {
		f.mu.Unlock()
		return &domain.ErrValidation{Field: "code", Message: "Code must be 6 digits"}
	}
	if f.inFlight {
		f.mu.Unlock()
		return ErrDebounced
	}
	f.inFlight = true
	f.state = StateVerifying
	f.err = nil
	email, code, gen := f.email, f.code, f.gen
	f.mu.Unlock()

	err := f.api.VerifyOTP(ctx, email, code)

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return err
	}
	f.inFlight = false
	if err != nil {
		f.state = StateError
		f.err = err
		f.mu.Unlock()
		f.notify("error", "Invalid or expired code")
		return err
	}
	f.state = StateVerified
	f.cooldownUntil = time.Time{}
	f.stopTickerLocked()
	f.mu.Unlock()

	f.notify("success", "Email verified")
	return nil
}

// Close stops the countdown goroutine.
func (f *OTPFlow) Close() {
	f.mu.Lock()
	f.stopTickerLocked()
	f.mu.Unlock()
}

func (f *OTPFlow) notify(kind, msg string) {
	if f.OnNotify != nil {
		f.OnNotify(kind, msg)
	}
}

func (f *OTPFlow) startTickerLocked() {
	f.stopTickerLocked()
	ctx, cancel := context.WithCancel(context.Background())
	f.stopTicker = cancel
	go f.countdown(ctx)
}

func (f *OTPFlow) stopTickerLocked() {
	if f.stopTicker != nil {
		f.stopTicker()
		f.stopTicker = nil
	}
}

func (f *OTPFlow) countdown(ctx context.Context) {
	t := time.NewTicker(tickInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			left := f.Cooldown()
			if f.OnTick != nil {
				f.OnTick(left)
			}
			if left == 0 {
				return
			}
		}
	}
}
