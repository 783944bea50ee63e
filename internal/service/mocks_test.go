package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/otpstore"
)

// --- Mocks ---

type mockProfileStore struct {
	mu       sync.Mutex
	byEmail  map[string]*domain.Profile
	getErr   error
	pingErr  error
	creates  int
	updates  int
	lastHash string
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{byEmail: map[string]*domain.Profile{}}
}

func (m *mockProfileStore) GetByEmail(_ context.Context, email string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProfileStore) Create(_ context.Context, p *domain.Profile) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[p.Email]; ok {
		return nil, &domain.ErrConflict{Message: "Email already registered"}
	}
	m.creates++
	cp := *p
	cp.CreatedAt = time.Now()
	m.byEmail[p.Email] = &cp
	return &cp, nil
}

func (m *mockProfileStore) UpdatePasswordHash(_ context.Context, email, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byEmail[email]
	if !ok {
		return &domain.ErrNotFound{Resource: "user", ID: email}
	}
	m.updates++
	m.lastHash = hash
	p.PasswordHash = hash
	return nil
}

func (m *mockProfileStore) Ping(context.Context) error { return m.pingErr }

type mockProvider struct {
	signIn  *domain.TokenLoginResponse
	admin   *domain.AdminUser
	err     error
	signIns int
}

func (m *mockProvider) SignIn(_ context.Context, email, _ string) (*domain.TokenLoginResponse, error) {
	m.signIns++
	if m.err != nil {
		return nil, m.err
	}
	return m.signIn, nil
}

func (m *mockProvider) AdminCreateUser(_ context.Context, email, _ string) (*domain.AdminUser, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.admin, nil
}

type mockMailer struct {
	mu   sync.Mutex
	sent []*domain.OTPMessage
	err  error
}

func (m *mockMailer) SendOTP(_ context.Context, msg *domain.OTPMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *mockMailer) last() *domain.OTPMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return m.sent[len(m.sent)-1]
}

type mockCaptcha struct {
	valid string
	calls int
}

func (m *mockCaptcha) Verify(_ context.Context, token, _ string) error {
	m.calls++
	if token != m.valid {
		return &domain.ErrValidation{Field: "turnstileToken", Message: "Captcha verification failed"}
	}
	return nil
}

type mockLedger struct {
	mu     sync.Mutex
	events []*domain.LedgerEvent
	err    error
}

func (m *mockLedger) Publish(_ context.Context, ev *domain.LedgerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

func (m *mockLedger) Close() error { return nil }

// mockRPC keeps a balance and a display name the way the stored procedures do.
type mockRPC struct {
	mu          sync.Mutex
	balance     int64
	bonusGiven  bool
	displayName *string
	dropUpdate  bool
	err         error
	tokens      []string
	deductCalls int
}

func (m *mockRPC) DeductCredits(_ context.Context, token string, cost float64, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	m.deductCalls++
	if m.err != nil {
		return 0, m.err
	}
	if float64(m.balance) < cost {
		return 0, &domain.ErrRPC{Function: "deduct_credits", Message: "Insufficient credits"}
	}
	m.balance -= int64(cost)
	return m.balance, nil
}

func (m *mockRPC) GrantSignupBonus(_ context.Context, token string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	if m.err != nil {
		return 0, m.err
	}
	if !m.bonusGiven {
		m.bonusGiven = true
		m.balance += 50
	}
	return m.balance, nil
}

func (m *mockRPC) UpdateProfile(_ context.Context, token, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	if m.err != nil {
		return m.err
	}
	if !m.dropUpdate {
		m.displayName = &name
	}
	return nil
}

func (m *mockRPC) GetOwnProfile(_ context.Context, token, _ string) (*domain.ProfileSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ProfileSnapshot{DisplayName: m.displayName, Credits: m.balance}, nil
}

type mockPinger struct {
	err   error
	delay time.Duration
}

func (m *mockPinger) Ping(ctx context.Context) error {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

var errBoom = errors.New("boom")

// fakeClock is shared by the service and the in-memory OTP store.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMemoryStore(clock *fakeClock) *otpstore.Memory {
	return otpstore.NewMemory(time.Minute).WithClock(clock.Now)
}
