package otpstore

import (
	"context"
	"time"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/cache"
)

// Memory implements port.OTPStore in process. Codes are lost on restart and
// not shared between replicas.
type Memory struct {
	codes *cache.InMemory[domain.OTPRecord]
	flags *cache.InMemory[struct{}]
}

// NewMemory creates an in-memory store; defaultTTL drives the cleanup sweep.
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{
		codes: cache.New[domain.OTPRecord](defaultTTL),
		flags: cache.New[struct{}](defaultTTL),
	}
}

// WithClock replaces the time source of both caches.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.codes.WithClock(now)
	m.flags.WithClock(now)
	return m
}

func (m *Memory) AcquireCooldown(ctx context.Context, email string, ttl time.Duration) (bool, time.Duration, error) {
	if m.flags.SetNX(cooldownKey(email), struct{}{}, ttl) {
		return true, 0, nil
	}
	left, ok := m.flags.TTL(cooldownKey(email))
	if !ok {
		// expired between the two calls
		return m.AcquireCooldown(ctx, email, ttl)
	}
	return false, left, nil
}

func (m *Memory) ReleaseCooldown(_ context.Context, email string) error {
	m.flags.Delete(cooldownKey(email))
	return nil
}

func (m *Memory) Save(_ context.Context, rec *domain.OTPRecord, ttl time.Duration) error {
	m.codes.SetWithTTL(codeKey(rec.Email), *rec, ttl)
	return nil
}

func (m *Memory) Get(_ context.Context, email string) (*domain.OTPRecord, error) {
	rec, ok := m.codes.Get(codeKey(email))
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) IncrementAttempts(_ context.Context, email string) (int, error) {
	attempts := 0
	m.codes.Update(codeKey(email), func(r domain.OTPRecord) domain.OTPRecord {
		r.Attempts++
		attempts = r.Attempts
		return r
	})
	return attempts, nil
}

func (m *Memory) Delete(_ context.Context, email string) error {
	m.codes.Delete(codeKey(email))
	return nil
}

func (m *Memory) MarkVerified(_ context.Context, email string, ttl time.Duration) error {
	m.flags.SetWithTTL(verifiedKey(email), struct{}{}, ttl)
	return nil
}

func (m *Memory) ConsumeVerified(_ context.Context, email string) (bool, error) {
	_, ok := m.flags.Take(verifiedKey(email))
	return ok, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Close stops the cleanup goroutines.
func (m *Memory) Close() error {
	m.codes.Close()
	m.flags.Close()
	return nil
}
