package otpstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/port"
)

type harness struct {
	store   port.OTPStore
	advance func(time.Duration)
}

func newRedisHarness(t *testing.T) harness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return harness{store: NewRedisFromClient(rdb), advance: mr.FastForward}
}

func newMemoryHarness(t *testing.T) harness {
	t.Helper()
	var mu sync.Mutex
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	m := NewMemory(time.Minute).WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})
	t.Cleanup(func() { _ = m.Close() })

	return harness{store: m, advance: func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}}
}

func forEachStore(t *testing.T, fn func(t *testing.T, h harness)) {
	t.Run("redis", func(t *testing.T) { fn(t, newRedisHarness(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, newMemoryHarness(t)) })
}

func TestCooldown(t *testing.T) {
	forEachStore(t, func(t *testing.T, h harness) {
		ctx := context.Background()

		ok, _, err := h.store.AcquireCooldown(ctx, "ada@example.com", 60*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		h.advance(20 * time.Second)
		ok, left, err := h.store.AcquireCooldown(ctx, "ada@example.com", 60*time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.InDelta(t, 40*time.Second, left, float64(time.Second))

		ok, _, err = h.store.AcquireCooldown(ctx, "bob@example.com", 60*time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "cooldown is per email")

		h.advance(41 * time.Second)
		ok, _, err = h.store.AcquireCooldown(ctx, "ada@example.com", 60*time.Second)
		require.NoError(t, err)
		assert.True(t, ok, "cooldown expires")
	})
}

func TestReleaseCooldown(t *testing.T) {
	forEachStore(t, func(t *testing.T, h harness) {
		ctx := context.Background()

		_, _, _ = h.store.AcquireCooldown(ctx, "ada@example.com", time.Minute)
		require.NoError(t, h.store.ReleaseCooldown(ctx, "ada@example.com"))

		ok, _, err := h.store.AcquireCooldown(ctx, "ada@example.com", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestCodeLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, h harness) {
		ctx := context.Background()
		rec := &domain.OTPRecord{
			Email:     "ada@example.com",
			Code:      "123456",
			RequestID: "req-1",
			ExpiresAt: time.Now().Add(10 * time.Minute).Truncate(time.Millisecond),
		}

		require.NoError(t, h.store.Save(ctx, rec, 10*time.Minute))

		got, err := h.store.Get(ctx, "ada@example.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "123456", got.Code)
		assert.Equal(t, "req-1", got.RequestID)
		assert.Equal(t, 0, got.Attempts)
		assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))

		n, err := h.store.IncrementAttempts(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, _ = h.store.IncrementAttempts(ctx, "ada@example.com")
		assert.Equal(t, 2, n)

		got, _ = h.store.Get(ctx, "ada@example.com")
		assert.Equal(t, 2, got.Attempts)

		require.NoError(t, h.store.Delete(ctx, "ada@example.com"))
		got, err = h.store.Get(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestSaveReplacesPreviousCode(t *testing.T) {
	forEachStore(t, func(t *testing.T, h harness) {
		ctx := context.Background()

		_ = h.store.Save(ctx, &domain.OTPRecord{Email: "ada@example.com", Code: "111111"}, time.Minute)
		_, _ = h.store.IncrementAttempts(ctx, "ada@example.com")
		_ = h.store.Save(ctx, &domain.OTPRecord{Email: "ada@example.com", Code: "222222"}, time.Minute)

		got, err := h.store.Get(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "222222", got.Code)
		assert.Equal(t, 0, got.Attempts)
	})
}

func TestCodeExpires(t *testing.T) {
	forEachStore(t, func(t *testing.T, h harness) {
		ctx := context.Background()

		_ = h.store.Save(ctx, &domain.OTPRecord{Email: "ada@example.com", Code: "123456"}, time.Minute)
		h.advance(61 * time.Second)

		got, err := h.store.Get(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Nil(t, got)

		n, err := h.store.IncrementAttempts(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})
}

func TestVerifiedMarkerIsSingleUse(t *testing.T) {
	forEachStore(t, func(t *testing.T, h harness) {
		ctx := context.Background()

		ok, err := h.store.ConsumeVerified(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, h.store.MarkVerified(ctx, "ada@example.com", 10*time.Minute))

		ok, err = h.store.ConsumeVerified(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, _ = h.store.ConsumeVerified(ctx, "ada@example.com")
		assert.False(t, ok)
	})
}
