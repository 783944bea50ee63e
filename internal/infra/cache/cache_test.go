package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/voicerly/voicerly-bff/internal/infra/cache"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newCache(ttl time.Duration) (*cache.InMemory[string], *clock) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := cache.New[string](ttl).WithClock(clk.now)
	return c, clk
}

func TestCache_SetAndGet(t *testing.T) {
	c, _ := newCache(5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c, _ := newCache(5 * time.Minute)
	defer c.Close()

	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c, clk := newCache(time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	clk.advance(61 * time.Second)

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_SetNX(t *testing.T) {
	c, clk := newCache(time.Minute)
	defer c.Close()

	if !c.SetNX("cooldown", "a", 60*time.Second) {
		t.Fatal("expected first SetNX to win")
	}
	if c.SetNX("cooldown", "b", 60*time.Second) {
		t.Fatal("expected second SetNX to lose while live")
	}

	left, ok := c.TTL("cooldown")
	if !ok || left != 60*time.Second {
		t.Errorf("expected 60s left, got %s (%v)", left, ok)
	}

	clk.advance(60*time.Second + time.Millisecond)
	if !c.SetNX("cooldown", "c", 60*time.Second) {
		t.Fatal("expected SetNX to win after expiry")
	}
}

func TestCache_GetOrSet(t *testing.T) {
	c, _ := newCache(time.Minute)
	defer c.Close()

	builds := 0
	build := func() string {
		builds++
		return "limiter"
	}

	c.GetOrSet("1.2.3.4", build)
	c.GetOrSet("1.2.3.4", build)
	if builds != 1 {
		t.Errorf("expected one build, got %d", builds)
	}
}

func TestCache_UpdateAndTake(t *testing.T) {
	c, _ := newCache(time.Minute)
	defer c.Close()

	if c.Update("missing", func(s string) string { return s + "!" }) {
		t.Fatal("expected update of missing key to fail")
	}

	c.Set("k", "v")
	c.Update("k", func(s string) string { return s + "!" })

	v, ok := c.Take("k")
	if !ok || v != "v!" {
		t.Fatalf("expected v!, got %q (%v)", v, ok)
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected key to be removed by Take")
	}
}

func TestCache_Delete(t *testing.T) {
	c, _ := newCache(5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected key to be deleted")
	}
}
