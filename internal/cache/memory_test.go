package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestMemory() (*Memory, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	m := NewMemory()
	m.now = clock.Now
	return m, clock
}

func TestMemory_GetSetExpiry(t *testing.T) {
	m, clock := newTestMemory()
	ctx := context.Background()

	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get on empty = %v", err)
	}
	_ = m.Set(ctx, "k", "v", time.Minute)
	if v, err := m.Get(ctx, "k"); err != nil || v != "v" {
		t.Fatalf("Get = %q, %v", v, err)
	}

	clock.Advance(time.Minute)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired Get = %v", err)
	}
}

func TestMemory_NoTTLNeverExpires(t *testing.T) {
	m, clock := newTestMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "k", "v", 0)
	clock.Advance(24 * time.Hour)
	if v, _ := m.Get(ctx, "k"); v != "v" {
		t.Fatal("zero ttl entry expired")
	}
}

func TestMemory_SetNX(t *testing.T) {
	m, clock := newTestMemory()
	ctx := context.Background()

	ok, _ := m.SetNX(ctx, "lock", "a", time.Second)
	if !ok {
		t.Fatal("first SetNX should win")
	}
	ok, _ = m.SetNX(ctx, "lock", "b", time.Second)
	if ok {
		t.Fatal("second SetNX should lose")
	}

	clock.Advance(time.Second)
	ok, _ = m.SetNX(ctx, "lock", "c", time.Second)
	if !ok {
		t.Fatal("SetNX after expiry should win")
	}
}

func TestMemory_IncrWindow(t *testing.T) {
	m, clock := newTestMemory()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := m.Incr(ctx, "rl", time.Minute)
		if err != nil || got != want {
			t.Fatalf("Incr = %d, %v; want %d", got, err, want)
		}
	}

	// later increments must not extend the window
	clock.Advance(59 * time.Second)
	if got, _ := m.Incr(ctx, "rl", time.Minute); got != 4 {
		t.Fatalf("Incr = %d, want 4", got)
	}
	clock.Advance(time.Second)
	if got, _ := m.Incr(ctx, "rl", time.Minute); got != 1 {
		t.Fatalf("new window Incr = %d, want 1", got)
	}
}

func TestMemory_IncrConcurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Incr(ctx, "n", time.Minute)
		}()
	}
	wg.Wait()
	if v, _ := m.Get(ctx, "n"); v != "50" {
		t.Fatalf("counter = %s, want 50", v)
	}
}

func TestMemory_DeleteAndSweep(t *testing.T) {
	m, clock := newTestMemory()
	ctx := context.Background()
	_ = m.Set(ctx, "a", "1", time.Second)
	_ = m.Set(ctx, "b", "2", time.Hour)
	_ = m.Set(ctx, "c", "3", 0)
	_ = m.Delete(ctx, "c")

	clock.Advance(2 * time.Second)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep() removed %d, want 1", n)
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
}
