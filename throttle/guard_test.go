package throttle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newMemoryGuard(t *testing.T) (*Guard, *MemoryStore, *manualClock) {
	t.Helper()
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStore(WithClock(clock.Now))
	g, err := New(store, Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g, store, clock
}

func TestGuardThrottlesAfterMaxAttempts(t *testing.T) {
	g, _, _ := newMemoryGuard(t)
	ctx := context.Background()

	for i := 0; i < DefaultMaxAttempts; i++ {
		throttled, err := g.ShouldThrottle(ctx, "10.0.0.1")
		if err != nil || throttled {
			t.Fatalf("attempt %d: throttled=%v err=%v", i, throttled, err)
		}
		if _, err := g.RecordFailure(ctx, "10.0.0.1"); err != nil {
			t.Fatalf("RecordFailure failed: %v", err)
		}
	}

	throttled, err := g.ShouldThrottle(ctx, "10.0.0.1")
	if err != nil || !throttled {
		t.Fatalf("expected throttle after %d failures, got %v, %v", DefaultMaxAttempts, throttled, err)
	}
	if other, _ := g.ShouldThrottle(ctx, "10.0.0.2"); other {
		t.Fatal("unrelated identity must not be throttled")
	}
}

func TestGuardResetClearsImmediately(t *testing.T) {
	g, _, _ := newMemoryGuard(t)
	ctx := context.Background()

	for i := 0; i < DefaultMaxAttempts; i++ {
		_, _ = g.RecordFailure(ctx, "id")
	}
	if err := g.Reset(ctx, "id"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if throttled, _ := g.ShouldThrottle(ctx, "id"); throttled {
		t.Fatal("expected no throttle right after reset")
	}
}

func TestGuardWindowElapses(t *testing.T) {
	g, store, clock := newMemoryGuard(t)
	ctx := context.Background()

	for i := 0; i < DefaultMaxAttempts; i++ {
		_, _ = g.RecordFailure(ctx, "id")
	}
	clock.Advance(DefaultWindow - time.Second)
	if throttled, _ := g.ShouldThrottle(ctx, "id"); !throttled {
		t.Fatal("expected throttle inside the window")
	}

	clock.Advance(time.Second)
	if throttled, _ := g.ShouldThrottle(ctx, "id"); throttled {
		t.Fatal("expected stale window to stop throttling without reset")
	}

	count, _ := g.RecordFailure(ctx, "id")
	if count != 1 {
		t.Fatalf("expected a fresh window after expiry, got count %d", count)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one tracked counter, got %d", store.Len())
	}
}

func TestMemoryStoreConcurrentIncrementsAreNotLost(t *testing.T) {
	_, store, _ := newMemoryGuard(t)
	ctx := context.Background()

	const workers, perWorker = 32, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, _ = store.Increment(ctx, "shared", time.Minute)
				_, _ = store.Increment(ctx, fmt.Sprintf("own-%d", w), time.Minute)
			}
		}(w)
	}
	wg.Wait()

	if got, _ := store.Count(ctx, "shared"); got != workers*perWorker {
		t.Fatalf("lost updates: count=%d want %d", got, workers*perWorker)
	}
	for w := 0; w < workers; w++ {
		if got, _ := store.Count(ctx, fmt.Sprintf("own-%d", w)); got != perWorker {
			t.Fatalf("own-%d count=%d want %d", w, got, perWorker)
		}
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	_, store, clock := newMemoryGuard(t)
	ctx := context.Background()

	_, _ = store.Increment(ctx, "a", time.Second)
	_, _ = store.Increment(ctx, "b", time.Hour)
	clock.Advance(2 * time.Second)

	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected one expired counter removed, got %d", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one live counter, got %d", store.Len())
	}
}

func TestGuardRejectsEmptyIdentityAndBadConfig(t *testing.T) {
	g, _, _ := newMemoryGuard(t)
	if _, err := g.ShouldThrottle(context.Background(), ""); !errors.Is(err, ErrEmptyIdentity) {
		t.Fatalf("expected ErrEmptyIdentity, got %v", err)
	}
	if _, err := New(nil, Config{}); err == nil {
		t.Fatal("expected nil store error")
	}
	if _, err := New(NewMemoryStore(), Config{MaxAttempts: -1}); err == nil {
		t.Fatal("expected invalid config error")
	}
}

func newRedisGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	g, err := New(NewRedisStore(rdb, ""), Config{MaxAttempts: 3, Window: 10 * time.Second})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return g, mr
}

func TestRedisStoreThrottleAndWindow(t *testing.T) {
	g, mr := newRedisGuard(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, err := g.RecordFailure(ctx, "203.0.113.9")
		if err != nil || count != i {
			t.Fatalf("RecordFailure #%d = %d, %v", i, count, err)
		}
	}
	if throttled, err := g.ShouldThrottle(ctx, "203.0.113.9"); err != nil || !throttled {
		t.Fatalf("expected throttle, got %v, %v", throttled, err)
	}

	ttl := mr.TTL(DefaultRedisPrefix + "203.0.113.9")
	if ttl <= 0 || ttl > 10*time.Second {
		t.Fatalf("expected window TTL to be set, got %v", ttl)
	}

	mr.FastForward(11 * time.Second)
	if throttled, _ := g.ShouldThrottle(ctx, "203.0.113.9"); throttled {
		t.Fatal("expected window expiry to lift the throttle")
	}
}

func TestRedisStoreReset(t *testing.T) {
	g, mr := newRedisGuard(t)
	ctx := context.Background()

	_, _ = g.RecordFailure(ctx, "u")
	if err := g.Reset(ctx, "u"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if mr.Exists(DefaultRedisPrefix + "u") {
		t.Fatal("expected counter key to be deleted")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	g, err := New(NewRedisStore(rdb, ""), Config{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := g.ShouldThrottle(context.Background(), "x"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := g.RecordFailure(context.Background(), "x"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
