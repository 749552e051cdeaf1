package throttle

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const (
	shardCount = 64
	// sweepThreshold bounds how many entries a shard holds before expired
	// counters are pruned on write.
	sweepThreshold = 1024
)

type counter struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu      sync.Mutex
	entries map[string]counter
}

// MemoryStore is an in-process [Store]. Keys are spread over fixed shards, each
// with its own mutex, so unrelated identities rarely contend.
type MemoryStore struct {
	now    func() time.Time
	shards [shardCount]shard
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the clock, mainly for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]counter)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) Count(_ context.Context, key string) (int, error) {
	sh := s.shardFor(key)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.entries[key]
	if !ok {
		return 0, nil
	}
	if !now.Before(c.resetAt) {
		delete(sh.entries, key)
		return 0, nil
	}
	return c.count, nil
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int, error) {
	sh := s.shardFor(key)
	now := s.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.entries[key]
	if !ok || !now.Before(c.resetAt) {
		c = counter{resetAt: now.Add(window)}
	}
	c.count++
	sh.entries[key] = c

	if len(sh.entries) > sweepThreshold {
		sweepLocked(sh, now)
	}
	return c.count, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	sh := s.shardFor(key)

	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
	return nil
}

// Sweep drops every expired counter and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		removed += sweepLocked(sh, now)
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked counters, expired ones included.
func (s *MemoryStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

func sweepLocked(sh *shard, now time.Time) int {
	removed := 0
	for k, c := range sh.entries {
		if !now.Before(c.resetAt) {
			delete(sh.entries, k)
			removed++
		}
	}
	return removed
}
