package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 60 * time.Second
)

var (
	// ErrStoreUnavailable is returned when the counter store cannot be reached.
	ErrStoreUnavailable = errors.New("throttle store unavailable")
	// ErrEmptyIdentity is returned for a blank identity.
	ErrEmptyIdentity = errors.New("throttle identity empty")
)

// Store holds failure counters keyed by identity.
//
// Implementations must make Increment atomic per key: concurrent increments of
// one key never lose an update, and increments of different keys never wait on
// each other beyond a shard.
type Store interface {
	// Count returns the failures recorded for key in its live window. An absent
	// or expired counter counts as zero.
	Count(ctx context.Context, key string) (int, error)
	// Increment adds one failure and returns the new count. When the counter is
	// absent or expired a fresh window of length window starts.
	Increment(ctx context.Context, key string, window time.Duration) (int, error)
	// Reset removes the counter for key.
	Reset(ctx context.Context, key string) error
}

// Config tunes the guard.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Guard decides whether an identity may attempt authentication.
type Guard struct {
	store  Store
	config Config
}

// New returns a guard over store. Zero config fields take the defaults.
func New(store Store, cfg Config) (*Guard, error) {
	if store == nil {
		return nil, errors.New("throttle store is nil")
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxAttempts < 1 || cfg.Window < time.Second {
		return nil, errors.New("invalid throttle configuration")
	}
	return &Guard{store: store, config: cfg}, nil
}

// ShouldThrottle reports whether identity has reached the failure limit inside
// its live window.
func (g *Guard) ShouldThrottle(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		return false, ErrEmptyIdentity
	}
	count, err := g.store.Count(ctx, identity)
	if err != nil {
		return false, wrapUnavailable(err)
	}
	return count >= g.config.MaxAttempts, nil
}

// RecordFailure counts one failed authentication for identity.
func (g *Guard) RecordFailure(ctx context.Context, identity string) (int, error) {
	if identity == "" {
		return 0, ErrEmptyIdentity
	}
	count, err := g.store.Increment(ctx, identity, g.config.Window)
	if err != nil {
		return 0, wrapUnavailable(err)
	}
	return count, nil
}

// Reset clears identity's counter after a successful authentication.
func (g *Guard) Reset(ctx context.Context, identity string) error {
	if identity == "" {
		return ErrEmptyIdentity
	}
	if err := g.store.Reset(ctx, identity); err != nil {
		return wrapUnavailable(err)
	}
	return nil
}

// Config returns the effective configuration.
func (g *Guard) Config() Config { return g.config }

func wrapUnavailable(err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
