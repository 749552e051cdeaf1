package goVPS

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goVPS/hypervisor"
	"github.com/MrEthical07/goVPS/lifecycle"
	"github.com/MrEthical07/goVPS/password"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
	"github.com/MrEthical07/goVPS/store/memory"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
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

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.SigningKey = testSigningKey
	cfg.Password = password.Config{Algorithm: password.AlgorithmBcrypt, BcryptCost: 4}
	cfg.Lifecycle.HypervisorTimeout = 200 * time.Millisecond
	cfg.Lifecycle.Workers = 2
	return cfg
}

type testEnv struct {
	engine *Engine
	store  *memory.Store
	clock  *fakeClock
	sink   *recordingSink
}

type testOption func(*Builder)

func withController(c hypervisor.Controller) testOption {
	return func(b *Builder) { b.WithHypervisor(c) }
}

func withConfig(mutate func(*Config)) testOption {
	return func(b *Builder) {
		cfg := testConfig()
		mutate(&cfg)
		b.WithConfig(cfg)
	}
}

func newTestEnv(t *testing.T, opts ...testOption) *testEnv {
	t.Helper()

	st := memory.New()
	clock := newFakeClock()
	sink := &recordingSink{}
	b := New().
		WithConfig(testConfig()).
		WithStore(st).
		WithClock(clock.Now).
		WithAuditSink(sink)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return &testEnv{engine: engine, store: st, clock: clock, sink: sink}
}

// seedAccount stores an account directly, bypassing validation.
func (env *testEnv) seedAccount(t *testing.T, email, username, pw string, role permission.Role) *store.Account {
	t.Helper()
	hash, err := env.engine.hasher.Hash(pw)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	a := &store.Account{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := env.store.CreateAccount(context.Background(), a); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return a
}

func (env *testEnv) seedImage(t *testing.T, name string) *store.Image {
	t.Helper()
	img := &store.Image{Name: name, OSType: "linux", Format: store.ImageQCOW2, IsPublic: true, IsActive: true}
	if err := env.store.CreateImage(context.Background(), img); err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	return img
}

func (env *testEnv) seedVPS(t *testing.T, owner int64, imageID int64, status lifecycle.Status) *store.VPS {
	t.Helper()
	v := &store.VPS{
		Name:        "vps",
		CPUCores:    1,
		RAMGB:       1,
		StorageGB:   10,
		ImageID:     imageID,
		NetworkType: store.NetworkPublicIPv4,
		OwnerID:     owner,
		Status:      status,
	}
	if err := env.store.CreateVPS(context.Background(), v); err != nil {
		t.Fatalf("CreateVPS: %v", err)
	}
	return v
}

func principalOf(a *store.Account) Principal {
	return Principal{AccountID: a.ID, Role: a.Role}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, ev AuditEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) find(action AuditAction, resource AuditResource) []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AuditEvent
	for _, ev := range s.events {
		if ev.Action == action && ev.Resource == resource {
			out = append(out, ev)
		}
	}
	return out
}
