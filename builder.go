package goVPS

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/goVPS/access"
	"github.com/MrEthical07/goVPS/hypervisor"
	"github.com/MrEthical07/goVPS/jwt"
	"github.com/MrEthical07/goVPS/password"
	"github.com/MrEthical07/goVPS/permission"
	"github.com/MrEthical07/goVPS/store"
	"github.com/MrEthical07/goVPS/throttle"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. It can be used once.
type Builder struct {
	config Config
	store  store.Store

	redis         redis.UniversalClient
	throttleStore throttle.Store

	roles      map[permission.Role]permission.RoleSpec
	auditSink  AuditSink
	controller hypervisor.Controller
	logger     *slog.Logger
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the entity store. Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithRedis backs the login throttle with Redis so counters are shared across
// processes.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithThrottleStore sets the failure counter store directly. It takes
// precedence over WithRedis.
func (b *Builder) WithThrottleStore(s throttle.Store) *Builder {
	b.throttleStore = s
	return b
}

// WithRoles replaces the built-in role table.
func (b *Builder) WithRoles(roles map[permission.Role]permission.RoleSpec) *Builder {
	b.roles = roles
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithHypervisor sets the controller lifecycle commands are dispatched to.
// Without one, commands are confirmed immediately by a no-op controller.
func (b *Builder) WithHypervisor(c hypervisor.Controller) *Builder {
	b.controller = c
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for token issuance, throttle windows and timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and starts the engine's background workers.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- ROLE TABLE --------
	roles := b.roles
	if roles == nil {
		roles = permission.DefaultRoles()
	}
	table, err := permission.NewTableFromSpecs(permission.All(), roles)
	if err != nil {
		return nil, err
	}

	// -------- LOGIN THROTTLE --------
	counters := b.throttleStore
	switch {
	case counters != nil:
	case b.redis != nil:
		counters = throttle.NewRedisStore(b.redis, cfg.Throttle.RedisPrefix)
	default:
		counters = throttle.NewMemoryStore(throttle.WithClock(now))
	}
	guard, err := throttle.New(counters, throttle.Config{
		MaxAttempts: cfg.Throttle.MaxAttempts,
		Window:      cfg.Throttle.Window,
	})
	if err != nil {
		return nil, err
	}

	// -------- CREDENTIALS --------
	hasher, err := password.New(cfg.Password)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash("govps-dummy-password")
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Secret:     cloneBytes(cfg.JWT.SigningKey),
		Issuer:     cfg.JWT.Issuer,
		Audience:   cfg.JWT.Audience,
		Leeway:     cfg.JWT.Leeway,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		store:     b.store,
		access:    access.New(table),
		throttle:  guard,
		hasher:    hasher,
		dummyHash: dummy,
		jwt:       jm,
		totp:      newTOTPManager(cfg.TOTP),
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		now:       now,
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)
	engine.hypervisor = hypervisor.NewDispatcher(b.controller, hypervisor.DispatcherConfig{
		Workers:    cfg.Lifecycle.Workers,
		BufferSize: cfg.Lifecycle.QueueSize,
		Timeout:    cfg.Lifecycle.HypervisorTimeout,
	}, engine.onHypervisorResult)

	b.built = true

	return engine, nil
}
