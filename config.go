package goVPS

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goVPS/jwt"
	"github.com/MrEthical07/goVPS/password"
)

// Config holds every engine setting.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	JWT       JWTConfig
	TOTP      TOTPConfig
	Password  password.Config
	Throttle  ThrottleConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
	Lifecycle LifecycleConfig
	Security  SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures access and refresh tokens. Tokens are always signed
// with HS256.
type JWTConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	SigningKey []byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig configures the second factor.
type TOTPConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	// Skew is the number of time steps accepted either side of now.
	Skew int
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig configures the login throttle guard.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
	// RedisPrefix namespaces counter keys when a Redis client is configured.
	RedisPrefix string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig configures asynchronous audit delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig configures in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
LIFECYCLE CONFIG
====================================
*/

// LifecycleConfig configures hypervisor command dispatch.
type LifecycleConfig struct {
	// HypervisorTimeout bounds one hypervisor call. Expiry leaves the
	// command pending; it never rolls the recorded status back.
	HypervisorTimeout time.Duration
	Workers           int
	QueueSize         int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds policy switches.
type SecurityConfig struct {
	// RevealDisabledAccount lets boundary messages say an account is
	// disabled. When false a disabled account reads like bad credentials.
	RevealDisabledAccount bool
	// RehashOnLogin upgrades stored hashes made with weaker parameters.
	RehashOnLogin     bool
	MinPasswordLength int
	MaxPasswordLength int
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a Config with every setting but the signing key filled in.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			Issuer:     "govps",
		},
		TOTP: TOTPConfig{
			Issuer:    "VPS Panel",
			Digits:    6,
			Period:    30,
			Algorithm: "SHA1",
			Skew:      1,
		},
		Password: password.DefaultConfig(),
		Throttle: ThrottleConfig{
			MaxAttempts: 5,
			Window:      60 * time.Second,
			RedisPrefix: "govps:throttle:",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Lifecycle: LifecycleConfig{
			HypervisorTimeout: 30 * time.Second,
			Workers:           4,
			QueueSize:         256,
		},
		Security: SecurityConfig{
			RevealDisabledAccount: false,
			RehashOnLogin:         true,
			MinPasswordLength:     6,
			MaxPasswordLength:     1024,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = cloneBytes(cfg.JWT.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if len(c.JWT.SigningKey) < jwt.MinSecretLength {
		return fmt.Errorf("JWT SigningKey must be at least %d bytes", jwt.MinSecretLength)
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.Audience != "" && strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must not be blank")
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be between 0 and 2")
	}
	if _, err := hmacFunc(c.TOTP.Algorithm); err != nil {
		return errors.New("TOTP Algorithm must be SHA1, SHA256 or SHA512")
	}
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be set")
	}

	// Password
	switch c.Password.Algorithm {
	case "", password.AlgorithmBcrypt, password.AlgorithmArgon2id:
	default:
		return fmt.Errorf("unsupported password algorithm %q", c.Password.Algorithm)
	}
	if c.Security.MinPasswordLength < 1 {
		return errors.New("Security MinPasswordLength must be >= 1")
	}
	if c.Security.MaxPasswordLength < c.Security.MinPasswordLength {
		return errors.New("Security MaxPasswordLength must be >= MinPasswordLength")
	}

	// Throttle
	if c.Throttle.MaxAttempts <= 0 {
		return errors.New("Throttle MaxAttempts must be > 0")
	}
	if c.Throttle.Window <= 0 {
		return errors.New("Throttle Window must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Lifecycle
	if c.Lifecycle.HypervisorTimeout <= 0 {
		return errors.New("Lifecycle HypervisorTimeout must be > 0")
	}
	if c.Lifecycle.Workers <= 0 {
		return errors.New("Lifecycle Workers must be > 0")
	}
	if c.Lifecycle.QueueSize <= 0 {
		return errors.New("Lifecycle QueueSize must be > 0")
	}

	return nil
}
