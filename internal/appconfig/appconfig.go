// Package appconfig loads the vpspanel process settings. Sources apply in
// order: built-in defaults, an optional JSON file, VPSPANEL_* environment
// variables, then command-line flags. A later source only overrides the
// settings it actually names.
package appconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goVPS "github.com/MrEthical07/goVPS"
	"github.com/MrEthical07/goVPS/store/sqlstore"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "VPSPANEL_"

// Config holds runtime settings for the vpspanel binary.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	TrustProxy      bool

	DBDialect   string
	DatabaseDSN string
	// RedisAddr backs the login throttle with Redis. Empty keeps counters in
	// process memory.
	RedisAddr string

	SigningKey            string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	RevealDisabledAccount bool

	HypervisorTimeout time.Duration
	MetricsEnabled    bool

	LogLevel  string
	LogFormat string
}

// Defaults returns development settings. SigningKey is left empty and must
// be supplied before serving.
func Defaults() Config {
	engine := goVPS.DefaultConfig()
	return Config{
		HTTPAddr:          ":8080",
		ShutdownTimeout:   15 * time.Second,
		DBDialect:         string(sqlstore.DialectSQLite),
		DatabaseDSN:       "file:vpspanel.db",
		AccessTTL:         engine.JWT.AccessTTL,
		RefreshTTL:        engine.JWT.RefreshTTL,
		HypervisorTimeout: engine.Lifecycle.HypervisorTimeout,
		MetricsEnabled:    true,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Validate checks the settings every command needs. Serving additionally
// requires a signing key, which [Config.Engine] enforces.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http address must not be empty")
	}
	switch sqlstore.Dialect(c.DBDialect) {
	case sqlstore.DialectSQLite, sqlstore.DialectPostgres:
	default:
		return fmt.Errorf("unsupported database dialect %q", c.DBDialect)
	}
	if c.DatabaseDSN == "" {
		return errors.New("database dsn must not be empty")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be > 0")
	}
	return nil
}

// Engine maps the process settings onto an engine configuration.
func (c *Config) Engine() (goVPS.Config, error) {
	if c.SigningKey == "" {
		return goVPS.Config{}, errors.New("signing key is required (set " + EnvPrefix + "SIGNING_KEY or --signing-key)")
	}
	cfg := goVPS.DefaultConfig()
	cfg.JWT.SigningKey = []byte(c.SigningKey)
	cfg.JWT.AccessTTL = c.AccessTTL
	cfg.JWT.RefreshTTL = c.RefreshTTL
	cfg.Security.RevealDisabledAccount = c.RevealDisabledAccount
	cfg.Lifecycle.HypervisorTimeout = c.HypervisorTimeout
	cfg.Metrics.Enabled = c.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	if err := cfg.Validate(); err != nil {
		return goVPS.Config{}, err
	}
	return cfg, nil
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	return lvl, nil
}
