package appconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// setting ties one Config field to its flag and environment names.
type setting struct {
	flag  string
	env   string
	usage string
	// field returns a *string, *bool or *time.Duration into c.
	field func(c *Config) any
}

var settings = []setting{
	{"http-addr", "HTTP_ADDR", "HTTP listen address", func(c *Config) any { return &c.HTTPAddr }},
	{"shutdown-timeout", "SHUTDOWN_TIMEOUT", "graceful shutdown deadline", func(c *Config) any { return &c.ShutdownTimeout }},
	{"trust-proxy", "TRUST_PROXY", "take the client address from X-Forwarded-For", func(c *Config) any { return &c.TrustProxy }},
	{"db-dialect", "DB_DIALECT", "database dialect: sqlite or postgres", func(c *Config) any { return &c.DBDialect }},
	{"db-dsn", "DB_DSN", "database DSN", func(c *Config) any { return &c.DatabaseDSN }},
	{"redis-addr", "REDIS_ADDR", "Redis address for the login throttle (empty keeps it in memory)", func(c *Config) any { return &c.RedisAddr }},
	{"signing-key", "SIGNING_KEY", "HS256 token signing key, at least 32 bytes", func(c *Config) any { return &c.SigningKey }},
	{"access-ttl", "ACCESS_TTL", "access token lifetime", func(c *Config) any { return &c.AccessTTL }},
	{"refresh-ttl", "REFRESH_TTL", "refresh token lifetime", func(c *Config) any { return &c.RefreshTTL }},
	{"reveal-disabled", "REVEAL_DISABLED", "tell callers when an account is disabled", func(c *Config) any { return &c.RevealDisabledAccount }},
	{"hypervisor-timeout", "HYPERVISOR_TIMEOUT", "bound on one hypervisor call", func(c *Config) any { return &c.HypervisorTimeout }},
	{"metrics", "METRICS", "collect engine metrics and serve /metrics", func(c *Config) any { return &c.MetricsEnabled }},
	{"log-level", "LOG_LEVEL", "debug, info, warn or error", func(c *Config) any { return &c.LogLevel }},
	{"log-format", "LOG_FORMAT", "json or text", func(c *Config) any { return &c.LogFormat }},
}

// ConfigFlag names the flag holding the optional JSON file path.
const ConfigFlag = "config"

// RegisterFlags adds one flag per setting, plus --config, to fs. Defaults
// shown in help come from [Defaults].
func RegisterFlags(fs *pflag.FlagSet) {
	def := Defaults()
	fs.String(ConfigFlag, "", "path to a JSON config file")
	for _, s := range settings {
		switch v := s.field(&def).(type) {
		case *string:
			fs.String(s.flag, *v, s.usage)
		case *bool:
			fs.Bool(s.flag, *v, s.usage)
		case *time.Duration:
			fs.Duration(s.flag, *v, s.usage)
		}
	}
}

// Load resolves the configuration. fs must have been registered with
// RegisterFlags and parsed; lookup is usually os.LookupEnv.
func Load(fs *pflag.FlagSet, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Defaults()

	path, err := fs.GetString(ConfigFlag)
	if err != nil {
		return nil, err
	}
	if path == "" {
		path, _ = lookup(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	if err := applyFlags(&cfg, fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile overlays the keys present in a JSON object. Keys are the flag
// names; durations are Go duration strings or integer nanoseconds.
func loadFile(c *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	byName := make(map[string]setting, len(settings))
	for _, s := range settings {
		byName[s.flag] = s
	}
	for key, val := range doc {
		s, ok := byName[key]
		if !ok {
			return fmt.Errorf("config file %s: unknown key %q", path, key)
		}
		if err := decodeField(s.field(c), val); err != nil {
			return fmt.Errorf("config file %s: key %q: %w", path, key, err)
		}
	}
	return nil
}

func decodeField(dst any, val json.RawMessage) error {
	d, ok := dst.(*time.Duration)
	if !ok {
		return json.Unmarshal(val, dst)
	}
	var s string
	if err := json.Unmarshal(val, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	var n int64
	if err := json.Unmarshal(val, &n); err != nil {
		return fmt.Errorf("duration must be a string or integer nanoseconds")
	}
	*d = time.Duration(n)
	return nil
}

func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	for _, s := range settings {
		raw, ok := lookup(EnvPrefix + s.env)
		if !ok {
			continue
		}
		if err := parseInto(s.field(c), raw); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, s.env, err)
		}
	}
	return nil
}

func applyFlags(c *Config, fs *pflag.FlagSet) error {
	for _, s := range settings {
		if !fs.Changed(s.flag) {
			continue
		}
		var err error
		switch v := s.field(c).(type) {
		case *string:
			*v, err = fs.GetString(s.flag)
		case *bool:
			*v, err = fs.GetBool(s.flag)
		case *time.Duration:
			*v, err = fs.GetDuration(s.flag)
		}
		if err != nil {
			return fmt.Errorf("--%s: %w", s.flag, err)
		}
	}
	return nil
}

func parseInto(dst any, raw string) error {
	var err error
	switch v := dst.(type) {
	case *string:
		*v = raw
	case *bool:
		*v, err = strconv.ParseBool(raw)
	case *time.Duration:
		*v, err = time.ParseDuration(raw)
	}
	return err
}
