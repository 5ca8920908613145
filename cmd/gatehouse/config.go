// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/gatehouse/internal/auth"
	"github.com/holomush/gatehouse/internal/logging"
	"github.com/holomush/gatehouse/internal/web"
)

// Backend names.
const (
	backendPostgres = "postgres"
	backendRedis    = "redis"
	backendMemory   = "memory"
)

// Config is the resolved process configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	Tracing TracingConfig `koanf:"tracing"`
	Store   StoreConfig   `koanf:"store"`
	Session SessionConfig `koanf:"session"`
	Redis   RedisConfig   `koanf:"redis"`
	Hasher  HasherConfig  `koanf:"hasher"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig configures the observability listener. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// TracingConfig configures OTLP export. An empty endpoint disables it.
type TracingConfig struct {
	Endpoint string `koanf:"endpoint"`
}

// StoreConfig selects and tunes the user store.
type StoreConfig struct {
	Backend     string        `koanf:"backend"`
	DatabaseURL string        `koanf:"database_url"`
	MaxConns    int32         `koanf:"max_conns"`
	Timeout     time.Duration `koanf:"timeout"`
}

// SessionConfig selects the session store and cookie attributes.
type SessionConfig struct {
	Backend       string        `koanf:"backend"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	CookieName    string        `koanf:"cookie_name"`
	CookieDomain  string        `koanf:"cookie_domain"`
	CookieSecure  bool          `koanf:"cookie_secure"`
}

// RedisConfig addresses the session cache.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// HasherConfig tunes password hashing.
type HasherConfig struct {
	Cost    int `koanf:"cost"`
	Workers int `koanf:"workers"`
}

var defaultConfig = map[string]any{
	"server.addr":             ":3000",
	"server.max_body_bytes":   int64(web.DefaultMaxBodyBytes),
	"server.shutdown_timeout": 10 * time.Second,
	"metrics.addr":            "127.0.0.1:9100",
	"log.format":              "json",
	"log.level":               "info",
	"store.backend":           backendPostgres,
	"store.timeout":           auth.DefaultStoreTimeout,
	"session.backend":         backendRedis,
	"session.ttl":             auth.DefaultSessionTTL,
	"session.sweep_interval":  10 * time.Minute,
	"session.cookie_name":     web.DefaultCookieName,
	"redis.db":                0,
	"hasher.cost":             auth.DefaultBcryptCost,
	"hasher.workers":          0,
}

// flagKeys maps command flags to configuration keys. Flags not listed
// here are not configuration.
var flagKeys = map[string]string{
	"addr":             "server.addr",
	"metrics-addr":     "metrics.addr",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"otlp-endpoint":    "tracing.endpoint",
	"store":            "store.backend",
	"database-url":     "store.database_url",
	"sessions":         "session.backend",
	"session-ttl":      "session.ttl",
	"redis-addr":       "redis.addr",
	"hash-cost":        "hasher.cost",
	"hash-workers":     "hasher.workers",
	"cookie-secure":    "session.cookie_secure",
	"shutdown-timeout": "server.shutdown_timeout",
}

// loadConfig resolves configuration from defaults, the optional YAML file
// at path and the flags the user set, in that order. Environment variables
// fill connection settings still empty afterwards.
func loadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaultConfig {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	secureSet := k.Exists("session.cookie_secure")

	if flags != nil {
		secureSet = secureSet || flags.Changed("cookie-secure")
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "decode config").Wrap(err)
	}

	if err := applyEnv(&cfg, secureSet); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, cookieSecureSet bool) error {
	if cfg.Store.DatabaseURL == "" {
		cfg.Store.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = os.Getenv("REDIS_ADDR")
	}
	if v, ok := os.LookupEnv("SESSION_COOKIE_SECURE"); ok && !cookieSecureSet {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return oops.Code("CONFIG_INVALID").
				With("env", "SESSION_COOKIE_SECURE").
				With("value", v).
				Wrap(err)
		}
		cfg.Session.CookieSecure = secure
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	invalid := func(key string, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...)
	}

	if c.Server.Addr == "" {
		return invalid("server.addr", "server.addr is required")
	}
	switch c.Store.Backend {
	case backendPostgres, backendMemory:
	default:
		return invalid("store.backend", "store.backend must be %q or %q, got %q", backendPostgres, backendMemory, c.Store.Backend)
	}
	switch c.Session.Backend {
	case backendRedis, backendPostgres, backendMemory:
	default:
		return invalid("session.backend", "session.backend must be %q, %q or %q, got %q",
			backendRedis, backendPostgres, backendMemory, c.Session.Backend)
	}
	if c.usesPostgres() && c.Store.DatabaseURL == "" {
		return invalid("store.database_url", "store.database_url or DATABASE_URL is required for the postgres backend")
	}
	if c.Session.Backend == backendRedis && c.Redis.Addr == "" {
		return invalid("redis.addr", "redis.addr or REDIS_ADDR is required for the redis session backend")
	}
	if c.Hasher.Cost < bcrypt.MinCost || c.Hasher.Cost > bcrypt.MaxCost {
		return invalid("hasher.cost", "hasher.cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.Hasher.Cost)
	}
	if c.Hasher.Workers < 0 {
		return invalid("hasher.workers", "hasher.workers must not be negative")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	if c.Session.TTL <= 0 {
		return invalid("session.ttl", "session.ttl must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return invalid("session.sweep_interval", "session.sweep_interval must be positive")
	}
	if c.Store.Timeout <= 0 {
		return invalid("store.timeout", "store.timeout must be positive")
	}
	return nil
}

func (c *Config) usesPostgres() bool {
	return c.Store.Backend == backendPostgres || c.Session.Backend == backendPostgres
}
