// Package config loads runtime configuration for bcifpipe.
//
// Configuration is layered: built-in defaults, then BCIFPIPE_* environment
// variables, then explicit runtime overrides. Job-specific settings live in
// the job manifest (pkg/manifest); this package only covers process-level
// concerns like logging, the status server, and fetch behavior.
package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix for runtime settings.
const EnvPrefix = "BCIFPIPE"

// Config is the process-level runtime configuration.
type Config struct {
	// Logging configures zap logger construction.
	Logging LoggingConfig `mapstructure:"logging"`

	// Server configures the optional status endpoint.
	Server ServerConfig `mapstructure:"server"`

	// Fetch configures source downloads.
	Fetch FetchConfig `mapstructure:"fetch"`

	// Workers is the default worker count when a manifest leaves it
	// unset (0 = one per CPU).
	Workers int `mapstructure:"workers"`
}

// LoggingConfig controls logger construction.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is "console" for human-friendly CLI output or "json"
	// for structured logs.
	Format string `mapstructure:"format"`
}

// ServerConfig controls the status endpoint.
type ServerConfig struct {
	// Addr is the listen address (e.g. "localhost:8917"). Empty
	// disables the endpoint.
	Addr string `mapstructure:"addr"`

	// ReadTimeout bounds request reads.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout bounds response writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// FetchConfig controls source downloads.
type FetchConfig struct {
	// Timeout bounds one source fetch end to end.
	Timeout time.Duration `mapstructure:"timeout"`
}

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// Load builds the runtime configuration and caches it for GetConfig.
//
// Precedence: runtime overrides > environment variables > defaults.
// Overrides use dotted keys nested as maps, e.g.
// {"logging": {"level": "debug"}}.
func Load(_ context.Context, overrides ...map[string]any) (*Config, error) {
	v := viper.New()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("server.addr", "")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("fetch.timeout", 5*time.Minute)
	v.SetDefault("workers", 0)

	// AutomaticEnv resolves only keys viper already knows about;
	// every key above has a default, so the full set is covered.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit Set sits above env in viper's precedence, which is
	// what runtime overrides need.
	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	decode := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decode); err != nil {
		return nil, fmt.Errorf("decode runtime config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil if
// Load has not been called.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}
