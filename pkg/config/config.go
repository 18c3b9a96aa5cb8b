package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from environment variables to form config keys
// (SHEPHERD_DRAIN_DELAY -> drain_delay).
const envPrefix = "SHEPHERD_"

// EnvConfigFile names an optional YAML config file loaded between the
// defaults and the environment.
const EnvConfigFile = "SHEPHERD_CONFIG"

// Config holds all runtime configuration. It is loaded once at process
// start; there is no hot reload.
type Config struct {
	// Workers is the number of worker processes to fork. Zero means
	// one per available CPU.
	Workers int `koanf:"workers" validate:"gte=0,lte=1024"`

	// Listen is the address every worker binds (shared via SO_REUSEPORT)
	Listen string `koanf:"listen" validate:"required"`

	// AdminListen is the supervisor's own endpoint (healthz, metrics).
	// Empty disables it.
	AdminListen string `koanf:"admin_listen"`

	// HeartbeatInterval is how often workers report liveness upward
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" validate:"gt=0"`

	// HeartbeatTimeoutMultiple: a worker silent for interval*multiple
	// is force-killed
	HeartbeatTimeoutMultiple int `koanf:"heartbeat_timeout_multiple" validate:"gte=2"`

	// DrainDelay is how long a draining worker keeps accepting nothing
	// but stays up so load balancers observe the failing readiness probe
	DrainDelay time.Duration `koanf:"drain_delay" validate:"gte=0"`

	// ShutdownTimeout bounds the wait for open connections to finish
	// after draining; stragglers are destroyed when it fires
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// RestartWindow and MaxRestarts bound crash respawns per slot
	RestartWindow time.Duration `koanf:"restart_window" validate:"gt=0"`
	MaxRestarts   int           `koanf:"max_restarts" validate:"gte=0"`

	// Health check thresholds
	MemoryMaxPct      float64       `koanf:"memory_max_pct" validate:"gt=0,lte=100"`
	SchedLagMax       time.Duration `koanf:"sched_lag_max" validate:"gt=0"`
	DependencyURL     string        `koanf:"dependency_url" validate:"omitempty,url"`
	DependencyTimeout time.Duration `koanf:"dependency_timeout" validate:"gt=0"`

	// HTTP surface
	RateLimit   int      `koanf:"rate_limit" validate:"gte=0"` // requests/min/IP, 0 disables
	CORSOrigins []string `koanf:"cors_origins"`

	// Logging
	LogLevel  string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"oneof=json console"`
	LogFile   string `koanf:"log_file"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Workers:                  0, // resolved to NumCPU at load
		Listen:                   ":8080",
		AdminListen:              ":9090",
		HeartbeatInterval:        10 * time.Second,
		HeartbeatTimeoutMultiple: 6,
		DrainDelay:               5 * time.Second,
		ShutdownTimeout:          30 * time.Second,
		RestartWindow:            60 * time.Second,
		MaxRestarts:              5,
		MemoryMaxPct:             90,
		SchedLagMax:              150 * time.Millisecond,
		DependencyTimeout:        2 * time.Second,
		RateLimit:                300,
		CORSOrigins:              []string{"*"},
		LogLevel:                 "info",
		LogFormat:                "json",
	}
}

// Load builds the configuration from defaults, an optional YAML file
// named by SHEPHERD_CONFIG, and SHEPHERD_* environment variables, in
// that order of precedence (later wins)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	splitSliceKeys(k, "cors_origins")

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}

	return &cfg, nil
}

// splitSliceKeys turns comma-separated strings (the only way to express
// a list in an environment variable) back into slices for the given keys.
// Values already loaded as lists from the YAML file pass through.
func splitSliceKeys(k *koanf.Koanf, keys ...string) {
	for _, key := range keys {
		raw, ok := k.Get(key).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		_ = k.Set(key, out)
	}
}

// Validate checks field constraints
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// HeartbeatTimeout returns the watchdog deadline: a worker silent this
// long is considered dead
func (c *Config) HeartbeatTimeout() time.Duration {
	return c.HeartbeatInterval * time.Duration(c.HeartbeatTimeoutMultiple)
}

// DrainBudget returns the maximum time a worker may take to exit after
// a shutdown request (drain delay plus forced-close timeout)
func (c *Config) DrainBudget() time.Duration {
	return c.DrainDelay + c.ShutdownTimeout
}
