package event

import (
	"time"

	"github.com/fluxorio/dispatch/pkg/config"
)

// Config tunes a Bus.
type Config struct {
	// SlowHandlerWarningMs is the per-handler duration, in milliseconds,
	// above which a warning is logged. 0 disables the warning.
	SlowHandlerWarningMs int `yaml:"slow_handler_warning_ms" json:"slow_handler_warning_ms"`

	// MetricsEnabled wires the bus to the Prometheus metrics collection.
	MetricsEnabled bool `yaml:"metrics_enabled" json:"metrics_enabled"`

	// TracingEnabled emits an OpenTelemetry span per post.
	TracingEnabled bool `yaml:"tracing_enabled" json:"tracing_enabled"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		SlowHandlerWarningMs: 100,
	}
}

func (c Config) slowHandlerWarning() time.Duration {
	return time.Duration(c.SlowHandlerWarningMs) * time.Millisecond
}

// LoadConfig loads a bus configuration from a YAML or JSON file and applies
// DISPATCH_* environment variable overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := config.LoadWithEnv(path, "DISPATCH", &cfg); err != nil {
		return Config{}, err
	}
	if err := config.Validate(&cfg, config.ValidatorFunc(validateConfig)); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(v interface{}) error {
	cfg, ok := v.(*Config)
	if !ok {
		return &Error{Code: "INVALID_CONFIG", Message: "config must be *event.Config"}
	}
	if cfg.SlowHandlerWarningMs < 0 {
		return &Error{Code: "INVALID_CONFIG", Message: "slow_handler_warning_ms cannot be negative"}
	}
	return nil
}
