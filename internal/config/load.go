package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves and reads the config file, applies HARK_* environment
// overrides, then validates the result.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, Config: Default()}

	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		loaded.Exists = true
		loaded.Config, err = decodeJSONC(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
	}

	if err := applyEnv(&loaded.Config); err != nil {
		return Loaded{}, err
	}

	warnings, err := Validate(loaded.Config)
	if err != nil {
		return Loaded{}, fmt.Errorf("validate config %q: %w", resolvedPath, err)
	}
	loaded.Warnings = append(loaded.Warnings, warnings...)
	return loaded, nil
}

// envOverrides are operational knobs that deployments set without editing
// the config file. Unset variables leave the file values alone.
type envOverrides struct {
	Backend      *string  `env:"HARK_ENGINE_BACKEND"`
	Address      *string  `env:"HARK_ENGINE_ADDRESS"`
	NumThreads   *int     `env:"HARK_NUM_THREADS"`
	Provider     *string  `env:"HARK_PROVIDER"`
	Debug        *bool    `env:"HARK_DEBUG"`
	MetricsAddr  *string  `env:"HARK_METRICS_ADDR"`
	KafkaBrokers []string `env:"HARK_KAFKA_BROKERS" envSeparator:","`
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse environment overrides: %w", err)
	}

	if o.Backend != nil {
		cfg.Engine.Backend = *o.Backend
	}
	if o.Address != nil {
		cfg.Engine.Address = *o.Address
	}
	if o.MetricsAddr != nil {
		cfg.Metrics.Addr = *o.MetricsAddr
	}
	if len(o.KafkaBrokers) > 0 {
		cfg.Events.Brokers = o.KafkaBrokers
		cfg.Events.Enabled = true
	}

	for _, rt := range cfg.runtimes() {
		if o.NumThreads != nil {
			rt.NumThreads = *o.NumThreads
		}
		if o.Provider != nil {
			rt.Provider = *o.Provider
		}
		if o.Debug != nil {
			rt.Debug = *o.Debug
		}
	}
	return nil
}

func (c *Config) runtimes() []*Runtime {
	return []*Runtime{
		&c.Online.Runtime,
		&c.Offline.Runtime,
		&c.Keywords.Model.Runtime,
		&c.TTS.Runtime,
		&c.Denoiser.Runtime,
	}
}
