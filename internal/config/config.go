package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables of the shutdown alarm monitor daemon.
type Config struct {
	// SoftShutdownDelay is the grace interval granted to soft shutdown
	// alarms before a shutdown is requested.
	SoftShutdownDelay time.Duration `yaml:"soft_shutdown_delay"`
	// HardShutdownDelay is the grace interval granted to hard shutdown
	// alarms. It must not exceed SoftShutdownDelay.
	HardShutdownDelay time.Duration `yaml:"hard_shutdown_delay"`
	// PropertyTimeout bounds synchronous property reads on the bus.
	PropertyTimeout time.Duration `yaml:"property_timeout"`
	// RescanInterval is the period of full re-enumeration of sensor
	// objects. Zero disables periodic rescans.
	RescanInterval time.Duration `yaml:"rescan_interval"`
	// MetricsAddress is the listen address for the Prometheus /metrics
	// endpoint. Empty disables the endpoint.
	MetricsAddress string `yaml:"metrics_addr"`
	// LogLevel is the minimum level emitted by the logger.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for monitor settings.
	DefaultConfigFilename = "shutdown-alarm-monitor-settings.yaml"

	// DefaultSoftShutdownDelay is the default soft alarm grace interval.
	DefaultSoftShutdownDelay = 30 * time.Minute

	// DefaultHardShutdownDelay is the default hard alarm grace interval.
	DefaultHardShutdownDelay = 30 * time.Second

	// DefaultPropertyTimeout is the default bound on bus property reads.
	DefaultPropertyTimeout = 5 * time.Second

	// DefaultRescanInterval is the default full re-enumeration period.
	DefaultRescanInterval = 10 * time.Minute

	// DefaultLogLevel is the default minimum logging level.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errNegativeDuration is returned when a duration field is negative.
	errNegativeDuration = errors.New("duration must not be negative")
	// errHardExceedsSoft is returned when the hard delay exceeds the soft one.
	errHardExceedsSoft = errors.New("hard shutdown delay must not exceed soft shutdown delay")
)

// Default returns a configuration populated with default values.
func Default() *Config {
	return &Config{
		SoftShutdownDelay: DefaultSoftShutdownDelay,
		HardShutdownDelay: DefaultHardShutdownDelay,
		PropertyTimeout:   DefaultPropertyTimeout,
		RescanInterval:    DefaultRescanInterval,
		LogLevel:          DefaultLogLevel,
	}
}

// Load reads configuration from the provided path and validates it.
// A missing file is not an error: the daemon runs on defaults, so an
// absent settings file yields the default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings, applying defaults for omitted
// fields. RescanInterval is the one duration where zero is meaningful
// (periodic rescans disabled), so it receives no default here.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.SoftShutdownDelay < 0 || cfg.HardShutdownDelay < 0 ||
		cfg.PropertyTimeout < 0 || cfg.RescanInterval < 0 {
		return errNegativeDuration
	}

	if cfg.SoftShutdownDelay == 0 {
		cfg.SoftShutdownDelay = DefaultSoftShutdownDelay
	}

	if cfg.HardShutdownDelay == 0 {
		cfg.HardShutdownDelay = DefaultHardShutdownDelay
	}

	if cfg.PropertyTimeout == 0 {
		cfg.PropertyTimeout = DefaultPropertyTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if cfg.HardShutdownDelay > cfg.SoftShutdownDelay {
		return errHardExceedsSoft
	}

	if cfg.MetricsAddress != "" {
		if _, err := net.ResolveTCPAddr("tcp", cfg.MetricsAddress); err != nil {
			return fmt.Errorf("invalid metrics address: %w", err)
		}
	}

	return nil
}
