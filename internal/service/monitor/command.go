package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/shutdown-alarm-monitor/internal/bus"
	"github.com/oshokin/shutdown-alarm-monitor/internal/config"
	"github.com/oshokin/shutdown-alarm-monitor/internal/logger"
	"github.com/oshokin/shutdown-alarm-monitor/internal/metrics"
)

// Options controls the monitor daemon and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// SoftShutdownDelay overrides the configured soft alarm grace interval.
	SoftShutdownDelay time.Duration
	// HardShutdownDelay overrides the configured hard alarm grace interval.
	HardShutdownDelay time.Duration
	// MetricsAddress overrides the configured metrics listen address.
	MetricsAddress string
	// LogLevel overrides the configured logging level.
	LogLevel string
}

// Run starts the shutdown alarm monitor and blocks until the context is
// canceled. Configuration is loaded first; command line overrides apply
// on top and the merged result is validated again.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "shutdown-alarm-monitor")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.SoftShutdownDelay > 0 {
		cfg.SoftShutdownDelay = opts.SoftShutdownDelay
	}

	if opts.HardShutdownDelay > 0 {
		cfg.HardShutdownDelay = opts.HardShutdownDelay
	}

	if opts.MetricsAddress != "" {
		cfg.MetricsAddress = opts.MetricsAddress
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}

	if err = config.Validate(cfg); err != nil {
		return fmt.Errorf("validate configuration: %w", err)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	metrics.Init()

	if cfg.MetricsAddress != "" {
		go func() {
			if serveErr := metrics.Serve(ctx, cfg.MetricsAddress); serveErr != nil {
				logger.ErrorKV(ctx, "Metrics endpoint failed", "error", serveErr)
			}
		}()
	}

	// Connect to the system bus with sequential signal delivery; every
	// synchronous read is bounded by the property timeout.
	systemBus, err := bus.ConnectSystem(cfg.PropertyTimeout)
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}

	m, err := New(ctx, Params{
		Bus:               systemBus,
		SoftShutdownDelay: cfg.SoftShutdownDelay,
		HardShutdownDelay: cfg.HardShutdownDelay,
		RescanInterval:    cfg.RescanInterval,
	})
	if err != nil {
		_ = systemBus.Close()

		return fmt.Errorf("initialise monitor: %w", err)
	}

	// Release the subscription first, then the timers (LIFO).
	defer m.Close()

	defer func() {
		_ = systemBus.Close()
	}()

	logger.InfoKV(ctx, "Shutdown alarm monitor running",
		"soft_shutdown_delay", cfg.SoftShutdownDelay.String(),
		"hard_shutdown_delay", cfg.HardShutdownDelay.String(),
		"rescan_interval", cfg.RescanInterval.String(),
		"metrics_addr", cfg.MetricsAddress)

	if err = m.Run(ctx); err != nil {
		return fmt.Errorf("monitor loop: %w", err)
	}

	logger.Info(ctx, "Shutdown alarm monitor stopped")

	return nil
}
