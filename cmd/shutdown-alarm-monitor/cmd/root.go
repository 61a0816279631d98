package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/shutdown-alarm-monitor/internal/config"
	"github.com/oshokin/shutdown-alarm-monitor/internal/service/monitor"
	"github.com/oshokin/shutdown-alarm-monitor/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// softShutdownDelay overrides the soft alarm grace interval.
	softShutdownDelay time.Duration
	// hardShutdownDelay overrides the hard alarm grace interval.
	hardShutdownDelay time.Duration
	// metricsAddress overrides the metrics listen address.
	metricsAddress string
	// logLevel overrides the logging level.
	logLevel string

	// rootCmd represents the base command for running the monitor daemon.
	rootCmd = &cobra.Command{
		Use:   "shutdown-alarm-monitor",
		Short: "Watch shutdown threshold alarms and power the platform off when one expires.",
		Long: `Runs the shutdown alarm monitor daemon.

The monitor discovers every sensor exporting the soft and hard shutdown
threshold interfaces on the system bus and watches their high and low alarm
properties. When an alarm asserts while the chassis is powered on, a grace
timer starts; if the alarm is still asserted when the timer expires, the
platform is shut down. Clearing the alarm or powering the chassis off
cancels the timer.

Settings come from the configuration file; flags override individual values.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &monitor.Options{
				ConfigPath:        configPath,
				SoftShutdownDelay: softShutdownDelay,
				HardShutdownDelay: hardShutdownDelay,
				MetricsAddress:    metricsAddress,
				LogLevel:          logLevel,
			}

			return monitor.Run(ctx, options)
		},
	}
)

// Execute runs the shutdown-alarm-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		DurationVar(&softShutdownDelay, "soft-shutdown-delay", 0, "grace interval for soft shutdown alarms")
	rootCmd.Flags().
		DurationVar(&hardShutdownDelay, "hard-shutdown-delay", 0, "grace interval for hard shutdown alarms")
	rootCmd.Flags().StringVar(&metricsAddress, "metrics-addr", "", "listen address for Prometheus metrics")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "minimum logging level")
}
