// Package power tracks the chassis power state and carries the shutdown
// actuator the monitor invokes when a grace interval elapses.
package power

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// windowsShutdownTimeout is the delay in seconds for the Windows shutdown command.
const windowsShutdownTimeout = "0"

// ErrUnsupportedOS indicates the current OS is not supported for shutdown.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// Actuator requests a platform shutdown. The monitor treats a returned
// error as "actuator unavailable": it is logged and the alarm still
// advances to its terminal state.
type Actuator func(ctx context.Context) error

// Shutdown is the default actuator. It triggers an OS shutdown using
// common, built-in tools:
// - Linux/macOS: `shutdown -h now`
// - Windows:     `shutdown.exe -s -f -t 0` (force, no delay)
// The commands are started asynchronously; the OS takes over the rest.
func Shutdown(ctx context.Context) error {
	osName := strings.ToLower(runtime.GOOS)

	switch {
	case strings.Contains(osName, "linux") || strings.Contains(osName, "darwin"):
		return exec.CommandContext(ctx, "shutdown", "-h", "now").Start()
	case strings.Contains(osName, "windows"):
		return exec.CommandContext(ctx, "shutdown.exe", "-s", "-f", "-t", windowsShutdownTimeout).Start()
	default:
		return fmt.Errorf("unsupported operating system: %s: %w", runtime.GOOS, ErrUnsupportedOS)
	}
}
