package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaulting and the ordering constraint between the
// hard and soft grace intervals.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Empty config picks up every default.
	cfg := new(Config)
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultSoftShutdownDelay, cfg.SoftShutdownDelay)
	require.Equal(t, DefaultHardShutdownDelay, cfg.HardShutdownDelay)
	require.Equal(t, DefaultPropertyTimeout, cfg.PropertyTimeout)
	require.Equal(t, DefaultLogLevel, cfg.LogLevel)

	// Hard delay longer than soft delay is rejected.
	cfg = &Config{
		SoftShutdownDelay: time.Second,
		HardShutdownDelay: time.Minute,
	}
	require.Error(t, Validate(cfg))

	// Negative durations are rejected.
	cfg = &Config{RescanInterval: -time.Second}
	require.Error(t, Validate(cfg))

	// Bad metrics address.
	cfg = &Config{MetricsAddress: "bad:address"}
	require.Error(t, Validate(cfg))

	// Explicit zero rescan interval stays zero (rescans disabled).
	cfg = &Config{RescanInterval: 0}
	require.NoError(t, Validate(cfg))
	require.Zero(t, cfg.RescanInterval)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		SoftShutdownDelay: 20 * time.Minute,
		HardShutdownDelay: 15 * time.Second,
		PropertyTimeout:   2 * time.Second,
		RescanInterval:    5 * time.Minute,
		MetricsAddress:    "127.0.0.1:9120",
		LogLevel:          "debug",
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoadMissingFile verifies a missing settings file yields defaults.
func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	loaded, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), loaded)
}
