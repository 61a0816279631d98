package alarm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestKindTables verifies the kind-to-wire-name mappings stay consistent
// in both directions.
func TestKindTables(t *testing.T) {
	t.Parallel()

	for _, kind := range Kinds() {
		resolved, ok := KindForProperty(kind.Interface(), kind.Property())
		require.True(t, ok, kind.String())
		require.Equal(t, kind, resolved)
	}

	_, ok := KindForProperty(SoftShutdownInterface, "HardShutdownAlarmLow")
	require.False(t, ok)

	_, ok = KindForProperty("xyz.openbmc_project.Sensor.Value", "Value")
	require.False(t, ok)
}

// TestKindsForInterface checks that each threshold interface yields exactly
// its own two kinds.
func TestKindsForInterface(t *testing.T) {
	t.Parallel()

	require.ElementsMatch(t, []Kind{SoftLow, SoftHigh}, KindsForInterface(SoftShutdownInterface))
	require.ElementsMatch(t, []Kind{HardLow, HardHigh}, KindsForInterface(HardShutdownInterface))
	require.Empty(t, KindsForInterface("xyz.openbmc_project.Sensor.Value"))
}

// TestKindSeverity ensures the severity split matches the interface split.
func TestKindSeverity(t *testing.T) {
	t.Parallel()

	require.Equal(t, SeveritySoft, SoftLow.Severity())
	require.Equal(t, SeveritySoft, SoftHigh.Severity())
	require.Equal(t, SeverityHard, HardLow.Severity())
	require.Equal(t, SeverityHard, HardHigh.Severity())

	require.Equal(t, DirectionLow, SoftLow.Direction())
	require.Equal(t, DirectionHigh, HardHigh.Direction())
}

// TestKeyString checks the log rendering of keys and states.
func TestKeyString(t *testing.T) {
	t.Parallel()

	key := Key{Path: "/xyz/openbmc_project/sensors/temperature/cpu0", Kind: HardHigh}
	require.Equal(t, "/xyz/openbmc_project/sensors/temperature/cpu0:HardHigh", key.String())

	require.Equal(t, "Idle", StateIdle.String())
	require.Equal(t, "Armed", StateArmed.String())
	require.Equal(t, "Fired", StateFired.String())
}
