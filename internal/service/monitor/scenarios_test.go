package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/shutdown-alarm-monitor/internal/bus"
	"github.com/oshokin/shutdown-alarm-monitor/internal/domain/alarm"
)

// startMonitor runs a monitor loop over the fake bus and returns a stop
// function that waits for the loop to exit, after which registry state
// can be inspected safely.
func startMonitor(t *testing.T, fb *fakeBus, soft, hard time.Duration) (
	*Monitor, *fakeRecorder, *countActuator, func(),
) {
	t.Helper()

	recorder := new(fakeRecorder)
	actuator := new(countActuator)

	m, err := New(context.Background(), Params{
		Bus:               fb,
		SoftShutdownDelay: soft,
		HardShutdownDelay: hard,
		Actuate:           actuator.actuate,
		Recorder:          recorder,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		_ = m.Run(ctx)
		close(done)
	}()

	stop := func() {
		cancel()
		<-done
		m.Close()
	}
	t.Cleanup(stop)

	return m, recorder, actuator, stop
}

// TestScenarioTripAndClearBeforeExpiry trips a soft alarm and clears it
// before the grace interval elapses: trip and clear recorded once each,
// no shutdown, key back in Idle.
func TestScenarioTripAndClearBeforeExpiry(t *testing.T) {
	t.Parallel()

	fb := newFakeBus()
	fb.addSensor(sensorPath)
	fb.setPower(true)

	m, recorder, actuator, stop := startMonitor(t, fb, 300*time.Millisecond, 100*time.Millisecond)

	fb.setAlarm(sensorPath, alarm.SoftHigh, true)
	fb.events <- changed(sensorPath, alarm.SoftHigh, true)

	require.Eventually(t, func() bool {
		tripped, _, _, _ := recorder.counts()
		return tripped == 1
	}, time.Second, 5*time.Millisecond)

	fb.setAlarm(sensorPath, alarm.SoftHigh, false)
	fb.events <- changed(sensorPath, alarm.SoftHigh, false)

	require.Eventually(t, func() bool {
		_, cleared, _, _ := recorder.counts()
		return cleared == 1
	}, time.Second, 5*time.Millisecond)

	// Wait past the original expiry: nothing further happens.
	time.Sleep(400 * time.Millisecond)
	require.Zero(t, actuator.calls())

	_, _, expired, expiredButCleared := recorder.counts()
	require.Zero(t, expired)
	require.Zero(t, expiredButCleared)

	stop()
	require.Equal(t, alarm.StateIdle, m.alarms[alarm.Key{Path: sensorPath, Kind: alarm.SoftHigh}].state)
}

// TestScenarioTripAndExpire lets the grace interval elapse with the alarm
// still asserted: one shutdown request, one expired record, key Fired.
func TestScenarioTripAndExpire(t *testing.T) {
	t.Parallel()

	fb := newFakeBus()
	fb.addSensor(sensorPath)
	fb.setPower(true)

	m, recorder, actuator, stop := startMonitor(t, fb, 200*time.Millisecond, 100*time.Millisecond)

	fb.setAlarm(sensorPath, alarm.SoftHigh, true)
	fb.events <- changed(sensorPath, alarm.SoftHigh, true)

	require.Eventually(t, func() bool {
		return actuator.calls() == 1
	}, 2*time.Second, 5*time.Millisecond)

	tripped, cleared, expired, _ := recorder.counts()
	require.Equal(t, 1, tripped)
	require.Zero(t, cleared)
	require.Equal(t, 1, expired)

	stop()
	require.Equal(t, alarm.StateFired, m.alarms[alarm.Key{Path: sensorPath, Kind: alarm.SoftHigh}].state)
}

// TestScenarioPowerCycleReArmsFresh drops power while armed (silent
// cancel, no shutdown), then restores it: the still-asserted alarm
// re-arms with a fresh full interval and expires.
func TestScenarioPowerCycleReArmsFresh(t *testing.T) {
	t.Parallel()

	fb := newFakeBus()
	fb.addSensor(sensorPath)
	fb.setPower(true)

	m, recorder, actuator, stop := startMonitor(t, fb, time.Second, 150*time.Millisecond)

	fb.setAlarm(sensorPath, alarm.HardHigh, true)
	fb.events <- changed(sensorPath, alarm.HardHigh, true)

	require.Eventually(t, func() bool {
		tripped, _, _, _ := recorder.counts()
		return tripped == 1
	}, time.Second, 5*time.Millisecond)

	// Power drops well before the 150ms grace interval elapses.
	time.Sleep(50 * time.Millisecond)
	fb.setPower(false)
	fb.events <- powerEvent(false)

	// Wait past the original expiry: cancelled, silently.
	time.Sleep(250 * time.Millisecond)
	require.Zero(t, actuator.calls())

	_, cleared, _, _ := recorder.counts()
	require.Zero(t, cleared, "power-off cancellation must not record a clear")

	// Power returns; the value re-reads true and re-arms afresh.
	fb.setPower(true)
	fb.events <- powerEvent(true)

	require.Eventually(t, func() bool {
		return actuator.calls() == 1
	}, 2*time.Second, 5*time.Millisecond)

	tripped, _, expired, _ := recorder.counts()
	require.Equal(t, 2, tripped)
	require.Equal(t, 1, expired)

	stop()
	require.Equal(t, alarm.StateFired, m.alarms[alarm.Key{Path: sensorPath, Kind: alarm.HardHigh}].state)
}

// TestScenarioUnknownOnInitialRead starts with an unreadable property:
// the key registers in Idle without a timer, and a later change event
// under power arms normally.
func TestScenarioUnknownOnInitialRead(t *testing.T) {
	t.Parallel()

	fb := newFakeBus()
	fb.addSensor(sensorPath)
	fb.setPower(true)
	fb.setAlarmError(sensorPath, alarm.HardHigh, bus.ErrTransient)

	m, recorder, actuator, stop := startMonitor(t, fb, time.Second, 100*time.Millisecond)

	// Reads keep failing for a while; nothing arms.
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, actuator.calls())

	tripped, _, _, _ := recorder.counts()
	require.Zero(t, tripped)

	// The property becomes readable and asserts.
	fb.setAlarm(sensorPath, alarm.HardHigh, true)
	fb.events <- changed(sensorPath, alarm.HardHigh, true)

	require.Eventually(t, func() bool {
		return actuator.calls() == 1
	}, 2*time.Second, 5*time.Millisecond)

	stop()
	require.Equal(t, alarm.StateFired, m.alarms[alarm.Key{Path: sensorPath, Kind: alarm.HardHigh}].state)
}

// TestScenarioInterfaceRemovedWhileArmed removes the interface before the
// grace interval elapses: timer cancelled, key dropped, no shutdown and
// no clear record.
func TestScenarioInterfaceRemovedWhileArmed(t *testing.T) {
	t.Parallel()

	fb := newFakeBus()
	fb.addSensor(sensorPath)
	fb.setPower(true)

	m, recorder, actuator, stop := startMonitor(t, fb, time.Second, 200*time.Millisecond)

	fb.setAlarm(sensorPath, alarm.HardHigh, true)
	fb.events <- changed(sensorPath, alarm.HardHigh, true)

	require.Eventually(t, func() bool {
		tripped, _, _, _ := recorder.counts()
		return tripped == 1
	}, time.Second, 5*time.Millisecond)

	fb.events <- bus.InterfacesRemoved{
		Path:       sensorPath,
		Interfaces: []string{alarm.HardShutdownInterface},
	}

	// Wait past the would-be expiry.
	time.Sleep(400 * time.Millisecond)
	require.Zero(t, actuator.calls())

	_, cleared, expired, _ := recorder.counts()
	require.Zero(t, cleared)
	require.Zero(t, expired)

	stop()
	require.NotContains(t, m.alarms, alarm.Key{Path: sensorPath, Kind: alarm.HardHigh})
}
