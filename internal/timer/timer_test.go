package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestTimerFires verifies the callback runs exactly once and the timer
// reports not running afterwards.
func TestTimerFires(t *testing.T) {
	t.Parallel()

	var count atomic.Int32

	subject := Start(50*time.Millisecond, func() {
		count.Add(1)
	})

	require.True(t, subject.Running())

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, int32(1), count.Load())
	require.False(t, subject.Running())
}

// TestTimerStop verifies a stopped timer never fires.
func TestTimerStop(t *testing.T) {
	t.Parallel()

	var count atomic.Int32

	subject := Start(100*time.Millisecond, func() {
		count.Add(1)
	})

	time.Sleep(30 * time.Millisecond)
	subject.Stop()
	require.False(t, subject.Running())

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, int32(0), count.Load())
}

// TestTimerStopIdempotent verifies Stop is safe to repeat and safe after
// the timer already fired, including on a nil timer.
func TestTimerStopIdempotent(t *testing.T) {
	t.Parallel()

	var count atomic.Int32

	subject := Start(30*time.Millisecond, func() {
		count.Add(1)
	})

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), count.Load())

	subject.Stop()
	subject.Stop()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), count.Load())

	var absent *Timer

	absent.Stop()
	require.False(t, absent.Running())
}
