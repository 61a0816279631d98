package eventlog

import (
	"context"
	"time"

	"github.com/oshokin/shutdown-alarm-monitor/internal/domain/alarm"
	"github.com/oshokin/shutdown-alarm-monitor/internal/logger"
	"github.com/oshokin/shutdown-alarm-monitor/internal/metrics"
)

// Event names used in records and metric labels.
const (
	// EventTripped marks an alarm asserting under power.
	EventTripped = "tripped"
	// EventCleared marks an armed alarm deasserting before expiry.
	EventCleared = "cleared"
	// EventExpired marks a grace interval elapsing with the alarm still
	// asserted.
	EventExpired = "expired"
	// EventExpiredButCleared marks an expiry whose guard re-read found the
	// alarm already clear.
	EventExpiredButCleared = "expired-but-cleared"
)

// Recorder receives alarm lifecycle events. Implementations must be
// best-effort: a failure to record never reaches the state machine.
type Recorder interface {
	// Tripped records an Idle to Armed transition.
	Tripped(ctx context.Context, key alarm.Key, value bool)
	// Cleared records an Armed to Idle transition caused by the alarm
	// deasserting.
	Cleared(ctx context.Context, key alarm.Key, value bool)
	// Expired records an Armed to Fired transition.
	Expired(ctx context.Context, key alarm.Key)
	// ExpiredButCleared records an expiry suppressed by the guard re-read.
	ExpiredButCleared(ctx context.Context, key alarm.Key)
}

// Log records events through the structured logger and the event counters.
type Log struct{}

// NewLog returns the standard recorder.
func NewLog() *Log {
	return &Log{}
}

// Tripped records an Idle to Armed transition.
func (l *Log) Tripped(ctx context.Context, key alarm.Key, value bool) {
	l.record(ctx, key, EventTripped, "Shutdown alarm tripped", "value", value)
}

// Cleared records an Armed to Idle transition.
func (l *Log) Cleared(ctx context.Context, key alarm.Key, value bool) {
	l.record(ctx, key, EventCleared, "Shutdown alarm cleared", "value", value)
}

// Expired records an Armed to Fired transition.
func (l *Log) Expired(ctx context.Context, key alarm.Key) {
	l.record(ctx, key, EventExpired, "Shutdown alarm timer expired")
}

// ExpiredButCleared records an expiry suppressed by the guard re-read.
func (l *Log) ExpiredButCleared(ctx context.Context, key alarm.Key) {
	l.record(ctx, key, EventExpiredButCleared, "Shutdown alarm cleared before expiry took effect")
}

// record emits one structured record and bumps the event counter.
func (l *Log) record(ctx context.Context, key alarm.Key, event, message string, kvs ...any) {
	fields := append([]any{
		"event", event,
		"path", key.Path,
		"kind", key.Kind.String(),
		"timestamp_ms", time.Now().UnixMilli(),
	}, kvs...)

	logger.InfoKV(ctx, message, fields...)
	metrics.AlarmEvent(key.Kind.String(), event)
}
