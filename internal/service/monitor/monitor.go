package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/shutdown-alarm-monitor/internal/bus"
	"github.com/oshokin/shutdown-alarm-monitor/internal/domain/alarm"
	"github.com/oshokin/shutdown-alarm-monitor/internal/eventlog"
	"github.com/oshokin/shutdown-alarm-monitor/internal/logger"
	"github.com/oshokin/shutdown-alarm-monitor/internal/metrics"
	"github.com/oshokin/shutdown-alarm-monitor/internal/service/power"
	"github.com/oshokin/shutdown-alarm-monitor/internal/timer"
)

// expiryBufferSize is the capacity of the expiry channel. Expiries are
// tiny and the loop drains them promptly; the buffer only absorbs bursts.
const expiryBufferSize = 16

var (
	// errBusRequired is returned when Params carries no bus.
	errBusRequired = errors.New("bus must be provided")
	// errEventStreamClosed is returned when the bus event stream closes
	// while the monitor is still running.
	errEventStreamClosed = errors.New("bus event stream closed")
	// errUnexpectedValueType flags an alarm property that is not a boolean.
	errUnexpectedValueType = errors.New("unexpected alarm value type")
)

// expiry is a timer expiry delivered onto the event loop.
type expiry struct {
	// key identifies the alarm whose timer fired.
	key alarm.Key
	// seq is the arm generation the timer belonged to. A stale sequence
	// means the alarm was disarmed or re-armed after the timer fired.
	seq uint64
}

// record is the registry entry for one tracked alarm.
type record struct {
	// state is the lifecycle position of the alarm.
	state alarm.State
	// timer is the pending grace timer. Present iff state is Armed.
	timer *timer.Timer
	// seq counts arm generations for stale-expiry detection.
	seq uint64
	// lastValue is the last successfully observed alarm value.
	lastValue bool
	// valueKnown reports whether lastValue has been observed at all.
	valueKnown bool
}

// disarm cancels the pending timer, if any, and invalidates in-flight
// expiries for this record.
func (r *record) disarm() {
	r.timer.Stop()
	r.timer = nil
	r.seq++
}

// Params configures a Monitor.
type Params struct {
	// Bus is the service bus capability. Required.
	Bus bus.Bus
	// SoftShutdownDelay is the grace interval for soft alarms.
	SoftShutdownDelay time.Duration
	// HardShutdownDelay is the grace interval for hard alarms.
	HardShutdownDelay time.Duration
	// RescanInterval is the full re-enumeration period. Zero disables it.
	RescanInterval time.Duration
	// Actuate requests the platform shutdown. Defaults to power.Shutdown.
	Actuate power.Actuator
	// Recorder receives alarm lifecycle events. Defaults to eventlog.NewLog.
	Recorder eventlog.Recorder
}

// Monitor watches the shutdown threshold alarms of every sensor on the
// bus and commands a platform shutdown when an alarm stays asserted
// under power for its grace interval.
//
// All state lives behind a single event loop: bus events, power changes
// and timer expiries are applied one at a time, so the registry needs no
// locking.
type Monitor struct {
	// bus is the service bus capability.
	bus bus.Bus
	// power caches the chassis power state.
	power *power.State
	// actuate requests the platform shutdown.
	actuate power.Actuator
	// recorder receives alarm lifecycle events.
	recorder eventlog.Recorder
	// delays maps alarm severity to its grace interval.
	delays map[alarm.Severity]time.Duration
	// rescanInterval is the full re-enumeration period.
	rescanInterval time.Duration
	// alarms is the registry of tracked alarms.
	alarms map[alarm.Key]*record
	// events delivers decoded bus events.
	events <-chan bus.Event
	// expiries delivers timer expiries onto the event loop.
	expiries chan expiry
	// stopped is closed on Close to release timer goroutines blocked on
	// the expiry channel.
	stopped chan struct{}
	// closeOnce guards Close.
	closeOnce sync.Once
}

// New constructs the monitor: it subscribes to the threshold and power
// interfaces, reads the initial power state, enumerates all shutdown
// alarms and evaluates their current values. Subscription and initial
// enumeration failures are fatal; the monitor cannot guarantee its
// contract without them.
func New(ctx context.Context, params Params) (*Monitor, error) {
	if params.Bus == nil {
		return nil, errBusRequired
	}

	if params.Actuate == nil {
		params.Actuate = power.Shutdown
	}

	if params.Recorder == nil {
		params.Recorder = eventlog.NewLog()
	}

	m := &Monitor{
		bus:      params.Bus,
		power:    power.NewState(params.Bus),
		actuate:  params.Actuate,
		recorder: params.Recorder,
		delays: map[alarm.Severity]time.Duration{
			alarm.SeveritySoft: params.SoftShutdownDelay,
			alarm.SeverityHard: params.HardShutdownDelay,
		},
		rescanInterval: params.RescanInterval,
		alarms:         make(map[alarm.Key]*record),
		expiries:       make(chan expiry, expiryBufferSize),
		stopped:        make(chan struct{}),
	}

	events, err := params.Bus.Subscribe([]string{
		alarm.SoftShutdownInterface,
		alarm.HardShutdownInterface,
		power.Interface,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	m.events = events

	// An unreadable power state is not fatal: the chassis is treated as
	// off until a read succeeds or a power signal arrives, and no timer
	// starts on unknown power.
	if err := m.power.Refresh(ctx); err != nil {
		logger.WarnKV(ctx, "Initial power state read failed, assuming powered off", "error", err)
	}

	if err := m.scan(ctx); err != nil {
		return nil, fmt.Errorf("initial scan: %w", err)
	}

	return m, nil
}

// Run dispatches bus events, timer expiries and rescans until the context
// is canceled or the event stream closes.
func (m *Monitor) Run(ctx context.Context) error {
	var rescan <-chan time.Time

	if m.rescanInterval > 0 {
		ticker := time.NewTicker(m.rescanInterval)
		defer ticker.Stop()

		rescan = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.events:
			if !ok {
				return errEventStreamClosed
			}

			m.handleEvent(ctx, event)
		case e := <-m.expiries:
			m.handleExpiry(ctx, e)
		case <-rescan:
			if err := m.scan(ctx); err != nil {
				logger.WarnKV(ctx, "Rescan failed", "error", err)
			}
		}
	}
}

// Close cancels every pending timer and releases timer goroutines. It is
// called after the bus subscription is closed and is safe to call more
// than once.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		for _, rec := range m.alarms {
			rec.disarm()
		}

		close(m.stopped)
	})
}

// handleEvent applies one decoded bus event.
func (m *Monitor) handleEvent(ctx context.Context, event bus.Event) {
	switch e := event.(type) {
	case bus.PropertiesChanged:
		if e.Interface == power.Interface {
			m.powerChanged(ctx, e.Properties)
			return
		}

		for name, value := range e.Properties {
			kind, ok := alarm.KindForProperty(e.Interface, name)
			if !ok {
				continue
			}

			asserted, ok := value.(bool)
			if !ok {
				continue
			}

			m.checkAlarm(ctx, alarm.Key{Path: e.Path, Kind: kind}, asserted)
		}
	case bus.InterfacesAdded:
		for _, iface := range e.Interfaces {
			for _, kind := range alarm.KindsForInterface(iface) {
				key := alarm.Key{Path: e.Path, Kind: kind}
				m.ensure(key)

				value, err := m.readAlarm(ctx, key)
				if err != nil {
					// Unknown for now; a later signal converges it.
					continue
				}

				m.checkAlarm(ctx, key, value)
			}
		}
	case bus.InterfacesRemoved:
		for _, iface := range e.Interfaces {
			for _, kind := range alarm.KindsForInterface(iface) {
				m.drop(alarm.Key{Path: e.Path, Kind: kind})
			}
		}
	}
}

// powerChanged applies a power interface notification. Only edges matter:
// a power-on re-evaluates every alarm, a power-off silently cancels every
// pending timer.
func (m *Monitor) powerChanged(ctx context.Context, properties map[string]any) {
	changed, on := m.power.Apply(properties)
	if !changed {
		return
	}

	logger.InfoKV(ctx, "Power state changed", "powered_on", on)

	if on {
		m.checkAlarms(ctx)
		return
	}

	// Power-off cancellation is silent: the grace interval is relative to
	// assertion under power, so no clear is recorded and a later power-on
	// re-arms with a fresh interval.
	for _, rec := range m.alarms {
		if rec.state == alarm.StateArmed {
			rec.disarm()
			rec.state = alarm.StateIdle
		}
	}
}

// checkAlarm applies an observed alarm value to one registry entry.
func (m *Monitor) checkAlarm(ctx context.Context, key alarm.Key, asserted bool) {
	rec := m.ensure(key)
	if rec.state == alarm.StateFired {
		return
	}

	rec.lastValue = asserted
	rec.valueKnown = true

	switch {
	case asserted && rec.state == alarm.StateIdle && m.power.IsOn():
		m.arm(ctx, key, rec)
	case !asserted && rec.state == alarm.StateArmed:
		rec.disarm()
		rec.state = alarm.StateIdle
		m.recorder.Cleared(ctx, key, asserted)
	}
}

// checkAlarms re-reads and re-evaluates every tracked alarm value.
// Unreadable values are skipped; they change nothing.
func (m *Monitor) checkAlarms(ctx context.Context) {
	for key, rec := range m.alarms {
		if rec.state == alarm.StateFired {
			continue
		}

		value, err := m.readAlarm(ctx, key)
		if err != nil {
			continue
		}

		m.checkAlarm(ctx, key, value)
	}
}

// arm starts the grace timer for an alarm asserted under power.
func (m *Monitor) arm(ctx context.Context, key alarm.Key, rec *record) {
	delay := m.delays[key.Kind.Severity()]

	rec.seq++
	seq := rec.seq

	rec.timer = timer.Start(delay, func() {
		select {
		case m.expiries <- expiry{key: key, seq: seq}:
		case <-m.stopped:
		}
	})

	rec.state = alarm.StateArmed
	m.recorder.Tripped(ctx, key, true)
	logger.InfoKV(ctx, "Started shutdown timer", "alarm", key.String(), "delay", delay.String())
}

// handleExpiry finishes a grace interval: the guard re-read must still see
// the alarm asserted under power, otherwise the expiry is treated as a
// clear. The guard protects against a clear enqueued after the timer
// fired but before its expiry was processed.
func (m *Monitor) handleExpiry(ctx context.Context, e expiry) {
	rec, ok := m.alarms[e.key]
	if !ok || rec.state != alarm.StateArmed || rec.seq != e.seq {
		return
	}

	rec.timer = nil

	stillAsserted := true

	value, err := m.readAlarm(ctx, e.key)
	if err == nil {
		stillAsserted = value
	}
	// On a read failure the shutdown proceeds: the key could only be
	// Armed if the last observed value was true and no clear arrived.

	if !stillAsserted || !m.power.IsOn() {
		rec.disarm()
		rec.state = alarm.StateIdle
		m.recorder.ExpiredButCleared(ctx, e.key)

		return
	}

	m.recorder.Expired(ctx, e.key)
	m.requestShutdown(ctx, e.key)
	rec.state = alarm.StateFired
}

// requestShutdown invokes the actuator. Failures are logged; the alarm
// still reaches its terminal state so it stays observable for external
// recovery.
func (m *Monitor) requestShutdown(ctx context.Context, key alarm.Key) {
	logger.ErrorKV(ctx, "Shutdown alarm still asserted after grace interval, shutting down",
		"alarm", key.String())

	if err := m.actuate(ctx); err != nil {
		metrics.ShutdownRequest("failed")
		logger.ErrorKV(ctx, "Shutdown request failed", "alarm", key.String(), "error", err)

		return
	}

	metrics.ShutdownRequest("requested")
}

// scan enumerates both threshold interfaces, registers newly appeared
// alarms, prunes alarms whose objects vanished without a lifecycle
// signal, and evaluates every tracked value. Enumeration failure aborts
// before any pruning so incomplete data never drops keys.
func (m *Monitor) scan(ctx context.Context) error {
	present := make(map[alarm.Key]struct{})

	for _, iface := range []string{alarm.SoftShutdownInterface, alarm.HardShutdownInterface} {
		paths, err := m.bus.ListPaths(ctx, iface)
		if err != nil {
			return fmt.Errorf("enumerate %s: %w", iface, err)
		}

		for _, path := range paths {
			for _, kind := range alarm.KindsForInterface(iface) {
				key := alarm.Key{Path: path, Kind: kind}
				present[key] = struct{}{}
				m.ensure(key)
			}
		}
	}

	for key, rec := range m.alarms {
		if _, ok := present[key]; !ok {
			rec.disarm()
			delete(m.alarms, key)
		}
	}

	m.checkAlarms(ctx)

	return nil
}

// readAlarm reads one alarm property and coerces it to a boolean.
func (m *Monitor) readAlarm(ctx context.Context, key alarm.Key) (bool, error) {
	value, err := m.bus.GetProperty(ctx, key.Path, key.Kind.Interface(), key.Kind.Property())
	if err != nil {
		metrics.BusReadError(errorClass(err))
		logger.DebugKV(ctx, "Alarm value unavailable", "alarm", key.String(), "error", err)

		return false, err
	}

	asserted, ok := value.(bool)
	if !ok {
		metrics.BusReadError(errorClass(errUnexpectedValueType))

		return false, fmt.Errorf("%w: %T", errUnexpectedValueType, value)
	}

	return asserted, nil
}

// ensure returns the registry entry for the key, creating an Idle one if
// the alarm is new.
func (m *Monitor) ensure(key alarm.Key) *record {
	rec, ok := m.alarms[key]
	if !ok {
		rec = &record{state: alarm.StateIdle}
		m.alarms[key] = rec
	}

	return rec
}

// drop removes a key from the registry, cancelling any pending timer.
// Removal is structural, not a clear, so nothing is recorded.
func (m *Monitor) drop(key alarm.Key) {
	rec, ok := m.alarms[key]
	if !ok {
		return
	}

	rec.disarm()
	delete(m.alarms, key)
}

// errorClass maps a read error onto a metric label.
func errorClass(err error) string {
	switch bus.Classify(err) {
	case bus.ErrorNotFound:
		return "not_found"
	case bus.ErrorTransient:
		return "transient"
	default:
		return "other"
	}
}
