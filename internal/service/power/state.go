package power

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/shutdown-alarm-monitor/internal/bus"
)

// Bus names of the power good signal.
const (
	// Interface is the power control interface exposing the pgood property.
	Interface = "org.openbmc.control.Power"
	// Path is the object path of the power control object.
	Path = "/org/openbmc/control/power0"
	// Property is the power good property. Nonzero means the chassis is
	// powered on.
	Property = "pgood"
)

// errUnexpectedType is returned when pgood carries a non-coercible value.
var errUnexpectedType = errors.New("unexpected pgood value type")

// State caches the chassis power state. It is read and updated only on
// the monitor's event loop, so it carries no locking.
type State struct {
	// bus reads the pgood property on demand.
	bus bus.Bus
	// on is the last coerced power value.
	on bool
	// known reports whether a value has been observed yet. Until then the
	// chassis is treated as powered off, which is the safe direction: no
	// timer is ever started on unknown power.
	known bool
}

// NewState returns a power state cache reading through the provided bus.
func NewState(b bus.Bus) *State {
	return &State{
		bus: b,
	}
}

// Refresh reads the pgood property synchronously and updates the cache.
func (s *State) Refresh(ctx context.Context) error {
	value, err := s.bus.GetProperty(ctx, Path, Interface, Property)
	if err != nil {
		return fmt.Errorf("read %s: %w", Property, err)
	}

	on, ok := Coerce(value)
	if !ok {
		return fmt.Errorf("%w: %T", errUnexpectedType, value)
	}

	s.on = on
	s.known = true

	return nil
}

// IsOn reports whether the chassis is known to be powered on.
func (s *State) IsOn() bool {
	return s.known && s.on
}

// Apply consumes the changed properties of a power interface notification.
// It reports whether the power state actually changed (the edge) and the
// new value; repeated no-op notifications report no change.
func (s *State) Apply(properties map[string]any) (changed, on bool) {
	value, present := properties[Property]
	if !present {
		return false, s.IsOn()
	}

	coerced, ok := Coerce(value)
	if !ok {
		return false, s.IsOn()
	}

	changed = !s.known || coerced != s.on
	s.on = coerced
	s.known = true

	return changed, coerced
}

// Coerce converts a pgood wire value to a boolean. The property is an
// integer on the wire; any nonzero value means powered on.
func Coerce(value any) (on, ok bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case int:
		return v != 0, true
	case int32:
		return v != 0, true
	case int64:
		return v != 0, true
	case uint32:
		return v != 0, true
	case uint64:
		return v != 0, true
	case byte:
		return v != 0, true
	default:
		return false, false
	}
}
