package bus

import "context"

// Event is a decoded bus notification. The concrete types are
// PropertiesChanged, InterfacesAdded and InterfacesRemoved.
type Event interface {
	// ObjectPath returns the path of the object the event concerns.
	ObjectPath() string
}

// PropertiesChanged reports changed property values on one interface of
// one object.
type PropertiesChanged struct {
	// Path is the emitting object path.
	Path string
	// Interface is the interface whose properties changed.
	Interface string
	// Properties maps property names to their new values.
	Properties map[string]any
}

// ObjectPath returns the emitting object path.
func (e PropertiesChanged) ObjectPath() string {
	return e.Path
}

// InterfacesAdded reports interfaces newly exported by an object.
type InterfacesAdded struct {
	// Path is the object path that gained interfaces.
	Path string
	// Interfaces lists the added interface names.
	Interfaces []string
}

// ObjectPath returns the object path that gained interfaces.
func (e InterfacesAdded) ObjectPath() string {
	return e.Path
}

// InterfacesRemoved reports interfaces an object stopped exporting.
type InterfacesRemoved struct {
	// Path is the object path that lost interfaces.
	Path string
	// Interfaces lists the removed interface names.
	Interfaces []string
}

// ObjectPath returns the object path that lost interfaces.
func (e InterfacesRemoved) ObjectPath() string {
	return e.Path
}

// Bus is the capability the monitor uses to talk to the service bus.
type Bus interface {
	// ListPaths returns the paths of all objects exporting the interface.
	ListPaths(ctx context.Context, iface string) ([]string, error)

	// GetProperty reads one property of one object. Failures are wrapped
	// so that Classify reports their kind.
	GetProperty(ctx context.Context, path, iface, property string) (any, error)

	// Subscribe registers for property changes on the provided interfaces
	// and for interface add/remove lifecycle events, and returns the
	// channel events are delivered on. Delivery is sequential: one event
	// at a time, in bus order.
	Subscribe(ifaces []string) (<-chan Event, error)

	// Close releases all subscriptions and the underlying connection.
	Close() error
}
