package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	// mapperService is the OpenBMC object mapper bus name.
	mapperService = "xyz.openbmc_project.ObjectMapper"
	// mapperPath is the object path of the mapper.
	mapperPath = "/xyz/openbmc_project/object_mapper"
	// mapperInterface is the mapper's lookup interface.
	mapperInterface = "xyz.openbmc_project.ObjectMapper"

	// propertiesInterface is the standard D-Bus properties interface.
	propertiesInterface = "org.freedesktop.DBus.Properties"
	// objectManagerInterface is the standard object lifecycle interface.
	objectManagerInterface = "org.freedesktop.DBus.ObjectManager"

	// eventBufferSize is the capacity of the signal and event channels.
	eventBufferSize = 64
)

// SystemBus implements Bus over a system D-Bus connection.
//
// Signals are handled by dbus.NewSequentialSignalHandler, so events reach
// the subscriber one at a time in bus order.
type SystemBus struct {
	// conn is the underlying D-Bus connection.
	conn *dbus.Conn
	// signals receives raw matched signals from the connection.
	signals chan *dbus.Signal
	// events carries decoded events to the subscriber.
	events chan Event
	// matches records added match rules so Close can remove them.
	matches [][]dbus.MatchOption
	// readTimeout bounds synchronous calls. Zero means no bound.
	readTimeout time.Duration
}

// ConnectSystem opens a system bus connection with sequential signal
// delivery. readTimeout bounds every synchronous call made through the
// returned bus.
func ConnectSystem(readTimeout time.Duration) (*SystemBus, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithSignalHandler(dbus.NewSequentialSignalHandler()))
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	return &SystemBus{
		conn:        conn,
		readTimeout: readTimeout,
	}, nil
}

// ListPaths asks the object mapper for every path exporting the interface.
func (b *SystemBus) ListPaths(ctx context.Context, iface string) ([]string, error) {
	callCtx, cancel := b.callContext(ctx)
	defer cancel()

	var paths []dbus.ObjectPath

	mapper := b.conn.Object(mapperService, mapperPath)
	err := mapper.CallWithContext(callCtx, mapperInterface+".GetSubTreePaths", 0, "/", int32(0), []string{iface}).
		Store(&paths)
	if err != nil {
		return nil, wrapCallError("list objects with "+iface, err)
	}

	result := make([]string, 0, len(paths))
	for _, path := range paths {
		result = append(result, string(path))
	}

	return result, nil
}

// GetProperty resolves the owning service through the mapper, then reads
// the property with the standard properties interface.
func (b *SystemBus) GetProperty(ctx context.Context, path, iface, property string) (any, error) {
	callCtx, cancel := b.callContext(ctx)
	defer cancel()

	op := fmt.Sprintf("get %s.%s on %s", iface, property, path)

	// The mapper knows which service exports the object.
	var owners map[string][]string

	mapper := b.conn.Object(mapperService, mapperPath)
	err := mapper.CallWithContext(callCtx, mapperInterface+".GetObject", 0, dbus.ObjectPath(path), []string{iface}).
		Store(&owners)
	if err != nil {
		return nil, wrapCallError(op, err)
	}

	var service string
	for owner := range owners {
		service = owner
		break
	}

	if service == "" {
		return nil, fmt.Errorf("%s: no owning service: %w", op, ErrNotFound)
	}

	var value dbus.Variant

	object := b.conn.Object(service, dbus.ObjectPath(path))
	err = object.CallWithContext(callCtx, propertiesInterface+".Get", 0, iface, property).Store(&value)
	if err != nil {
		return nil, wrapCallError(op, err)
	}

	return value.Value(), nil
}

// Subscribe adds match rules for property changes on the provided
// interfaces and for object lifecycle signals, then starts decoding.
func (b *SystemBus) Subscribe(ifaces []string) (<-chan Event, error) {
	for _, iface := range ifaces {
		opts := []dbus.MatchOption{
			dbus.WithMatchInterface(propertiesInterface),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchArg(0, iface),
		}

		if err := b.conn.AddMatchSignal(opts...); err != nil {
			return nil, fmt.Errorf("match property changes on %s: %w", iface, err)
		}

		b.matches = append(b.matches, opts)
	}

	for _, member := range []string{"InterfacesAdded", "InterfacesRemoved"} {
		opts := []dbus.MatchOption{
			dbus.WithMatchInterface(objectManagerInterface),
			dbus.WithMatchMember(member),
		}

		if err := b.conn.AddMatchSignal(opts...); err != nil {
			return nil, fmt.Errorf("match %s: %w", member, err)
		}

		b.matches = append(b.matches, opts)
	}

	b.signals = make(chan *dbus.Signal, eventBufferSize)
	b.events = make(chan Event, eventBufferSize)
	b.conn.Signal(b.signals)

	go b.decode()

	return b.events, nil
}

// Close removes the match rules and closes the connection. Closing the
// connection terminates the signal handler, which ends the decode
// goroutine and closes the event channel.
func (b *SystemBus) Close() error {
	for _, opts := range b.matches {
		_ = b.conn.RemoveMatchSignal(opts...)
	}

	b.matches = nil

	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("close bus connection: %w", err)
	}

	return nil
}

// decode forwards matched signals as decoded events until the signal
// channel is closed.
func (b *SystemBus) decode() {
	defer close(b.events)

	for sig := range b.signals {
		if event := decodeSignal(sig); event != nil {
			b.events <- event
		}
	}
}

// decodeSignal turns a raw signal into an Event, or nil for signals the
// subscriber has no use for.
func decodeSignal(sig *dbus.Signal) Event {
	switch sig.Name {
	case propertiesInterface + ".PropertiesChanged":
		if len(sig.Body) < 2 {
			return nil
		}

		iface, ok := sig.Body[0].(string)
		if !ok {
			return nil
		}

		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return nil
		}

		properties := make(map[string]any, len(changed))
		for name, value := range changed {
			properties[name] = value.Value()
		}

		return PropertiesChanged{
			Path:       string(sig.Path),
			Interface:  iface,
			Properties: properties,
		}
	case objectManagerInterface + ".InterfacesAdded":
		if len(sig.Body) < 2 {
			return nil
		}

		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return nil
		}

		added, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return nil
		}

		names := make([]string, 0, len(added))
		for name := range added {
			names = append(names, name)
		}

		return InterfacesAdded{
			Path:       string(path),
			Interfaces: names,
		}
	case objectManagerInterface + ".InterfacesRemoved":
		if len(sig.Body) < 2 {
			return nil
		}

		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return nil
		}

		removed, ok := sig.Body[1].([]string)
		if !ok {
			return nil
		}

		return InterfacesRemoved{
			Path:       string(path),
			Interfaces: removed,
		}
	default:
		return nil
	}
}

// callContext bounds a synchronous call with the configured read timeout.
func (b *SystemBus) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.readTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, b.readTimeout)
}

// wrapCallError maps a failed call onto the error taxonomy.
func wrapCallError(op string, err error) error {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		switch dbusErr.Name {
		case "org.freedesktop.DBus.Error.UnknownObject",
			"org.freedesktop.DBus.Error.UnknownInterface",
			"org.freedesktop.DBus.Error.UnknownProperty",
			"org.freedesktop.DBus.Error.UnknownMethod",
			"org.freedesktop.DBus.Error.ServiceUnknown",
			"xyz.openbmc_project.Common.Error.ResourceNotFound":
			return fmt.Errorf("%s: %s: %w", op, dbusErr.Name, ErrNotFound)
		case "org.freedesktop.DBus.Error.NoReply",
			"org.freedesktop.DBus.Error.Timeout",
			"org.freedesktop.DBus.Error.TimedOut",
			"org.freedesktop.DBus.Error.Disconnected",
			"org.freedesktop.DBus.Error.LimitsExceeded":
			return fmt.Errorf("%s: %s: %w", op, dbusErr.Name, ErrTransient)
		default:
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrTransient)
	}

	return fmt.Errorf("%s: %w", op, err)
}
