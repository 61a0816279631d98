// Package bus abstracts the D-Bus access the monitor needs: enumeration of
// objects by interface, bounded synchronous property reads, and a single
// sequential stream of property-change and object-lifecycle events.
//
// Read failures are classified into the NotFound / Transient / Other kinds
// the state machine cares about; callers never inspect raw D-Bus errors.
package bus
