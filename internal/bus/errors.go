package bus

import (
	"context"
	"errors"
)

// ErrorKind is the coarse classification of a failed bus operation.
type ErrorKind int

const (
	// ErrorOther covers failures with no more specific classification.
	ErrorOther ErrorKind = iota
	// ErrorNotFound means the object, interface or property is absent.
	ErrorNotFound
	// ErrorTransient means the bus or service is temporarily unavailable;
	// a later signal or enumeration will converge state.
	ErrorTransient
)

var (
	// ErrNotFound wraps reads against absent objects, interfaces or
	// properties.
	ErrNotFound = errors.New("object, interface or property not found")
	// ErrTransient wraps reads that failed because the bus or the owning
	// service is temporarily unavailable.
	ErrTransient = errors.New("bus temporarily unavailable")
)

// Classify reports the kind of a failed bus operation. Deadline and
// cancellation errors count as transient: the read may succeed later.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrorNotFound
	case errors.Is(err, ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrorTransient
	default:
		return ErrorOther
	}
}
