package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"
)

// TestClassify verifies the mapping of wrapped errors onto error kinds.
func TestClassify(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  error
		want ErrorKind
	}{
		"not found":     {fmt.Errorf("get: %w", ErrNotFound), ErrorNotFound},
		"transient":     {fmt.Errorf("get: %w", ErrTransient), ErrorTransient},
		"deadline":      {fmt.Errorf("get: %w", context.DeadlineExceeded), ErrorTransient},
		"canceled":      {context.Canceled, ErrorTransient},
		"plain":         {errors.New("boom"), ErrorOther},
		"wrapped plain": {fmt.Errorf("get: %w", errors.New("boom")), ErrorOther},
	}
	for name, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.err), name)
	}
}

// TestWrapCallError checks translation of D-Bus error names into the
// taxonomy sentinels.
func TestWrapCallError(t *testing.T) {
	t.Parallel()

	notFound := dbus.Error{Name: "org.freedesktop.DBus.Error.UnknownObject"}
	err := wrapCallError("get", notFound)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, ErrorNotFound, Classify(err))

	noReply := dbus.Error{Name: "org.freedesktop.DBus.Error.NoReply"}
	err = wrapCallError("get", noReply)
	require.ErrorIs(t, err, ErrTransient)
	require.Equal(t, ErrorTransient, Classify(err))

	unknown := dbus.Error{Name: "org.example.SomethingElse"}
	err = wrapCallError("get", unknown)
	require.Equal(t, ErrorOther, Classify(err))

	err = wrapCallError("get", context.DeadlineExceeded)
	require.Equal(t, ErrorTransient, Classify(err))
}
