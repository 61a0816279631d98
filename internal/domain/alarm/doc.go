// Package alarm contains core domain types for shutdown alarm tracking.
//
// It defines the four alarm kinds (severity x direction), the Key that
// identifies one kind on one sensor object, the per-key lifecycle State,
// and the static tables mapping kinds to their D-Bus interface and
// property names.
package alarm
