// Package eventlog emits structured records for alarm trips, clears and
// expiries.
//
// Delivery is best-effort: records go to the process logger and the
// Prometheus event counters, and no failure propagates back into the
// alarm state machine.
package eventlog
