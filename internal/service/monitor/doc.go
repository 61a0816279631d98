// Package monitor implements the shutdown alarm monitor core.
//
// The Monitor discovers every sensor exporting the soft and hard shutdown
// threshold interfaces, tracks each alarm through an Idle/Armed/Fired
// state machine, and requests a platform shutdown when an alarm stays
// asserted under power for its grace interval. A single event loop
// serializes bus events, power edges and timer expiries, so the registry
// is mutated without locks.
package monitor
