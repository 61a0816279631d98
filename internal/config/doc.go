// Package config defines the daemon settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type holds the grace intervals for soft and hard shutdown
// alarms, the bus read timeout, the rescan period and the metrics address.
package config
