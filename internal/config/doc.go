// Package config loads the netctl configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// NETCTL_* environment overrides. The result is validated as a whole and every
// problem is reported, not just the first.
//
// The DHCP wait ceiling and poll interval are protocol constants (see package
// ifconfig) and deliberately absent here.
package config
