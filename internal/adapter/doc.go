// Package adapter defines the network adapter contract used by netctl.
//
// An adapter is a handle onto one network interface owned by a driver (the
// simulated stack in package fake, or the Linux backend in package linuxnet).
// The INetAdapter interface exposes the stack primitives the configuration
// protocol orchestrates: address read/write and the DHCP client controls.
// IDNSResolver exposes the process-wide DNS server slots.
//
// Driver failures are normalized to INVALID_RANGE, BUSY, UNAVAILABLE,
// PERMISSION and INTERNAL through the token tables in errors.go.
package adapter
