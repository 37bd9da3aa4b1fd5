// Package ifconfig implements the IPv4 configuration protocol for one adapter.
//
// It reads the current address quad (address, netmask, gateway, DNS slot 0),
// applies static addressing, and acquires a DHCP lease with a bounded wait.
// No per-adapter state is kept here: every call queries or drives the stack.
//
// The DHCP wait polls every DHCPPollInterval and gives up after DHCPTimeout.
// Both are fixed. A cancelled context ends the wait early; without one the
// full timeout applies.
package ifconfig
