// Package network is the command surface of netctl.
//
// A Context owns the interface registry, the global settings and the
// configuration protocol. Every mutating call is audited, published as a
// telemetry event and counted. Errors carry a category (ErrIO or ErrValue)
// as well as the specific kind, so both can be matched with errors.Is.
package network
