// Package netaddr converts IPv4 addresses between the raw 4-byte form held by
// a network stack and the structured dotted-quad form exposed to callers.
//
// Stacks disagree on how they lay an IPv4 address out in memory, so every
// conversion names the ByteOrder of the raw side. The order is a property of
// the stack (adapter) doing the conversion, never of an individual value.
package netaddr
