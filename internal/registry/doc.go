// Package registry implements the interface registry for netctl.
//
// The registry is an ordered list of adapter handles. Registration is
// idempotent by identity, insertion order is preserved, and nothing is ever
// pruned automatically. Route selection returns the first registered
// interface regardless of destination.
package registry
