package adapter

import (
	"context"

	"github.com/radio-control/netctl/internal/netaddr"
)

// Kind classifies an interface the way a driver registers it.
type Kind string

const (
	KindStation     Kind = "station"
	KindAccessPoint Kind = "access-point"
	KindEthernet    Kind = "ethernet"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindStation, KindAccessPoint, KindEthernet:
		return true
	}
	return false
}

// RawAddresses holds the per-interface address triple exactly as the stack
// stores it, in the adapter's ByteOrder. Each field should be 4 bytes.
type RawAddresses struct {
	IP      []byte
	Netmask []byte
	Gateway []byte
}

// INetAdapter is the southbound contract of a network interface.
//
// Handles are compared by identity: two distinct values never denote the same
// registration even when they share a name.
type INetAdapter interface {
	// Name returns the stable name the interface is registered under.
	Name() string

	// Kind returns the interface classification.
	Kind() Kind

	// ByteOrder is the layout of every raw address this adapter returns or accepts.
	ByteOrder() netaddr.ByteOrder

	// Addresses reads the current address, netmask and gateway. Never blocks
	// on the network.
	Addresses(ctx context.Context) (*RawAddresses, error)

	// SetAddresses replaces address, netmask and gateway.
	SetAddresses(ctx context.Context, addrs *RawAddresses) error

	// DHCPStart begins a new DHCP negotiation. It returns once the request is
	// issued, not when a lease is bound.
	DHCPStart(ctx context.Context) error

	// DHCPRenew refreshes the current lease without releasing it.
	DHCPRenew(ctx context.Context) error

	// DHCPStop abandons the DHCP session state. Safe without an active session.
	DHCPStop(ctx context.Context) error

	// DHCPRelease gives the lease back to the server. Safe without a lease.
	DHCPRelease(ctx context.Context) error

	// DHCPSuppliedAddress reports whether the current address came from DHCP.
	DHCPSuppliedAddress(ctx context.Context) bool
}

// IDNSResolver exposes the global DNS server slots of a stack.
type IDNSResolver interface {
	ByteOrder() netaddr.ByteOrder

	// DNSServer returns the raw address held in slot. An empty slot reads as
	// 0.0.0.0.
	DNSServer(ctx context.Context, slot int) ([]byte, error)

	// SetDNSServer overwrites slot.
	SetDNSServer(ctx context.Context, slot int, raw []byte) error
}

// AdapterBase provides the identity fields shared by adapter implementations.
type AdapterBase struct {
	// InterfaceName identifies the interface in the registry and the API.
	InterfaceName string

	// InterfaceKind classifies the interface.
	InterfaceKind Kind

	// Order is the raw address layout of the underlying stack.
	Order netaddr.ByteOrder

	// DriverName selects the error token table, see DriverErrorMappings.
	DriverName string
}

// Name returns the interface name.
func (a *AdapterBase) Name() string {
	return a.InterfaceName
}

// Kind returns the interface kind.
func (a *AdapterBase) Kind() Kind {
	return a.InterfaceKind
}

// ByteOrder returns the stack's raw address layout.
func (a *AdapterBase) ByteOrder() netaddr.ByteOrder {
	return a.Order
}

// Driver returns the driver name, "generic" when unset.
func (a *AdapterBase) Driver() string {
	if a.DriverName == "" {
		return "generic"
	}
	return a.DriverName
}

// DriverOf returns the driver name of handles embedding AdapterBase, or
// "generic".
func DriverOf(a INetAdapter) string {
	if d, ok := a.(interface{ Driver() string }); ok {
		return d.Driver()
	}
	return "generic"
}
