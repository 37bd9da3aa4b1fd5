package network

import (
	"context"
	"time"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/ifconfig"
	"github.com/radio-control/netctl/internal/netaddr"
	"github.com/radio-control/netctl/internal/registry"
	"github.com/radio-control/netctl/internal/settings"
	"github.com/radio-control/netctl/internal/telemetry"
)

// Port is the surface the API needs from a Context.
type Port interface {
	ListInterfaces() []adapter.INetAdapter
	Route() *registry.InterfaceList
	SelectInterface(dst netaddr.Address4) (adapter.INetAdapter, error)
	Interface(name string) (adapter.INetAdapter, error)

	Country() string
	SetCountry(ctx context.Context, code string) error
	Hostname() string
	SetHostname(ctx context.Context, name string) error
	Settings() settings.Values

	IfConfig(ctx context.Context, name string) (*ifconfig.IPv4Config, error)
	IfConfigDHCP(ctx context.Context, name string) (*ifconfig.DHCPResult, error)
	IfConfigStatic(ctx context.Context, name, address, netmask, gateway, dns string) error
}

// Compile-time assertion that Context implements Port
var _ Port = (*Context)(nil)

// EventPublisher fans out telemetry events.
type EventPublisher interface {
	Publish(event telemetry.Event) error
	PublishInterface(name string, event telemetry.Event) error
}

// AuditLogger writes audit records.
type AuditLogger interface {
	LogControlAction(ctx context.Context, action, iface string, params map[string]interface{}, code string, latency time.Duration)
}

// Metrics receives facade and protocol measurements.
type Metrics interface {
	ifconfig.Recorder
	SetInterfaces(n int)
	ObserveSetting(setting string, ok bool)
}
