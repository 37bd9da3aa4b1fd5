//go:build linux

package linuxnet

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv4/nclient4"
	"github.com/jackpal/gateway"
	"github.com/vishvananda/netlink"
	"go.uber.org/zap"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/logging"
	"github.com/radio-control/netctl/internal/netaddr"
)

// DriverName selects the linux error token table.
const DriverName = "linux"

// Options configures a NetlinkAdapter.
type Options struct {
	// Kind defaults to ethernet.
	Kind adapter.Kind

	// Hostname is sent in DHCP requests when it returns a non-empty name.
	Hostname func() string

	// Resolver receives the first DNS server of every bound lease.
	Resolver adapter.IDNSResolver

	Logger *zap.Logger
}

// dhcpClient is the part of *nclient4.Client the adapter drives.
type dhcpClient interface {
	Request(ctx context.Context, modifiers ...dhcpv4.Modifier) (*nclient4.Lease, error)
	Renew(ctx context.Context, lease *nclient4.Lease, modifiers ...dhcpv4.Modifier) (*nclient4.Lease, error)
	Release(lease *nclient4.Lease, modifiers ...dhcpv4.Modifier) error
	Close() error
}

func newNClient(iface string) (dhcpClient, error) {
	c, err := nclient4.New(iface)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// NetlinkAdapter drives one kernel link.
//
// At most one DHCP exchange (request or renew) runs at a time. Link writes
// happen under mu, so a stopped exchange can never apply its lease.
type NetlinkAdapter struct {
	adapter.AdapterBase

	handle   *netlink.Handle
	hostname func() string
	resolver adapter.IDNSResolver
	logger   *zap.Logger

	newClient  func(iface string) (dhcpClient, error)
	applyAddrs func(ip, mask, gw netaddr.Address4) error

	mu       sync.Mutex
	client   dhcpClient
	lease    *nclient4.Lease
	supplied bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewNetlinkAdapter opens a netlink handle for the link called name.
func NewNetlinkAdapter(name string, opts Options) (*NetlinkAdapter, error) {
	h, err := netlink.NewHandle()
	if err != nil {
		return nil, fmt.Errorf("netlink handle: %w", err)
	}
	if _, err := h.LinkByName(name); err != nil {
		h.Close()
		return nil, fmt.Errorf("link %s: %w", name, err)
	}
	kind := opts.Kind
	if kind == "" {
		kind = adapter.KindEthernet
	}
	a := &NetlinkAdapter{
		AdapterBase: adapter.AdapterBase{
			InterfaceName: name,
			InterfaceKind: kind,
			Order:         netaddr.BigEndian,
			DriverName:    DriverName,
		},
		handle:    h,
		hostname:  opts.Hostname,
		resolver:  opts.Resolver,
		logger:    logging.OrNop(opts.Logger).With(zap.String("interface", name)),
		newClient: newNClient,
	}
	a.applyAddrs = a.apply
	return a, nil
}

// Close stops any DHCP exchange and releases the netlink handle.
func (a *NetlinkAdapter) Close() error {
	a.mu.Lock()
	a.stopLocked()
	a.mu.Unlock()
	if a.handle != nil {
		a.handle.Close()
	}
	return nil
}

func (a *NetlinkAdapter) link() (netlink.Link, error) {
	return a.handle.LinkByName(a.InterfaceName)
}

// Addresses reads the first IPv4 address of the link and the default route
// through it. When the kernel has no default route on this link the gateway
// is discovered from the host routing table.
func (a *NetlinkAdapter) Addresses(ctx context.Context) (*adapter.RawAddresses, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	link, err := a.link()
	if err != nil {
		return nil, err
	}
	addrs, err := a.handle.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, err
	}

	ip, mask, gw := netaddr.Unspecified, netaddr.Unspecified, netaddr.Unspecified
	for _, addr := range addrs {
		if addr.IPNet == nil {
			continue
		}
		v4, err := netaddr.FromIP(addr.IP)
		if err != nil {
			continue
		}
		ip = v4
		copy(mask[:], addr.Mask)
		break
	}

	if r, ok := a.defaultRoute(link); ok {
		gw, _ = netaddr.FromIP(r.Gw)
	} else if !ip.IsUnspecified() {
		gw = discoverGateway(ip)
	}

	order := a.ByteOrder()
	return &adapter.RawAddresses{
		IP:      netaddr.Encode(ip, order),
		Netmask: netaddr.Encode(mask, order),
		Gateway: netaddr.Encode(gw, order),
	}, nil
}

// SetAddresses replaces every IPv4 address on the link with ip/netmask and
// points the default route at gateway. A zero gateway removes the route.
func (a *NetlinkAdapter) SetAddresses(ctx context.Context, addrs *adapter.RawAddresses) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if addrs == nil {
		return fmt.Errorf("OUT_OF_RANGE: nil addresses")
	}
	order := a.ByteOrder()
	ip, err := netaddr.Decode(addrs.IP, order)
	if err != nil {
		return fmt.Errorf("OUT_OF_RANGE: ip: %w", err)
	}
	mask, err := netaddr.Decode(addrs.Netmask, order)
	if err != nil {
		return fmt.Errorf("OUT_OF_RANGE: netmask: %w", err)
	}
	gw, err := netaddr.Decode(addrs.Gateway, order)
	if err != nil {
		return fmt.Errorf("OUT_OF_RANGE: gateway: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.applyAddrs(ip, mask, gw); err != nil {
		return err
	}
	a.supplied = false
	return nil
}

func (a *NetlinkAdapter) apply(ip, mask, gw netaddr.Address4) error {
	link, err := a.link()
	if err != nil {
		return err
	}
	if err := a.handle.LinkSetUp(link); err != nil {
		return err
	}

	existing, err := a.handle.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return err
	}
	for i := range existing {
		if existing[i].IP.Equal(ip.IP()) {
			continue
		}
		if err := a.handle.AddrDel(link, &existing[i]); err != nil {
			return err
		}
	}
	if !ip.IsUnspecified() {
		addr := &netlink.Addr{IPNet: &net.IPNet{IP: ip.IP(), Mask: mask.Mask()}}
		if err := a.handle.AddrReplace(link, addr); err != nil {
			return err
		}
	}

	if r, ok := a.defaultRoute(link); ok && gw.IsUnspecified() {
		return a.handle.RouteDel(&r)
	}
	if gw.IsUnspecified() {
		return nil
	}
	return a.handle.RouteReplace(&netlink.Route{
		LinkIndex: link.Attrs().Index,
		Gw:        gw.IP(),
	})
}

func (a *NetlinkAdapter) defaultRoute(link netlink.Link) (netlink.Route, bool) {
	routes, err := a.handle.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		return netlink.Route{}, false
	}
	for _, r := range routes {
		if r.Gw == nil {
			continue
		}
		if r.Dst == nil {
			return r, true
		}
		if ones, _ := r.Dst.Mask.Size(); ones == 0 {
			return r, true
		}
	}
	return netlink.Route{}, false
}

// discoverGateway returns the host default gateway when its outbound
// interface address is ip.
func discoverGateway(ip netaddr.Address4) netaddr.Address4 {
	local, err := gateway.DiscoverInterface()
	if err != nil || !local.Equal(ip.IP()) {
		return netaddr.Unspecified
	}
	gw, err := gateway.DiscoverGateway()
	if err != nil {
		return netaddr.Unspecified
	}
	a, err := netaddr.FromIP(gw)
	if err != nil {
		return netaddr.Unspecified
	}
	return a
}

// DHCPStart opens a DHCPv4 client and runs DISCOVER/OFFER/REQUEST/ACK in the
// background. The address is applied when the ACK arrives.
func (a *NetlinkAdapter) DHCPStart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	client, err := a.newClient(a.InterfaceName)
	if err != nil {
		return err
	}
	a.client = client
	a.lease = nil

	a.exchangeLocked("request", func(ctx context.Context) (*nclient4.Lease, error) {
		return client.Request(ctx, a.modifiers()...)
	})
	return nil
}

// DHCPRenew refreshes the lease with a unicast REQUEST and keeps the
// current address until the new ACK is applied.
func (a *NetlinkAdapter) DHCPRenew(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	a.cancelExchangeLocked()
	client, lease := a.client, a.lease
	if client == nil || lease == nil {
		a.mu.Unlock()
		return a.DHCPStart(ctx)
	}
	defer a.mu.Unlock()

	a.exchangeLocked("renew", func(ctx context.Context) (*nclient4.Lease, error) {
		return client.Renew(ctx, lease, a.modifiers()...)
	})
	return nil
}

// DHCPStop abandons the exchange and drops a DHCP-supplied address.
func (a *NetlinkAdapter) DHCPStop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopLocked()
	supplied := a.supplied
	a.lease = nil
	a.supplied = false
	if supplied {
		return a.applyAddrs(netaddr.Unspecified, netaddr.Unspecified, netaddr.Unspecified)
	}
	return nil
}

// DHCPRelease sends a RELEASE for the current lease, if any.
func (a *NetlinkAdapter) DHCPRelease(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	a.cancelExchangeLocked()
	client, lease := a.client, a.lease
	a.mu.Unlock()
	if client == nil || lease == nil {
		return nil
	}
	if err := client.Release(lease); err != nil {
		return err
	}
	return a.DHCPStop(ctx)
}

// DHCPSuppliedAddress reports whether the link address came from a bound
// lease.
func (a *NetlinkAdapter) DHCPSuppliedAddress(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.supplied
}

func (a *NetlinkAdapter) modifiers() []dhcpv4.Modifier {
	if a.hostname == nil {
		return nil
	}
	name := a.hostname()
	if name == "" {
		return nil
	}
	return []dhcpv4.Modifier{dhcpv4.WithOption(dhcpv4.OptHostName(name))}
}

// exchangeLocked runs one DHCP exchange in the background and binds its
// lease. cancelExchangeLocked stops it and waits for it to return.
func (a *NetlinkAdapter) exchangeLocked(kind string, run func(ctx context.Context) (*nclient4.Lease, error)) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done

	go func() {
		defer close(done)
		lease, err := run(runCtx)
		if err != nil {
			if runCtx.Err() == nil {
				a.logger.Warn("DHCP exchange failed", zap.String("exchange", kind), zap.Error(err))
			}
			return
		}
		a.bind(runCtx, lease)
	}()
}

func (a *NetlinkAdapter) bind(ctx context.Context, lease *nclient4.Lease) {
	ack := lease.ACK
	ip, err := netaddr.FromIP(ack.YourIPAddr)
	if err != nil || ip.IsUnspecified() {
		a.logger.Warn("DHCP ACK without an IPv4 address")
		return
	}
	var mask, gw netaddr.Address4
	if m := ack.SubnetMask(); len(m) == net.IPv4len {
		copy(mask[:], m)
	}
	if routers := ack.Router(); len(routers) > 0 {
		gw, _ = netaddr.FromIP(routers[0])
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// Exchanges are cancelled under mu.
	if ctx.Err() != nil {
		return
	}
	if err := a.applyAddrs(ip, mask, gw); err != nil {
		a.logger.Error("Failed to apply DHCP lease", zap.Error(err))
		return
	}
	if dns := ack.DNS(); len(dns) > 0 && a.resolver != nil {
		if srv, err := netaddr.FromIP(dns[0]); err == nil {
			if err := a.resolver.SetDNSServer(ctx, 0, netaddr.Encode(srv, a.resolver.ByteOrder())); err != nil {
				a.logger.Warn("Failed to write DNS server", zap.Error(err))
			}
		}
	}
	a.lease = lease
	a.supplied = true

	a.logger.Info("DHCP lease bound",
		zap.Stringer("ip", ip),
		zap.Stringer("netmask", mask),
		zap.Stringer("gateway", gw),
		zap.Duration("lease_time", ack.IPAddressLeaseTime(0)))
}

// cancelExchangeLocked cancels the running exchange and waits for it. mu is
// released while waiting so a binding exchange can finish.
func (a *NetlinkAdapter) cancelExchangeLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.done != nil {
		done := a.done
		a.done = nil
		a.mu.Unlock()
		<-done
		a.mu.Lock()
	}
}

// stopLocked cancels the exchange and closes the client.
func (a *NetlinkAdapter) stopLocked() {
	a.cancelExchangeLocked()
	if a.client != nil {
		a.client.Close()
		a.client = nil
	}
}

var _ adapter.INetAdapter = (*NetlinkAdapter)(nil)
