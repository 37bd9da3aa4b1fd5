package main

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/adapter/fake"
	"github.com/radio-control/netctl/internal/config"
	"github.com/radio-control/netctl/internal/ifconfig"
	"github.com/radio-control/netctl/internal/netaddr"
	"github.com/radio-control/netctl/internal/settings"
)

// openInterface creates the handle for one configured interface. The closer
// is nil when the driver holds no resources.
func openInterface(ic config.InterfaceConfig, st *settings.Settings, resolver adapter.IDNSResolver, logger *zap.Logger) (adapter.INetAdapter, io.Closer, error) {
	switch ic.Driver {
	case config.DriverSim, "":
		h, err := openSim(ic, resolver)
		return h, nil, err
	case config.DriverLinux:
		return openLinux(ic, st, resolver, logger)
	}
	return nil, nil, fmt.Errorf("unknown driver %q", ic.Driver)
}

func openSim(ic config.InterfaceConfig, resolver adapter.IDNSResolver) (*fake.FakeAdapter, error) {
	order, err := netaddr.ParseByteOrder(ic.ByteOrder)
	if err != nil {
		return nil, err
	}
	h := fake.NewFakeAdapter(ic.Name, adapter.Kind(ic.Kind), order)
	if ic.Sim.NeverBind {
		h.SetBindAfter(-1)
	} else {
		h.SetBindAfter(int(ic.Sim.BindAfter / ifconfig.DHCPPollInterval))
	}
	if r, ok := resolver.(*fake.FakeResolver); ok {
		h.AttachResolver(r)
	}
	return h, nil
}
