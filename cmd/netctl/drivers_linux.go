//go:build linux

package main

import (
	"io"

	"go.uber.org/zap"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/adapter/linuxnet"
	"github.com/radio-control/netctl/internal/config"
	"github.com/radio-control/netctl/internal/settings"
)

func openLinux(ic config.InterfaceConfig, st *settings.Settings, resolver adapter.IDNSResolver, logger *zap.Logger) (adapter.INetAdapter, io.Closer, error) {
	h, err := linuxnet.NewNetlinkAdapter(ic.Name, linuxnet.Options{
		Kind:     adapter.Kind(ic.Kind),
		Hostname: st.Hostname,
		Resolver: resolver,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return h, h, nil
}
