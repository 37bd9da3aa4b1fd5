//go:build !linux

package main

import (
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/config"
	"github.com/radio-control/netctl/internal/settings"
)

func openLinux(config.InterfaceConfig, *settings.Settings, adapter.IDNSResolver, *zap.Logger) (adapter.INetAdapter, io.Closer, error) {
	return nil, nil, errors.New("linux driver requires a linux host")
}
