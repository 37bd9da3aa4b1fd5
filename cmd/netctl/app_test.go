package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/radio-control/netctl/internal/adapter/fake"
	"github.com/radio-control/netctl/internal/api"
	"github.com/radio-control/netctl/internal/config"
	"github.com/radio-control/netctl/internal/netaddr"
	"github.com/radio-control/netctl/internal/network"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.API.Addr = "127.0.0.1:0"
	cfg.Log.Level = "error"
	return cfg
}

func startApp(t *testing.T, cfg *config.Config, populate ...interface{}) *fxtest.App {
	t.Helper()
	app := fxtest.New(t, appOptions(cfg, fx.Populate(populate...)))
	app.RequireStart()
	t.Cleanup(func() { app.RequireStop() })
	return app
}

func TestAppRegistersConfiguredInterfaces(t *testing.T) {
	cfg := testConfig()
	cfg.Interfaces = append(cfg.Interfaces, config.InterfaceConfig{
		Name:      "ap0",
		Driver:    config.DriverSim,
		Kind:      "access-point",
		ByteOrder: "little",
		Boot:      config.BootConfig{Mode: config.BootNone},
	})

	var nw *network.Context
	startApp(t, cfg, &nw)

	names := []string{}
	for _, h := range nw.ListInterfaces() {
		names = append(names, h.Name())
	}
	assert.Equal(t, []string{"sim0", "ap0"}, names)
}

func TestAppBootStatic(t *testing.T) {
	cfg := testConfig()
	cfg.Interfaces[0].Boot = config.BootConfig{
		Mode:    config.BootStatic,
		Address: "10.1.2.3",
		Netmask: "255.255.0.0",
		Gateway: "10.1.0.1",
		DNS:     "10.1.0.53",
	}

	var nw *network.Context
	startApp(t, cfg, &nw)

	want := netaddr.MustParse("10.1.2.3")
	assert.Eventually(t, func() bool {
		got, err := nw.IfConfig(context.Background(), "sim0")
		return err == nil && got.Address == want
	}, 2*time.Second, 10*time.Millisecond)

	got, err := nw.IfConfig(context.Background(), "sim0")
	require.NoError(t, err)
	assert.Equal(t, netaddr.MustParse("10.1.0.53"), got.DNS)
}

func TestBootQuad(t *testing.T) {
	quad, err := bootQuad(config.BootConfig{
		Address: "192.0.2.10",
		Netmask: "255.255.255.0",
		Gateway: "192.0.2.1",
		DNS:     "192.0.2.53",
	})
	require.NoError(t, err)
	assert.Equal(t, netaddr.MustParse("192.0.2.10"), quad.Address)
	assert.Equal(t, netaddr.MustParse("255.255.255.0"), quad.Netmask)
	assert.Equal(t, netaddr.MustParse("192.0.2.1"), quad.Gateway)
	assert.Equal(t, netaddr.MustParse("192.0.2.53"), quad.DNS)

	_, err = bootQuad(config.BootConfig{Address: "192.0.2.10", Netmask: "255.255.255.0", Gateway: "bogus", DNS: "192.0.2.53"})
	assert.ErrorIs(t, err, netaddr.ErrMalformedAddress)
	assert.Contains(t, err.Error(), "gateway")
}

func TestAppBootDHCP(t *testing.T) {
	cfg := testConfig()
	cfg.Interfaces[0].Boot.Mode = config.BootDHCP

	var nw *network.Context
	startApp(t, cfg, &nw)

	assert.Eventually(t, func() bool {
		got, err := nw.IfConfig(context.Background(), "sim0")
		return err == nil && got.Address == fake.DefaultLease.IP
	}, 3*time.Second, 20*time.Millisecond)
}

func TestAppStopCancelsPendingBoot(t *testing.T) {
	cfg := testConfig()
	cfg.Interfaces[0].Boot.Mode = config.BootDHCP
	cfg.Interfaces[0].Sim.NeverBind = true

	app := fxtest.New(t, appOptions(cfg))
	app.RequireStart()

	stopped := make(chan struct{})
	go func() {
		app.RequireStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("stop blocked on the DHCP wait")
	}
}

func TestAppServesHealth(t *testing.T) {
	var server *api.Server
	startApp(t, testConfig(), &server)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAppAuditToDirectory(t *testing.T) {
	cfg := testConfig()
	cfg.Log.AuditDir = t.TempDir()

	var nw *network.Context
	startApp(t, cfg, &nw)

	require.NoError(t, nw.SetCountry(context.Background(), "GB"))
	assert.FileExists(t, filepath.Join(cfg.Log.AuditDir, "audit.jsonl"))
}

func TestNewAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	mw, err := newAuthMiddleware(cfg)
	require.NoError(t, err)
	assert.False(t, mw.Enabled())

	cfg.API.Auth = config.AuthConfig{Enabled: true, HMACSecret: "s3cret"}
	mw, err = newAuthMiddleware(cfg)
	require.NoError(t, err)
	assert.True(t, mw.Enabled())

	cfg.API.Auth = config.AuthConfig{Enabled: true, RSAPublicKeyFile: filepath.Join(t.TempDir(), "missing.pem")}
	_, err = newAuthMiddleware(cfg)
	assert.Error(t, err)
}

func TestOpenInterfaceUnknownDriver(t *testing.T) {
	ic := config.InterfaceConfig{Name: "x0", Driver: "vxworks"}
	_, _, err := openInterface(ic, nil, nil, nil)
	assert.Error(t, err)
}

func TestOpenSimBindAfter(t *testing.T) {
	ic := config.InterfaceConfig{
		Name:      "sim1",
		Kind:      "station",
		ByteOrder: "big",
		Sim:       config.SimConfig{BindAfter: 0},
	}
	h, err := openSim(ic, fake.NewFakeResolver(netaddr.BigEndian))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, h.DHCPStart(ctx))
	assert.True(t, h.DHCPSuppliedAddress(ctx))
}
