package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/adapter/fake"
	"github.com/radio-control/netctl/internal/adapter/linuxnet"
	"github.com/radio-control/netctl/internal/api"
	"github.com/radio-control/netctl/internal/audit"
	"github.com/radio-control/netctl/internal/auth"
	"github.com/radio-control/netctl/internal/config"
	"github.com/radio-control/netctl/internal/ifconfig"
	"github.com/radio-control/netctl/internal/logging"
	"github.com/radio-control/netctl/internal/metrics"
	"github.com/radio-control/netctl/internal/netaddr"
	"github.com/radio-control/netctl/internal/network"
	"github.com/radio-control/netctl/internal/settings"
	"github.com/radio-control/netctl/internal/telemetry"
)

func newApp(cfg *config.Config) *fx.App {
	return fx.New(appOptions(cfg))
}

// appOptions assembles the service. extra options are appended, which lets
// tests populate components.
func appOptions(cfg *config.Config, extra ...fx.Option) fx.Option {
	opts := []fx.Option{
		fx.Supply(cfg),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Provide(
			newLogger,
			newAuditLogger,
			newHub,
			metrics.NewCollector,
			newSettings,
			newResolver,
			newInterfaces,
			newNetwork,
			newAuthMiddleware,
			newServer,
		),
		fx.Invoke(registerNetwork, registerServer),
		fx.StopTimeout(cfg.Timing.ShutdownTimeout),
	}
	return fx.Options(append(opts, extra...)...)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log)
}

func newAuditLogger(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (*audit.Logger, error) {
	if cfg.Log.AuditDir == "" {
		return audit.NewWriterLogger(io.Discard, logger), nil
	}
	l, err := audit.NewLogger(cfg.Log.AuditDir, audit.Rotation{
		MaxSizeMB:  cfg.Log.AuditMaxSizeMB,
		MaxBackups: cfg.Log.AuditMaxBackups,
		MaxAgeDays: cfg.Log.AuditMaxAgeDays,
		Compress:   cfg.Log.AuditCompress,
	}, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.StopHook(l.Close))
	return l, nil
}

func newHub(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *telemetry.Hub {
	hub := telemetry.NewHub(&cfg.Timing, logger)
	lc.Append(fx.StopHook(hub.Stop))
	return hub
}

func newSettings(cfg *config.Config) (*settings.Settings, error) {
	return settings.New(cfg.Network.Country, cfg.Network.Hostname, cfg.Network.HostnameMaxLen)
}

func newResolver(cfg *config.Config) (adapter.IDNSResolver, error) {
	switch cfg.Network.Resolver {
	case config.ResolverResolvConf:
		return linuxnet.NewResolvConf(cfg.Network.ResolvConfPath), nil
	case config.ResolverSim, "":
		order, err := netaddr.ParseByteOrder(cfg.Network.DNSByteOrder)
		if err != nil {
			return nil, err
		}
		return fake.NewFakeResolver(order), nil
	}
	return nil, fmt.Errorf("unknown resolver %q", cfg.Network.Resolver)
}

// interfaces are the opened handles in configuration order.
type interfaces struct {
	handles []adapter.INetAdapter
	closers []io.Closer
}

func newInterfaces(cfg *config.Config, st *settings.Settings, resolver adapter.IDNSResolver, logger *zap.Logger) (*interfaces, error) {
	out := &interfaces{}
	for _, ic := range cfg.Interfaces {
		h, closer, err := openInterface(ic, st, resolver, logger)
		if err != nil {
			for _, cl := range out.closers {
				cl.Close()
			}
			return nil, fmt.Errorf("interface %s: %w", ic.Name, err)
		}
		out.handles = append(out.handles, h)
		if closer != nil {
			out.closers = append(out.closers, closer)
		}
	}
	return out, nil
}

func newNetwork(cfg *config.Config, st *settings.Settings, resolver adapter.IDNSResolver, ifaces *interfaces,
	hub *telemetry.Hub, auditLogger *audit.Logger, collector *metrics.Collector, logger *zap.Logger) *network.Context {
	opts := []network.Option{
		network.WithSettings(st),
		network.WithResolver(resolver),
		network.WithLogger(logger),
		network.WithEvents(hub),
		network.WithAudit(auditLogger),
		network.WithMetrics(collector),
		network.WithOpTimeout(cfg.Timing.DriverOpTimeout),
	}
	for _, cl := range ifaces.closers {
		opts = append(opts, network.WithCloser(cl))
	}
	nw := network.NewContext(opts...)
	hub.SetSnapshotFunc(nw.Snapshot)
	return nw
}

func newAuthMiddleware(cfg *config.Config) (*auth.Middleware, error) {
	ac := cfg.API.Auth
	if !ac.Enabled {
		return auth.NewMiddleware(), nil
	}
	var (
		v   *auth.Verifier
		err error
	)
	if ac.RSAPublicKeyFile != "" {
		v, err = auth.NewVerifierFromFile(ac.RSAPublicKeyFile)
	} else {
		v, err = auth.NewVerifier(auth.VerifierConfig{Algorithm: auth.AlgHS256, SecretKey: ac.HMACSecret})
	}
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	return auth.NewMiddlewareWithVerifier(v), nil
}

func newServer(cfg *config.Config, nw *network.Context, hub *telemetry.Hub, collector *metrics.Collector,
	mw *auth.Middleware, logger *zap.Logger) *api.Server {
	return api.NewServer(nw, hub, collector.Handler(), mw, cfg.API, logger)
}

// registerNetwork registers every interface on start, then applies boot
// configuration in the background. Stop cancels a pending boot and releases
// the stack.
func registerNetwork(lc fx.Lifecycle, cfg *config.Config, nw *network.Context, ifaces *interfaces, logger *zap.Logger) {
	bootCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for i, h := range ifaces.handles {
				nw.RegisterInterface(ctx, h)
				ic := cfg.Interfaces[i]
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := boot(bootCtx, nw, ic); err != nil {
						logger.Warn("Boot configuration failed",
							zap.String("interface", ic.Name),
							zap.String("mode", ic.Boot.Mode),
							zap.String("code", network.Code(err)),
							zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			wg.Wait()
			return nw.Deinit()
		},
	})
}

// boot applies an interface's startup configuration.
func boot(ctx context.Context, nw *network.Context, ic config.InterfaceConfig) error {
	switch ic.Boot.Mode {
	case config.BootDHCP:
		_, err := nw.IfConfigDHCP(ctx, ic.Name)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case config.BootStatic:
		quad, err := bootQuad(ic.Boot)
		if err != nil {
			return err
		}
		return nw.IfConfigStaticConfig(ctx, ic.Name, quad)
	}
	return nil
}

// bootQuad parses a static boot quad. Load has already validated it.
func bootQuad(b config.BootConfig) (ifconfig.IPv4Config, error) {
	var quad ifconfig.IPv4Config
	for _, f := range []struct {
		name string
		text string
		dst  *netaddr.Address4
	}{
		{"address", b.Address, &quad.Address},
		{"netmask", b.Netmask, &quad.Netmask},
		{"gateway", b.Gateway, &quad.Gateway},
		{"dns", b.DNS, &quad.DNS},
	} {
		a, err := netaddr.Parse(f.text)
		if err != nil {
			return ifconfig.IPv4Config{}, fmt.Errorf("boot %s: %w", f.name, err)
		}
		*f.dst = a
	}
	return quad, nil
}

func registerServer(lc fx.Lifecycle, cfg *config.Config, server *api.Server, logger *zap.Logger) {
	if !cfg.API.Enabled {
		logger.Info("API disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr, err := server.Listen()
			if err != nil {
				return err
			}
			logger.Info("netctl started",
				zap.String("version", api.Version),
				zap.Stringer("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Stop(ctx)
		},
	})
}
