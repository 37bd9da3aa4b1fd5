package network

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/ifconfig"
	"github.com/radio-control/netctl/internal/netaddr"
	"github.com/radio-control/netctl/internal/registry"
	"github.com/radio-control/netctl/internal/settings"
	"github.com/radio-control/netctl/internal/telemetry"
)

// Audit actions.
const (
	ActionRegister = "interface.register"
	ActionGet      = "ifconfig.get"
	ActionDHCP     = "ifconfig.dhcp"
	ActionStatic   = "ifconfig.static"
	ActionCountry  = "country.set"
	ActionHostname = "hostname.set"
)

// Context is the network subsystem instance. It replaces process-wide
// globals: each Context has its own registry and settings.
type Context struct {
	registry *registry.Registry
	settings *settings.Settings
	protocol *ifconfig.Protocol

	resolver  adapter.IDNSResolver
	events    EventPublisher
	audit     AuditLogger
	metrics   Metrics
	logger    *zap.Logger
	clock     clock.Clock
	opTimeout time.Duration

	mu      sync.Mutex
	closers []io.Closer
	closed  bool
}

// Option configures a Context.
type Option func(*Context)

// WithSettings replaces the default settings.
func WithSettings(s *settings.Settings) Option {
	return func(c *Context) { c.settings = s }
}

// WithResolver sets the DNS resolver shared by all interfaces.
func WithResolver(r adapter.IDNSResolver) Option {
	return func(c *Context) { c.resolver = r }
}

// WithClock replaces the wall clock.
func WithClock(clk clock.Clock) Option {
	return func(c *Context) { c.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithEvents publishes telemetry to pub.
func WithEvents(pub EventPublisher) Option {
	return func(c *Context) { c.events = pub }
}

// WithAudit records every command to a.
func WithAudit(a AuditLogger) Option {
	return func(c *Context) { c.audit = a }
}

// WithMetrics reports measurements to m.
func WithMetrics(m Metrics) Option {
	return func(c *Context) { c.metrics = m }
}

// WithOpTimeout bounds reads and static writes. DHCP has its own ceiling.
func WithOpTimeout(d time.Duration) Option {
	return func(c *Context) { c.opTimeout = d }
}

// WithCloser registers a resource that Deinit closes.
func WithCloser(cl io.Closer) Option {
	return func(c *Context) { c.closers = append(c.closers, cl) }
}

// NewContext creates a Context with an empty registry.
func NewContext(opts ...Option) *Context {
	c := &Context{
		clock:  clock.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.settings == nil {
		c.settings = settings.NewDefault()
	}
	c.logger = c.logger.Named("network")
	c.registry = registry.New(c.clock)

	protoOpts := []ifconfig.Option{
		ifconfig.WithClock(c.clock),
		ifconfig.WithLogger(c.logger),
	}
	if c.events != nil {
		protoOpts = append(protoOpts, ifconfig.WithEvents(c.events))
	}
	if c.metrics != nil {
		protoOpts = append(protoOpts, ifconfig.WithRecorder(c.metrics))
	}
	c.protocol = ifconfig.New(c.resolver, protoOpts...)
	return c
}

// RegisterInterface adds h to the registry. Registering the same handle
// again is a no-op; the result reports whether h was added.
func (c *Context) RegisterInterface(ctx context.Context, h adapter.INetAdapter) bool {
	if h == nil {
		return false
	}
	start := c.clock.Now()
	added := c.registry.Register(h)
	if !added {
		return false
	}

	n := c.registry.Len()
	c.logger.Info("interface registered",
		zap.String("interface", h.Name()),
		zap.String("kind", string(h.Kind())),
		zap.Int("position", n-1))
	c.logAudit(ctx, ActionRegister, h.Name(), map[string]interface{}{"kind": string(h.Kind())}, nil, c.clock.Since(start))
	if c.metrics != nil {
		c.metrics.SetInterfaces(n)
	}
	c.publishInterface(h.Name(), telemetry.EventInterfaceRegistered, map[string]interface{}{
		"kind":      string(h.Kind()),
		"byteOrder": h.ByteOrder().String(),
		"position":  n - 1,
	})
	return true
}

// SelectInterface returns the interface that carries traffic to dst. The
// first registered interface always wins.
func (c *Context) SelectInterface(dst netaddr.Address4) (adapter.INetAdapter, error) {
	h, err := c.registry.Select(dst)
	if err != nil {
		return nil, ioError(err)
	}
	return h, nil
}

// ListInterfaces returns the registered handles in registration order.
func (c *Context) ListInterfaces() []adapter.INetAdapter {
	return c.registry.Snapshot()
}

// Route returns the routes view of the registry.
func (c *Context) Route() *registry.InterfaceList {
	return c.registry.List()
}

// Interface looks a registered handle up by name.
func (c *Context) Interface(name string) (adapter.INetAdapter, error) {
	return c.registry.Lookup(name)
}

// Country returns the two-byte country code.
func (c *Context) Country() string {
	return c.settings.Country()
}

// SetCountry replaces the country code.
func (c *Context) SetCountry(ctx context.Context, code string) error {
	return c.setSetting(ctx, ActionCountry, "country", code, c.settings.SetCountry)
}

// Hostname returns the hostname.
func (c *Context) Hostname() string {
	return c.settings.Hostname()
}

// SetHostname replaces the hostname.
func (c *Context) SetHostname(ctx context.Context, name string) error {
	return c.setSetting(ctx, ActionHostname, "hostname", name, c.settings.SetHostname)
}

// Settings returns both settings read together.
func (c *Context) Settings() settings.Values {
	return c.settings.Values()
}

func (c *Context) setSetting(ctx context.Context, action, key, value string, set func(string) error) error {
	start := c.clock.Now()
	err := set(value)
	params := map[string]interface{}{key: value}
	c.logAudit(ctx, action, "", params, err, c.clock.Since(start))
	if c.metrics != nil {
		c.metrics.ObserveSetting(key, err == nil)
	}
	if err != nil {
		c.logger.Debug("setting rejected", zap.String("setting", key), zap.Error(err))
		return valueError(err)
	}

	c.logger.Info("setting changed", zap.String("setting", key), zap.String("value", value))
	c.publish(telemetry.EventSettingsChanged, map[string]interface{}{
		"setting": key,
		"value":   value,
	})
	return nil
}

// IfConfig reads the quad of the named interface.
func (c *Context) IfConfig(ctx context.Context, name string) (*ifconfig.IPv4Config, error) {
	start := c.clock.Now()
	nic, err := c.registry.Lookup(name)
	if err != nil {
		c.logAudit(ctx, ActionGet, name, nil, err, c.clock.Since(start))
		return nil, err
	}

	opCtx, cancel := c.withOpTimeout(ctx)
	defer cancel()

	cfg, err := c.protocol.GetConfig(opCtx, nic)
	c.logAudit(ctx, ActionGet, name, nil, err, c.clock.Since(start))
	if err != nil {
		return nil, classify(err)
	}
	return cfg, nil
}

// IfConfigDHCP acquires an address by DHCP, blocking for up to
// ifconfig.DHCPTimeout or until ctx is done.
func (c *Context) IfConfigDHCP(ctx context.Context, name string) (*ifconfig.DHCPResult, error) {
	start := c.clock.Now()
	nic, err := c.registry.Lookup(name)
	if err != nil {
		c.logAudit(ctx, ActionDHCP, name, nil, err, c.clock.Since(start))
		return nil, err
	}

	res, err := c.protocol.StartDHCP(ctx, nic)
	var params map[string]interface{}
	if res != nil {
		params = map[string]interface{}{"mode": res.Mode, "polls": res.Polls}
	}
	c.logAudit(ctx, ActionDHCP, name, params, err, c.clock.Since(start))
	if err != nil {
		return nil, classify(err)
	}
	return res, nil
}

// IfConfigStatic parses the four dotted quads and applies them.
func (c *Context) IfConfigStatic(ctx context.Context, name, address, netmask, gateway, dns string) error {
	params := map[string]interface{}{
		"address": address,
		"netmask": netmask,
		"gateway": gateway,
		"dns":     dns,
	}
	cfg, err := parseQuad(address, netmask, gateway, dns)
	if err != nil {
		c.logAudit(ctx, ActionStatic, name, params, err, 0)
		return valueError(err)
	}
	return c.applyStatic(ctx, name, *cfg, params)
}

// IfConfigStaticConfig applies an already parsed quad.
func (c *Context) IfConfigStaticConfig(ctx context.Context, name string, cfg ifconfig.IPv4Config) error {
	return c.applyStatic(ctx, name, cfg, map[string]interface{}{
		"address": cfg.Address.String(),
		"netmask": cfg.Netmask.String(),
		"gateway": cfg.Gateway.String(),
		"dns":     cfg.DNS.String(),
	})
}

func (c *Context) applyStatic(ctx context.Context, name string, cfg ifconfig.IPv4Config, params map[string]interface{}) error {
	start := c.clock.Now()
	nic, err := c.registry.Lookup(name)
	if err != nil {
		c.logAudit(ctx, ActionStatic, name, params, err, c.clock.Since(start))
		return err
	}

	opCtx, cancel := c.withOpTimeout(ctx)
	defer cancel()

	err = c.protocol.SetStatic(opCtx, nic, cfg)
	c.logAudit(ctx, ActionStatic, name, params, err, c.clock.Since(start))
	return classify(err)
}

func parseQuad(address, netmask, gateway, dns string) (*ifconfig.IPv4Config, error) {
	var cfg ifconfig.IPv4Config
	fields := []struct {
		name string
		text string
		dst  *netaddr.Address4
	}{
		{"address", address, &cfg.Address},
		{"netmask", netmask, &cfg.Netmask},
		{"gateway", gateway, &cfg.Gateway},
		{"dns", dns, &cfg.DNS},
	}
	for _, f := range fields {
		a, err := netaddr.Parse(f.text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = a
	}
	return &cfg, nil
}

// Snapshot is the state sent to telemetry clients on connect.
func (c *Context) Snapshot() interface{} {
	return map[string]interface{}{
		"interfaces": c.registry.List(),
		"settings":   c.settings.Values(),
	}
}

// Deinit empties the registry and closes owned resources. It is safe to call
// more than once; only the first call closes anything.
func (c *Context) Deinit() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	n := c.registry.Clear()
	if c.metrics != nil {
		c.metrics.SetInterfaces(0)
	}

	var err error
	for i := len(closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, closers[i].Close())
	}
	c.logger.Info("network context deinitialized", zap.Int("interfaces", n), zap.Error(err))
	return err
}

func (c *Context) withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *Context) logAudit(ctx context.Context, action, iface string, params map[string]interface{}, err error, latency time.Duration) {
	if c.audit != nil {
		c.audit.LogControlAction(ctx, action, iface, params, Code(err), latency)
	}
}

func (c *Context) publish(eventType string, data map[string]interface{}) {
	if c.events == nil {
		return
	}
	data["ts"] = c.clock.Now().UTC().Format(time.RFC3339)
	if err := c.events.Publish(telemetry.Event{Type: eventType, Data: data}); err != nil {
		c.logger.Debug("telemetry publish failed", zap.String("event", eventType), zap.Error(err))
	}
}

func (c *Context) publishInterface(name, eventType string, data map[string]interface{}) {
	if c.events == nil {
		return
	}
	data["interface"] = name
	data["ts"] = c.clock.Now().UTC().Format(time.RFC3339)
	if err := c.events.PublishInterface(name, telemetry.Event{Type: eventType, Data: data}); err != nil {
		c.logger.Debug("telemetry publish failed", zap.String("event", eventType), zap.Error(err))
	}
}
