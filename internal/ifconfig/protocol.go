package ifconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/netaddr"
	"github.com/radio-control/netctl/internal/telemetry"
)

const (
	// DHCPTimeout bounds StartDHCP, measured from the start of the call.
	DHCPTimeout = 10 * time.Second

	// DHCPPollInterval is the gap between two supplied-address polls.
	DHCPPollInterval = 100 * time.Millisecond

	// DNSSlot is the global DNS server slot read and written by the protocol.
	DNSSlot = 0
)

// IPv4Config is the address quad of one interface.
type IPv4Config struct {
	Address netaddr.Address4 `json:"address"`
	Netmask netaddr.Address4 `json:"netmask"`
	Gateway netaddr.Address4 `json:"gateway"`
	DNS     netaddr.Address4 `json:"dns"`
}

// DHCPResult describes a successful StartDHCP.
type DHCPResult struct {
	Mode   string        `json:"mode"`
	Polls  int           `json:"polls"`
	Waited time.Duration `json:"waited"`
}

// Protocol configures adapters against a shared DNS resolver.
type Protocol struct {
	resolver adapter.IDNSResolver
	clock    clock.Clock
	logger   *zap.Logger
	events   EventPublisher
	recorder Recorder
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithClock replaces the wall clock, typically with a clock.Mock.
func WithClock(clk clock.Clock) Option {
	return func(p *Protocol) { p.clock = clk }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Protocol) { p.logger = l }
}

// WithEvents publishes protocol events to pub.
func WithEvents(pub EventPublisher) Option {
	return func(p *Protocol) { p.events = pub }
}

// WithRecorder reports measurements to r.
func WithRecorder(r Recorder) Option {
	return func(p *Protocol) { p.recorder = r }
}

// New creates a protocol. A nil resolver reads DNS as 0.0.0.0 and ignores
// DNS writes.
func New(resolver adapter.IDNSResolver, opts ...Option) *Protocol {
	p := &Protocol{
		resolver: resolver,
		clock:    clock.New(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("ifconfig")
	return p
}

// GetConfig reads the current quad. It never blocks and has no side effects.
//
// The four values are read one after another. A concurrent SetStatic or a
// lease completing in the stack may be observed half-applied; callers that
// need a consistent view must serialize with writers themselves.
func (p *Protocol) GetConfig(ctx context.Context, nic adapter.INetAdapter) (*IPv4Config, error) {
	raw, err := nic.Addresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("read addresses of %s: %w", nic.Name(), normalize(nic, err))
	}

	order := nic.ByteOrder()
	var cfg IPv4Config
	fields := []struct {
		name string
		raw  []byte
		dst  *netaddr.Address4
	}{
		{"address", raw.IP, &cfg.Address},
		{"netmask", raw.Netmask, &cfg.Netmask},
		{"gateway", raw.Gateway, &cfg.Gateway},
	}
	for _, f := range fields {
		if *f.dst, err = netaddr.Decode(f.raw, order); err != nil {
			return nil, fmt.Errorf("%s of %s: %w", f.name, nic.Name(), err)
		}
	}

	if p.resolver != nil {
		dns, err := p.resolver.DNSServer(ctx, DNSSlot)
		if err != nil {
			return nil, fmt.Errorf("read dns slot %d: %w", DNSSlot, adapter.NormalizeDriverError(err))
		}
		if cfg.DNS, err = netaddr.Decode(dns, p.resolver.ByteOrder()); err != nil {
			return nil, fmt.Errorf("dns slot %d: %w", DNSSlot, err)
		}
	}
	return &cfg, nil
}

// StartDHCP acquires an address by DHCP and waits for it.
//
// An adapter that already holds a DHCP-supplied address is renewed in place;
// otherwise any previous session is stopped before a new one starts. The call
// then blocks, polling every DHCPPollInterval, until an address is supplied
// or DHCPTimeout has passed since the call began. On timeout the negotiation
// is left running in the stack and a *TimeoutError is returned.
func (p *Protocol) StartDHCP(ctx context.Context, nic adapter.INetAdapter) (*DHCPResult, error) {
	start := p.clock.Now()
	name := nic.Name()
	log := p.logger.With(zap.String("interface", name))

	mode := ModeStart
	if nic.DHCPSuppliedAddress(ctx) {
		mode = ModeRenew
	}

	if err := p.initiate(ctx, nic, mode); err != nil {
		err = normalize(nic, err)
		log.Warn("dhcp initiation failed", zap.String("mode", mode), zap.Error(err))
		p.observeDHCP(name, mode, OutcomeError, 0, p.clock.Since(start))
		p.publish(name, telemetry.EventFault, map[string]interface{}{
			"code":    codeOf(err),
			"message": "dhcp " + mode + " failed",
		})
		return nil, fmt.Errorf("ifconfig dhcp on %s: %w", name, err)
	}

	eventType := telemetry.EventDHCPStart
	if mode == ModeRenew {
		eventType = telemetry.EventDHCPRenew
	}
	p.publish(name, eventType, nil)
	log.Debug("dhcp initiated", zap.String("mode", mode))

	wait := NewDHCPWait(nic, p.clock, start)
	err := wait.Run(ctx)
	waited := wait.Elapsed()

	var te *TimeoutError
	switch {
	case err == nil:
		log.Info("dhcp bound",
			zap.String("mode", mode),
			zap.Int("polls", wait.Polls()),
			zap.Duration("waited", waited))
		p.observeDHCP(name, mode, OutcomeBound, wait.Polls(), waited)
		p.publish(name, telemetry.EventDHCPBound, map[string]interface{}{
			"mode":     mode,
			"polls":    wait.Polls(),
			"waitedMs": waited.Milliseconds(),
		})
		return &DHCPResult{Mode: mode, Polls: wait.Polls(), Waited: waited}, nil

	case errors.As(err, &te):
		log.Warn("dhcp timed out",
			zap.String("mode", mode),
			zap.Int("polls", te.Polls),
			zap.Duration("waited", te.Elapsed))
		p.observeDHCP(name, mode, OutcomeTimeout, te.Polls, te.Elapsed)
		p.publish(name, telemetry.EventDHCPTimeout, map[string]interface{}{
			"mode":     mode,
			"polls":    te.Polls,
			"waitedMs": te.Elapsed.Milliseconds(),
		})
		return nil, te

	default:
		log.Info("dhcp wait cancelled", zap.Int("polls", wait.Polls()), zap.Error(err))
		p.observeDHCP(name, mode, OutcomeCancelled, wait.Polls(), p.clock.Since(start))
		return nil, fmt.Errorf("ifconfig dhcp on %s: %w", name, err)
	}
}

// SetStatic releases and stops any DHCP session, then writes address,
// netmask and gateway to the adapter and the DNS server to slot 0.
// The quad is not checked for consistency.
func (p *Protocol) SetStatic(ctx context.Context, nic adapter.INetAdapter, cfg IPv4Config) error {
	name := nic.Name()
	log := p.logger.With(zap.String("interface", name))

	err := p.applyStatic(ctx, nic, cfg)
	if err != nil {
		log.Warn("static configuration failed", zap.Error(err))
		p.observeStatic(name, OutcomeError)
		p.publish(name, telemetry.EventFault, map[string]interface{}{
			"code":    codeOf(err),
			"message": "static configuration failed",
		})
		return fmt.Errorf("ifconfig static on %s: %w", name, err)
	}

	log.Info("static configuration applied",
		zap.Stringer("address", cfg.Address),
		zap.Stringer("netmask", cfg.Netmask),
		zap.Stringer("gateway", cfg.Gateway),
		zap.Stringer("dns", cfg.DNS))
	p.observeStatic(name, OutcomeApplied)
	p.publish(name, telemetry.EventStaticApplied, map[string]interface{}{
		"address": cfg.Address.String(),
		"netmask": cfg.Netmask.String(),
		"gateway": cfg.Gateway.String(),
		"dns":     cfg.DNS.String(),
	})
	return nil
}

func (p *Protocol) initiate(ctx context.Context, nic adapter.INetAdapter, mode string) error {
	if mode == ModeRenew {
		return nic.DHCPRenew(ctx)
	}
	if err := nic.DHCPStop(ctx); err != nil {
		return err
	}
	return nic.DHCPStart(ctx)
}

func (p *Protocol) applyStatic(ctx context.Context, nic adapter.INetAdapter, cfg IPv4Config) error {
	if err := nic.DHCPRelease(ctx); err != nil {
		return normalize(nic, err)
	}
	if err := nic.DHCPStop(ctx); err != nil {
		return normalize(nic, err)
	}

	order := nic.ByteOrder()
	err := nic.SetAddresses(ctx, &adapter.RawAddresses{
		IP:      netaddr.Encode(cfg.Address, order),
		Netmask: netaddr.Encode(cfg.Netmask, order),
		Gateway: netaddr.Encode(cfg.Gateway, order),
	})
	if err != nil {
		return normalize(nic, err)
	}

	if p.resolver != nil {
		raw := netaddr.Encode(cfg.DNS, p.resolver.ByteOrder())
		if err := p.resolver.SetDNSServer(ctx, DNSSlot, raw); err != nil {
			return adapter.NormalizeDriverError(err)
		}
	}
	return nil
}

func (p *Protocol) publish(iface, eventType string, data map[string]interface{}) {
	if p.events == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["interface"] = iface
	data["ts"] = p.clock.Now().UTC().Format(time.RFC3339)

	if err := p.events.PublishInterface(iface, telemetry.Event{Type: eventType, Data: data}); err != nil {
		p.logger.Debug("telemetry publish failed", zap.String("event", eventType), zap.Error(err))
	}
}

func (p *Protocol) observeDHCP(iface, mode, outcome string, polls int, waited time.Duration) {
	if p.recorder != nil {
		p.recorder.ObserveDHCP(iface, mode, outcome, polls, waited)
	}
}

func (p *Protocol) observeStatic(iface, outcome string) {
	if p.recorder != nil {
		p.recorder.ObserveStatic(iface, outcome)
	}
}

func normalize(nic adapter.INetAdapter, err error) error {
	return adapter.NormalizeDriverErrorWithDriver(err, adapter.DriverOf(nic))
}

func codeOf(err error) string {
	if code := adapter.CodeOf(err); code != nil {
		return code.Error()
	}
	return err.Error()
}
