//
//
package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/netaddr"
)

// minWriteTimeout leaves room for a DHCP request, which may hold the
// connection for up to 10s.
const minWriteTimeout = 11 * time.Second

// Validate checks the whole configuration and returns every violation.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var err error
	err = multierr.Append(err, wrap("network", validateNetwork(&cfg.Network)))
	err = multierr.Append(err, wrap("interfaces", validateInterfaces(cfg.Interfaces)))
	err = multierr.Append(err, wrap("timing", validateTiming(&cfg.Timing)))
	err = multierr.Append(err, wrap("api", validateAPI(&cfg.API)))
	err = multierr.Append(err, wrap("log", validateLog(&cfg.Log)))
	return err
}

func wrap(section string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s validation failed: %w", section, err)
}

func validateNetwork(n *NetworkConfig) error {
	var err error
	if len(n.Country) != 2 {
		err = multierr.Append(err, fmt.Errorf("country %q must be exactly 2 bytes", n.Country))
	}
	if n.HostnameMaxLen < 2 {
		err = multierr.Append(err, fmt.Errorf("hostnameMaxLen must be at least 2, got %d", n.HostnameMaxLen))
	} else if len(n.Hostname) >= n.HostnameMaxLen {
		err = multierr.Append(err, fmt.Errorf("hostname %q is %d bytes, limit %d", n.Hostname, len(n.Hostname), n.HostnameMaxLen-1))
	}
	switch n.Resolver {
	case ResolverSim:
	case ResolverResolvConf:
		if n.ResolvConfPath == "" {
			err = multierr.Append(err, fmt.Errorf("resolvConfPath is required for resolver %q", n.Resolver))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown resolver %q", n.Resolver))
	}
	if _, perr := netaddr.ParseByteOrder(n.DNSByteOrder); perr != nil {
		err = multierr.Append(err, perr)
	}
	return err
}

func validateInterfaces(ifaces []InterfaceConfig) error {
	var err error
	seen := make(map[string]bool, len(ifaces))
	for i := range ifaces {
		ic := &ifaces[i]
		if ic.Name == "" {
			err = multierr.Append(err, fmt.Errorf("interface %d: name is required", i))
			continue
		}
		if seen[ic.Name] {
			err = multierr.Append(err, fmt.Errorf("interface %s: duplicate name", ic.Name))
		}
		seen[ic.Name] = true
		err = multierr.Append(err, validateInterface(ic))
	}
	return err
}

func validateInterface(ic *InterfaceConfig) error {
	var err error
	fail := func(format string, args ...interface{}) {
		err = multierr.Append(err, fmt.Errorf("interface %s: "+format, append([]interface{}{ic.Name}, args...)...))
	}

	if ic.Driver != DriverSim && ic.Driver != DriverLinux {
		fail("unknown driver %q", ic.Driver)
	}
	if !adapter.Kind(ic.Kind).Valid() {
		fail("unknown kind %q", ic.Kind)
	}
	if _, perr := netaddr.ParseByteOrder(ic.ByteOrder); perr != nil {
		fail("%v", perr)
	}
	if ic.Sim.BindAfter < 0 {
		fail("sim.bindAfter must be non-negative, got %v", ic.Sim.BindAfter)
	}

	switch ic.Boot.Mode {
	case "", BootNone, BootDHCP:
	case BootStatic:
		for _, f := range []struct{ name, val string }{
			{"address", ic.Boot.Address},
			{"netmask", ic.Boot.Netmask},
			{"gateway", ic.Boot.Gateway},
			{"dns", ic.Boot.DNS},
		} {
			if _, perr := netaddr.Parse(f.val); perr != nil {
				fail("boot.%s: %v", f.name, perr)
			}
		}
	default:
		fail("unknown boot mode %q", ic.Boot.Mode)
	}
	return err
}

// validateTiming validates heartbeat, driver and buffer parameters.
func validateTiming(t *TimingConfig) error {
	var err error
	if t.HeartbeatInterval <= 0 {
		err = multierr.Append(err, fmt.Errorf("heartbeat interval must be positive, got %v", t.HeartbeatInterval))
	} else if t.HeartbeatJitter < 0 || t.HeartbeatJitter > t.HeartbeatInterval/2 {
		err = multierr.Append(err, fmt.Errorf("heartbeat jitter %v must be within [0, 50%% of interval %v]", t.HeartbeatJitter, t.HeartbeatInterval))
	}
	if t.DriverOpTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("driver op timeout must be positive, got %v", t.DriverOpTimeout))
	}
	if t.EventBufferSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("event buffer size must be positive, got %d", t.EventBufferSize))
	}
	if t.ShutdownTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("shutdown timeout must be positive, got %v", t.ShutdownTimeout))
	}
	return err
}

func validateAPI(a *APIConfig) error {
	if !a.Enabled {
		return nil
	}
	var err error
	if a.Addr == "" {
		err = multierr.Append(err, fmt.Errorf("addr is required"))
	}
	if a.WriteTimeout < minWriteTimeout {
		err = multierr.Append(err, fmt.Errorf("write timeout %v must be at least %v", a.WriteTimeout, minWriteTimeout))
	}
	if a.ReadTimeout <= 0 || a.IdleTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("read and idle timeouts must be positive"))
	}
	if a.Auth.Enabled && a.Auth.HMACSecret == "" && a.Auth.RSAPublicKeyFile == "" {
		err = multierr.Append(err, fmt.Errorf("auth enabled without hmacSecret or rsaPublicKeyFile"))
	}
	return err
}

func validateLog(l *LogConfig) error {
	var err error
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown level %q", l.Level))
	}
	switch l.Format {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("unknown format %q", l.Format))
	}
	if l.AuditDir != "" && (l.AuditMaxSizeMB <= 0 || l.AuditMaxBackups < 0 || l.AuditMaxAgeDays < 0) {
		err = multierr.Append(err, fmt.Errorf("audit rotation limits must be positive"))
	}
	return err
}
