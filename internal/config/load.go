//
//
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// EnvConfigFile names the YAML file Load reads when no path is given.
const EnvConfigFile = "NETCTL_CONFIG"

// Load merges Defaults() + the YAML file at path (or $NETCTL_CONFIG) +
// NETCTL_* environment overrides, then validates.
// An empty path with NETCTL_CONFIG unset uses defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := LoadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyInterfaceDefaults(cfg.Interfaces)

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFile decodes the YAML file at path over cfg. Keys absent from the file
// keep their current values; a present interfaces list replaces the default
// one entirely.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyInterfaceDefaults fills fields a file may leave out.
func applyInterfaceDefaults(ifaces []InterfaceConfig) {
	for i := range ifaces {
		ic := &ifaces[i]
		if ic.Driver == "" {
			ic.Driver = DriverSim
		}
		if ic.Kind == "" {
			ic.Kind = "station"
		}
		if ic.ByteOrder == "" {
			ic.ByteOrder = "big"
		}
		if ic.Boot.Mode == "" {
			ic.Boot.Mode = BootNone
		}
	}
}

// applyEnvOverrides applies NETCTL_* environment variables to cfg.
// Malformed numeric or duration values are errors, not silently ignored.
func applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"NETCTL_COUNTRY", &cfg.Network.Country},
		{"NETCTL_HOSTNAME", &cfg.Network.Hostname},
		{"NETCTL_RESOLVER", &cfg.Network.Resolver},
		{"NETCTL_API_ADDR", &cfg.API.Addr},
		{"NETCTL_AUTH_HMAC_SECRET", &cfg.API.Auth.HMACSecret},
		{"NETCTL_AUTH_RSA_PUBLIC_KEY_FILE", &cfg.API.Auth.RSAPublicKeyFile},
		{"NETCTL_LOG_LEVEL", &cfg.Log.Level},
		{"NETCTL_LOG_FORMAT", &cfg.Log.Format},
		{"NETCTL_AUDIT_DIR", &cfg.Log.AuditDir},
	}
	for _, s := range strs {
		if val := os.Getenv(s.key); val != "" {
			*s.dst = val
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"NETCTL_TIMING_HEARTBEAT_INTERVAL", &cfg.Timing.HeartbeatInterval},
		{"NETCTL_TIMING_HEARTBEAT_JITTER", &cfg.Timing.HeartbeatJitter},
		{"NETCTL_TIMING_DRIVER_OP_TIMEOUT", &cfg.Timing.DriverOpTimeout},
		{"NETCTL_TIMING_SHUTDOWN_TIMEOUT", &cfg.Timing.ShutdownTimeout},
	}
	for _, d := range durations {
		if val := os.Getenv(d.key); val != "" {
			parsed, err := time.ParseDuration(val)
			if err != nil {
				return fmt.Errorf("%s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"NETCTL_HOSTNAME_MAX_LEN", &cfg.Network.HostnameMaxLen},
		{"NETCTL_TIMING_EVENT_BUFFER_SIZE", &cfg.Timing.EventBufferSize},
	}
	for _, i := range ints {
		if val := os.Getenv(i.key); val != "" {
			parsed, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("%s: %w", i.key, err)
			}
			*i.dst = parsed
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"NETCTL_API_ENABLED", &cfg.API.Enabled},
		{"NETCTL_AUTH_ENABLED", &cfg.API.Auth.Enabled},
		{"NETCTL_LOG_DEVELOPMENT", &cfg.Log.Development},
	}
	for _, b := range bools {
		if val := os.Getenv(b.key); val != "" {
			parsed, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("%s: %w", b.key, err)
			}
			*b.dst = parsed
		}
	}

	return nil
}

// GetEnvVar returns the value of an environment variable with a default.
func GetEnvVar(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
