package config

import (
	"time"
)

// Driver names accepted in InterfaceConfig.Driver.
const (
	DriverSim   = "sim"
	DriverLinux = "linux"
)

// Boot modes accepted in BootConfig.Mode.
const (
	BootNone   = "none"
	BootDHCP   = "dhcp"
	BootStatic = "static"
)

// Resolver backends accepted in NetworkConfig.Resolver.
const (
	ResolverSim        = "sim"
	ResolverResolvConf = "resolvconf"
)

// Config is the complete netctl configuration.
type Config struct {
	Network    NetworkConfig     `yaml:"network"`
	Interfaces []InterfaceConfig `yaml:"interfaces"`
	Timing     TimingConfig      `yaml:"timing"`
	API        APIConfig         `yaml:"api"`
	Log        LogConfig         `yaml:"log"`
}

// NetworkConfig holds the process-wide settings and the DNS backend.
type NetworkConfig struct {
	Country        string `yaml:"country"`
	Hostname       string `yaml:"hostname"`
	HostnameMaxLen int    `yaml:"hostnameMaxLen"`

	// Resolver selects where DNS slot 0 lives: "sim" (in memory) or
	// "resolvconf" (ResolvConfPath).
	Resolver       string `yaml:"resolver"`
	ResolvConfPath string `yaml:"resolvConfPath"`
	DNSByteOrder   string `yaml:"dnsByteOrder"`
}

// InterfaceConfig registers one interface at startup.
type InterfaceConfig struct {
	Name      string     `yaml:"name"`
	Driver    string     `yaml:"driver"`
	Kind      string     `yaml:"kind"`
	ByteOrder string     `yaml:"byteOrder"`
	Boot      BootConfig `yaml:"boot"`
	Sim       SimConfig  `yaml:"sim"`
}

// BootConfig is applied once the interface is registered.
type BootConfig struct {
	Mode    string `yaml:"mode"`
	Address string `yaml:"address"`
	Netmask string `yaml:"netmask"`
	Gateway string `yaml:"gateway"`
	DNS     string `yaml:"dns"`
}

// SimConfig tunes the simulated stack.
type SimConfig struct {
	// BindAfter is how long a started DHCP session takes to bind, rounded to
	// whole poll intervals.
	BindAfter time.Duration `yaml:"bindAfter"`
	NeverBind bool          `yaml:"neverBind"`
}

// TimingConfig holds service timing.
type TimingConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	HeartbeatJitter   time.Duration `yaml:"heartbeatJitter"`

	// DriverOpTimeout bounds a single non-DHCP stack call from the API.
	DriverOpTimeout time.Duration `yaml:"driverOpTimeout"`

	EventBufferSize int           `yaml:"eventBufferSize"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// APIConfig holds the HTTP surface settings.
type APIConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	Auth         AuthConfig    `yaml:"auth"`
}

// AuthConfig selects bearer-token verification.
type AuthConfig struct {
	Enabled          bool   `yaml:"enabled"`
	HMACSecret       string `yaml:"hmacSecret"`
	RSAPublicKeyFile string `yaml:"rsaPublicKeyFile"`
}

// LogConfig configures the zap logger and the audit sink.
type LogConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Development bool   `yaml:"development"`

	AuditDir        string `yaml:"auditDir"`
	AuditMaxSizeMB  int    `yaml:"auditMaxSizeMb"`
	AuditMaxBackups int    `yaml:"auditMaxBackups"`
	AuditMaxAgeDays int    `yaml:"auditMaxAgeDays"`
	AuditCompress   bool   `yaml:"auditCompress"`
}

// Defaults returns the built-in configuration: one simulated station
// interface, in-memory DNS, API on :8080 without auth.
func Defaults() *Config {
	return &Config{
		Network: NetworkConfig{
			Country:        "XX",
			Hostname:       "netctl",
			HostnameMaxLen: 32,
			Resolver:       ResolverSim,
			ResolvConfPath: "/etc/resolv.conf",
			DNSByteOrder:   "big",
		},
		Interfaces: []InterfaceConfig{
			{
				Name:      "sim0",
				Driver:    DriverSim,
				Kind:      "station",
				ByteOrder: "big",
				Boot:      BootConfig{Mode: BootNone},
				Sim:       SimConfig{BindAfter: 300 * time.Millisecond},
			},
		},
		Timing: TimingConfig{
			HeartbeatInterval: 15 * time.Second,
			HeartbeatJitter:   2 * time.Second,
			DriverOpTimeout:   5 * time.Second,
			EventBufferSize:   50,
			ShutdownTimeout:   5 * time.Second,
		},
		API: APIConfig{
			Enabled:      true,
			Addr:         ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Log: LogConfig{
			Level:           "info",
			Format:          "json",
			AuditDir:        "",
			AuditMaxSizeMB:  10,
			AuditMaxBackups: 5,
			AuditMaxAgeDays: 30,
		},
	}
}
