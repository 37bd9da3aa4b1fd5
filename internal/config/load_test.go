package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
network:
  country: DE
  hostname: board-7
interfaces:
  - name: wlan0
    kind: station
    byteOrder: little
    boot:
      mode: dhcp
  - name: eth0
    driver: linux
    kind: ethernet
    boot:
      mode: static
      address: 10.0.0.2
      netmask: 255.255.255.0
      gateway: 10.0.0.1
      dns: 10.0.0.1
timing:
  heartbeatInterval: 5s
  heartbeatJitter: 1s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DE", cfg.Network.Country)
	assert.Equal(t, "board-7", cfg.Network.Hostname)
	assert.Equal(t, 32, cfg.Network.HostnameMaxLen, "unset keys keep defaults")
	assert.Equal(t, 5*time.Second, cfg.Timing.HeartbeatInterval)

	require.Len(t, cfg.Interfaces, 2)
	assert.Equal(t, "wlan0", cfg.Interfaces[0].Name)
	assert.Equal(t, DriverSim, cfg.Interfaces[0].Driver, "driver defaults to sim")
	assert.Equal(t, "little", cfg.Interfaces[0].ByteOrder)
	assert.Equal(t, BootDHCP, cfg.Interfaces[0].Boot.Mode)
	assert.Equal(t, DriverLinux, cfg.Interfaces[1].Driver)
	assert.Equal(t, "10.0.0.2", cfg.Interfaces[1].Boot.Address)
}

func TestLoadUsesEnvConfigFile(t *testing.T) {
	path := writeConfig(t, "network:\n  country: FR\n")
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "FR", cfg.Network.Country)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "network:\n  contry: FR\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, "network:\n  country: FR\n")
	t.Setenv("NETCTL_COUNTRY", "US")
	t.Setenv("NETCTL_TIMING_EVENT_BUFFER_SIZE", "128")
	t.Setenv("NETCTL_TIMING_DRIVER_OP_TIMEOUT", "2s")
	t.Setenv("NETCTL_AUTH_ENABLED", "true")
	t.Setenv("NETCTL_AUTH_HMAC_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "US", cfg.Network.Country)
	assert.Equal(t, 128, cfg.Timing.EventBufferSize)
	assert.Equal(t, 2*time.Second, cfg.Timing.DriverOpTimeout)
	assert.True(t, cfg.API.Auth.Enabled)
	assert.Equal(t, "s3cret", cfg.API.Auth.HMACSecret)
}

func TestEnvOverridesRejectMalformedValues(t *testing.T) {
	tests := map[string]string{
		"NETCTL_TIMING_HEARTBEAT_INTERVAL": "soon",
		"NETCTL_HOSTNAME_MAX_LEN":          "many",
		"NETCTL_API_ENABLED":               "perhaps",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(EnvConfigFile, "")
			t.Setenv(key, val)
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Network.Country = "USA"
	cfg.Network.Hostname = strings.Repeat("h", 40)
	cfg.Timing.EventBufferSize = 0
	cfg.Log.Level = "chatty"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3, "network, timing and log sections")
	msg := err.Error()
	for _, want := range []string{"country", "hostname", "event buffer", "unknown level"} {
		assert.Contains(t, msg, want)
	}
}

func TestValidateInterfaces(t *testing.T) {
	tests := []struct {
		name  string
		iface InterfaceConfig
		want  string
	}{
		{"missing name", InterfaceConfig{Driver: DriverSim, Kind: "station"}, "name is required"},
		{"bad driver", InterfaceConfig{Name: "x", Driver: "bsd", Kind: "station"}, "unknown driver"},
		{"bad kind", InterfaceConfig{Name: "x", Driver: DriverSim, Kind: "mesh"}, "unknown kind"},
		{"bad order", InterfaceConfig{Name: "x", Driver: DriverSim, Kind: "station", ByteOrder: "middle"}, "byte order"},
		{"bad boot mode", InterfaceConfig{Name: "x", Driver: DriverSim, Kind: "station", Boot: BootConfig{Mode: "bootp"}}, "unknown boot mode"},
		{"static without quad", InterfaceConfig{Name: "x", Driver: DriverSim, Kind: "station", Boot: BootConfig{Mode: BootStatic, Address: "1.2.3.4"}}, "boot.netmask"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Interfaces = []InterfaceConfig{tt.iface}
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := Defaults()
	cfg.Interfaces = append(cfg.Interfaces, cfg.Interfaces[0])
	assert.ErrorContains(t, Validate(cfg), "duplicate name")
}

func TestValidateAPIWriteTimeoutCoversDHCP(t *testing.T) {
	cfg := Defaults()
	cfg.API.WriteTimeout = 5 * time.Second
	assert.ErrorContains(t, Validate(cfg), "write timeout")

	cfg.API.Enabled = false
	assert.NoError(t, Validate(cfg))
}

func TestValidateAuthNeedsKey(t *testing.T) {
	cfg := Defaults()
	cfg.API.Auth.Enabled = true
	assert.ErrorContains(t, Validate(cfg), "auth enabled")

	cfg.API.Auth.RSAPublicKeyFile = "/etc/netctl/jwt.pub"
	assert.NoError(t, Validate(cfg))
}

func TestValidateNil(t *testing.T) {
	assert.Error(t, Validate(nil))
}

func TestGetEnvVar(t *testing.T) {
	t.Setenv("NETCTL_TEST_VAR", "x")
	assert.Equal(t, "x", GetEnvVar("NETCTL_TEST_VAR", "d"))
	assert.Equal(t, "d", GetEnvVar("NETCTL_TEST_UNSET_VAR", "d"))
}
