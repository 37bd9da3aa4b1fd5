//go:build linux

package linuxnet

import (
	"os"
	"testing"
	"time"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/adaptertest"
	"github.com/radio-control/netctl/internal/netaddr"
)

// TestNetlinkConformance needs CAP_NET_ADMIN and a scratch link, for example
//
//	ip link add nc0 type dummy
//	NETCTL_LINUX_TEST_IFACE=nc0 go test ./internal/adapter/linuxnet/
func TestNetlinkConformance(t *testing.T) {
	name := os.Getenv("NETCTL_LINUX_TEST_IFACE")
	if name == "" {
		t.Skip("NETCTL_LINUX_TEST_IFACE not set")
	}

	caps := adaptertest.Capabilities{
		Driver:        DriverName,
		Mutable:       true,
		StaticIP:      netaddr.MustParse("192.0.2.10"),
		StaticNetmask: netaddr.MustParse("255.255.255.0"),
		StaticGateway: netaddr.MustParse("192.0.2.1"),
		MaxOpDuration: 500 * time.Millisecond,
	}

	adaptertest.RunConformance(t, func() adapter.INetAdapter {
		a, err := NewNetlinkAdapter(name, Options{})
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		t.Cleanup(func() { a.Close() })
		return a
	}, caps)
}

func TestNewNetlinkAdapterUnknownLink(t *testing.T) {
	_, err := NewNetlinkAdapter("netctl-missing0", Options{})
	if err == nil {
		t.Fatal("expected error for missing link")
	}
	// netlink handle creation may be refused in sandboxes; both map to a code
	code := adapter.CodeOf(adapter.NormalizeDriverErrorWithDriver(err, DriverName))
	if code != adapter.ErrUnavailable && code != adapter.ErrPermission && code != adapter.ErrInternal {
		t.Fatalf("unexpected code %v for %v", code, err)
	}
}
