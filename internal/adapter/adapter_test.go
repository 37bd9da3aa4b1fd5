package adapter

import (
	"context"
	"testing"

	"github.com/radio-control/netctl/internal/netaddr"
)

// MockAdapter implements INetAdapter for testing.
// This ensures the interface is complete and can be implemented.
type MockAdapter struct {
	AdapterBase
	addrs    RawAddresses
	supplied bool
}

// NewMockAdapter creates a new mock adapter for testing.
func NewMockAdapter(name string) *MockAdapter {
	return &MockAdapter{
		AdapterBase: AdapterBase{
			InterfaceName: name,
			InterfaceKind: KindEthernet,
			Order:         netaddr.BigEndian,
		},
		addrs: RawAddresses{
			IP:      []byte{0, 0, 0, 0},
			Netmask: []byte{0, 0, 0, 0},
			Gateway: []byte{0, 0, 0, 0},
		},
	}
}

func (m *MockAdapter) Addresses(ctx context.Context) (*RawAddresses, error) {
	a := m.addrs
	return &a, nil
}

func (m *MockAdapter) SetAddresses(ctx context.Context, addrs *RawAddresses) error {
	m.addrs = *addrs
	return nil
}

func (m *MockAdapter) DHCPStart(ctx context.Context) error {
	m.supplied = true
	return nil
}

func (m *MockAdapter) DHCPRenew(ctx context.Context) error   { return nil }
func (m *MockAdapter) DHCPStop(ctx context.Context) error    { m.supplied = false; return nil }
func (m *MockAdapter) DHCPRelease(ctx context.Context) error { m.supplied = false; return nil }

func (m *MockAdapter) DHCPSuppliedAddress(ctx context.Context) bool {
	return m.supplied
}

func TestINetAdapterInterface(t *testing.T) {
	var a INetAdapter = NewMockAdapter("eth0")
	ctx := context.Background()

	if a.Name() != "eth0" {
		t.Errorf("Expected name eth0, got %s", a.Name())
	}
	if a.Kind() != KindEthernet {
		t.Errorf("Expected kind ethernet, got %s", a.Kind())
	}
	if a.ByteOrder() != netaddr.BigEndian {
		t.Errorf("Expected big endian, got %s", a.ByteOrder())
	}

	want := &RawAddresses{IP: []byte{10, 0, 0, 2}, Netmask: []byte{255, 0, 0, 0}, Gateway: []byte{10, 0, 0, 1}}
	if err := a.SetAddresses(ctx, want); err != nil {
		t.Fatalf("SetAddresses failed: %v", err)
	}
	got, err := a.Addresses(ctx)
	if err != nil {
		t.Fatalf("Addresses failed: %v", err)
	}
	if string(got.IP) != string(want.IP) || string(got.Gateway) != string(want.Gateway) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	if a.DHCPSuppliedAddress(ctx) {
		t.Error("no DHCP session expected before start")
	}
	if err := a.DHCPStart(ctx); err != nil {
		t.Fatalf("DHCPStart failed: %v", err)
	}
	if !a.DHCPSuppliedAddress(ctx) {
		t.Error("expected supplied address after start")
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindStation, KindAccessPoint, KindEthernet} {
		if !k.Valid() {
			t.Errorf("%s should be valid", k)
		}
	}
	if Kind("bluetooth").Valid() {
		t.Error("unknown kind reported valid")
	}
}

func TestAdapterBase(t *testing.T) {
	base := &AdapterBase{InterfaceName: "wlan0", InterfaceKind: KindStation, Order: netaddr.LittleEndian}
	if base.Name() != "wlan0" || base.Kind() != KindStation || base.ByteOrder() != netaddr.LittleEndian {
		t.Errorf("unexpected base fields: %+v", base)
	}
}

func TestDriverOf(t *testing.T) {
	m := NewMockAdapter("eth0")
	if DriverOf(m) != "generic" {
		t.Errorf("Expected generic, got %s", DriverOf(m))
	}
	m.DriverName = "linux"
	if DriverOf(m) != "linux" {
		t.Errorf("Expected linux, got %s", DriverOf(m))
	}
}
