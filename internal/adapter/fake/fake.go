// Package fake provides a simulated network stack for tests, the conformance
// suite and the "sim" driver.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/netaddr"
)

// Recorded operation names, in the order the stack saw them. Reads are not
// recorded.
const (
	OpSetAddresses = "set_addresses"
	OpStart        = "dhcp_start"
	OpRenew        = "dhcp_renew"
	OpStop         = "dhcp_stop"
	OpRelease      = "dhcp_release"
)

// Lease is what the simulated DHCP server hands out.
type Lease struct {
	IP      netaddr.Address4
	Netmask netaddr.Address4
	Gateway netaddr.Address4
	DNS     netaddr.Address4
}

// DefaultLease mirrors a typical soft-AP network.
var DefaultLease = Lease{
	IP:      netaddr.Address4{192, 168, 4, 2},
	Netmask: netaddr.Address4{255, 255, 255, 0},
	Gateway: netaddr.Address4{192, 168, 4, 1},
	DNS:     netaddr.Address4{192, 168, 4, 1},
}

// FakeAdapter implements INetAdapter over in-memory state.
//
// A started DHCP session binds after a configurable number of unsuccessful
// DHCPSuppliedAddress polls, which lets callers drive the wait loop without
// real time passing.
type FakeAdapter struct {
	adapter.AdapterBase

	mu sync.Mutex

	addrs    adapter.RawAddresses
	lease    Lease
	resolver *FakeResolver

	// DHCP session
	bindAfter  int
	pending    int
	dhcpActive bool
	supplied   bool
	renewals   int

	// Observation
	polls  int
	ops    []string
	opHook func(op string)

	// Error simulation
	simulateErrors bool
	errorType      string
}

// NewFakeAdapter creates an unconfigured adapter whose DHCP lease binds on
// the fourth poll after a start.
func NewFakeAdapter(name string, kind adapter.Kind, order netaddr.ByteOrder) *FakeAdapter {
	f := &FakeAdapter{
		AdapterBase: adapter.AdapterBase{
			InterfaceName: name,
			InterfaceKind: kind,
			Order:         order,
			DriverName:    "sim",
		},
		lease:     DefaultLease,
		bindAfter: 3,
		pending:   -1,
	}
	f.clearAddresses()
	return f
}

// Addresses returns copies of the stored raw addresses.
func (f *FakeAdapter) Addresses(ctx context.Context) (*adapter.RawAddresses, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.simulateErrors {
		return nil, f.getSimulatedError()
	}
	return &adapter.RawAddresses{
		IP:      clone(f.addrs.IP),
		Netmask: clone(f.addrs.Netmask),
		Gateway: clone(f.addrs.Gateway),
	}, nil
}

// SetAddresses stores the triple. Every field must be exactly 4 bytes.
func (f *FakeAdapter) SetAddresses(ctx context.Context, addrs *adapter.RawAddresses) error {
	if err := f.begin(ctx, OpSetAddresses); err != nil {
		return err
	}
	defer f.after(OpSetAddresses)

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, raw := range [][]byte{addrs.IP, addrs.Netmask, addrs.Gateway} {
		if len(raw) != 4 {
			return fmt.Errorf("BAD_ADDRESS_LENGTH: got %d bytes", len(raw))
		}
	}
	f.addrs = adapter.RawAddresses{
		IP:      clone(addrs.IP),
		Netmask: clone(addrs.Netmask),
		Gateway: clone(addrs.Gateway),
	}
	return nil
}

// DHCPStart opens a new session. The address is untouched until the lease binds.
func (f *FakeAdapter) DHCPStart(ctx context.Context) error {
	if err := f.begin(ctx, OpStart); err != nil {
		return err
	}
	defer f.after(OpStart)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dhcpActive = true
	f.pending = f.bindAfter
	return nil
}

// DHCPRenew refreshes a bound lease in place; the address never changes.
func (f *FakeAdapter) DHCPRenew(ctx context.Context) error {
	if err := f.begin(ctx, OpRenew); err != nil {
		return err
	}
	defer f.after(OpRenew)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.supplied {
		return fmt.Errorf("NOT_READY: no lease to renew")
	}
	f.renewals++
	return nil
}

// DHCPStop ends the session and drops a DHCP-supplied address.
func (f *FakeAdapter) DHCPStop(ctx context.Context) error {
	if err := f.begin(ctx, OpStop); err != nil {
		return err
	}
	defer f.after(OpStop)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.dhcpActive = false
	f.pending = -1
	if f.supplied {
		f.supplied = false
		f.clearAddresses()
	}
	return nil
}

// DHCPRelease returns the lease. The session itself stays open.
func (f *FakeAdapter) DHCPRelease(ctx context.Context) error {
	if err := f.begin(ctx, OpRelease); err != nil {
		return err
	}
	defer f.after(OpRelease)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.supplied {
		f.supplied = false
		f.clearAddresses()
	}
	return nil
}

// DHCPSuppliedAddress is the poll the wait loop drives. Each call counts.
func (f *FakeAdapter) DHCPSuppliedAddress(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.polls++
	if f.simulateErrors {
		return false
	}
	if f.dhcpActive && !f.supplied && f.pending >= 0 {
		if f.pending == 0 {
			f.bindLocked()
		} else {
			f.pending--
		}
	}
	return f.supplied
}

// Helper methods for testing

// SetBindAfter sets how many polls fail before a started session binds.
// A negative value means the lease never binds.
func (f *FakeAdapter) SetBindAfter(polls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindAfter = polls
}

// SetLease replaces the lease handed out on bind.
func (f *FakeAdapter) SetLease(l Lease) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lease = l
}

// AttachResolver makes a bind write the lease DNS server into slot 0.
func (f *FakeAdapter) AttachResolver(r *FakeResolver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolver = r
}

// Bind forces the adapter into the DHCP-bound state immediately.
func (f *FakeAdapter) Bind() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dhcpActive = true
	f.bindLocked()
}

// SetOpHook installs fn to run after every mutating stack operation, outside
// the adapter lock, so it may read the adapter.
func (f *FakeAdapter) SetOpHook(fn func(op string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opHook = fn
}

// Ops returns the recorded operation log.
func (f *FakeAdapter) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// ResetOps clears the operation log and the poll counter.
func (f *FakeAdapter) ResetOps() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = nil
	f.polls = 0
}

// Polls returns how many times DHCPSuppliedAddress ran.
func (f *FakeAdapter) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// Renewals returns how many renewals succeeded.
func (f *FakeAdapter) Renewals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.renewals
}

// SetErrorSimulation makes every stack call fail with a token of errorType.
func (f *FakeAdapter) SetErrorSimulation(errorType string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulateErrors = true
	f.errorType = errorType
}

// DisableErrorSimulation disables error simulation.
func (f *FakeAdapter) DisableErrorSimulation() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulateErrors = false
	f.errorType = ""
}

func (f *FakeAdapter) begin(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
	if f.simulateErrors {
		return f.getSimulatedError()
	}
	return nil
}

func (f *FakeAdapter) after(op string) {
	f.mu.Lock()
	hook := f.opHook
	f.mu.Unlock()
	if hook != nil {
		hook(op)
	}
}

func (f *FakeAdapter) bindLocked() {
	f.supplied = true
	f.pending = -1
	f.addrs = adapter.RawAddresses{
		IP:      netaddr.Encode(f.lease.IP, f.Order),
		Netmask: netaddr.Encode(f.lease.Netmask, f.Order),
		Gateway: netaddr.Encode(f.lease.Gateway, f.Order),
	}
	if f.resolver != nil {
		f.resolver.store(0, f.lease.DNS)
	}
}

func (f *FakeAdapter) clearAddresses() {
	f.addrs = adapter.RawAddresses{
		IP:      make([]byte, 4),
		Netmask: make([]byte, 4),
		Gateway: make([]byte, 4),
	}
}

// getSimulatedError returns a driver error carrying a "sim" table token.
func (f *FakeAdapter) getSimulatedError() error {
	switch f.errorType {
	case "UNAVAILABLE":
		return fmt.Errorf("LINK_DOWN: simulated carrier loss")
	case "BUSY":
		return fmt.Errorf("STACK_BUSY: simulated busy stack")
	case "PERMISSION":
		return fmt.Errorf("READ_ONLY: simulated read-only interface")
	case "INVALID_RANGE":
		return fmt.Errorf("BAD_ADDRESS_LENGTH: simulated range error")
	default:
		return fmt.Errorf("STACK_FAULT: simulated internal error")
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
