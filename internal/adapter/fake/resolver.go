package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/radio-control/netctl/internal/netaddr"
)

// MaxDNSServers is the number of DNS slots the simulated stack keeps.
const MaxDNSServers = 2

// FakeResolver implements IDNSResolver over in-memory slots.
type FakeResolver struct {
	mu    sync.RWMutex
	order netaddr.ByteOrder
	slots [MaxDNSServers]netaddr.Address4
}

// NewFakeResolver creates a resolver with every slot at 0.0.0.0.
func NewFakeResolver(order netaddr.ByteOrder) *FakeResolver {
	return &FakeResolver{order: order}
}

func (r *FakeResolver) ByteOrder() netaddr.ByteOrder {
	return r.order
}

func (r *FakeResolver) DNSServer(ctx context.Context, slot int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if slot < 0 || slot >= MaxDNSServers {
		return nil, fmt.Errorf("SLOT_OUT_OF_RANGE: %d", slot)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return netaddr.Encode(r.slots[slot], r.order), nil
}

func (r *FakeResolver) SetDNSServer(ctx context.Context, slot int, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if slot < 0 || slot >= MaxDNSServers {
		return fmt.Errorf("SLOT_OUT_OF_RANGE: %d", slot)
	}
	a, err := netaddr.Decode(raw, r.order)
	if err != nil {
		return fmt.Errorf("BAD_ADDRESS_LENGTH: %w", err)
	}
	r.store(slot, a)
	return nil
}

func (r *FakeResolver) store(slot int, a netaddr.Address4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slots[slot] = a
}
