//
//
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/netaddr"
)

var (
	// ErrNoInterfaceAvailable is returned by Select on an empty registry.
	ErrNoInterfaceAvailable = errors.New("NO_INTERFACE_AVAILABLE")

	// ErrNotFound is returned by Lookup for an unknown name.
	ErrNotFound = errors.New("NOT_FOUND")
)

// Interface is the listing view of one registered handle.
type Interface struct {
	Index        int       `json:"index"`
	Name         string    `json:"name"`
	Kind         string    `json:"kind"`
	ByteOrder    string    `json:"byteOrder"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// InterfaceList is the response format for GET /interfaces.
type InterfaceList struct {
	// Default is the interface Select currently returns, empty when none.
	Default string      `json:"default"`
	Items   []Interface `json:"items"`
}

type entry struct {
	handle       adapter.INetAdapter
	registeredAt time.Time
}

// Registry holds non-owning adapter handles in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	clock   clock.Clock
}

// New creates an empty registry. A nil clock uses wall time.
func New(clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{clock: clk}
}

// Register appends h unless the same handle is already present. It reports
// whether h was added. Handles must be comparable (pointer adapters are).
func (r *Registry) Register(h adapter.INetAdapter) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.handle == h {
			return false
		}
	}
	r.entries = append(r.entries, entry{handle: h, registeredAt: r.clock.Now()})
	return true
}

// Select returns the interface that carries traffic to dst. Routing is
// first-registered-wins; dst is not consulted.
func (r *Registry) Select(dst netaddr.Address4) (adapter.INetAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return nil, fmt.Errorf("select route to %s: %w", dst, ErrNoInterfaceAvailable)
	}
	return r.entries[0].handle, nil
}

// Snapshot returns a copy of the handles in registration order.
func (r *Registry) Snapshot() []adapter.INetAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]adapter.INetAdapter, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.handle
	}
	return out
}

// Lookup returns the first handle registered under name.
func (r *Registry) Lookup(name string) (adapter.INetAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		if e.handle.Name() == name {
			return e.handle, nil
		}
	}
	return nil, fmt.Errorf("interface %q: %w", name, ErrNotFound)
}

// List returns the listing view in registration order.
func (r *Registry) List() *InterfaceList {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := &InterfaceList{Items: make([]Interface, 0, len(r.entries))}
	for i, e := range r.entries {
		list.Items = append(list.Items, Interface{
			Index:        i,
			Name:         e.handle.Name(),
			Kind:         string(e.handle.Kind()),
			ByteOrder:    e.handle.ByteOrder().String(),
			RegisteredAt: e.registeredAt,
		})
	}
	if len(list.Items) > 0 {
		list.Default = list.Items[0].Name
	}
	return list
}

// Len returns the number of registered handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear drops every handle and returns how many were held. Used at teardown.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = nil
	return n
}
