package ifconfig

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/radio-control/netctl/internal/telemetry"
)

// steppingClock is a mock clock whose After advances time by d and returns a
// channel that has already fired, so wait loops run without real sleeps.
type steppingClock struct {
	*clock.Mock
	mu     sync.Mutex
	afters int
	onStep func(n int)
}

func newSteppingClock() *steppingClock {
	return &steppingClock{Mock: clock.NewMock()}
}

func (c *steppingClock) After(d time.Duration) <-chan time.Time {
	c.Mock.Add(d)
	c.mu.Lock()
	c.afters++
	n, hook := c.afters, c.onStep
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	ch := make(chan time.Time, 1)
	ch <- c.Mock.Now()
	return ch
}

type capturedEvents struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *capturedEvents) PublishInterface(name string, event telemetry.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	event.Interface = name
	c.events = append(c.events, event)
	return nil
}

func (c *capturedEvents) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func (c *capturedEvents) last() telemetry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

type dhcpObservation struct {
	iface, mode, outcome string
	polls                int
	waited               time.Duration
}

type capturedRecorder struct {
	mu     sync.Mutex
	dhcp   []dhcpObservation
	static []string
}

func (r *capturedRecorder) ObserveDHCP(iface, mode, outcome string, polls int, waited time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dhcp = append(r.dhcp, dhcpObservation{iface, mode, outcome, polls, waited})
}

func (r *capturedRecorder) ObserveStatic(iface, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static = append(r.static, outcome)
}

func cancelAfterSteps(cancel context.CancelFunc, steps int) func(int) {
	return func(n int) {
		if n == steps {
			cancel()
		}
	}
}
