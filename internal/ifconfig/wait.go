package ifconfig

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/radio-control/netctl/internal/adapter"
)

// WaitState is the state of one DHCP wait.
type WaitState int

const (
	WaitPending WaitState = iota
	WaitBound
	WaitTimedOut
)

func (s WaitState) String() string {
	switch s {
	case WaitPending:
		return "pending"
	case WaitBound:
		return "bound"
	case WaitTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// DHCPWait drives Pending -> Bound | TimedOut for one StartDHCP call.
//
// Step polls at most once and never after the deadline. Run interleaves Step
// with DHCPPollInterval sleeps on the supplied clock, so with a simulated
// clock the whole wait is deterministic: polls land at 0, 100, ..., 9900 ms
// and a wait that never binds times out at exactly DHCPTimeout after 100
// polls.
type DHCPWait struct {
	nic     adapter.INetAdapter
	clock   clock.Clock
	start   time.Time
	polls   int
	state   WaitState
	elapsed time.Duration
}

// NewDHCPWait starts a wait whose deadline is measured from start.
func NewDHCPWait(nic adapter.INetAdapter, clk clock.Clock, start time.Time) *DHCPWait {
	return &DHCPWait{nic: nic, clock: clk, start: start}
}

// Step times the wait out once DHCPTimeout has passed, otherwise polls the
// adapter once.
func (w *DHCPWait) Step(ctx context.Context) WaitState {
	if w.state != WaitPending {
		return w.state
	}
	w.elapsed = w.clock.Since(w.start)
	if w.elapsed >= DHCPTimeout {
		w.state = WaitTimedOut
		return w.state
	}
	w.polls++
	if w.nic.DHCPSuppliedAddress(ctx) {
		w.state = WaitBound
	}
	return w.state
}

// Run blocks until the wait binds, times out, or ctx is done.
func (w *DHCPWait) Run(ctx context.Context) error {
	for {
		switch w.Step(ctx) {
		case WaitBound:
			return nil
		case WaitTimedOut:
			return &TimeoutError{
				Op:        "ifconfig dhcp",
				Interface: w.nic.Name(),
				Limit:     DHCPTimeout,
				Elapsed:   w.elapsed,
				Polls:     w.polls,
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(DHCPPollInterval):
		}
	}
}

// State returns the current state.
func (w *DHCPWait) State() WaitState { return w.state }

// Polls returns the number of polls so far.
func (w *DHCPWait) Polls() int { return w.polls }

// Elapsed returns the time measured at the latest step.
func (w *DHCPWait) Elapsed() time.Duration { return w.elapsed }
