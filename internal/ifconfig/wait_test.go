package ifconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/adapter/fake"
	"github.com/radio-control/netctl/internal/netaddr"
)

func TestDHCPWaitStep(t *testing.T) {
	clk := newSteppingClock()
	nic := fake.NewFakeAdapter("sim0", adapter.KindStation, netaddr.BigEndian)
	nic.SetBindAfter(1)
	ctx := context.Background()
	require.NoError(t, nic.DHCPStart(ctx))

	w := NewDHCPWait(nic, clk, clk.Now())
	assert.Equal(t, WaitPending, w.State())

	assert.Equal(t, WaitPending, w.Step(ctx))
	assert.Equal(t, WaitBound, w.Step(ctx))
	assert.Equal(t, 2, w.Polls())

	// finished waits do not poll
	assert.Equal(t, WaitBound, w.Step(ctx))
	assert.Equal(t, 2, w.Polls())
	assert.Equal(t, 2, nic.Polls())
}

func TestDHCPWaitDoesNotPollAtDeadline(t *testing.T) {
	clk := newSteppingClock()
	nic := fake.NewFakeAdapter("sim0", adapter.KindStation, netaddr.BigEndian)
	nic.SetBindAfter(-1)
	ctx := context.Background()
	require.NoError(t, nic.DHCPStart(ctx))

	start := clk.Now()
	w := NewDHCPWait(nic, clk, start)

	clk.Mock.Add(DHCPTimeout - 1)
	assert.Equal(t, WaitPending, w.Step(ctx))
	assert.Equal(t, 1, w.Polls())

	clk.Mock.Add(1)
	assert.Equal(t, WaitTimedOut, w.Step(ctx))
	assert.Equal(t, DHCPTimeout, w.Elapsed())
	assert.Equal(t, 1, w.Polls())
	assert.Equal(t, 1, nic.Polls())
}

func TestWaitStateString(t *testing.T) {
	assert.Equal(t, "pending", WaitPending.String())
	assert.Equal(t, "bound", WaitBound.String())
	assert.Equal(t, "timed-out", WaitTimedOut.String())
	assert.Equal(t, "unknown", WaitState(9).String())
}
