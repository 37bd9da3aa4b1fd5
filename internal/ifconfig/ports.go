package ifconfig

import (
	"time"

	"github.com/radio-control/netctl/internal/telemetry"
)

// EventPublisher receives protocol events for one interface.
type EventPublisher interface {
	PublishInterface(name string, event telemetry.Event) error
}

// Recorder receives protocol measurements.
type Recorder interface {
	// ObserveDHCP records one StartDHCP call. mode is "renew" or "start";
	// outcome is one of the Outcome constants.
	ObserveDHCP(iface, mode, outcome string, polls int, waited time.Duration)

	// ObserveStatic records one SetStatic call.
	ObserveStatic(iface, outcome string)
}

// Outcomes reported to Recorder.
const (
	OutcomeBound     = "bound"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
	OutcomeApplied   = "applied"
)

// DHCP initiation modes.
const (
	ModeRenew = "renew"
	ModeStart = "start"
)
