package api

import (
	"context"
	"net/http"

	"github.com/radio-control/netctl/internal/network"
	"github.com/radio-control/netctl/internal/telemetry"
)

// TelemetryPort defines the minimal interface the API needs from the telemetry hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Compile-time assertions for port conformance
var _ network.Port = (*network.Context)(nil)
var _ TelemetryPort = (*telemetry.Hub)(nil)
