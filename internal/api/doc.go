// Package api implements the HTTP/JSON command surface of netctl.
//
// Handlers translate requests into network.Port calls and wrap every reply in
// the {result, data|code, message, correlationId} envelope. The telemetry
// stream is served as SSE and /metrics in the Prometheus format.
package api
