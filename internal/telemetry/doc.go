// Package telemetry implements the telemetry hub for netctl.
//
// The hub fans events out to SSE clients and keeps the last N events per
// interface so a reconnecting client can resume with Last-Event-ID. Event IDs
// are monotonic per interface. A heartbeat is sent while clients are
// connected.
package telemetry
