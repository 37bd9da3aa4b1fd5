// Package adaptertest provides driver-agnostic conformance testing for network adapters.
//
//   - Every driver must honour the INetAdapter contract: 4-byte raw addresses in
//     its declared byte order, idempotent DHCP stop/release, context cancellation.
package adaptertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/netaddr"
)

// Capabilities describes what a driver under test can do.
type Capabilities struct {
	// Driver selects the error token table ("sim", "linux", ...).
	Driver string

	// Mutable drivers accept SetAddresses; read-only backends skip the
	// write round-trip.
	Mutable bool

	// StaticQuad is written by the round-trip test.
	StaticIP      netaddr.Address4
	StaticNetmask netaddr.Address4
	StaticGateway netaddr.Address4

	// MaxOpDuration bounds a single non-blocking call.
	MaxOpDuration time.Duration
}

// DefaultCapabilities suits in-memory drivers.
func DefaultCapabilities(driver string) Capabilities {
	return Capabilities{
		Driver:        driver,
		Mutable:       true,
		StaticIP:      netaddr.Address4{1, 2, 3, 4},
		StaticNetmask: netaddr.Address4{255, 255, 255, 0},
		StaticGateway: netaddr.Address4{1, 2, 3, 1},
		MaxOpDuration: 50 * time.Millisecond,
	}
}

// ConformanceResult represents the result of a conformance test.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
	Details  map[string]interface{}
}

// ConformanceReport represents the complete conformance test report.
type ConformanceReport struct {
	AdapterName   string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

// RunConformance runs the complete conformance test suite for a driver.
// newAdapter must return a fresh, unconfigured adapter on every call.
func RunConformance(t *testing.T, newAdapter func() adapter.INetAdapter, caps Capabilities) {
	startTime := time.Now()

	report := &ConformanceReport{
		AdapterName:   newAdapter().Name(),
		Results:       []ConformanceResult{},
		OverallPassed: true,
	}

	runIdentityTests(newAdapter, report)
	runAddressShapeTests(newAdapter, report)
	if caps.Mutable {
		runSetAddressesTests(newAdapter, caps, report)
	}
	runDHCPIdempotencyTests(newAdapter, report)
	runCancellationTests(newAdapter, caps, report)
	runTimingTests(newAdapter, caps, report)

	report.Duration = time.Since(startTime)

	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Adapter conformance test failed: %d/%d tests passed", report.PassedTests, report.TotalTests)
	}
}

func runIdentityTests(newAdapter func() adapter.INetAdapter, report *ConformanceReport) {
	a := newAdapter()
	result := ConformanceResult{TestName: "Identity", Details: map[string]interface{}{}}

	switch {
	case a.Name() == "":
		result.Error = "Name() is empty"
	case !a.Kind().Valid():
		result.Error = fmt.Sprintf("Kind() %q is not a known kind", a.Kind())
	default:
		result.Passed = true
		result.Details["kind"] = a.Kind()
		result.Details["order"] = a.ByteOrder()
	}
	report.addResult(result)
}

func runAddressShapeTests(newAdapter func() adapter.INetAdapter, report *ConformanceReport) {
	a := newAdapter()
	result := ConformanceResult{TestName: "Addresses_Shape", Details: map[string]interface{}{}}
	start := time.Now()

	addrs, err := a.Addresses(context.Background())
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = fmt.Sprintf("Addresses failed: %v", err)
	} else if addrs == nil {
		result.Error = "Addresses returned nil"
	} else if err := checkRaw(addrs, a.ByteOrder()); err != nil {
		result.Error = err.Error()
	} else {
		result.Passed = true
	}
	report.addResult(result)
}

func runSetAddressesTests(newAdapter func() adapter.INetAdapter, caps Capabilities, report *ConformanceReport) {
	a := newAdapter()
	ctx := context.Background()
	order := a.ByteOrder()
	result := ConformanceResult{TestName: "SetAddresses_RoundTrip", Details: map[string]interface{}{}}
	start := time.Now()

	want := &adapter.RawAddresses{
		IP:      netaddr.Encode(caps.StaticIP, order),
		Netmask: netaddr.Encode(caps.StaticNetmask, order),
		Gateway: netaddr.Encode(caps.StaticGateway, order),
	}
	err := a.SetAddresses(ctx, want)
	var got *adapter.RawAddresses
	if err == nil {
		got, err = a.Addresses(ctx)
	}
	result.Duration = time.Since(start)

	switch {
	case err != nil:
		result.Error = fmt.Sprintf("round trip failed: %v", err)
	case !bytes.Equal(got.IP, want.IP) || !bytes.Equal(got.Netmask, want.Netmask) || !bytes.Equal(got.Gateway, want.Gateway):
		result.Error = fmt.Sprintf("read back %v, wrote %v", got, want)
	default:
		result.Passed = true
		result.Details["ip"] = caps.StaticIP.String()
	}
	report.addResult(result)

	// A short write must be rejected with a range code once normalized.
	bad := ConformanceResult{TestName: "SetAddresses_ShortRaw", Details: map[string]interface{}{}}
	err = a.SetAddresses(ctx, &adapter.RawAddresses{IP: []byte{1, 2, 3}, Netmask: want.Netmask, Gateway: want.Gateway})
	if err == nil {
		bad.Error = "3-byte address accepted"
	} else if norm := adapter.NormalizeDriverErrorWithDriver(err, caps.Driver); !errors.Is(norm, adapter.ErrInvalidRange) {
		bad.Error = fmt.Sprintf("expected INVALID_RANGE, got %v", norm)
	} else {
		bad.Passed = true
		bad.Details["actualError"] = err.Error()
	}
	report.addResult(bad)
}

// runDHCPIdempotencyTests checks stop and release are safe without a session.
func runDHCPIdempotencyTests(newAdapter func() adapter.INetAdapter, report *ConformanceReport) {
	a := newAdapter()
	ctx := context.Background()
	result := ConformanceResult{TestName: "DHCP_StopReleaseIdempotent", Details: map[string]interface{}{}}
	start := time.Now()

	var err error
	for i := 0; i < 2 && err == nil; i++ {
		if err = a.DHCPRelease(ctx); err == nil {
			err = a.DHCPStop(ctx)
		}
	}
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = fmt.Sprintf("stop/release without session failed: %v", err)
	} else if a.DHCPSuppliedAddress(ctx) {
		result.Error = "supplied address reported after stop"
	} else {
		result.Passed = true
	}
	report.addResult(result)
}

func runCancellationTests(newAdapter func() adapter.INetAdapter, caps Capabilities, report *ConformanceReport) {
	a := newAdapter()
	result := ConformanceResult{TestName: "ContextCancellation", Details: map[string]interface{}{}}
	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Addresses(ctx)
	result.Duration = time.Since(start)

	if err == nil {
		result.Error = "Addresses with cancelled context should have failed"
	} else {
		result.Passed = true
		result.Details["error"] = err.Error()
	}
	report.addResult(result)
}

// runTimingTests checks reads never block on the network.
func runTimingTests(newAdapter func() adapter.INetAdapter, caps Capabilities, report *ConformanceReport) {
	a := newAdapter()
	result := ConformanceResult{TestName: "Timing_NonBlockingRead", Details: map[string]interface{}{}}
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*caps.MaxOpDuration)
	defer cancel()

	_, err := a.Addresses(ctx)
	a.DHCPSuppliedAddress(ctx)
	result.Duration = time.Since(start)

	if result.Duration > caps.MaxOpDuration {
		result.Error = fmt.Sprintf("reads took %v (limit %v)", result.Duration, caps.MaxOpDuration)
	} else if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		result.Error = fmt.Sprintf("Unexpected error: %v", err)
	} else {
		result.Passed = true
		result.Details["duration"] = result.Duration.String()
	}
	report.addResult(result)
}

func checkRaw(addrs *adapter.RawAddresses, order netaddr.ByteOrder) error {
	fields := []struct {
		name string
		raw  []byte
	}{
		{"ip", addrs.IP},
		{"netmask", addrs.Netmask},
		{"gateway", addrs.Gateway},
	}
	for _, f := range fields {
		if _, err := netaddr.Decode(f.raw, order); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Logf("\n%s", strings.Repeat("=", 80))
	t.Logf("ADAPTER CONFORMANCE REPORT")
	t.Logf("%s", strings.Repeat("=", 80))
	t.Logf("Adapter: %s", report.AdapterName)
	t.Logf("Total Tests: %d", report.TotalTests)
	t.Logf("Passed: %d", report.PassedTests)
	t.Logf("Failed: %d", report.FailedTests)
	t.Logf("Overall: %s", map[bool]string{true: "PASS", false: "FAIL"}[report.OverallPassed])
	t.Logf("Duration: %v", report.Duration)
	t.Logf("%s", strings.Repeat("-", 80))

	t.Logf("%-30s %-8s %-12s %-s", "TEST NAME", "RESULT", "DURATION", "DETAILS")
	t.Logf("%s", strings.Repeat("-", 80))

	for _, result := range report.Results {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}

		details := result.Error
		if details == "" && len(result.Details) > 0 {
			var parts []string
			for k, v := range result.Details {
				parts = append(parts, fmt.Sprintf("%s=%v", k, v))
			}
			details = strings.Join(parts, ", ")
		}

		t.Logf("%-30s %-8s %-12s %-s", result.TestName, status, result.Duration.String(), details)
	}

	t.Logf("%s", strings.Repeat("=", 80))
}
