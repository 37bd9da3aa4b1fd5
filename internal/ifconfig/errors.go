package ifconfig

import (
	"errors"
	"fmt"
	"time"
)

// ErrDHCPTimeout is returned when no address is supplied within DHCPTimeout.
var ErrDHCPTimeout = errors.New("DHCP_TIMEOUT")

// TimeoutError reports a DHCP wait that hit its ceiling.
type TimeoutError struct {
	Op        string
	Interface string
	Limit     time.Duration
	Elapsed   time.Duration
	Polls     int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s on %s: timeout waiting for DHCP to get IP address (limit %v, waited %v, %d polls)",
		e.Op, e.Interface, e.Limit, e.Elapsed, e.Polls)
}

func (e *TimeoutError) Unwrap() error {
	return ErrDHCPTimeout
}
