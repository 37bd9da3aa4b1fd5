// Deterministic driver error mapping.
//
// Driver errors are normalized to container codes through token tables, never
// heuristics. The original error stays reachable for diagnostics.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Normalized driver errors.
var (
	ErrInvalidRange = errors.New("INVALID_RANGE")
	ErrBusy         = errors.New("BUSY")
	ErrUnavailable  = errors.New("UNAVAILABLE")
	ErrPermission   = errors.New("PERMISSION")
	ErrInternal     = errors.New("INTERNAL")
)

var normalizedCodes = []error{ErrInvalidRange, ErrBusy, ErrUnavailable, ErrPermission, ErrInternal}

// DriverMap defines the error token mapping for one driver.
type DriverMap struct {
	Range       []string // Tokens that map to INVALID_RANGE
	Busy        []string // Tokens that map to BUSY
	Unavailable []string // Tokens that map to UNAVAILABLE
	Permission  []string // Tokens that map to PERMISSION
}

// DriverErrorMappings holds the token tables per driver.
//
// Tokens are matched case-insensitively as substrings, in the order Range,
// Busy, Unavailable, Permission. Anything unmatched maps to INTERNAL.
// Unknown drivers fall back to "generic".
var DriverErrorMappings = map[string]DriverMap{
	"linux": {
		Range: []string{
			"INVALID ARGUMENT",
			"NUMERICAL RESULT OUT OF RANGE",
			"ADDRESS FAMILY NOT SUPPORTED",
			"EINVAL",
			"ERANGE",
		},
		Busy: []string{
			"DEVICE OR RESOURCE BUSY",
			"RESOURCE TEMPORARILY UNAVAILABLE",
			"EBUSY",
			"EAGAIN",
		},
		Unavailable: []string{
			"NO SUCH DEVICE",
			"LINK NOT FOUND",
			"NETWORK IS DOWN",
			"NETWORK IS UNREACHABLE",
			"NO SUCH FILE OR DIRECTORY",
			"ENODEV",
			"ENETDOWN",
		},
		Permission: []string{
			"OPERATION NOT PERMITTED",
			"PERMISSION DENIED",
			"EPERM",
			"EACCES",
		},
	},
	"sim": {
		Range: []string{
			"BAD_ADDRESS_LENGTH",
			"SLOT_OUT_OF_RANGE",
		},
		Busy: []string{
			"STACK_BUSY",
		},
		Unavailable: []string{
			"LINK_DOWN",
			"NO_CARRIER",
		},
		Permission: []string{
			"READ_ONLY",
		},
	},
	"generic": {
		Range: []string{
			"OUT_OF_RANGE",
			"INVALID_PARAMETER",
			"INVALID_RANGE",
			"BAD_VALUE",
		},
		Busy: []string{
			"BUSY",
			"RETRY",
			"TRY AGAIN",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"OFFLINE",
			"NOT_READY",
			"DOWN",
		},
		Permission: []string{
			"PERMISSION",
			"NOT PERMITTED",
			"FORBIDDEN",
		},
	},
}

// DriverError wraps a driver error with its normalized code.
type DriverError struct {
	Code     error  // Normalized code
	Driver   string // Driver table used
	Original error  // Driver error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%v (driver %s: %v)", e.Code, e.Driver, e.Original)
}

func (e *DriverError) Unwrap() error {
	return e.Code
}

// NormalizeDriverError maps a driver error with the generic table.
func NormalizeDriverError(err error) error {
	return NormalizeDriverErrorWithDriver(err, "generic")
}

// NormalizeDriverErrorWithDriver maps err using the named driver's table.
// Context errors and errors already carrying a normalized code pass through.
func NormalizeDriverErrorWithDriver(err error, driver string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, code := range normalizedCodes {
		if errors.Is(err, code) {
			return err
		}
	}

	if _, ok := DriverErrorMappings[driver]; !ok {
		driver = "generic"
	}
	return &DriverError{
		Code:     mapDriverErrorToCode(err.Error(), driver),
		Driver:   driver,
		Original: err,
	}
}

// CodeOf returns the normalized code carried by err, or nil.
func CodeOf(err error) error {
	for _, code := range normalizedCodes {
		if errors.Is(err, code) {
			return code
		}
	}
	return nil
}

func mapDriverErrorToCode(msg string, driver string) error {
	m := DriverErrorMappings[driver]
	upper := strings.ToUpper(msg)

	tables := []struct {
		tokens []string
		code   error
	}{
		{m.Range, ErrInvalidRange},
		{m.Busy, ErrBusy},
		{m.Unavailable, ErrUnavailable},
		{m.Permission, ErrPermission},
	}
	for _, tbl := range tables {
		for _, token := range tbl.tokens {
			if strings.Contains(upper, strings.ToUpper(token)) {
				return tbl.code
			}
		}
	}
	return ErrInternal
}
