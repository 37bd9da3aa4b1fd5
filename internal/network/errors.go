package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/radio-control/netctl/internal/adapter"
	"github.com/radio-control/netctl/internal/ifconfig"
	"github.com/radio-control/netctl/internal/netaddr"
	"github.com/radio-control/netctl/internal/registry"
	"github.com/radio-control/netctl/internal/settings"
)

var (
	// ErrIO is the category of failures in the stack or its absence: no
	// interface, DHCP timeout, driver errors.
	ErrIO = errors.New("IO_ERROR")

	// ErrValue is the category of rejected arguments.
	ErrValue = errors.New("VALUE_ERROR")
)

// Audit and response codes that are not a package sentinel.
const (
	CodeSuccess   = "SUCCESS"
	CodeCancelled = "CANCELLED"
	CodeTimeout   = "TIMEOUT"
	CodeInternal  = "INTERNAL"
)

// codes is ordered: the first sentinel err matches wins.
var codes = []error{
	registry.ErrNoInterfaceAvailable,
	registry.ErrNotFound,
	settings.ErrInvalidLength,
	settings.ErrTooLong,
	netaddr.ErrMalformedAddress,
	ifconfig.ErrDHCPTimeout,
	adapter.ErrInvalidRange,
	adapter.ErrBusy,
	adapter.ErrUnavailable,
	adapter.ErrPermission,
	adapter.ErrInternal,
}

// Code returns the normalized code of err, "SUCCESS" for nil.
func Code(err error) string {
	if err == nil {
		return CodeSuccess
	}
	for _, c := range codes {
		if errors.Is(err, c) {
			return c.Error()
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	}
	return CodeInternal
}

func ioError(err error) error {
	if err == nil || errors.Is(err, ErrIO) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrIO, err)
}

func valueError(err error) error {
	if err == nil || errors.Is(err, ErrValue) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrValue, err)
}

// classify wraps err with its category. Not-found and cancellation carry none.
func classify(err error) error {
	switch Code(err) {
	case CodeSuccess, CodeCancelled, registry.ErrNotFound.Error():
		return err
	case settings.ErrInvalidLength.Error(), settings.ErrTooLong.Error(),
		netaddr.ErrMalformedAddress.Error(), adapter.ErrInvalidRange.Error():
		return valueError(err)
	default:
		return ioError(err)
	}
}
