//
//
package api

import (
	"errors"
	"net/http"

	"github.com/radio-control/netctl/internal/network"
)

// ErrBadRequest marks a request body or query that could not be decoded.
var ErrBadRequest = errors.New("BAD_REQUEST")

// statusByCode maps normalized codes to HTTP status.
var statusByCode = map[string]int{
	"NO_INTERFACE_AVAILABLE": http.StatusServiceUnavailable,
	"DHCP_TIMEOUT":           http.StatusGatewayTimeout,
	"INVALID_LENGTH":         http.StatusBadRequest,
	"TOO_LONG":               http.StatusBadRequest,
	"MALFORMED_ADDRESS":      http.StatusBadRequest,
	"INVALID_RANGE":          http.StatusBadRequest,
	"BAD_REQUEST":            http.StatusBadRequest,
	"NOT_FOUND":              http.StatusNotFound,
	"PERMISSION":             http.StatusForbidden,
	"BUSY":                   http.StatusServiceUnavailable,
	"UNAVAILABLE":            http.StatusServiceUnavailable,
	network.CodeCancelled:    http.StatusServiceUnavailable,
	network.CodeTimeout:      http.StatusGatewayTimeout,
}

var messageByCode = map[string]string{
	"NO_INTERFACE_AVAILABLE": "No network interface is registered",
	"DHCP_TIMEOUT":           "Timeout waiting for DHCP to get IP address",
	"NOT_FOUND":              "Interface not found",
	"PERMISSION":             "The network stack refused the change",
	"BUSY":                   "Network stack is busy, retry with backoff",
	"UNAVAILABLE":            "Network stack is temporarily unavailable",
	network.CodeCancelled:    "Request cancelled",
	network.CodeTimeout:      "Network stack did not answer in time",
	network.CodeInternal:     "Internal server error",
}

// ToAPIError converts an error to an HTTP status, code and message.
// Validation errors keep their own text so the caller sees the bound violated.
func ToAPIError(err error) (int, string, string) {
	if err == nil {
		return http.StatusOK, network.CodeSuccess, ""
	}

	code := network.Code(err)
	if errors.Is(err, ErrBadRequest) {
		code = ErrBadRequest.Error()
	}

	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	message, ok := messageByCode[code]
	if !ok {
		message = err.Error()
	}
	return status, code, message
}

// writeAPIError writes err in the error envelope.
func writeAPIError(w http.ResponseWriter, err error) {
	status, code, message := ToAPIError(err)
	var details interface{}
	if status >= http.StatusInternalServerError || status == http.StatusGatewayTimeout {
		details = map[string]interface{}{"original": err.Error()}
	}
	WriteError(w, status, code, message, details)
}
