// Package audit implements the audit trail for netctl.
//
// Every configuration operation (ifconfig get/dhcp/static, country and
// hostname writes) is recorded as one JSON line with the acting user, the
// interface, parameters, outcome code, latency and a correlation ID. The
// file sink rotates by size.
package audit
