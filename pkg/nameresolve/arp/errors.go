package arp

import (
	"errors"
	"time"
)

// DefaultTimeout is the default timeout for an ARP lookup.
const DefaultTimeout = 1 * time.Second

var (
	// ErrNotSupported is returned on platforms without ARP support.
	ErrNotSupported = errors.New("ARP lookups are not supported on this platform")
	// ErrInvalidIP is returned for an invalid or unspecified address.
	ErrInvalidIP = errors.New("invalid IP address")
	// ErrIPv6NotSupported is returned for IPv6 addresses.
	ErrIPv6NotSupported = errors.New("ARP is not supported for IPv6 addresses")
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from ARP operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}
