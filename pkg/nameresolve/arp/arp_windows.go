//go:build windows

package arp

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// Resolver sends ARP requests. On Windows every lookup fails with
// ErrNotSupported.
type Resolver struct {
	timeout time.Duration
}

// NewResolver creates a resolver whose requests wait at most timeout, or
// DefaultTimeout when timeout is not positive.
func NewResolver(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{timeout: timeout}
}

// Timeout returns the wait for an ARP reply.
func (r *Resolver) Timeout() time.Duration {
	return r.timeout
}

// LookupMAC always returns ErrNotSupported.
func (r *Resolver) LookupMAC(ctx context.Context, addr netip.Addr) (net.HardwareAddr, error) {
	return nil, ErrNotSupported
}

// IsSupported reports whether ARP requests can be sent on this platform.
func IsSupported() bool {
	return false
}
