//go:build linux || darwin || freebsd || netbsd || openbsd

// Package arp resolves IPv4 addresses to MAC addresses with ARP requests.
// It fills in the hardware address when a node status reply carries none.
// Sending ARP requests usually requires elevated privileges.
package arp

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/j-keck/arping"
)

// Resolver sends ARP requests.
type Resolver struct {
	timeout time.Duration
}

// NewResolver creates a resolver whose requests wait at most timeout, or
// DefaultTimeout when timeout is not positive. arping's timeout is
// process-wide: it is set here, never per lookup, and the last resolver
// created wins.
func NewResolver(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	arping.SetTimeout(timeout)
	return &Resolver{timeout: timeout}
}

// Timeout returns the wait for an ARP reply.
func (r *Resolver) Timeout() time.Duration {
	return r.timeout
}

// LookupMAC returns the hardware address answering for addr.
func (r *Resolver) LookupMAC(ctx context.Context, addr netip.Addr) (net.HardwareAddr, error) {
	if !addr.IsValid() || addr.IsUnspecified() {
		return nil, ErrInvalidIP
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return nil, ErrIPv6NotSupported
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	debugLog("ARP request for %s", addr)

	type arpResponse struct {
		mac net.HardwareAddr
		dur time.Duration
		err error
	}
	responseChan := make(chan arpResponse, 1)
	go func() {
		mac, dur, err := arping.Ping(net.IP(addr.AsSlice()))
		responseChan <- arpResponse{mac: mac, dur: dur, err: err}
	}()

	select {
	case <-ctx.Done():
		debugLog("%s: context cancelled", addr)
		return nil, ctx.Err()
	case resp := <-responseChan:
		if resp.err != nil {
			debugLog("%s: error: %v", addr, resp.err)
			return nil, resp.err
		}
		debugLog("%s -> MAC: %s (%.2fms)", addr, resp.mac, float64(resp.dur.Microseconds())/1000)
		return resp.mac, nil
	}
}

// IsSupported reports whether ARP requests can be sent on this platform.
func IsSupported() bool {
	return true
}
