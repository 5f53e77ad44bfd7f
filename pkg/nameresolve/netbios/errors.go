package netbios

import "errors"

var (
	// ErrNotFound means no server produced a usable answer.
	ErrNotFound = errors.New("netbios: name not found")
	// ErrTimeout means the query ran out of retransmissions or time.
	ErrTimeout = errors.New("netbios: i/o timeout")
	// ErrInvalidAddress is returned for destinations that cannot carry
	// NetBIOS traffic, such as IPv6 addresses.
	ErrInvalidAddress = errors.New("netbios: invalid address")
	// ErrInvalidParameter is returned for requests that cannot be sent.
	ErrInvalidParameter = errors.New("netbios: invalid parameter")
	// ErrNotSupported is returned when NetBIOS is disabled.
	ErrNotSupported = errors.New("netbios: disabled")
)
