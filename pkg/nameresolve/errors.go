package nameresolve

import (
	"errors"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/netbios"
)

// Errors
var (
	// ErrNotFound is returned when no backend produced an address.
	ErrNotFound = netbios.ErrNotFound
	// ErrTimeout is returned when a query saw no acceptable answer in time.
	ErrTimeout = netbios.ErrTimeout
	// ErrInvalidAddress is returned for an address of the wrong family.
	ErrInvalidAddress = netbios.ErrInvalidAddress
	// ErrInvalidParameter is returned for a disabled order or bad input.
	// From a backend it means the backend does not apply.
	ErrInvalidParameter = netbios.ErrInvalidParameter
	// ErrNetBIOSDisabled is returned by NetBIOS operations when NetBIOS is
	// turned off.
	ErrNetBIOSDisabled = netbios.ErrNotSupported

	// ErrNoLogonServers is returned when no domain controller is usable.
	ErrNoLogonServers = errors.New("no logon servers")
	// ErrBadNetworkName is returned when a name has no usable address.
	ErrBadNetworkName = errors.New("bad network name")
)
