// Package nameresolve resolves NetBIOS names, DNS host names and Active
// Directory service names to addresses, following the Samba name resolve
// order semantics.
//
// A Resolver walks a configured order of backends:
//   - host: the system resolver or a DNS hosts file
//   - ads: DNS SRV records for domain controllers and PDCs
//   - kdc: DNS SRV records for Kerberos KDCs
//   - lmhosts: a static LMHOSTS file
//   - wins: unicast queries to WINS servers
//   - bcast: broadcast name queries on every local IPv4 interface
//
// Results are cached in a badger-backed key/value store with positive and
// negative entries.
package nameresolve

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/network"
)

// NameType is a NetBIOS name suffix, or one of the pseudo types used for
// DNS SRV lookups.
type NameType uint16

const (
	NameWorkstation       NameType = 0x00
	NameMessenger         NameType = 0x03
	NamePDC               NameType = 0x1B // domain master browser / PDC
	NameDomainControllers NameType = 0x1C
	NameMasterBrowser     NameType = 0x1D
	NameServer            NameType = 0x20 // file server service
	NameKDC               NameType = 0xDCDC
)

// String returns the type as "0x1c", or "kdc" for NameKDC.
func (t NameType) String() string {
	if t == NameKDC {
		return "kdc"
	}
	return fmt.Sprintf("0x%02x", uint16(t))
}

// ParseNameType parses "0x1c", "1c", "1C" or "kdc".
func ParseNameType(s string) (NameType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "kdc" {
		return NameKDC, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid name type %q: %w", s, ErrInvalidParameter)
	}
	return NameType(v), nil
}

// Service is an address with an optional port.
type Service = network.Service

const (
	// PortNone marks a service without a known port.
	PortNone = network.PortNone
	// LDAPPort is assumed for explicit password servers under ADS security.
	LDAPPort = 389
)

// OrderDisabled as the only order token disables every lookup.
const OrderDisabled = "NULL"

// DefaultOrder is used when no order is configured.
var DefaultOrder = []string{"lmhosts", "wins", "host", "bcast"}

// ParseOrder splits a resolve order such as "lmhosts wins,host" into tokens.
func ParseOrder(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', ',', ';':
			return true
		}
		return false
	})
}
