package cache

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Status caches node status answers: the name a host registered for a
// given query.
type Status struct {
	store Store
	TTL   time.Duration
}

// NewStatus creates a node status cache over store.
func NewStatus(store Store) *Status {
	return &Status{store: store, TTL: DefaultNameTTL}
}

func statusKey(qname string, qtype, ntype byte, addr netip.Addr) string {
	return fmt.Sprintf("NBT/%s#%02X.%02X.%s", strings.ToUpper(qname), qtype, ntype, addr)
}

// Fetch returns the cached name.
func (s *Status) Fetch(qname string, qtype, ntype byte, addr netip.Addr) (string, bool) {
	val, _, err := s.store.Get(statusKey(qname, qtype, ntype, addr))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			debugLog("status cache get %s: %v", qname, err)
		}
		return "", false
	}
	return string(val), len(val) > 0
}

// Store caches name.
func (s *Status) Store(qname string, qtype, ntype byte, addr netip.Addr, name string) error {
	if name == "" {
		return ErrInvalidParameter
	}
	return s.store.Set(statusKey(qname, qtype, ntype, addr), []byte(name), time.Now().Add(s.TTL))
}
