package cache

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/network"
)

const (
	// DefaultNameTTL is how long a positive name lookup is cached.
	DefaultNameTTL = 660 * time.Second
	// DefaultNegativeTTL is how long a failed name lookup is cached.
	DefaultNegativeTTL = 60 * time.Second
)

// Names caches resolved name lists. An empty list is a negative entry.
type Names struct {
	store       Store
	TTL         time.Duration
	NegativeTTL time.Duration
}

// NewNames creates a name cache over store.
func NewNames(store Store) *Names {
	return &Names{store: store, TTL: DefaultNameTTL, NegativeTTL: DefaultNegativeTTL}
}

func nameKey(name string, nameType uint16) string {
	return fmt.Sprintf("NBT/%s#%02X", strings.ToUpper(name), nameType)
}

// Fetch returns the cached list for name. found is false on a miss; a
// negative entry is found with an empty list.
func (n *Names) Fetch(name string, nameType uint16) (list []network.Service, found bool) {
	if name == "" {
		return nil, false
	}
	val, _, err := n.store.Get(nameKey(name, nameType))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			debugLog("name cache get %s: %v", name, err)
		}
		return nil, false
	}
	if len(val) == 0 {
		return nil, true
	}
	for _, tok := range strings.Split(string(val), ",") {
		s, err := network.ParseService(tok)
		if err != nil {
			debugLog("name cache: bad entry %q for %s", tok, name)
			continue
		}
		list = append(list, s)
	}
	return list, true
}

// Store caches list for name. An empty list is stored for NegativeTTL.
func (n *Names) Store(name string, nameType uint16, list []network.Service) error {
	if name == "" {
		return ErrInvalidParameter
	}
	ttl := n.TTL
	if len(list) == 0 {
		ttl = n.NegativeTTL
	}
	if ttl <= 0 {
		return nil
	}
	val := make([]string, 0, len(list))
	for _, s := range list {
		val = append(val, netip.AddrPortFrom(s.Addr, s.Port).String())
	}
	return n.store.Set(nameKey(name, nameType), []byte(strings.Join(val, ",")), time.Now().Add(ttl))
}

// Delete drops the entry for name.
func (n *Names) Delete(name string, nameType uint16) error {
	return n.store.Delete(nameKey(name, nameType))
}
