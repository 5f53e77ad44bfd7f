package network

import (
	"net/netip"
	"sort"
)

// PortNone marks a service whose port is implied by the protocol.
const PortNone uint16 = 0

// Service is a resolved address with an optional port.
type Service struct {
	Addr netip.Addr
	Port uint16
}

func (s Service) String() string {
	if s.Port == PortNone {
		return s.Addr.String()
	}
	return netip.AddrPortFrom(s.Addr, s.Port).String()
}

// ParseService parses "addr", "addr:port" or "[v6addr]:port".
func ParseService(s string) (Service, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return Service{Addr: ap.Addr().Unmap(), Port: ap.Port()}, nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return Service{}, err
	}
	return Service{Addr: a.Unmap(), Port: PortNone}, nil
}

// Dedup drops unusable (zero) addresses and repeated address/port pairs,
// keeping the first occurrence. The input slice is reused.
func Dedup(list []Service) []Service {
	seen := make(map[Service]struct{}, len(list))
	out := list[:0]
	for _, s := range list {
		if !s.Addr.IsValid() || s.Addr.IsUnspecified() {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// PrioritizeIPv4 moves IPv4 services ahead of the others, keeping the
// relative order within each family.
func PrioritizeIPv4(list []Service) []Service {
	out := make([]Service, 0, len(list))
	for _, s := range list {
		if s.Addr.Is4() {
			out = append(out, s)
		}
	}
	for _, s := range list {
		if !s.Addr.Is4() {
			out = append(out, s)
		}
	}
	return out
}

// SortByAffinity orders list so that addresses closest to our interfaces
// come first. IPv4 sorts ahead of IPv6; within a family the score is the
// longest common prefix with any interface address, plus the address
// width when the address is on a directly connected network. Equal
// scores are ordered by port.
func SortByAffinity(list []Service, ifaces *Interfaces) {
	sort.SliceStable(list, func(i, j int) bool {
		if c := compareAddrs(list[i].Addr, list[j].Addr, ifaces); c != 0 {
			return c < 0
		}
		return list[i].Port < list[j].Port
	})
}

// SortAddrs orders plain addresses the same way as SortByAffinity.
func SortAddrs(addrs []netip.Addr, ifaces *Interfaces) {
	sort.SliceStable(addrs, func(i, j int) bool {
		return compareAddrs(addrs[i], addrs[j], ifaces) < 0
	})
}

func compareAddrs(a, b netip.Addr, ifaces *Interfaces) int {
	a, b = a.Unmap(), b.Unmap()
	if a.Is4() != b.Is4() {
		if a.Is4() {
			return -1
		}
		return 1
	}
	return affinity(b, ifaces) - affinity(a, ifaces)
}

func affinity(a netip.Addr, ifaces *Interfaces) int {
	best := 0
	for _, iface := range ifaces.All() {
		ia := iface.Prefix.Addr()
		if ia.Is4() != a.Is4() {
			continue
		}
		if n := matchingBits(a, ia); n > best {
			best = n
		}
	}
	if ifaces.IsLocal(a) {
		best += a.BitLen()
	}
	return best
}

func matchingBits(a, b netip.Addr) int {
	ab, bb := a.AsSlice(), b.AsSlice()
	n := 0
	for i := range ab {
		x := ab[i] ^ bb[i]
		if x == 0 {
			n += 8
			continue
		}
		for mask := byte(0x80); mask != 0 && x&mask == 0; mask >>= 1 {
			n++
		}
		break
	}
	return n
}

// FormatServices renders a list as "addr[:port]" tokens separated by commas.
func FormatServices(list []Service) string {
	b := make([]byte, 0, len(list)*16)
	for i, s := range list {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, s.String()...)
	}
	return string(b)
}
