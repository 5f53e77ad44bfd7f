// Package network provides the local interface list, IP enumeration and
// the address list helpers used to order resolution results.
package network

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

const minSweepBits = 16

// Interface is one local address with its network prefix.
type Interface struct {
	Name   string
	Prefix netip.Prefix
}

// Broadcast returns the IPv4 directed broadcast address of the interface.
// For a /32 that is the address itself.
func (i Interface) Broadcast() (netip.Addr, bool) {
	addr := i.Prefix.Addr()
	if !addr.Is4() {
		return netip.Addr{}, false
	}
	bits := i.Prefix.Bits()
	return uint32ToAddr(addrToUint32(addr) | ^uint32(0)>>uint(bits)), true
}

// Interfaces is the set of local interfaces resolution runs over.
type Interfaces struct {
	list []Interface
}

// NewInterfaces builds an interface list from prefixes.
func NewInterfaces(prefixes ...netip.Prefix) *Interfaces {
	ifs := &Interfaces{}
	for _, p := range prefixes {
		ifs.list = append(ifs.list, Interface{Prefix: netip.PrefixFrom(p.Addr().Unmap(), p.Bits())})
	}
	return ifs
}

// LocalInterfaces returns the addresses of every up, non-loopback interface.
func LocalInterfaces() (*Interfaces, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	out := &Interfaces{}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		out.list = append(out.list, interfaceAddrs(iface)...)
	}
	return out, nil
}

func interfaceAddrs(iface net.Interface) []Interface {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil
	}
	var out []Interface
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		ones, _ := ipNet.Mask.Size()
		out = append(out, Interface{Name: iface.Name, Prefix: netip.PrefixFrom(addr, ones)})
	}
	return out
}

// ParseInterfaces builds an interface list from configuration entries.
// An entry is either a CIDR such as "192.168.1.10/24", a bare address
// (treated as a host prefix) or the name of a system interface.
func ParseInterfaces(specs []string) (*Interfaces, error) {
	out := &Interfaces{}
	for _, entry := range specs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			out.list = append(out.list, Interface{Prefix: netip.PrefixFrom(p.Addr().Unmap(), p.Bits())})
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			a = a.Unmap()
			out.list = append(out.list, Interface{Prefix: netip.PrefixFrom(a, a.BitLen())})
			continue
		}
		iface, err := net.InterfaceByName(entry)
		if err != nil {
			return nil, fmt.Errorf("interface %q: %w", entry, err)
		}
		out.list = append(out.list, interfaceAddrs(*iface)...)
	}
	return out, nil
}

// All returns the interfaces.
func (i *Interfaces) All() []Interface {
	if i == nil {
		return nil
	}
	return i.list
}

// Addrs returns the interface addresses.
func (i *Interfaces) Addrs() []netip.Addr {
	var out []netip.Addr
	for _, iface := range i.All() {
		out = append(out, iface.Prefix.Addr())
	}
	return out
}

// IsMyAddr reports whether addr is one of our interface addresses.
func (i *Interfaces) IsMyAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, iface := range i.All() {
		if iface.Prefix.Addr() == addr {
			return true
		}
	}
	return false
}

// IsLocal reports whether addr is on a directly connected network.
func (i *Interfaces) IsLocal(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, iface := range i.All() {
		if iface.Prefix.Masked().Contains(addr) {
			return true
		}
	}
	return false
}

// Broadcasts returns the IPv4 broadcast addresses, without duplicates.
func (i *Interfaces) Broadcasts() []netip.Addr {
	var out []netip.Addr
	seen := make(map[netip.Addr]bool)
	for _, iface := range i.All() {
		b, ok := iface.Broadcast()
		if !ok || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// EnumerateIPs returns all usable host IPs in a CIDR (excludes network and
// broadcast). /31 and /32 networks return every address.
func EnumerateIPs(cidr string) ([]netip.Addr, error) {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, err
	}
	p = p.Masked()
	if !p.Addr().Is4() {
		return nil, fmt.Errorf("IPv6 enumeration not supported: %s", cidr)
	}
	if p.Bits() < minSweepBits {
		return nil, fmt.Errorf("network too large to enumerate: %s", cidr)
	}
	network := addrToUint32(p.Addr())
	if p.Bits() >= 31 {
		var res []netip.Addr
		for u := uint64(network); u <= uint64(network)|uint64(^uint32(0)>>uint(p.Bits())); u++ {
			res = append(res, uint32ToAddr(uint32(u)))
		}
		return res, nil
	}
	broadcast := network | ^uint32(0)>>uint(p.Bits())
	res := make([]netip.Addr, 0, broadcast-network-1)
	for u := network + 1; u < broadcast; u++ {
		res = append(res, uint32ToAddr(u))
	}
	return res, nil
}

func addrToUint32(a netip.Addr) uint32 {
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func uint32ToAddr(u uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)})
}

// IsPrivateIP checks if an IP address is in private (RFC 1918) address space.
func IsPrivateIP(addr netip.Addr) bool {
	return addr.Unmap().Is4() && addr.IsPrivate()
}
