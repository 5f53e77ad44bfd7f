package nameresolve

import (
	"context"
	"errors"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/network"
)

type dcLookupType int

const (
	dcNormalLookup dcLookupType = iota
	dcADSOnly
	dcKDCOnly
)

// GetSortedDCList returns the domain controllers of domain. The server
// we have affinity for and the configured password servers come first;
// an unordered list is sorted by closeness to our interfaces. When site
// yields nothing the lookup is repeated for all sites.
func (r *Resolver) GetSortedDCList(ctx context.Context, domain, site string, adsOnly bool) ([]Service, error) {
	lookup := dcNormalLookup
	if adsOnly {
		lookup = dcADSOnly
	}

	list, ordered, err := r.getDCList(ctx, domain, site, lookup)
	if errors.Is(err, ErrNoLogonServers) && site != "" {
		debugLog(MethodResolve, "no server for %s in site %s, trying all servers", domain, site)
		list, ordered, err = r.getDCList(ctx, domain, "", lookup)
	}
	if err != nil {
		return nil, err
	}
	if !ordered {
		network.SortByAffinity(list, r.interfaces())
	}
	return list, nil
}

// GetKDCList returns the Kerberos KDCs of realm in SRV order.
func (r *Resolver) GetKDCList(ctx context.Context, realm, site string) ([]Service, error) {
	list, ordered, err := r.getDCList(ctx, realm, site, dcKDCOnly)
	if err != nil {
		return nil, err
	}
	if !ordered {
		network.SortByAffinity(list, r.interfaces())
	}
	return list, nil
}

func (r *Resolver) getDCList(ctx context.Context, domain, site string, lookup dcLookupType) ([]Service, bool, error) {
	order := r.opts.Order
	ordered := false
	switch lookup {
	case dcADSOnly:
		// SRV answers are already sorted by priority and weight.
		if strings.Contains(strings.ToLower(strings.Join(order, " ")), "host") {
			order = []string{"ads"}
			ordered = true
		} else {
			order = []string{OrderDisabled}
		}
	case dcKDCOnly:
		order = []string{"kdc"}
		ordered = true
	}

	var preferred []string
	if r.opts.Affinity != nil {
		if saf := r.opts.Affinity.Fetch(domain); saf != "" {
			preferred = append(preferred, saf)
		}
	}
	if strings.EqualFold(domain, r.opts.Workgroup) || strings.EqualFold(domain, r.opts.Realm) {
		for _, p := range r.opts.PasswordServers {
			preferred = append(preferred, ParseOrder(p)...)
		}
	} else {
		preferred = append(preferred, "*")
	}

	if len(preferred) == 0 {
		debugLog(MethodResolve, "no preferred domain controllers for %s", domain)
		list, err := r.InternalResolveName(ctx, domain, NameDomainControllers, site, order)
		return list, ordered, err
	}
	debugLog(MethodResolve, "preferred server list for %s: %v", domain, preferred)

	var auto []Service
	if slices.Contains(preferred, "*") {
		list, err := r.InternalResolveName(ctx, domain, NameDomainControllers, site, order)
		if err == nil {
			auto = list
		} else if ctx.Err() != nil {
			return nil, ordered, ctx.Err()
		}
		debugLog(MethodResolve, "adding %d DCs from auto lookup", len(auto))
	}

	defaultPort := PortNone
	if r.opts.SecurityADS {
		defaultPort = LDAPPort
	}

	var out []Service
	for _, name := range preferred {
		if name == "*" {
			for _, s := range auto {
				if r.isBadDC(domain, s.Addr.String()) {
					debugLog(MethodResolve, "negative entry %s removed from DC list", s.Addr)
					continue
				}
				out = append(out, s)
			}
			continue
		}

		host, port := splitServer(name, defaultPort)
		addr, err := r.ResolveName(ctx, host, NameServer, true)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ordered, ctx.Err()
			}
			debugLog(MethodResolve, "cannot resolve DC %s: %v", host, err)
			continue
		}
		if r.isBadDC(domain, addr.String()) {
			debugLog(MethodResolve, "negative entry %s removed from DC list", name)
			continue
		}
		out = append(out, Service{Addr: addr, Port: port})
		ordered = true
	}

	// W2K3 does not offer LDAP, Kerberos or CLDAP over IPv6.
	out = network.PrioritizeIPv4(network.Dedup(out))
	if len(out) == 0 {
		return nil, ordered, ErrNoLogonServers
	}
	debugLog(MethodResolve, "returning %d addresses (ordered=%v): %s", len(out), ordered, network.FormatServices(out))
	return out, ordered, nil
}

func (r *Resolver) isBadDC(domain, server string) bool {
	return r.opts.ConnFailures != nil && r.opts.ConnFailures.IsBad(domain, server)
}

// splitServer splits "name[:port]". An address literal with a port uses
// the bracketed IPv6 form.
func splitServer(s string, defaultPort uint16) (string, uint16) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().String(), ap.Port()
	}
	if _, err := netip.ParseAddr(s); err == nil {
		return s, defaultPort
	}
	host, portStr, found := strings.Cut(s, ":")
	if !found {
		return s, defaultPort
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return host, PortNone
	}
	return host, uint16(port)
}

// interfaces returns the configured interfaces, or the host's when none
// are configured.
func (r *Resolver) interfaces() *network.Interfaces {
	if r.client.Interfaces != nil {
		return r.client.Interfaces
	}
	ifaces, err := network.LocalInterfaces()
	if err != nil {
		debugLog(MethodResolve, "listing interfaces: %v", err)
		return nil
	}
	return ifaces
}
