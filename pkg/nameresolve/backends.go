package nameresolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/dns"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/lmhosts"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/netbios"
)

func servicesOf(addrs []netip.Addr) []Service {
	out := make([]Service, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, Service{Addr: a.Unmap(), Port: PortNone})
	}
	return out
}

// lookupHosts resolves through the DNS hosts file when one is configured,
// otherwise through the system resolver.
func (r *Resolver) lookupHosts(ctx context.Context, req Request) ([]Service, error) {
	if req.Type != NameServer && req.Type != NameWorkstation {
		debugLog(MethodHosts, "not resolving %s#%s via hosts", req.Name, req.Type)
		return nil, ErrInvalidParameter
	}
	debugLog(MethodHosts, "attempting host lookup for %s#%s", req.Name, req.Type)

	var (
		addrs []netip.Addr
		err   error
	)
	if r.opts.DNS.HostsFile != "" {
		addrs, err = r.opts.DNS.LookupHost(ctx, req.Name)
	} else {
		addrs, err = net.DefaultResolver.LookupNetIP(ctx, "ip", req.Name)
	}
	if err != nil {
		var dnsErr *net.DNSError
		if errors.Is(err, dns.ErrNoRecords) || (errors.As(err, &dnsErr) && dnsErr.IsNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("host lookup %s: %w", req.Name, err)
	}
	return servicesOf(addrs), nil
}

// lookupADS resolves domain controllers, the PDC or KDCs from DNS SRV
// records. Targets without glue are looked up individually.
func (r *Resolver) lookupADS(ctx context.Context, req Request) ([]Service, error) {
	var (
		records []dns.SRV
		err     error
	)
	switch req.Type {
	case NamePDC:
		debugLog(MethodADS, "looking up PDC of %s", req.Name)
		records, err = r.opts.DNS.LookupPDC(ctx, req.Name)
	case NameDomainControllers:
		debugLog(MethodADS, "looking up DCs of %s (site %q)", req.Name, req.Site)
		records, err = r.opts.DNS.LookupDCs(ctx, req.Name, req.Site)
	case NameKDC:
		debugLog(MethodADS, "looking up KDCs of %s (site %q)", req.Name, req.Site)
		records, err = r.opts.DNS.LookupKDCs(ctx, req.Name, req.Site)
	default:
		return nil, ErrInvalidParameter
	}
	if err != nil {
		if errors.Is(err, dns.ErrNoRecords) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("SRV lookup for %s: %w", req.Name, err)
	}

	var out []Service
	for _, rec := range records {
		addrs := rec.Addrs
		if len(addrs) == 0 {
			addrs, err = r.opts.DNS.LookupHost(ctx, rec.Target)
			if err != nil {
				debugLog(MethodADS, "no addresses for %s: %v", rec.Target, err)
				continue
			}
		}
		for _, a := range addrs {
			if !a.IsValid() || a.IsUnspecified() {
				continue
			}
			out = append(out, Service{Addr: a, Port: rec.Port})
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r *Resolver) lookupLMHosts(ctx context.Context, req Request) ([]Service, error) {
	if r.opts.LMHostsFile == "" || req.Type > 0xFF {
		return nil, ErrInvalidParameter
	}
	debugLog(MethodLMHosts, "attempting lmhosts lookup for %s#%s", req.Name, req.Type)
	addrs, err := lmhosts.LookupFile(r.opts.LMHostsFile, req.Name, int(req.Type))
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrNotFound
	}
	return servicesOf(addrs), nil
}

func (r *Resolver) lookupWINS(ctx context.Context, req Request) ([]Service, error) {
	if req.Type > 0xFF {
		return nil, ErrInvalidParameter
	}
	debugLog(MethodWINS, "attempting WINS lookup for %s#%s", req.Name, req.Type)
	var isSelf func(netip.Addr) bool
	if r.opts.InNameServer {
		isSelf = r.client.Interfaces.IsMyAddr
	}
	res, err := r.client.ResolveWINS(ctx, req.Name, byte(req.Type), r.opts.WINSServers, isSelf)
	if err != nil {
		return nil, netbiosErr(err)
	}
	return servicesOf(res.Addrs), nil
}

func (r *Resolver) lookupBcast(ctx context.Context, req Request) ([]Service, error) {
	if req.Type > 0xFF {
		return nil, ErrInvalidParameter
	}
	debugLog(MethodBcast, "attempting broadcast lookup for %s#%s", req.Name, req.Type)
	res, err := r.client.ResolveBcast(ctx, req.Name, byte(req.Type))
	if err != nil {
		return nil, netbiosErr(err)
	}
	return servicesOf(res.Addrs), nil
}

// netbiosErr folds a disabled client into "not applicable".
func netbiosErr(err error) error {
	if errors.Is(err, netbios.ErrNotSupported) {
		return ErrInvalidParameter
	}
	return err
}
