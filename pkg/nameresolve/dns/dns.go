// Package dns provides the DNS lookups used for Active Directory name
// resolution: SRV records for domain controllers and KDCs, and A/AAAA
// lookups for their targets. Uses github.com/miekg/dns for the wire protocol.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strings"
	"time"

	miekg "github.com/miekg/dns"
)

const (
	// DefaultTimeout is the default timeout for a single DNS exchange.
	DefaultTimeout = 2 * time.Second
	// DefaultResolvConf is where nameservers are read from when none are configured.
	DefaultResolvConf = "/etc/resolv.conf"
)

// ErrNoRecords is returned when a name exists in no answer.
var ErrNoRecords = errors.New("dns: no records")

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from DNS operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// SRV is a service record with the addresses of its target, when known.
type SRV struct {
	Target   string
	Port     uint16
	Priority uint16
	Weight   uint16
	Addrs    []netip.Addr
}

// Resolver sends DNS queries to the configured nameservers.
type Resolver struct {
	// Servers are "host[:port]" nameservers. Empty means ResolvConf.
	Servers []string
	// ResolvConf is read when Servers is empty.
	ResolvConf string
	// HostsFile, when set, answers every lookup from a zone-format file
	// instead of the network.
	HostsFile string
	Timeout   time.Duration
}

// NewResolver creates a resolver using the system nameservers.
func NewResolver() *Resolver {
	return &Resolver{ResolvConf: DefaultResolvConf, Timeout: DefaultTimeout}
}

func (r *Resolver) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultTimeout
	}
	return r.Timeout
}

func (r *Resolver) servers() ([]string, error) {
	if len(r.Servers) > 0 {
		out := make([]string, 0, len(r.Servers))
		for _, s := range r.Servers {
			if _, _, err := net.SplitHostPort(s); err != nil {
				s = net.JoinHostPort(s, "53")
			}
			out = append(out, s)
		}
		return out, nil
	}
	path := r.ResolvConf
	if path == "" {
		path = DefaultResolvConf
	}
	cfg, err := miekg.ClientConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	out := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		out = append(out, net.JoinHostPort(s, cfg.Port))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no nameservers in %s", path)
	}
	return out, nil
}

// exchange asks each nameserver in turn until one gives a definite answer.
func (r *Resolver) exchange(ctx context.Context, name string, qtype uint16) (*miekg.Msg, error) {
	servers, err := r.servers()
	if err != nil {
		return nil, err
	}
	msg := new(miekg.Msg)
	msg.SetQuestion(miekg.Fqdn(name), qtype)
	msg.RecursionDesired = true

	udp := &miekg.Client{Timeout: r.timeout()}
	var lastErr error = ErrNoRecords
	for _, srv := range servers {
		resp, _, err := udp.ExchangeContext(ctx, msg, srv)
		if err != nil {
			debugLog("%s %s via %s: %v", name, miekg.TypeToString[qtype], srv, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.Truncated {
			tcp := &miekg.Client{Net: "tcp", Timeout: r.timeout()}
			if full, _, err := tcp.ExchangeContext(ctx, msg, srv); err == nil {
				resp = full
			}
		}
		switch resp.Rcode {
		case miekg.RcodeSuccess:
			return resp, nil
		case miekg.RcodeNameError:
			return nil, ErrNoRecords
		default:
			lastErr = fmt.Errorf("%s: %s", srv, miekg.RcodeToString[resp.Rcode])
		}
	}
	return nil, lastErr
}

// LookupSRV returns the SRV records of name ordered by priority, then by
// descending weight. Addresses the server put in the additional section
// are attached to their targets.
func (r *Resolver) LookupSRV(ctx context.Context, name string) ([]SRV, error) {
	if r.HostsFile != "" {
		hf, err := LoadHostsFile(r.HostsFile)
		if err != nil {
			return nil, err
		}
		return hf.LookupSRV(name)
	}

	resp, err := r.exchange(ctx, name, miekg.TypeSRV)
	if err != nil {
		return nil, err
	}
	inline := make(map[string][]netip.Addr)
	for _, rr := range resp.Extra {
		if a, ok := rrAddr(rr); ok {
			key := strings.ToLower(rr.Header().Name)
			inline[key] = append(inline[key], a)
		}
	}

	var out []SRV
	for _, rr := range resp.Answer {
		srv, ok := rr.(*miekg.SRV)
		if !ok {
			continue
		}
		out = append(out, SRV{
			Target:   srv.Target,
			Port:     srv.Port,
			Priority: srv.Priority,
			Weight:   srv.Weight,
			Addrs:    inline[strings.ToLower(srv.Target)],
		})
	}
	if len(out) == 0 {
		return nil, ErrNoRecords
	}
	sortSRV(out)
	debugLog("%s: %d SRV records", name, len(out))
	return out, nil
}

// LookupHost returns the A and AAAA addresses of host.
func (r *Resolver) LookupHost(ctx context.Context, host string) ([]netip.Addr, error) {
	if r.HostsFile != "" {
		hf, err := LoadHostsFile(r.HostsFile)
		if err != nil {
			return nil, err
		}
		return hf.LookupHost(host)
	}

	var (
		out     []netip.Addr
		lastErr error
	)
	for _, qtype := range []uint16{miekg.TypeA, miekg.TypeAAAA} {
		resp, err := r.exchange(ctx, host, qtype)
		if err != nil {
			lastErr = err
			continue
		}
		for _, rr := range resp.Answer {
			if a, ok := rrAddr(rr); ok {
				out = append(out, a)
			}
		}
	}
	if len(out) == 0 {
		if lastErr == nil {
			lastErr = ErrNoRecords
		}
		return nil, lastErr
	}
	return out, nil
}

func rrAddr(rr miekg.RR) (netip.Addr, bool) {
	var ip net.IP
	switch v := rr.(type) {
	case *miekg.A:
		ip = v.A
	case *miekg.AAAA:
		ip = v.AAAA
	default:
		return netip.Addr{}, false
	}
	a, ok := netip.AddrFromSlice(ip)
	return a.Unmap(), ok
}

// sortSRV orders records by ascending priority; within a priority higher
// weights come first.
func sortSRV(list []SRV) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return list[i].Weight > list[j].Weight
	})
}
