package dns

import (
	"fmt"
	"net/netip"
	"os"
	"strings"

	miekg "github.com/miekg/dns"
)

const maxCNAMEHops = 8

// HostsFile is a set of DNS records read from a zone-format file. It
// stands in for live DNS where no nameserver is available.
type HostsFile struct {
	records []miekg.RR
}

// LoadHostsFile parses the zone-format file at path. Relative names are
// taken as rooted.
func LoadHostsFile(path string) (*HostsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hosts file: %w", err)
	}
	defer f.Close()

	hf := &HostsFile{}
	zp := miekg.NewZoneParser(f, ".", path)
	for rr, ok := zp.Next(); ok; rr, ok = zp.Next() {
		hf.records = append(hf.records, rr)
	}
	if err := zp.Err(); err != nil {
		return nil, fmt.Errorf("parse hosts file: %w", err)
	}
	return hf, nil
}

func (h *HostsFile) match(name string) []miekg.RR {
	name = strings.ToLower(miekg.Fqdn(name))
	var out []miekg.RR
	for _, rr := range h.records {
		if strings.ToLower(rr.Header().Name) == name {
			out = append(out, rr)
		}
	}
	return out
}

// LookupHost returns the addresses of name, following CNAME records.
func (h *HostsFile) LookupHost(name string) ([]netip.Addr, error) {
	for hop := 0; hop < maxCNAMEHops; hop++ {
		var (
			out   []netip.Addr
			alias string
		)
		for _, rr := range h.match(name) {
			if a, ok := rrAddr(rr); ok {
				out = append(out, a)
			}
			if c, ok := rr.(*miekg.CNAME); ok {
				alias = c.Target
			}
		}
		if len(out) > 0 {
			return out, nil
		}
		if alias == "" {
			return nil, ErrNoRecords
		}
		name = alias
	}
	return nil, fmt.Errorf("%w: CNAME chain too long for %s", ErrNoRecords, name)
}

// LookupSRV returns the SRV records of name with their targets' addresses.
func (h *HostsFile) LookupSRV(name string) ([]SRV, error) {
	var out []SRV
	for _, rr := range h.match(name) {
		srv, ok := rr.(*miekg.SRV)
		if !ok {
			continue
		}
		addrs, _ := h.LookupHost(srv.Target)
		out = append(out, SRV{
			Target:   srv.Target,
			Port:     srv.Port,
			Priority: srv.Priority,
			Weight:   srv.Weight,
			Addrs:    addrs,
		})
	}
	if len(out) == 0 {
		return nil, ErrNoRecords
	}
	sortSRV(out)
	return out, nil
}
