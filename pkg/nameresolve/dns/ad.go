package dns

import (
	"context"
	"fmt"
)

// DCQueryName is the SRV name listing the LDAP servers of a domain, or of
// one site of it.
func DCQueryName(realm, site string) string {
	return sitedName("_ldap", realm, site)
}

// KDCQueryName is the SRV name listing the Kerberos KDCs of a domain, or
// of one site of it.
func KDCQueryName(realm, site string) string {
	return sitedName("_kerberos", realm, site)
}

// PDCQueryName is the SRV name of the PDC emulator of a domain.
func PDCQueryName(realm string) string {
	return "_ldap._tcp.pdc._msdcs." + realm
}

func sitedName(service, realm, site string) string {
	if site != "" {
		return fmt.Sprintf("%s._tcp.%s._sites.dc._msdcs.%s", service, site, realm)
	}
	return fmt.Sprintf("%s._tcp.dc._msdcs.%s", service, realm)
}

// LookupDCs returns the domain controllers of realm. A site with no
// controllers falls back to the whole domain.
func (r *Resolver) LookupDCs(ctx context.Context, realm, site string) ([]SRV, error) {
	return r.lookupSited(ctx, DCQueryName, realm, site)
}

// LookupKDCs returns the KDCs of realm. A site with no KDCs falls back to
// the whole domain.
func (r *Resolver) LookupKDCs(ctx context.Context, realm, site string) ([]SRV, error) {
	return r.lookupSited(ctx, KDCQueryName, realm, site)
}

// LookupPDC returns the PDC emulator of realm.
func (r *Resolver) LookupPDC(ctx context.Context, realm string) ([]SRV, error) {
	return r.LookupSRV(ctx, PDCQueryName(realm))
}

func (r *Resolver) lookupSited(ctx context.Context, name func(string, string) string, realm, site string) ([]SRV, error) {
	if site != "" {
		list, err := r.LookupSRV(ctx, name(realm, site))
		if err == nil && len(list) > 0 {
			return list, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		debugLog("no servers for site %s of %s, trying the whole domain", site, realm)
	}
	return r.LookupSRV(ctx, name(realm, ""))
}
