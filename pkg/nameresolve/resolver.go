package nameresolve

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/arp"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/cache"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/dns"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/metrics"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/netbios"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/network"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/oui"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/wins"
)

// Request is one lookup handed to a backend.
type Request struct {
	Name string
	Type NameType
	Site string
}

// Backend resolves a request. Returning ErrInvalidParameter means the
// backend does not handle the request; the next order token is tried.
type Backend interface {
	Lookup(ctx context.Context, req Request) ([]Service, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req Request) ([]Service, error)

// Lookup calls f(ctx, req).
func (f BackendFunc) Lookup(ctx context.Context, req Request) ([]Service, error) {
	return f(ctx, req)
}

// Options configures a Resolver. Nil collaborators disable the feature
// they provide: no name cache, no affinity, no ARP fallback and so on.
type Options struct {
	// Order is the name resolve order. Nil means DefaultOrder.
	Order []string

	Workgroup string
	Realm     string
	// Site is the AD site used by the convenience lookups.
	Site string
	// SecurityADS selects LDAP ports for explicit password servers and
	// tries "ads" first for PDC lookups.
	SecurityADS     bool
	PasswordServers []string

	DisableNetBIOS bool
	// InNameServer is set when a name server runs in this process; our
	// own addresses are then never asked as WINS servers.
	InNameServer bool
	WINSServers  wins.ServerList
	LMHostsFile  string

	Client *netbios.Client
	DNS    *dns.Resolver

	Names        *cache.Names
	Affinity     *cache.Affinity
	ConnFailures *cache.ConnFailures
	Status       *cache.Status
	// WINSTracker becomes the client's Liveness unless one is set.
	WINSTracker *wins.Tracker

	ARP     *arp.Resolver
	Vendors *oui.Database

	// Backends replaces the built-in backend for a token.
	Backends map[string]Backend

	Metrics *metrics.Metrics
}

// Resolver resolves names through an ordered list of backends.
type Resolver struct {
	opts     Options
	client   *netbios.Client
	backends map[string]Backend
	group    singleflight.Group
}

// New creates a resolver.
func New(opts Options) *Resolver {
	if opts.Order == nil {
		opts.Order = DefaultOrder
	}
	client := opts.Client
	if client == nil {
		client = netbios.NewClient()
	}
	if opts.DisableNetBIOS {
		client.Disabled = true
	}
	if client.Status == nil && opts.Status != nil {
		client.Status = opts.Status
	}
	if client.Liveness == nil && opts.WINSTracker != nil {
		client.Liveness = opts.WINSTracker
	}
	if client.Metrics == nil {
		client.Metrics = opts.Metrics
	}
	if opts.DNS == nil {
		opts.DNS = dns.NewResolver()
	}

	r := &Resolver{opts: opts, client: client}
	r.backends = map[string]Backend{
		"host":    BackendFunc(r.lookupHosts),
		"ads":     BackendFunc(r.lookupADS),
		"kdc":     BackendFunc(r.lookupADS),
		"lmhosts": BackendFunc(r.lookupLMHosts),
		"wins":    BackendFunc(r.lookupWINS),
		"bcast":   BackendFunc(r.lookupBcast),
	}
	for token, b := range opts.Backends {
		r.backends[strings.ToLower(token)] = b
	}
	return r
}

// Client returns the NetBIOS client used by the resolver.
func (r *Resolver) Client() *netbios.Client {
	return r.client
}

// Order returns the configured name resolve order.
func (r *Resolver) Order() []string {
	return r.opts.Order
}

// Affinity returns the server affinity cache, or nil.
func (r *Resolver) Affinity() *cache.Affinity {
	return r.opts.Affinity
}

// ConnFailures returns the failed connection cache, or nil.
func (r *Resolver) ConnFailures() *cache.ConnFailures {
	return r.opts.ConnFailures
}

// WINSTracker returns the WINS liveness tracker, or nil.
func (r *Resolver) WINSTracker() *wins.Tracker {
	return r.opts.WINSTracker
}

// Resolve resolves name with the configured order and site.
func (r *Resolver) Resolve(ctx context.Context, name string, nameType NameType) ([]Service, error) {
	return r.InternalResolveName(ctx, name, nameType, r.opts.Site, r.opts.Order)
}

// InternalResolveName resolves name<nameType> by trying each backend in
// order until one returns addresses. An IP literal is returned as is.
// Results are cached in the name cache. Failures are cached only for the
// configured order without a site, so a miss under a narrower order never
// hides a later lookup with the full one. Concurrent identical calls share
// one resolution.
func (r *Resolver) InternalResolveName(ctx context.Context, name string, nameType NameType, site string, order []string) ([]Service, error) {
	debugLog(MethodResolve, "looking up %s#%s (site %q)", name, nameType, site)

	if addr, err := netip.ParseAddr(name); err == nil {
		return []Service{{Addr: addr.Unmap(), Port: PortNone}}, nil
	}

	if list, found := r.fetchCached(name, nameType); found {
		if len(list) == 0 {
			return nil, ErrNotFound
		}
		return list, nil
	}

	if len(order) == 1 && strings.EqualFold(order[0], OrderDisabled) {
		debugLog(MethodResolve, "all lookups disabled")
		return nil, ErrInvalidParameter
	}
	rememberMiss := site == "" && r.isConfiguredOrder(order)
	if len(order) == 0 {
		order = []string{"host"}
	}

	key := fmt.Sprintf("%s#%04x/%s/%s", strings.ToUpper(name), uint16(nameType), site, strings.Join(order, ","))
	for {
		ch := r.group.DoChan(key, func() (interface{}, error) {
			return r.resolve(ctx, name, nameType, site, order, rememberMiss)
		})
		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}
		if res.Err != nil {
			// The caller that ran the shared lookup gave up; try again
			// unless we did too.
			if res.Shared && isContextErr(res.Err) && ctx.Err() == nil {
				debugLog(MethodResolve, "shared lookup of %s abandoned, retrying", name)
				continue
			}
			return nil, res.Err
		}
		list := res.Val.([]Service)
		return append([]Service(nil), list...), nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *Resolver) isConfiguredOrder(order []string) bool {
	if len(order) != len(r.opts.Order) {
		return false
	}
	for i := range order {
		if !strings.EqualFold(order[i], r.opts.Order[i]) {
			return false
		}
	}
	return true
}

func (r *Resolver) resolve(ctx context.Context, name string, nameType NameType, site string, order []string, rememberMiss bool) ([]Service, error) {
	for _, tok := range order {
		tok = strings.ToLower(tok)
		req := Request{Name: name, Type: nameType, Site: site}
		switch tok {
		case "host", "hosts":
			tok = "host"
		case "kdc":
			req.Type = NameKDC
		case "ads", "lmhosts", "bcast":
		case "wins":
			if nameType == NameMasterBrowser {
				continue
			}
		default:
			debugLog(MethodResolve, "unknown name switch type %s", tok)
			continue
		}

		b, ok := r.backends[tok]
		if !ok {
			continue
		}
		start := time.Now()
		list, err := b.Lookup(ctx, req)
		list = network.Dedup(list)
		switch {
		case err == nil && len(list) > 0:
			r.opts.Metrics.ObserveLookup(tok, "ok", time.Since(start))
			// KDC answers are cached under the KDC type.
			r.storeCached(name, req.Type, list)
			debugLog(MethodResolve, "%s#%s -> %s (via %s)", name, req.Type, network.FormatServices(list), tok)
			return list, nil
		case err == nil, errors.Is(err, ErrNotFound):
			r.opts.Metrics.ObserveLookup(tok, "not_found", time.Since(start))
		case errors.Is(err, ErrInvalidParameter):
			r.opts.Metrics.ObserveLookup(tok, "skipped", time.Since(start))
		default:
			r.opts.Metrics.ObserveLookup(tok, "error", time.Since(start))
			debugLog(MethodResolve, "%s lookup of %s failed: %v", tok, name, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if rememberMiss {
		r.storeCached(name, nameType, nil)
	}
	return nil, ErrNotFound
}

func (r *Resolver) fetchCached(name string, nameType NameType) ([]Service, bool) {
	if r.opts.Names == nil {
		return nil, false
	}
	list, found := r.opts.Names.Fetch(name, uint16(nameType))
	switch {
	case !found:
		r.opts.Metrics.CacheRequest("name", "miss")
	case len(list) == 0:
		r.opts.Metrics.CacheRequest("name", "negative")
		debugLog(MethodCache, "%s#%s: negative cache entry", name, nameType)
	default:
		r.opts.Metrics.CacheRequest("name", "hit")
		debugLog(MethodCache, "%s#%s: cached %s", name, nameType, network.FormatServices(list))
	}
	return list, found
}

func (r *Resolver) storeCached(name string, nameType NameType, list []Service) {
	if r.opts.Names == nil {
		return
	}
	if err := r.opts.Names.Store(name, uint16(nameType), list); err != nil {
		debugLog(MethodCache, "name cache store for %s#%s failed: %v", name, nameType, err)
	}
}

// usable reports whether addr can be connected to.
func usable(addr netip.Addr) bool {
	return addr.IsValid() && !addr.IsUnspecified() && addr != netip.AddrFrom4([4]byte{255, 255, 255, 255})
}

// ResolveName returns the first usable address of name. With preferIPv4
// an IPv4 address is returned when there is one.
func (r *Resolver) ResolveName(ctx context.Context, name string, nameType NameType, preferIPv4 bool) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(name); err == nil {
		return addr.Unmap(), nil
	}
	list, err := r.InternalResolveName(ctx, name, nameType, r.opts.Site, r.opts.Order)
	if err != nil {
		return netip.Addr{}, err
	}
	if preferIPv4 {
		for _, s := range list {
			if usable(s.Addr) && s.Addr.Is4() {
				return s.Addr, nil
			}
		}
	}
	for _, s := range list {
		if usable(s.Addr) {
			return s.Addr, nil
		}
	}
	return netip.Addr{}, ErrNotFound
}

// ResolveNameList returns every usable address of name.
func (r *Resolver) ResolveNameList(ctx context.Context, name string, nameType NameType) ([]netip.Addr, error) {
	if looksNumeric(name) {
		addr, err := netip.ParseAddr(name)
		if err != nil {
			return nil, ErrBadNetworkName
		}
		return []netip.Addr{addr.Unmap()}, nil
	}
	list, err := r.InternalResolveName(ctx, name, nameType, r.opts.Site, r.opts.Order)
	if err != nil {
		return nil, err
	}
	var out []netip.Addr
	for _, s := range list {
		if usable(s.Addr) {
			out = append(out, s.Addr)
		}
	}
	if len(out) == 0 {
		return nil, ErrBadNetworkName
	}
	return out, nil
}

// looksNumeric reports whether s is written like an address literal.
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	if strings.Contains(s, ":") {
		return true
	}
	for _, c := range s {
		if (c < '0' || c > '9') && c != '.' {
			return false
		}
	}
	return true
}

// FindMasterIP returns the master browser of group, falling back to its
// domain master browser.
func (r *Resolver) FindMasterIP(ctx context.Context, group string) (netip.Addr, error) {
	if r.opts.DisableNetBIOS {
		debugLog(MethodResolve, "find master of %s: netbios is disabled", group)
		return netip.Addr{}, ErrNetBIOSDisabled
	}
	list, err := r.InternalResolveName(ctx, group, NameMasterBrowser, "", r.opts.Order)
	if err == nil {
		return list[0].Addr, nil
	}
	if ctx.Err() != nil {
		return netip.Addr{}, ctx.Err()
	}
	list, err = r.InternalResolveName(ctx, group, NamePDC, "", r.opts.Order)
	if err != nil {
		return netip.Addr{}, err
	}
	return list[0].Addr, nil
}

// GetPDCIP returns the primary domain controller of domain. Under ADS
// security DNS is asked first.
func (r *Resolver) GetPDCIP(ctx context.Context, domain string) (netip.Addr, error) {
	var (
		list []Service
		err  = ErrNotFound
	)
	if r.opts.SecurityADS {
		list, err = r.InternalResolveName(ctx, domain, NamePDC, "", []string{"ads"})
	}
	if err != nil || len(list) == 0 {
		list, err = r.InternalResolveName(ctx, domain, NamePDC, "", r.opts.Order)
		if err != nil {
			return netip.Addr{}, err
		}
	}
	if len(list) > 1 {
		debugLog(MethodResolve, "PDC of %s has %d addresses", domain, len(list))
		network.SortByAffinity(list, r.interfaces())
	}
	return list[0].Addr, nil
}
