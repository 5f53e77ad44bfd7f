package config

import (
	"fmt"
	"io"
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/arp"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/cache"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/dns"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/metrics"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/netbios"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/network"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/oui"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/wins"
)

// BuildResolver opens the cache store and assembles a resolver from cfg.
// Metrics are registered on reg when they are enabled and reg is not nil.
// The returned closer releases the cache store.
func BuildResolver(cfg *Config, reg prometheus.Registerer) (*nameresolve.Resolver, io.Closer, error) {
	servers, err := wins.ParseServers(cfg.WINS.Servers)
	if err != nil {
		return nil, nil, fmt.Errorf("wins servers: %w", err)
	}

	client, err := buildClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	vendors, err := oui.NewDatabase(cfg.OUI.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("oui database: %w", err)
	}

	store, err := cache.OpenBadger(cfg.Cache.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}

	names := cache.NewNames(store)
	names.TTL = cfg.Cache.NameTTL
	names.NegativeTTL = cfg.Cache.NegativeTTL

	status := cache.NewStatus(store)
	status.TTL = cfg.Cache.NameTTL

	affinity := cache.NewAffinity(store)
	affinity.TTL = cfg.Cache.SAFTTL
	affinity.JoinTTL = cfg.Cache.SAFJoinTTL

	connFailures := cache.NewConnFailures(store)
	connFailures.TTL = cfg.Cache.ConnFailureTTL

	tracker := wins.NewTracker(store)
	tracker.DeadTime = cfg.Cache.WINSDeadTime

	resolver := dns.NewResolver()
	resolver.Servers = cfg.Resolve.DNSServers
	resolver.HostsFile = cfg.Resolve.DNSHostsFile
	resolver.Timeout = cfg.Timeouts.DNS

	var arpResolver *arp.Resolver
	if arp.IsSupported() {
		arpResolver = arp.NewResolver(cfg.Timeouts.ARP)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled && reg != nil {
		m = metrics.New(reg)
	}

	r := nameresolve.New(nameresolve.Options{
		Order:           cfg.Resolve.Order,
		Workgroup:       cfg.Resolve.Workgroup,
		Realm:           cfg.Resolve.Realm,
		Site:            cfg.Resolve.Site,
		SecurityADS:     cfg.Resolve.SecurityADS(),
		PasswordServers: cfg.Resolve.PasswordServers,
		DisableNetBIOS:  cfg.Resolve.DisableNetBIOS,
		InNameServer:    cfg.Resolve.InNameServer,
		WINSServers:     servers,
		LMHostsFile:     cfg.Resolve.LMHostsFile,
		Client:          client,
		DNS:             resolver,
		Names:           names,
		Affinity:        affinity,
		ConnFailures:    connFailures,
		WINSTracker:     tracker,
		Status:          status,
		ARP:             arpResolver,
		Vendors:         vendors,
		Metrics:         m,
	})
	return r, store, nil
}

func buildClient(cfg *Config) (*netbios.Client, error) {
	client := netbios.NewClient()
	client.UnicastTimeout = cfg.Timeouts.Unicast
	client.BroadcastTimeout = cfg.Timeouts.Broadcast
	client.WINSTimeout = cfg.Timeouts.WINS
	client.BcastFanoutTimeout = cfg.Timeouts.BcastFanout
	client.NodeStatusTimeout = cfg.Timeouts.NodeStatus
	client.RetransmitInterval = cfg.Timeouts.Retransmit
	client.Retries = cfg.Timeouts.Retries

	if cfg.Resolve.SocketAddress != "" {
		addr, err := netip.ParseAddr(cfg.Resolve.SocketAddress)
		if err != nil {
			return nil, fmt.Errorf("socket address: %w", err)
		}
		client.LocalAddr = addr.Unmap()
	}

	if len(cfg.Resolve.Interfaces) > 0 {
		ifaces, err := network.ParseInterfaces(cfg.Resolve.Interfaces)
		if err != nil {
			return nil, fmt.Errorf("interfaces: %w", err)
		}
		client.Interfaces = ifaces
	}
	return client, nil
}
