package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/network"
)

// Querier queries the node status of one host.
type Querier interface {
	NodeStatus(ctx context.Context, addr netip.Addr) (*nameresolve.HostStatus, error)
}

type Options struct {
	Timeout time.Duration
	Workers int
	// OnResult, when set, is called for each answering host as it is found.
	OnResult func(*nameresolve.HostStatus)
}

// Discover sends a node status query to every host address of cidr and
// returns the hosts that answered, sorted by address. Hosts that do not
// answer are skipped; only cancellation of ctx fails the sweep.
func Discover(ctx context.Context, cidr string, p Querier, opts Options) ([]*nameresolve.HostStatus, error) {
	ips, err := network.EnumerateIPs(cidr)
	if err != nil {
		return nil, fmt.Errorf("parse CIDR: %w", err)
	}
	if opts.Workers <= 0 {
		opts.Workers = 64
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	if len(ips) == 0 {
		return nil, nil
	}

	var (
		mu sync.Mutex
		up []*nameresolve.HostStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, ip := range ips {
		if gctx.Err() != nil {
			break
		}
		ip := ip
		g.Go(func() error {
			hs, err := queryHost(gctx, p, ip, opts.Timeout)
			if err != nil {
				return nil
			}
			mu.Lock()
			up = append(up, hs)
			if opts.OnResult != nil {
				opts.OnResult(hs)
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return up, err
	}

	slices.SortFunc(up, func(a, b *nameresolve.HostStatus) int {
		return a.Addr.Compare(b.Addr)
	})
	return up, nil
}

func queryHost(ctx context.Context, p Querier, ip netip.Addr, timeout time.Duration) (*nameresolve.HostStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	hs, err := p.NodeStatus(ctx, ip)
	if err != nil {
		return nil, err
	}
	if hs == nil {
		return nil, errors.New("empty status")
	}
	return hs, nil
}
