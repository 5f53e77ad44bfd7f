package netbios

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/network"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/nmb"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/wins"
)

// QueryResult is the outcome of a successful name query.
type QueryResult struct {
	Addrs []netip.Addr
	Flags nmb.Flags
}

// nameCollector accumulates the answers of one name query.
type nameCollector struct {
	bcast bool
	addrs []netip.Addr
	seen  map[netip.Addr]struct{}
	flags nmb.Flags
}

func (nc *nameCollector) validate(p *nmb.Packet) Verdict {
	h := p.Header
	if h.Opcode == nmb.OpcodeQuery && h.Rcode != nmb.RcodeOK && !nc.bcast {
		debugLog("negative name query response, rcode 0x%x: %s", h.Rcode, nmb.RcodeText(h.Rcode))
		return Accept
	}
	if h.Opcode != nmb.OpcodeQuery || h.Broadcast || h.Rcode != nmb.RcodeOK || len(p.Answers) == 0 {
		return Reject
	}

	gotUnique := false
	for _, e := range nmb.ParseAddrEntries(p.Answers[0].Data) {
		if !e.Group {
			gotUnique = true
		}
		if _, dup := nc.seen[e.Addr]; dup {
			continue
		}
		nc.seen[e.Addr] = struct{}{}
		nc.addrs = append(nc.addrs, e.Addr)
	}
	nc.flags = h.Flags()

	if !nc.bcast || gotUnique {
		return Accept
	}
	return Retry
}

// NameQuery asks dst for the addresses of name. Without a deadline on ctx
// the query is bounded by BroadcastTimeout or UnicastTimeout. A broadcast
// query that collected addresses before timing out succeeds.
func (c *Client) NameQuery(ctx context.Context, name string, nameType byte, bcast, recurse bool, dst netip.Addr) (*QueryResult, error) {
	if c.Disabled {
		return nil, ErrNotSupported
	}
	dst = dst.Unmap()
	if !dst.Is4() {
		return nil, ErrInvalidAddress
	}
	if _, ok := ctx.Deadline(); !ok {
		timeout := orDefault(c.UnicastTimeout, DefaultUnicastTimeout)
		if bcast {
			timeout = orDefault(c.BroadcastTimeout, DefaultBroadcastTimeout)
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	q := nmb.Name{Name: name, Type: nameType}
	req := nmb.NewNameQuery(NewTrnID(), q, bcast, recurse)
	nc := &nameCollector{bcast: bcast, seen: make(map[netip.Addr]struct{})}

	debugLog("querying %s for %s (bcast=%v)", dst, q, bcast)
	_, err := c.Transact(ctx, netip.AddrPortFrom(dst, c.port()), req, nc.validate)
	if err != nil && !(bcast && errors.Is(err, ErrTimeout)) {
		return nil, err
	}
	if len(nc.addrs) == 0 {
		return nil, ErrNotFound
	}
	if c.Interfaces != nil {
		network.SortAddrs(nc.addrs, c.Interfaces)
	}
	debugLog("%s -> %v", q, nc.addrs)
	return &QueryResult{Addrs: nc.addrs, Flags: nc.flags}, nil
}

// NameQueries queries dsts in order, starting the next one every wait until
// one succeeds. Each query is bounded by timeout. It returns the result and
// the index of the answering destination. Failure is only reported once
// every destination has answered or timed out.
func (c *Client) NameQueries(ctx context.Context, name string, nameType byte, bcast, recurse bool, dsts []netip.Addr, wait, timeout time.Duration) (*QueryResult, int, error) {
	if len(dsts) == 0 {
		return nil, -1, ErrInvalidParameter
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		idx int
		res *QueryResult
		err error
	}
	results := make(chan outcome, len(dsts))
	launch := func(i int) {
		go func() {
			qctx := ctx
			if timeout > 0 {
				var qcancel context.CancelFunc
				qctx, qcancel = context.WithTimeout(ctx, timeout)
				defer qcancel()
			}
			res, err := c.NameQuery(qctx, name, nameType, bcast, recurse, dsts[i])
			results <- outcome{idx: i, res: res, err: err}
		}()
	}

	launch(0)
	sent := 1

	var (
		timer *time.Timer
		next  <-chan time.Time
	)
	if len(dsts) > 1 {
		timer = time.NewTimer(wait)
		defer timer.Stop()
		next = timer.C
	}

	received := 0
	var lastErr error = ErrNotFound
	for {
		select {
		case <-ctx.Done():
			return nil, -1, ctxErr(ctx)
		case <-next:
			launch(sent)
			sent++
			if sent < len(dsts) {
				timer.Reset(wait)
			} else {
				next = nil
			}
		case o := <-results:
			received++
			if o.err == nil {
				return o.res, o.idx, nil
			}
			debugLog("query %d of %d failed: %v", o.idx+1, len(dsts), o.err)
			lastErr = o.err
			if received >= len(dsts) {
				return nil, -1, lastErr
			}
		}
	}
}

// QueryWINSList asks servers one after another. A server that times out is
// marked dead for src and the next one is tried; any other failure ends
// the search.
func (c *Client) QueryWINSList(ctx context.Context, src netip.Addr, name string, nameType byte, servers []netip.Addr) (*QueryResult, error) {
	for _, srv := range servers {
		qctx, cancel := context.WithTimeout(ctx, orDefault(c.WINSTimeout, DefaultWINSTimeout))
		res, err := c.NameQuery(qctx, name, nameType, false, true, srv)
		cancel()
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, ctxErr(ctx)
		}
		if !errors.Is(err, ErrTimeout) {
			return nil, err
		}
		debugLog("WINS server %s timed out, marking dead", srv)
		if c.Liveness != nil {
			c.Liveness.MarkDead(srv, src)
		}
		c.Metrics.WINSServerDead()
	}
	return nil, ErrNotFound
}

// ResolveWINS resolves name against every WINS tag in parallel. Servers
// that are known dead, and our own addresses when isSelf is given, are
// skipped. The first tag to answer wins.
func (c *Client) ResolveWINS(ctx context.Context, name string, nameType byte, servers wins.ServerList, isSelf func(netip.Addr) bool) (*QueryResult, error) {
	if c.Disabled {
		return nil, ErrNotSupported
	}
	if servers.Len() == 0 {
		return nil, ErrInvalidParameter
	}
	src := c.SourceAddr()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		res *QueryResult
		err error
	}
	tags := servers.Tags()
	results := make(chan outcome, len(tags))
	launched := 0
	for _, tag := range tags {
		var alive []netip.Addr
		for _, srv := range servers.ByTag(tag) {
			if isSelf != nil && isSelf(srv) {
				debugLog("WINS tag %s: skipping our own address %s", tag, srv)
				continue
			}
			if c.Liveness != nil && c.Liveness.IsDead(srv, src) {
				debugLog("WINS tag %s: server %s is dead", tag, srv)
				continue
			}
			alive = append(alive, srv)
		}
		if len(alive) == 0 {
			continue
		}
		launched++
		go func(alive []netip.Addr) {
			res, err := c.QueryWINSList(ctx, src, name, nameType, alive)
			results <- outcome{res: res, err: err}
		}(alive)
	}
	if launched == 0 {
		return nil, ErrNotFound
	}

	var lastErr error = ErrNotFound
	for i := 0; i < launched; i++ {
		o := <-results
		if o.err == nil {
			return o.res, nil
		}
		lastErr = o.err
	}
	return nil, lastErr
}

// ResolveBcast broadcasts a query for name on every IPv4 interface.
func (c *Client) ResolveBcast(ctx context.Context, name string, nameType byte) (*QueryResult, error) {
	if c.Disabled {
		return nil, ErrInvalidParameter
	}
	ifaces := c.Interfaces
	if ifaces == nil {
		var err error
		if ifaces, err = network.LocalInterfaces(); err != nil {
			return nil, err
		}
	}
	bcasts := ifaces.Broadcasts()
	if len(bcasts) == 0 {
		debugLog("no broadcast addresses for %s<%02x>", name, nameType)
		return nil, ErrInvalidParameter
	}
	res, _, err := c.NameQueries(ctx, name, nameType, true, true, bcasts, 0,
		orDefault(c.BcastFanoutTimeout, DefaultBcastFanoutTimeout))
	return res, err
}

// SourceAddr is the address WINS liveness is tracked under: LocalAddr, or
// 0.0.0.0 when unset.
func (c *Client) SourceAddr() netip.Addr {
	if c.LocalAddr.IsValid() {
		return c.LocalAddr
	}
	return netip.IPv4Unspecified()
}

func ctxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
