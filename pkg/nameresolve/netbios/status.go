package netbios

import (
	"context"
	"net/netip"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/nmb"
)

// NodeStatusQuery asks addr for its name table. Without a deadline on ctx
// the query is bounded by NodeStatusTimeout.
func (c *Client) NodeStatusQuery(ctx context.Context, name nmb.Name, addr netip.Addr) (*nmb.NodeStatus, error) {
	addr = addr.Unmap()
	if !addr.Is4() {
		return nil, ErrInvalidAddress
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, orDefault(c.NodeStatusTimeout, DefaultNodeStatusTimeout))
		defer cancel()
	}

	var status *nmb.NodeStatus
	validate := func(p *nmb.Packet) Verdict {
		h := p.Header
		if h.Opcode != nmb.OpcodeQuery || h.Broadcast || h.Rcode != nmb.RcodeOK ||
			len(p.Answers) == 0 || p.Answers[0].Type != nmb.TypeNBSTAT {
			return Reject
		}
		st, err := nmb.ParseNodeStatus(p.Answers[0].Data)
		if err != nil {
			debugLog("%s: bad node status: %v", addr, err)
			return Reject
		}
		status = st
		return Accept
	}

	req := nmb.NewNodeStatusQuery(NewTrnID(), name)
	if _, err := c.Transact(ctx, netip.AddrPortFrom(addr, c.port()), req, validate); err != nil {
		debugLog("%s: node status failed: %v", addr, err)
		return nil, err
	}
	if h := status.Hostname(); h != "" {
		debugLog("%s -> %s (MAC: %s)", addr, h, status.MAC)
	}
	return status, nil
}

// NameStatusFind looks up the first unique name of type ntype registered
// on to, querying with qname<qtype>. Results are cached in Status unless
// qtype is 0x1C, whose answers belong to a list of hosts.
func (c *Client) NameStatusFind(ctx context.Context, qname string, qtype, ntype byte, to netip.Addr) (string, error) {
	if c.Disabled {
		return "", ErrNotSupported
	}
	if c.Status != nil {
		if name, ok := c.Status.Fetch(qname, qtype, ntype, to); ok {
			return name, nil
		}
	}
	if !to.Unmap().Is4() {
		return "", ErrInvalidAddress
	}

	st, err := c.NodeStatusQuery(ctx, nmb.Name{Name: qname, Type: qtype}, to)
	if err != nil {
		return "", err
	}
	for _, n := range st.Names {
		if n.Type != ntype || n.IsGroup() {
			continue
		}
		if qtype != 0x1C && c.Status != nil {
			if err := c.Status.Store(qname, qtype, ntype, to, n.Name); err != nil {
				debugLog("status cache store failed: %v", err)
			}
		}
		return n.Name, nil
	}
	return "", ErrNotFound
}
