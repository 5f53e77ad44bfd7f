package nameresolve

import (
	"context"
	"net"
	"net/netip"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/nmb"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/oui"
)

// MAC address sources reported in HostStatus.
const (
	MACSourceNodeStatus = "nbstat"
	MACSourceARP        = "arp"
)

// HostStatus is the name table of a host with its hardware address.
type HostStatus struct {
	Addr      netip.Addr
	Hostname  string
	Names     []nmb.NodeName
	MAC       net.HardwareAddr
	MACSource string
	Vendor    string
}

// NodeStatus asks addr for its NetBIOS name table. When the reply has no
// MAC address one is obtained with ARP, if configured.
func (r *Resolver) NodeStatus(ctx context.Context, addr netip.Addr) (*HostStatus, error) {
	if r.client.Disabled {
		return nil, ErrNetBIOSDisabled
	}
	st, err := r.client.NodeStatusQuery(ctx, nmb.Name{Name: "*"}, addr)
	if err != nil {
		return nil, err
	}

	hs := &HostStatus{
		Addr:     addr.Unmap(),
		Hostname: st.Hostname(),
		Names:    st.Names,
	}
	if !oui.IsZeroMAC(st.MAC) {
		hs.MAC = st.MAC
		hs.MACSource = MACSourceNodeStatus
	} else if r.opts.ARP != nil {
		mac, err := r.opts.ARP.LookupMAC(ctx, hs.Addr)
		if err != nil {
			debugLog(MethodARP, "%s: no MAC from node status, ARP failed: %v", hs.Addr, err)
		} else {
			hs.MAC = mac
			hs.MACSource = MACSourceARP
		}
	}
	if hs.MAC != nil && r.opts.Vendors != nil {
		hs.Vendor = r.opts.Vendors.Manufacturer(hs.MAC)
	}
	return hs, nil
}

// NameStatusFind returns the unique name of type ntype registered on to,
// using the node status cache.
func (r *Resolver) NameStatusFind(ctx context.Context, qname string, qtype, ntype byte, to netip.Addr) (string, error) {
	return r.client.NameStatusFind(ctx, qname, qtype, ntype, to)
}
