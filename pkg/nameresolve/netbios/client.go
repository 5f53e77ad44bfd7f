// Package netbios implements the NetBIOS name service client: single
// transactions over UDP/137, name queries, WINS failover, broadcast
// resolution and node status.
package netbios

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/netip"
	"time"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/metrics"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/network"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/nmb"
)

const (
	// DefaultRetransmitInterval is the delay between resends of a request.
	DefaultRetransmitInterval = time.Second
	// DefaultRetries is the number of times a request is sent.
	DefaultRetries = 3
	// DefaultUnicastTimeout bounds a unicast name query.
	DefaultUnicastTimeout = 2 * time.Second
	// DefaultBroadcastTimeout bounds a broadcast name query.
	DefaultBroadcastTimeout = 250 * time.Millisecond
	// DefaultWINSTimeout bounds the query to a single WINS server.
	DefaultWINSTimeout = 2 * time.Second
	// DefaultBcastFanoutTimeout bounds each interface of a broadcast resolution.
	DefaultBcastFanoutTimeout = time.Second
	// DefaultNodeStatusTimeout bounds a node status query.
	DefaultNodeStatusTimeout = 10 * time.Second
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from NetBIOS operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Verdict is a validator's decision about one response.
type Verdict int

const (
	// Reject discards the response and keeps waiting.
	Reject Verdict = iota
	// Retry absorbs the response and keeps waiting for more.
	Retry
	// Accept completes the transaction with the response.
	Accept
)

// Validator inspects a response whose transaction ID matched.
// It is only ever called from the transaction's own goroutine.
type Validator func(p *nmb.Packet) Verdict

// Listener delivers packets received by a co-located name server.
type Listener interface {
	Subscribe(trnID uint16) (<-chan *nmb.Packet, func())
}

// Liveness tracks WINS servers that stopped answering.
type Liveness interface {
	MarkDead(server, src netip.Addr)
	IsDead(server, src netip.Addr) bool
}

// StatusCache remembers node status lookups.
type StatusCache interface {
	Fetch(qname string, qtype, ntype byte, addr netip.Addr) (string, bool)
	Store(qname string, qtype, ntype byte, addr netip.Addr, name string) error
}

// Client sends NetBIOS name service requests.
type Client struct {
	// Port is the destination port. Zero means nmb.Port.
	Port int
	// LocalAddr is the source address of outgoing sockets.
	LocalAddr netip.Addr

	RetransmitInterval time.Duration
	Retries            int
	UnicastTimeout     time.Duration
	BroadcastTimeout   time.Duration
	WINSTimeout        time.Duration
	BcastFanoutTimeout time.Duration
	NodeStatusTimeout  time.Duration

	// Disabled turns every query into ErrNotSupported.
	Disabled bool

	Listener   Listener
	Interfaces *network.Interfaces
	Liveness   Liveness
	Status     StatusCache
	Metrics    *metrics.Metrics
}

// NewClient creates a client with default timeouts.
func NewClient() *Client {
	return &Client{
		Port:               nmb.Port,
		RetransmitInterval: DefaultRetransmitInterval,
		Retries:            DefaultRetries,
		UnicastTimeout:     DefaultUnicastTimeout,
		BroadcastTimeout:   DefaultBroadcastTimeout,
		WINSTimeout:        DefaultWINSTimeout,
		BcastFanoutTimeout: DefaultBcastFanoutTimeout,
		NodeStatusTimeout:  DefaultNodeStatusTimeout,
	}
}

// NewTrnID returns a random transaction ID in [0, 0x7FFF).
func NewTrnID() uint16 {
	return uint16(rand.Intn(0x7FFF))
}

func (c *Client) port() uint16 {
	if c.Port <= 0 || c.Port > 0xFFFF {
		return nmb.Port
	}
	return uint16(c.Port)
}

func (c *Client) retransmitInterval() time.Duration {
	if c.RetransmitInterval <= 0 {
		return DefaultRetransmitInterval
	}
	return c.RetransmitInterval
}

func (c *Client) retries() int {
	if c.Retries <= 0 {
		return DefaultRetries
	}
	return c.Retries
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func (c *Client) localAddr() string {
	if c.LocalAddr.IsValid() && c.LocalAddr.Is4() {
		return c.LocalAddr.String() + ":0"
	}
	return ":0"
}

// Transact sends req to dst and waits for a response the validator accepts.
// The request is resent every RetransmitInterval; once Retries sends have
// gone unanswered for another interval the transaction fails with
// ErrTimeout. A deadline on ctx also ends it with ErrTimeout.
func (c *Client) Transact(ctx context.Context, dst netip.AddrPort, req *nmb.Packet, validate Validator) (*nmb.Packet, error) {
	addr := dst.Addr().Unmap()
	if !addr.Is4() {
		return nil, ErrInvalidAddress
	}
	dst = netip.AddrPortFrom(addr, dst.Port())

	data, err := req.Marshal()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp4", c.localAddr())
	if err != nil {
		return nil, fmt.Errorf("udp listen: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	trnID := req.Header.TrnID
	received := make(chan *nmb.Packet, 8)
	go readLoop(ctx, conn, trnID, received)

	var local <-chan *nmb.Packet
	if c.Listener != nil {
		ch, unsubscribe := c.Listener.Subscribe(trnID)
		defer unsubscribe()
		local = ch
	}

	to := net.UDPAddrFromAddrPort(dst)
	if _, err := conn.WriteTo(data, to); err != nil {
		debugLog("%s: send failed: %v", dst, err)
		c.Metrics.Transaction("error")
		return nil, fmt.Errorf("send request: %w", err)
	}
	sent := 1

	ticker := time.NewTicker(c.retransmitInterval())
	defer ticker.Stop()

	for {
		var (
			p  *nmb.Packet
			ok bool
		)
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				c.Metrics.Transaction("timeout")
				return nil, ErrTimeout
			}
			c.Metrics.Transaction("cancelled")
			return nil, ctx.Err()
		case <-ticker.C:
			if sent >= c.retries() {
				c.Metrics.Transaction("timeout")
				return nil, ErrTimeout
			}
			if _, err := conn.WriteTo(data, to); err != nil {
				debugLog("%s: resend failed: %v", dst, err)
			}
			sent++
			c.Metrics.Retransmit()
			continue
		case p, ok = <-received:
			if !ok {
				received = nil
				continue
			}
		case p, ok = <-local:
			if !ok {
				local = nil
				continue
			}
		}
		if !p.Header.Response {
			continue
		}
		switch validate(p) {
		case Accept:
			c.Metrics.Transaction("ok")
			return p, nil
		case Retry:
			debugLog("%s: trn %d: response absorbed, waiting for more", dst, trnID)
		}
	}
}

// readLoop forwards parsed datagrams with a matching transaction ID until
// the socket fails or ctx ends.
func readLoop(ctx context.Context, conn net.PacketConn, trnID uint16, out chan<- *nmb.Packet) {
	defer close(out)
	buf := make([]byte, nmb.MaxPacketSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		if ua, ok := from.(*net.UDPAddr); !ok || ua.IP.To4() == nil {
			debugLog("discarding datagram from non-IPv4 source %v", from)
			continue
		}
		p, err := nmb.Parse(buf[:n])
		if err != nil {
			debugLog("discarding unparsable datagram from %v: %v", from, err)
			continue
		}
		if p.Header.TrnID != trnID {
			continue
		}
		select {
		case out <- p:
		case <-ctx.Done():
			return
		}
	}
}
