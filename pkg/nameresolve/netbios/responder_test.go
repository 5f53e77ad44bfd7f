package netbios

import (
	"net"
	"net/netip"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/nmb"
)

// responder is a loopback name server driven by a handler.
type responder struct {
	conn    net.PacketConn
	addr    netip.Addr
	port    int
	queries atomic.Int32
}

// handler returns the packets to send back for req. Returning nil keeps
// the responder silent.
type handler func(req *nmb.Packet) []*nmb.Packet

// startResponder listens on ip:port (port 0 picks one) until the test ends.
func startResponder(t *testing.T, ip string, port int, h handler) *responder {
	t.Helper()
	conn, err := net.ListenPacket("udp4", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		t.Skipf("cannot listen on %s:%d: %v", ip, port, err)
	}
	r := &responder{
		conn: conn,
		addr: netip.MustParseAddr(ip),
		port: conn.LocalAddr().(*net.UDPAddr).Port,
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, nmb.MaxPacketSize)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			req, err := nmb.Parse(buf[:n])
			if err != nil {
				continue
			}
			r.queries.Add(1)
			for _, p := range h(req) {
				data, err := p.Marshal()
				if err != nil {
					t.Errorf("marshal reply: %v", err)
					continue
				}
				_, _ = conn.WriteTo(data, from)
			}
		}
	}()
	t.Cleanup(func() {
		conn.Close()
		wg.Wait()
	})
	return r
}

func silent(*nmb.Packet) []*nmb.Packet { return nil }

func answer(addrs ...string) handler {
	return answerEntries(false, addrs...)
}

func answerGroup(addrs ...string) handler {
	return answerEntries(true, addrs...)
}

func answerEntries(group bool, addrs ...string) handler {
	return func(req *nmb.Packet) []*nmb.Packet {
		var entries []nmb.AddrEntry
		for _, a := range addrs {
			entries = append(entries, nmb.AddrEntry{Addr: netip.MustParseAddr(a), Group: group})
		}
		return []*nmb.Packet{nmb.NewNameQueryResponse(req.Header.TrnID, req.Questions[0].Name, 300, entries)}
	}
}

func negative(rcode uint8) handler {
	return func(req *nmb.Packet) []*nmb.Packet {
		return []*nmb.Packet{nmb.NewNegativeResponse(req.Header.TrnID, req.Questions[0].Name, rcode)}
	}
}

// testClient returns a client aimed at port with short timers.
func testClient(port int) *Client {
	c := NewClient()
	c.Port = port
	c.RetransmitInterval = 50 * time.Millisecond
	c.UnicastTimeout = time.Second
	c.BroadcastTimeout = 200 * time.Millisecond
	c.WINSTimeout = 300 * time.Millisecond
	c.BcastFanoutTimeout = 300 * time.Millisecond
	c.NodeStatusTimeout = time.Second
	return c
}

// fakeLiveness is an in-memory Liveness.
type fakeLiveness struct {
	mu   sync.Mutex
	dead map[netip.Addr]bool
}

func newFakeLiveness() *fakeLiveness {
	return &fakeLiveness{dead: make(map[netip.Addr]bool)}
}

func (f *fakeLiveness) MarkDead(server, _ netip.Addr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead[server] = true
}

func (f *fakeLiveness) IsDead(server, _ netip.Addr) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dead[server]
}
