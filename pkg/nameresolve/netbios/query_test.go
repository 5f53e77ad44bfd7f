package netbios

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/network"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/nmb"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/wins"
)

func addrStrings(addrs []netip.Addr) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func TestNameQuery_Unicast(t *testing.T) {
	r := startResponder(t, "127.0.0.1", 0, answer("10.0.0.1", "10.0.0.2", "10.0.0.1"))
	c := testClient(r.port)

	res, err := c.NameQuery(context.Background(), "fileserver", 0x20, false, true, r.addr)
	if err != nil {
		t.Fatalf("NameQuery failed: %v", err)
	}
	got := addrStrings(res.Addrs)
	if len(got) != 2 || got[0] != "10.0.0.1" || got[1] != "10.0.0.2" {
		t.Errorf("Expected [10.0.0.1 10.0.0.2], got %v", got)
	}
	if !res.Flags.Has(nmb.FlagAuthoritative) {
		t.Errorf("Expected AA flag, got %s", res.Flags)
	}
}

func TestNameQuery_NegativeAnswer(t *testing.T) {
	r := startResponder(t, "127.0.0.1", 0, negative(nmb.RcodeNameError))
	c := testClient(r.port)

	start := time.Now()
	_, err := c.NameQuery(context.Background(), "ghost", 0x20, false, true, r.addr)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Negative answer should end the query at once, took %v", elapsed)
	}
	if n := r.queries.Load(); n != 1 {
		t.Errorf("Expected 1 query, got %d", n)
	}
}

func TestNameQuery_UnicastTimeout(t *testing.T) {
	r := startResponder(t, "127.0.0.1", 0, silent)
	c := testClient(r.port)

	_, err := c.NameQuery(context.Background(), "nobody", 0x20, false, true, r.addr)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestNameQuery_BroadcastCollectsGroupAnswers(t *testing.T) {
	var mu sync.Mutex
	replies := 0
	r := startResponder(t, "127.0.0.1", 0, func(req *nmb.Packet) []*nmb.Packet {
		mu.Lock()
		replies++
		n := replies
		mu.Unlock()
		if n == 1 {
			return answerGroup("10.0.0.1", "10.0.0.2")(req)
		}
		return answerGroup("10.0.0.2", "10.0.0.3")(req)
	})
	c := testClient(r.port)

	res, err := c.NameQuery(context.Background(), "WORKGROUP", 0x1E, true, true, r.addr)
	if err != nil {
		t.Fatalf("NameQuery failed: %v", err)
	}
	got := addrStrings(res.Addrs)
	if len(got) != 3 {
		t.Fatalf("Expected 3 addresses from retransmitted queries, got %v", got)
	}
}

func TestNameQuery_BroadcastUniqueCompletesEarly(t *testing.T) {
	r := startResponder(t, "127.0.0.1", 0, answer("10.0.0.9"))
	c := testClient(r.port)
	c.BroadcastTimeout = 2 * time.Second

	start := time.Now()
	res, err := c.NameQuery(context.Background(), "HOST", 0x20, true, true, r.addr)
	if err != nil {
		t.Fatalf("NameQuery failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Unique answer should complete early, took %v", elapsed)
	}
	if len(res.Addrs) != 1 || res.Addrs[0].String() != "10.0.0.9" {
		t.Errorf("Unexpected addresses: %v", res.Addrs)
	}
}

func TestNameQuery_BroadcastNothing(t *testing.T) {
	r := startResponder(t, "127.0.0.1", 0, silent)
	c := testClient(r.port)

	_, err := c.NameQuery(context.Background(), "HOST", 0x20, true, true, r.addr)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestNameQuery_SortsByAffinity(t *testing.T) {
	r := startResponder(t, "127.0.0.1", 0, answer("172.16.0.1", "192.168.1.77"))
	c := testClient(r.port)
	c.Interfaces = network.NewInterfaces(netip.MustParsePrefix("192.168.1.10/24"))

	res, err := c.NameQuery(context.Background(), "HOST", 0x20, false, true, r.addr)
	if err != nil {
		t.Fatalf("NameQuery failed: %v", err)
	}
	if res.Addrs[0].String() != "192.168.1.77" {
		t.Errorf("Expected local address first, got %v", res.Addrs)
	}
}

func TestNameQuery_Refused(t *testing.T) {
	c := testClient(nmb.Port)
	if _, err := c.NameQuery(context.Background(), "HOST", 0x20, false, true, netip.MustParseAddr("::1")); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Expected ErrInvalidAddress, got %v", err)
	}
	c.Disabled = true
	if _, err := c.NameQuery(context.Background(), "HOST", 0x20, false, true, netip.MustParseAddr("127.0.0.1")); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Expected ErrNotSupported, got %v", err)
	}
}

func TestNameQueries_FirstSuccessWins(t *testing.T) {
	r1 := startResponder(t, "127.0.0.1", 0, silent)
	r2 := startResponder(t, "127.0.0.2", r1.port, answer("10.0.0.2"))
	c := testClient(r1.port)

	res, idx, err := c.NameQueries(context.Background(), "HOST", 0x20, false, true,
		[]netip.Addr{r1.addr, r2.addr}, 20*time.Millisecond, 500*time.Millisecond)
	if err != nil {
		t.Fatalf("NameQueries failed: %v", err)
	}
	if idx != 1 {
		t.Errorf("Expected index 1, got %d", idx)
	}
	if res.Addrs[0].String() != "10.0.0.2" {
		t.Errorf("Expected 10.0.0.2, got %v", res.Addrs)
	}
}

func TestNameQueries_FailureAfterAll(t *testing.T) {
	r1 := startResponder(t, "127.0.0.1", 0, negative(nmb.RcodeNameError))
	r2 := startResponder(t, "127.0.0.2", r1.port, negative(nmb.RcodeRefused))
	c := testClient(r1.port)

	_, idx, err := c.NameQueries(context.Background(), "HOST", 0x20, false, true,
		[]netip.Addr{r1.addr, r2.addr}, 50*time.Millisecond, 500*time.Millisecond)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if idx != -1 {
		t.Errorf("Expected index -1, got %d", idx)
	}
	if r1.queries.Load() != 1 || r2.queries.Load() != 1 {
		t.Errorf("Expected every destination queried once, got %d and %d", r1.queries.Load(), r2.queries.Load())
	}
}

func TestNameQueries_NoDestinations(t *testing.T) {
	c := testClient(nmb.Port)
	if _, _, err := c.NameQueries(context.Background(), "HOST", 0x20, false, true, nil, 0, time.Second); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}
}

func TestQueryWINSList_FailoverMarksDead(t *testing.T) {
	r1 := startResponder(t, "127.0.0.1", 0, silent)
	r2 := startResponder(t, "127.0.0.2", r1.port, answer("10.1.1.1"))
	c := testClient(r1.port)
	live := newFakeLiveness()
	c.Liveness = live

	res, err := c.QueryWINSList(context.Background(), netip.IPv4Unspecified(), "HOST", 0x20,
		[]netip.Addr{r1.addr, r2.addr})
	if err != nil {
		t.Fatalf("QueryWINSList failed: %v", err)
	}
	if res.Addrs[0].String() != "10.1.1.1" {
		t.Errorf("Expected 10.1.1.1, got %v", res.Addrs)
	}
	if !live.IsDead(r1.addr, netip.Addr{}) {
		t.Error("Expected silent server to be marked dead")
	}
	if live.IsDead(r2.addr, netip.Addr{}) {
		t.Error("Answering server must not be marked dead")
	}
}

func TestQueryWINSList_NegativeStops(t *testing.T) {
	r1 := startResponder(t, "127.0.0.1", 0, negative(nmb.RcodeNameError))
	r2 := startResponder(t, "127.0.0.2", r1.port, answer("10.1.1.1"))
	c := testClient(r1.port)

	_, err := c.QueryWINSList(context.Background(), netip.IPv4Unspecified(), "HOST", 0x20,
		[]netip.Addr{r1.addr, r2.addr})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if r2.queries.Load() != 0 {
		t.Errorf("Second server should not be asked, got %d queries", r2.queries.Load())
	}
}

func TestQueryWINSList_Exhausted(t *testing.T) {
	c := testClient(nmb.Port)
	if _, err := c.QueryWINSList(context.Background(), netip.IPv4Unspecified(), "HOST", 0x20, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestQueryWINSList_AllSilent(t *testing.T) {
	r1 := startResponder(t, "127.0.0.1", 0, silent)
	r2 := startResponder(t, "127.0.0.2", r1.port, silent)
	r3 := startResponder(t, "127.0.0.3", r1.port, silent)
	c := testClient(r1.port)
	c.RetransmitInterval = time.Second
	live := newFakeLiveness()
	c.Liveness = live

	servers := []*responder{r1, r2, r3}
	_, err := c.QueryWINSList(context.Background(), netip.IPv4Unspecified(), "HOST", 0x20,
		[]netip.Addr{r1.addr, r2.addr, r3.addr})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	for _, r := range servers {
		if got := r.queries.Load(); got != 1 {
			t.Errorf("Expected one query to %s, got %d", r.addr, got)
		}
		if !live.IsDead(r.addr, netip.Addr{}) {
			t.Errorf("Expected %s to be marked dead", r.addr)
		}
	}
}

func TestResolveWINS_SkipsDeadServers(t *testing.T) {
	r1 := startResponder(t, "127.0.0.1", 0, answer("10.0.0.1"))
	r2 := startResponder(t, "127.0.0.2", r1.port, answer("10.0.0.2"))
	c := testClient(r1.port)
	live := newFakeLiveness()
	live.MarkDead(r1.addr, netip.Addr{})
	c.Liveness = live

	servers, err := wins.ParseServers([]string{r1.addr.String(), r2.addr.String()})
	if err != nil {
		t.Fatalf("ParseServers failed: %v", err)
	}
	res, err := c.ResolveWINS(context.Background(), "HOST", 0x20, servers, nil)
	if err != nil {
		t.Fatalf("ResolveWINS failed: %v", err)
	}
	if res.Addrs[0].String() != "10.0.0.2" {
		t.Errorf("Expected 10.0.0.2, got %v", res.Addrs)
	}
	if r1.queries.Load() != 0 {
		t.Errorf("Dead server was queried %d times", r1.queries.Load())
	}
}

func TestResolveWINS_TagsInParallel(t *testing.T) {
	r1 := startResponder(t, "127.0.0.1", 0, silent)
	r2 := startResponder(t, "127.0.0.2", r1.port, answer("10.0.0.2"))
	c := testClient(r1.port)
	c.WINSTimeout = 5 * time.Second
	c.RetransmitInterval = time.Second

	servers, _ := wins.ParseServers([]string{"a:" + r1.addr.String(), "b:" + r2.addr.String()})
	start := time.Now()
	res, err := c.ResolveWINS(context.Background(), "HOST", 0x20, servers, nil)
	if err != nil {
		t.Fatalf("ResolveWINS failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Tag b should answer without waiting for tag a, took %v", elapsed)
	}
	if res.Addrs[0].String() != "10.0.0.2" {
		t.Errorf("Expected 10.0.0.2, got %v", res.Addrs)
	}
}

func TestResolveWINS_NothingToAsk(t *testing.T) {
	c := testClient(nmb.Port)
	if _, err := c.ResolveWINS(context.Background(), "HOST", 0x20, nil, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}

	servers, _ := wins.ParseServers([]string{"127.0.0.1"})
	self := func(netip.Addr) bool { return true }
	if _, err := c.ResolveWINS(context.Background(), "HOST", 0x20, servers, self); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound when only our own address is configured, got %v", err)
	}
}

func TestResolveBcast(t *testing.T) {
	r := startResponder(t, "127.0.0.2", 0, func(req *nmb.Packet) []*nmb.Packet {
		if !req.Header.Broadcast || !req.Header.RecursionDesired {
			return nil
		}
		return answer("10.0.0.42")(req)
	})
	c := testClient(r.port)
	c.Interfaces = network.NewInterfaces(netip.MustParsePrefix("127.0.0.2/32"))

	res, err := c.ResolveBcast(context.Background(), "HOST", 0x20)
	if err != nil {
		t.Fatalf("ResolveBcast failed: %v", err)
	}
	if res.Addrs[0].String() != "10.0.0.42" {
		t.Errorf("Expected 10.0.0.42, got %v", res.Addrs)
	}
}

func TestResolveBcast_OneInterfaceAnswers(t *testing.T) {
	onlyBcast := func(req *nmb.Packet) []*nmb.Packet {
		if !req.Header.Broadcast {
			return nil
		}
		return answer("10.0.0.5")(req)
	}
	a := startResponder(t, "127.0.0.2", 0, onlyBcast)
	startResponder(t, "127.0.0.3", a.port, silent)
	c := testClient(a.port)
	c.BroadcastTimeout = 250 * time.Millisecond
	c.Interfaces = network.NewInterfaces(
		netip.MustParsePrefix("127.0.0.2/32"),
		netip.MustParsePrefix("127.0.0.3/32"),
	)

	res, err := c.ResolveBcast(context.Background(), "DC01", 0x20)
	if err != nil {
		t.Fatalf("ResolveBcast failed: %v", err)
	}
	if len(res.Addrs) != 1 || res.Addrs[0].String() != "10.0.0.5" {
		t.Errorf("Expected [10.0.0.5], got %v", res.Addrs)
	}
	if a.queries.Load() == 0 {
		t.Error("Expected the answering interface to be queried")
	}
}

func TestResolveBcast_NoInterfaces(t *testing.T) {
	c := testClient(nmb.Port)
	c.Interfaces = network.NewInterfaces(netip.MustParsePrefix("2001:db8::1/64"))
	if _, err := c.ResolveBcast(context.Background(), "HOST", 0x20); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}
	c.Disabled = true
	if _, err := c.ResolveBcast(context.Background(), "HOST", 0x20); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter when disabled, got %v", err)
	}
}
