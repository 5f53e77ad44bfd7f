package dns

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	miekg "github.com/miekg/dns"
)

// startServer runs a DNS server on loopback answering from zone. Records
// whose owner matches the question go in the answer section; glue listed
// under extra[qname] goes in the additional section.
func startServer(t *testing.T, zone []string, extra map[string][]string) string {
	t.Helper()
	var records []miekg.RR
	for _, z := range zone {
		rr, err := miekg.NewRR(z)
		if err != nil {
			t.Fatalf("bad record %q: %v", z, err)
		}
		records = append(records, rr)
	}

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	started := make(chan struct{})
	srv := &miekg.Server{
		PacketConn:        pc,
		NotifyStartedFunc: func() { close(started) },
		Handler: miekg.HandlerFunc(func(w miekg.ResponseWriter, req *miekg.Msg) {
			m := new(miekg.Msg)
			m.SetReply(req)
			q := req.Question[0]
			for _, rr := range records {
				if miekg.CanonicalName(rr.Header().Name) == miekg.CanonicalName(q.Name) && rr.Header().Rrtype == q.Qtype {
					m.Answer = append(m.Answer, rr)
				}
			}
			for _, z := range extra[miekg.CanonicalName(q.Name)] {
				rr, _ := miekg.NewRR(z)
				m.Extra = append(m.Extra, rr)
			}
			if len(m.Answer) == 0 {
				m.Rcode = miekg.RcodeNameError
			}
			_ = w.WriteMsg(m)
		}),
	}
	go func() { _ = srv.ActivateAndServe() }()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("DNS server did not start")
	}
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func testResolver(addr string) *Resolver {
	r := NewResolver()
	r.Servers = []string{addr}
	r.Timeout = time.Second
	return r
}

func TestQueryNames(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DCQueryName("corp.example", ""), "_ldap._tcp.dc._msdcs.corp.example"},
		{DCQueryName("corp.example", "Branch"), "_ldap._tcp.Branch._sites.dc._msdcs.corp.example"},
		{KDCQueryName("corp.example", ""), "_kerberos._tcp.dc._msdcs.corp.example"},
		{KDCQueryName("corp.example", "HQ"), "_kerberos._tcp.HQ._sites.dc._msdcs.corp.example"},
		{PDCQueryName("corp.example"), "_ldap._tcp.pdc._msdcs.corp.example"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, tt.got)
		}
	}
}

func TestLookupSRV_OrderAndGlue(t *testing.T) {
	name := "_ldap._tcp.dc._msdcs.corp.example."
	addr := startServer(t, []string{
		name + " 600 IN SRV 10 50 389 dc3.corp.example.",
		name + " 600 IN SRV 0 10 389 dc2.corp.example.",
		name + " 600 IN SRV 0 90 389 dc1.corp.example.",
	}, map[string][]string{
		name: {"dc1.corp.example. 600 IN A 10.0.0.1", "dc3.corp.example. 600 IN A 10.0.0.3"},
	})

	list, err := testResolver(addr).LookupSRV(context.Background(), "_ldap._tcp.dc._msdcs.corp.example")
	if err != nil {
		t.Fatalf("LookupSRV failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(list))
	}
	order := []string{"dc1.corp.example.", "dc2.corp.example.", "dc3.corp.example."}
	for i, want := range order {
		if list[i].Target != want {
			t.Errorf("Record %d: expected %s, got %s", i, want, list[i].Target)
		}
	}
	if len(list[0].Addrs) != 1 || list[0].Addrs[0].String() != "10.0.0.1" {
		t.Errorf("Expected glue 10.0.0.1 for dc1, got %v", list[0].Addrs)
	}
	if len(list[1].Addrs) != 0 {
		t.Errorf("Expected no glue for dc2, got %v", list[1].Addrs)
	}
	if list[0].Port != 389 {
		t.Errorf("Expected port 389, got %d", list[0].Port)
	}
}

func TestLookupDCs_SiteFallback(t *testing.T) {
	addr := startServer(t, []string{
		"_ldap._tcp.dc._msdcs.corp.example. 600 IN SRV 0 100 389 dc1.corp.example.",
	}, nil)

	list, err := testResolver(addr).LookupDCs(context.Background(), "corp.example", "Nowhere")
	if err != nil {
		t.Fatalf("LookupDCs failed: %v", err)
	}
	if len(list) != 1 || list[0].Target != "dc1.corp.example." {
		t.Errorf("Expected domain-wide dc1, got %+v", list)
	}
}

func TestLookupSRV_NameError(t *testing.T) {
	addr := startServer(t, nil, nil)
	_, err := testResolver(addr).LookupSRV(context.Background(), "_ldap._tcp.dc._msdcs.missing.example")
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("Expected ErrNoRecords, got %v", err)
	}
}

func TestLookupHost(t *testing.T) {
	addr := startServer(t, []string{
		"dc1.corp.example. 600 IN A 10.0.0.1",
		"dc1.corp.example. 600 IN AAAA 2001:db8::1",
	}, nil)

	addrs, err := testResolver(addr).LookupHost(context.Background(), "dc1.corp.example")
	if err != nil {
		t.Fatalf("LookupHost failed: %v", err)
	}
	if len(addrs) != 2 || addrs[0].String() != "10.0.0.1" || addrs[1].String() != "2001:db8::1" {
		t.Errorf("Unexpected addresses: %v", addrs)
	}
}

func TestResolver_ResolvConf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resolv.conf")
	if err := os.WriteFile(path, []byte("nameserver 192.0.2.53\nnameserver 192.0.2.54\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := &Resolver{ResolvConf: path}
	servers, err := r.servers()
	if err != nil {
		t.Fatalf("servers failed: %v", err)
	}
	if len(servers) != 2 || servers[0] != "192.0.2.53:53" {
		t.Errorf("Unexpected servers: %v", servers)
	}

	r = &Resolver{ResolvConf: filepath.Join(dir, "missing")}
	if _, err := r.servers(); err == nil {
		t.Error("Expected error for missing resolv.conf")
	}
}

func TestHostsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dns_hosts")
	zone := `
dc1.corp.example.  IN A     10.0.0.1
dc2.corp.example.  IN AAAA  2001:db8::2
files.corp.example. IN CNAME dc1.corp.example.
_kerberos._tcp.dc._msdcs.corp.example. IN SRV 0 100 88 dc2.corp.example.
_kerberos._tcp.dc._msdcs.corp.example. IN SRV 0 200 88 dc1.corp.example.
`
	if err := os.WriteFile(path, []byte(zone), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Resolver{HostsFile: path}
	addrs, err := r.LookupHost(context.Background(), "FILES.corp.example")
	if err != nil {
		t.Fatalf("LookupHost failed: %v", err)
	}
	if len(addrs) != 1 || addrs[0].String() != "10.0.0.1" {
		t.Errorf("Expected CNAME to resolve to 10.0.0.1, got %v", addrs)
	}

	kdcs, err := r.LookupKDCs(context.Background(), "corp.example", "")
	if err != nil {
		t.Fatalf("LookupKDCs failed: %v", err)
	}
	if len(kdcs) != 2 || kdcs[0].Target != "dc1.corp.example." {
		t.Fatalf("Expected dc1 first by weight, got %+v", kdcs)
	}
	if kdcs[1].Addrs[0].String() != "2001:db8::2" {
		t.Errorf("Expected dc2 address from file, got %v", kdcs[1].Addrs)
	}

	if _, err := r.LookupHost(context.Background(), "missing.corp.example"); !errors.Is(err, ErrNoRecords) {
		t.Errorf("Expected ErrNoRecords, got %v", err)
	}
}

func TestLoadHostsFile_Errors(t *testing.T) {
	if _, err := LoadHostsFile(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad")
	if err := os.WriteFile(path, []byte("dc1 IN A not-an-address\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadHostsFile(path); err == nil {
		t.Error("Expected parse error")
	}
}
