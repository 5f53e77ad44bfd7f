package network

import (
	"net/netip"
	"testing"
)

func TestEnumerateIPs(t *testing.T) {
	tests := []struct {
		cidr     string
		expected int
	}{
		{"192.168.1.0/30", 2},   // 4 total - network - broadcast = 2
		{"192.168.1.0/29", 6},   // 8 total - network - broadcast = 6
		{"192.168.1.0/28", 14},  // 16 total - network - broadcast = 14
		{"192.168.1.0/24", 254}, // 256 total - network - broadcast = 254
		{"192.168.1.7/31", 2},
		{"192.168.1.7/32", 1},
	}

	for _, tt := range tests {
		t.Run(tt.cidr, func(t *testing.T) {
			ips, err := EnumerateIPs(tt.cidr)
			if err != nil {
				t.Fatalf("EnumerateIPs(%s) failed: %v", tt.cidr, err)
			}
			if len(ips) != tt.expected {
				t.Errorf("EnumerateIPs(%s) returned %d IPs, expected %d", tt.cidr, len(ips), tt.expected)
			}
			if tt.cidr == "192.168.1.0/24" {
				if ips[0].String() != "192.168.1.1" {
					t.Errorf("Expected first IP 192.168.1.1, got %s", ips[0])
				}
				if ips[len(ips)-1].String() != "192.168.1.254" {
					t.Errorf("Expected last IP 192.168.1.254, got %s", ips[len(ips)-1])
				}
			}
		})
	}
}

func TestEnumerateIPs_Invalid(t *testing.T) {
	invalid := []string{
		"invalid",
		"192.168.1.0",
		"192.168.1.0/abc",
		"",
		"10.0.0.0/8",
		"fe80::/120",
	}
	for _, cidr := range invalid {
		if _, err := EnumerateIPs(cidr); err == nil {
			t.Errorf("EnumerateIPs(%q) should have failed", cidr)
		}
	}
}

func TestInterfaces_Broadcasts(t *testing.T) {
	ifs, err := ParseInterfaces([]string{"192.168.1.10/24", "10.1.2.3/16", "192.168.1.20/24", "127.0.0.2", "fe80::1/64"})
	if err != nil {
		t.Fatalf("ParseInterfaces failed: %v", err)
	}
	got := ifs.Broadcasts()
	want := []string{"192.168.1.255", "10.1.255.255", "127.0.0.2"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("Expected broadcast %s, got %s", want[i], got[i])
		}
	}
}

func TestInterfaces_LocalAndMine(t *testing.T) {
	ifs := NewInterfaces(netip.MustParsePrefix("192.168.1.10/24"))

	if !ifs.IsMyAddr(netip.MustParseAddr("192.168.1.10")) {
		t.Error("Expected 192.168.1.10 to be ours")
	}
	if ifs.IsMyAddr(netip.MustParseAddr("192.168.1.11")) {
		t.Error("Expected 192.168.1.11 not to be ours")
	}
	if !ifs.IsLocal(netip.MustParseAddr("192.168.1.200")) {
		t.Error("Expected 192.168.1.200 to be local")
	}
	if ifs.IsLocal(netip.MustParseAddr("192.168.2.1")) {
		t.Error("Expected 192.168.2.1 not to be local")
	}

	var none *Interfaces
	if none.IsLocal(netip.MustParseAddr("192.168.1.1")) || len(none.Broadcasts()) != 0 {
		t.Error("nil interface list should be empty")
	}
}

func TestParseInterfaces_UnknownName(t *testing.T) {
	if _, err := ParseInterfaces([]string{"no-such-interface0"}); err == nil {
		t.Error("Expected error for unknown interface")
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.0.0.1", true},
		{"172.16.0.1", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.1.1", true},
		{"8.8.8.8", false},
		{"fd00::1", false},
	}
	for _, tt := range tests {
		if got := IsPrivateIP(netip.MustParseAddr(tt.ip)); got != tt.expected {
			t.Errorf("IsPrivateIP(%s) = %v, expected %v", tt.ip, got, tt.expected)
		}
	}
}
