package nameresolve

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/cache"
)

// dcBackend answers 0x1C lookups with dcs and 0x20 lookups from hosts.
func dcBackend(dcs []string, hosts map[string]string) *fakeBackend {
	return &fakeBackend{fn: func(req Request) ([]Service, error) {
		switch req.Type {
		case NameDomainControllers:
			if len(dcs) == 0 {
				return nil, ErrNotFound
			}
			return answer(dcs...).fn(req)
		case NameServer:
			if a, ok := hosts[req.Name]; ok {
				return []Service{{Addr: netip.MustParseAddr(a)}}, nil
			}
		}
		return nil, ErrNotFound
	}}
}

func TestGetSortedDCList_AutoLookupSorted(t *testing.T) {
	wins := dcBackend([]string{"192.168.5.5", "10.0.0.50", "10.0.0.50"}, nil)
	r := newTestResolver(t, Options{Order: []string{"wins"}, Workgroup: "HOME", Backends: map[string]Backend{"wins": wins}})

	list, err := r.GetSortedDCList(context.Background(), "OTHER", "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.50", "192.168.5.5"}, addrsOf(list))
}

func TestGetSortedDCList_PasswordServers(t *testing.T) {
	store := openStore(t)
	conn := cache.NewConnFailures(store)
	require.NoError(t, conn.Add("CORP", "10.0.0.62", errors.New("refused")))

	host := dcBackend([]string{"10.0.0.60", "10.0.0.62", "2001:db8::63"}, map[string]string{
		"dc1": "192.168.9.1",
	})
	r := newTestResolver(t, Options{
		Order:           []string{"host"},
		Workgroup:       "CORP",
		SecurityADS:     true,
		PasswordServers: []string{"dc1, 10.0.0.61:3268", "*", "unknown"},
		ConnFailures:    conn,
		Backends:        map[string]Backend{"host": host},
	})

	list, err := r.GetSortedDCList(context.Background(), "corp", "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"192.168.9.1:389",
		"10.0.0.61:3268",
		"10.0.0.60",
		"2001:db8::63",
	}, addrsOf(list), "explicit servers keep their order")
}

func TestGetSortedDCList_AffinityFirst(t *testing.T) {
	store := openStore(t)
	saf := cache.NewAffinity(store)
	require.NoError(t, saf.Store("OTHER", "10.0.0.70"))

	wins := dcBackend([]string{"10.0.0.71", "10.0.0.70"}, nil)
	r := newTestResolver(t, Options{Order: []string{"wins"}, Affinity: saf, Backends: map[string]Backend{"wins": wins}})

	list, err := r.GetSortedDCList(context.Background(), "OTHER", "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.70", "10.0.0.71"}, addrsOf(list))
}

func TestGetSortedDCList_NoServers(t *testing.T) {
	r := newTestResolver(t, Options{Order: []string{"wins"}, Backends: map[string]Backend{"wins": dcBackend(nil, nil)}})
	_, err := r.GetSortedDCList(context.Background(), "OTHER", "", false)
	assert.ErrorIs(t, err, ErrNoLogonServers)
}

func TestGetSortedDCList_SiteFallback(t *testing.T) {
	names := cache.NewNames(openStore(t))
	wins := &fakeBackend{fn: func(req Request) ([]Service, error) {
		if req.Site != "" {
			return nil, ErrNotFound
		}
		return []Service{{Addr: netip.MustParseAddr("10.0.0.80")}}, nil
	}}
	r := newTestResolver(t, Options{Order: []string{"wins"}, Names: names, Backends: map[string]Backend{"wins": wins}})

	list, err := r.GetSortedDCList(context.Background(), "OTHER", "BRANCH", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.80"}, addrsOf(list))
	assert.EqualValues(t, 2, wins.calls.Load())
}

func TestGetSortedDCList_ADSOnly(t *testing.T) {
	ads := answer("10.0.0.91:389", "10.0.0.90:389")
	wins := answer("10.0.0.99")

	r := newTestResolver(t, Options{Order: []string{"wins", "host"}, Backends: map[string]Backend{"ads": ads, "wins": wins}})
	list, err := r.GetSortedDCList(context.Background(), "OTHER", "", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.91:389", "10.0.0.90:389"}, addrsOf(list), "SRV order is kept")
	assert.Zero(t, wins.calls.Load())

	// Without host lookups in the order DNS may not be used at all.
	r = newTestResolver(t, Options{Order: []string{"wins"}, Backends: map[string]Backend{"ads": ads, "wins": wins}})
	_, err = r.GetSortedDCList(context.Background(), "OTHER", "", true)
	assert.ErrorIs(t, err, ErrNoLogonServers)
	assert.Zero(t, wins.calls.Load())
}

func TestGetSortedDCList_ADSOnlyMissThenFullOrder(t *testing.T) {
	names := cache.NewNames(openStore(t))
	ads := failing(ErrNotFound)
	wins := dcBackend([]string{"10.0.0.95"}, nil)
	r := newTestResolver(t, Options{
		Order:    []string{"wins", "host"},
		Names:    names,
		Backends: map[string]Backend{"ads": ads, "wins": wins, "host": failing(ErrNotFound)},
	})

	_, err := r.GetSortedDCList(context.Background(), "NT4DOM", "", true)
	assert.ErrorIs(t, err, ErrNoLogonServers)

	list, err := r.GetSortedDCList(context.Background(), "NT4DOM", "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.95"}, addrsOf(list))
	assert.EqualValues(t, 1, wins.calls.Load())
}

func TestGetKDCList(t *testing.T) {
	kdc := answer("10.0.0.101:88", "10.0.0.100:88")
	r := newTestResolver(t, Options{Order: []string{"wins"}, Backends: map[string]Backend{"kdc": kdc}})

	list, err := r.GetKDCList(context.Background(), "CORP.EXAMPLE", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.101:88", "10.0.0.100:88"}, addrsOf(list))
	assert.Equal(t, NameKDC, kdc.lastRequest().Type)
}

func TestSplitServer(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort uint16
	}{
		{"dc1", "dc1", LDAPPort},
		{"dc1:3268", "dc1", 3268},
		{"dc1:bad", "dc1", PortNone},
		{"10.0.0.1", "10.0.0.1", LDAPPort},
		{"10.0.0.1:636", "10.0.0.1", 636},
		{"2001:db8::1", "2001:db8::1", LDAPPort},
		{"[2001:db8::1]:636", "2001:db8::1", 636},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			host, port := splitServer(tt.in, LDAPPort)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
		})
	}
}
