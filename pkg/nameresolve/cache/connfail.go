package cache

import (
	"strings"
	"time"
)

// DefaultConnFailureTTL is how long a failed connection is remembered.
const DefaultConnFailureTTL = 30 * time.Second

// ConnFailures remembers servers of a domain that recently refused a
// connection, so domain controller lists can skip them.
type ConnFailures struct {
	store Store
	TTL   time.Duration
}

// NewConnFailures creates a failed connection cache over store.
func NewConnFailures(store Store) *ConnFailures {
	return &ConnFailures{store: store, TTL: DefaultConnFailureTTL}
}

func connFailureKey(domain, server string) string {
	return "NEG_CONN_CACHE/" + strings.ToUpper(domain) + "," + strings.ToUpper(server)
}

// Add records that server of domain failed with reason.
func (c *ConnFailures) Add(domain, server string, reason error) error {
	if domain == "" || server == "" {
		return ErrInvalidParameter
	}
	msg := "failed"
	if reason != nil {
		msg = reason.Error()
	}
	return c.store.Set(connFailureKey(domain, server), []byte(msg), time.Now().Add(c.TTL))
}

// IsBad reports whether server of domain failed recently.
func (c *ConnFailures) IsBad(domain, server string) bool {
	_, _, err := c.store.Get(connFailureKey(domain, server))
	return err == nil
}

// Delete forgets a failure.
func (c *ConnFailures) Delete(domain, server string) error {
	return c.store.Delete(connFailureKey(domain, server))
}
