package cache

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultSAFTTL bounds a server affinity set during normal operation.
	DefaultSAFTTL = 900 * time.Second
	// DefaultSAFJoinTTL bounds a server affinity set by a domain join.
	DefaultSAFJoinTTL = 3600 * time.Second
)

// Affinity remembers the preferred domain controller of each domain. An
// entry set by a join outranks an ordinary one.
type Affinity struct {
	store   Store
	TTL     time.Duration
	JoinTTL time.Duration
}

// NewAffinity creates a server affinity cache over store.
func NewAffinity(store Store) *Affinity {
	return &Affinity{store: store, TTL: DefaultSAFTTL, JoinTTL: DefaultSAFJoinTTL}
}

func safKey(domain string) string {
	return "SAF/DOMAIN/" + strings.ToUpper(domain)
}

func safJoinKey(domain string) string {
	return "SAFJOIN/DOMAIN/" + strings.ToUpper(domain)
}

// Store sets server as the preferred server of domain.
func (a *Affinity) Store(domain, server string) error {
	if domain == "" || server == "" {
		return ErrInvalidParameter
	}
	return a.store.Set(safKey(domain), []byte(server), time.Now().Add(a.TTL))
}

// StoreJoin sets server as the preferred server of domain after a join.
func (a *Affinity) StoreJoin(domain, server string) error {
	if domain == "" || server == "" {
		return ErrInvalidParameter
	}
	return a.store.Set(safJoinKey(domain), []byte(server), time.Now().Add(a.JoinTTL))
}

// Fetch returns the preferred server of domain, or "" when none is set.
func (a *Affinity) Fetch(domain string) string {
	if domain == "" {
		return ""
	}
	for _, key := range []string{safJoinKey(domain), safKey(domain)} {
		val, _, err := a.store.Get(key)
		if err == nil && len(val) > 0 {
			debugLog("server affinity for %s: %s", domain, val)
			return string(val)
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			debugLog("server affinity get %s: %v", key, err)
		}
	}
	return ""
}

// Delete removes both entries of domain.
func (a *Affinity) Delete(domain string) error {
	if domain == "" {
		return ErrInvalidParameter
	}
	return errors.Join(a.store.Delete(safJoinKey(domain)), a.store.Delete(safKey(domain)))
}
