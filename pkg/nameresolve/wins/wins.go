// Package wins holds the WINS server list and the tracker that remembers
// servers which stopped answering.
package wins

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/cache"
)

// DefaultTag groups servers configured without a tag.
const DefaultTag = "*"

// DefaultDeadTime is how long a server that timed out is skipped.
const DefaultDeadTime = 600 * time.Second

// DebugLogger is a callback for debug logging.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Server is one configured WINS server.
type Server struct {
	Tag  string
	Addr netip.Addr
}

// ServerList is the configured WINS servers in configuration order.
type ServerList []Server

// ParseServers parses "ip" or "tag:ip" entries.
func ParseServers(specs []string) (ServerList, error) {
	var out ServerList
	for _, entry := range specs {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		tag, ip := DefaultTag, entry
		if i := strings.LastIndex(entry, ":"); i >= 0 {
			tag, ip = entry[:i], entry[i+1:]
		}
		addr, err := netip.ParseAddr(ip)
		if err != nil || !addr.Unmap().Is4() || tag == "" {
			return nil, fmt.Errorf("invalid WINS server %q", entry)
		}
		out = append(out, Server{Tag: tag, Addr: addr.Unmap()})
	}
	return out, nil
}

// Len returns the number of servers.
func (l ServerList) Len() int { return len(l) }

// Tags returns the distinct tags in first-seen order.
func (l ServerList) Tags() []string {
	var tags []string
	seen := make(map[string]bool)
	for _, s := range l {
		if !seen[s.Tag] {
			seen[s.Tag] = true
			tags = append(tags, s.Tag)
		}
	}
	return tags
}

// ByTag returns the servers of tag in configuration order.
func (l ServerList) ByTag(tag string) []netip.Addr {
	var out []netip.Addr
	for _, s := range l {
		if s.Tag == tag {
			out = append(out, s.Addr)
		}
	}
	return out
}

// Tracker records dead servers per source address.
type Tracker struct {
	store    cache.Store
	DeadTime time.Duration
}

// NewTracker creates a tracker over store.
func NewTracker(store cache.Store) *Tracker {
	return &Tracker{store: store, DeadTime: DefaultDeadTime}
}

func deadKey(server, src netip.Addr) string {
	return fmt.Sprintf("WINS_SRV_DEAD/%s,%s", server, src)
}

// MarkDead records that server did not answer queries sent from src.
func (t *Tracker) MarkDead(server, src netip.Addr) {
	if err := t.store.Set(deadKey(server, src), []byte(time.Now().UTC().Format(time.RFC3339)), time.Now().Add(t.DeadTime)); err != nil {
		debugLog("mark %s dead: %v", server, err)
		return
	}
	debugLog("marked WINS server %s dead for %v from %s", server, t.DeadTime, src)
}

// IsDead reports whether server was marked dead for src and has not yet
// been given another chance.
func (t *Tracker) IsDead(server, src netip.Addr) bool {
	_, _, err := t.store.Get(deadKey(server, src))
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		debugLog("wins tracker get %s: %v", server, err)
	}
	return err == nil
}

// MarkAlive forgets that server was dead.
func (t *Tracker) MarkAlive(server, src netip.Addr) {
	if err := t.store.Delete(deadKey(server, src)); err != nil {
		debugLog("mark %s alive: %v", server, err)
	}
}
