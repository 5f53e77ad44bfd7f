// Package lmhosts reads LMHOSTS files: static NetBIOS name to address maps.
//
// Each line holds an address, a name with an optional "#TT" hex type
// suffix, and optional "#PRE" and "#DOM:domain" keywords. Any other text
// after a '#' is a comment. Names may be double quoted to carry spaces.
package lmhosts

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

// AnyType marks an entry without a type suffix; it matches every type.
const AnyType = -1

// DebugLogger is a callback for debug logging.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Entry is one LMHOSTS mapping.
type Entry struct {
	Addr   netip.Addr
	Name   string
	Type   int
	Pre    bool
	Domain string
}

// Parse reads entries from r. Malformed lines are skipped.
func Parse(r io.Reader) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		e, ok, err := parseLine(sc.Text())
		if err != nil {
			debugLog("lmhosts line %d: %v", lineNo, err)
			continue
		}
		if ok {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read lmhosts: %w", err)
	}
	return out, nil
}

// ParseFile reads the entries of the file at path.
func ParseFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func parseLine(line string) (Entry, bool, error) {
	var e Entry
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return e, false, nil
	}
	fields := splitFields(line)
	if len(fields) < 2 {
		return e, false, fmt.Errorf("missing name in %q", line)
	}

	addr, err := netip.ParseAddr(fields[0])
	if err != nil {
		return e, false, fmt.Errorf("bad address %q", fields[0])
	}
	e.Addr = addr.Unmap()

	e.Name, e.Type = fields[1], AnyType
	if i := strings.IndexByte(e.Name, '#'); i >= 0 {
		t, err := strconv.ParseUint(e.Name[i+1:], 16, 8)
		if err != nil {
			return e, false, fmt.Errorf("bad name type in %q", e.Name)
		}
		e.Name, e.Type = e.Name[:i], int(t)
	}
	if e.Name == "" {
		return e, false, fmt.Errorf("empty name in %q", line)
	}

	for _, kw := range fields[2:] {
		upper := strings.ToUpper(kw)
		switch {
		case upper == "#PRE":
			e.Pre = true
		case strings.HasPrefix(upper, "#DOM:"):
			e.Domain = kw[len("#DOM:"):]
		case strings.HasPrefix(kw, "#"):
			return e, true, nil
		default:
			debugLog("lmhosts: ignoring %q after %s", kw, e.Name)
		}
	}
	return e, true, nil
}

// splitFields splits on whitespace, keeping double-quoted runs together.
func splitFields(line string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote bool
		have  bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quote = !quote
			have = true
		case !quote && (r == ' ' || r == '\t'):
			if have {
				out = append(out, cur.String())
				cur.Reset()
				have = false
			}
		default:
			cur.WriteRune(r)
			have = true
		}
	}
	if have {
		out = append(out, cur.String())
	}
	return out
}

// Lookup returns the addresses registered for name and nameType in
// entries, in file order. Names compare case-insensitively.
func Lookup(entries []Entry, name string, nameType int) []netip.Addr {
	var out []netip.Addr
	for _, e := range entries {
		if !strings.EqualFold(e.Name, name) {
			continue
		}
		if e.Type != AnyType && e.Type != nameType {
			continue
		}
		out = append(out, e.Addr)
	}
	return out
}

// LookupFile reads path and looks up name in it.
func LookupFile(path, name string, nameType int) ([]netip.Addr, error) {
	entries, err := ParseFile(path)
	if err != nil {
		return nil, err
	}
	return Lookup(entries, name, nameType), nil
}
