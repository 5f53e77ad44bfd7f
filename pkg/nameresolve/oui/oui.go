// Package oui maps MAC addresses to vendor names using the IEEE OUI
// database.
package oui

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/oui"
)

// DebugLogger is a callback for debug logging.
// Set this to receive debug messages from OUI operations.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// VendorInfo contains information about a MAC address vendor.
type VendorInfo struct {
	Manufacturer string
	Address      []string
	Country      string
	Prefix       string
}

// Database is a lazily loaded OUI database. The zero value uses the
// library's bundled file.
type Database struct {
	path string

	once sync.Once
	db   oui.OuiDB
	err  error
}

// NewDatabase returns a database read from path on first use.
// An empty path selects the bundled file.
func NewDatabase(path string) (*Database, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("OUI database file not found: %s", path)
		}
	}
	return &Database{path: path}, nil
}

// Path returns the database file, or "" for the bundled one.
func (d *Database) Path() string {
	return d.path
}

func (d *Database) open() error {
	d.once.Do(func() {
		if d.path != "" {
			debugLog("Loading OUI database from: %s", d.path)
			d.db, d.err = oui.OpenFile(d.path)
		} else {
			debugLog("Loading bundled OUI database")
			d.db, d.err = oui.OpenStaticFile("")
		}
		if d.err != nil {
			d.err = fmt.Errorf("failed to open OUI database: %w", d.err)
		}
	})
	return d.err
}

// Lookup returns the vendor of mac, or nil when the prefix is unknown.
func (d *Database) Lookup(mac string) (*VendorInfo, error) {
	norm := NormalizeMAC(mac)
	if norm == "" {
		return nil, fmt.Errorf("invalid MAC address format: %q", mac)
	}
	if err := d.open(); err != nil {
		return nil, err
	}

	entry, err := d.db.Query(norm)
	if err != nil {
		if errors.Is(err, oui.ErrNotFound) {
			debugLog("%s: vendor not found in database", norm)
			return nil, nil
		}
		return nil, fmt.Errorf("OUI lookup failed: %w", err)
	}

	vendor := &VendorInfo{
		Manufacturer: entry.Manufacturer,
		Prefix:       entry.Prefix.String(),
		Address:      entry.Address,
		Country:      entry.Country,
	}
	debugLog("%s -> %s", norm, vendor.Manufacturer)
	return vendor, nil
}

// Manufacturer returns the vendor name of mac, or "" when unknown.
func (d *Database) Manufacturer(mac net.HardwareAddr) string {
	if len(mac) == 0 {
		return ""
	}
	vendor, err := d.Lookup(mac.String())
	if err != nil || vendor == nil {
		return ""
	}
	return vendor.Manufacturer
}

// NormalizeMAC converts the common MAC notations to "00:11:22:33:44:55".
// Returns "" if mac is not a 48-bit address.
func NormalizeMAC(mac string) string {
	mac = strings.ToLower(mac)
	mac = strings.NewReplacer("-", "", ":", "", ".", "").Replace(mac)
	if len(mac) != 12 {
		return ""
	}
	for _, c := range mac {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return ""
		}
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s:%s",
		mac[0:2], mac[2:4], mac[4:6], mac[6:8], mac[8:10], mac[10:12])
}

// IsZeroMAC reports whether mac is absent or all zero bytes.
func IsZeroMAC(mac net.HardwareAddr) bool {
	for _, b := range mac {
		if b != 0 {
			return false
		}
	}
	return true
}
