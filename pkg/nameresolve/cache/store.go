// Package cache holds the expiring key/value store behind the resolver's
// caches and the typed caches built on it.
package cache

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned for absent or expired keys.
var ErrNotFound = errors.New("cache: key not found")

// ErrInvalidParameter is returned for empty keys and values the caches refuse.
var ErrInvalidParameter = errors.New("cache: invalid parameter")

// DebugLogger is a callback for debug logging.
var DebugLogger func(format string, args ...interface{})

func debugLog(format string, args ...interface{}) {
	if DebugLogger != nil {
		DebugLogger(format, args...)
	}
}

// Store is an expiring key/value store. A zero expiry never expires.
type Store interface {
	Get(key string) ([]byte, time.Time, error)
	Set(key string, value []byte, expiry time.Time) error
	Delete(key string) error
	Close() error
}

// BadgerStore is a Store backed by BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens a store at path, or an in-memory store when path is empty.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get returns the value of key and its expiry.
func (s *BadgerStore) Get(key string) ([]byte, time.Time, error) {
	var (
		val    []byte
		expiry time.Time
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if exp := item.ExpiresAt(); exp != 0 {
			expiry = time.Unix(int64(exp), 0)
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return val, expiry, nil
}

// Set stores value under key until expiry. An expiry in the past deletes
// the key.
func (s *BadgerStore) Set(key string, value []byte, expiry time.Time) error {
	if key == "" {
		return ErrInvalidParameter
	}
	if !expiry.IsZero() && !expiry.After(time.Now()) {
		return s.Delete(key)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if !expiry.IsZero() {
			e.ExpiresAt = uint64(expiry.Unix())
		}
		return txn.SetEntry(e)
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
