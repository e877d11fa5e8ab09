// Package store is an in-memory key/value store.
package store

// Store persists values in memory.
type Store struct {
	m map[string]string
}

// New returns an empty store.
func New() *Store { return &Store{m: map[string]string{}} }

// Put stores value under key.
func (s *Store) Put(key, value string) { s.m[key] = value }
