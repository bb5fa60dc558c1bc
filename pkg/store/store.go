/*
Package store implements the unencrypted, mutex-protected TTL cache attached
to each client for non-secret metadata. Unlike pkg/vaultstore, Store never
handles key material — callers must not place secrets in it.
*/
package store

import (
	"sync"
	"time"
)

// entry is one cached value with its absolute expiry.
type entry struct {
	value  []byte
	expiry time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiry)
}

// Store is a TTL key-value cache keyed and valued by byte strings. It is
// safe for concurrent use by multiple goroutines, even though the client
// that owns it is otherwise single-threaded.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]entry), now: time.Now}
}

// Insert stores value under key with the given time-to-live, replacing any
// existing entry.
func (s *Store) Insert(key, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[string(key)] = entry{
		value:  append([]byte(nil), value...),
		expiry: s.now().Add(ttl),
	}
}

// Get returns the value for key and true, or (nil, false) if absent or
// expired. An expired entry is lazily removed on this call.
func (s *Store) Get(key []byte) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := string(key)
	e, ok := s.entries[k]
	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		delete(s.entries, k)
		return nil, false
	}
	return append([]byte(nil), e.value...), true
}

// Remove deletes key unconditionally. A no-op if absent.
func (s *Store) Remove(key []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, string(key))
}

// Keys returns the live (non-expired) keys currently in the store. Expired
// entries encountered along the way are lazily removed.
func (s *Store) Keys() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	keys := make([][]byte, 0, len(s.entries))
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			continue
		}
		keys = append(keys, []byte(k))
	}
	return keys
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
}

// Len reports the number of entries, including not-yet-swept expired ones.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
