// Package cache implements the time-bounded memoization used for the three
// expensive Spotify collections: the user's playlists, saved tracks, and
// available playback devices. Each collection is an independent slot with
// its own TTL; concurrent refreshes for the same slot are coalesced so a
// search fan-out never multiplies backend calls.
package cache

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Canonical slot keys and TTLs.
const (
	KeyPlaylists   = "playlists"
	KeySavedTracks = "saved_tracks"
	KeyDevices     = "devices"

	PlaylistTTL    = 5 * time.Minute
	SavedTracksTTL = 4 * time.Hour
	DeviceTTL      = 60 * time.Second
)

type entry struct {
	value     any
	fetchedAt time.Time
}

// Store is a TTL'd read-through cache. The zero value is not usable; use New.
// All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	group   singleflight.Group
	now     func() time.Time
}

// New returns an empty Store using the wall clock.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewWithClock returns a Store reading time from now. Used by tests to
// simulate TTL expiry without sleeping.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

// GetOrFetch returns the cached value for key if it is younger than ttl,
// otherwise invokes fetch, stores the result, and returns it. Concurrent
// callers for the same expired key share a single fetch invocation. A fetch
// error is returned to every waiting caller and nothing is cached, so the
// next call retries immediately.
func (s *Store) GetOrFetch(key string, ttl time.Duration, fetch func() (any, error)) (any, error) {
	if v, ok := s.fresh(key, ttl); ok {
		return v, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Re-check under single-flight: another caller may have refreshed
		// the slot while this one was queued.
		if v, ok := s.fresh(key, ttl); ok {
			return v, nil
		}
		value, err := fetch()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.entries[key] = entry{value: value, fetchedAt: s.now()}
		s.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Invalidate drops the entry for key, forcing the next GetOrFetch to hit the
// backend. Used after an authorization failure so stale results fetched with
// a bad token are not served.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

func (s *Store) fresh(key string, ttl time.Duration) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(e.fetchedAt) > ttl {
		return nil, false
	}
	return e.value, true
}

// Fetch is a typed convenience wrapper around Store.GetOrFetch.
func Fetch[T any](s *Store, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	v, err := s.GetOrFetch(key, ttl, func() (any, error) {
		return fetch()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
