package avatar

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store is the bounded profile map. Recency is tracked by the LRU on
// both reads and writes; freshness is checked here rather than inside
// the LRU so stale entries stay resident for fallback serving until
// evicted or overwritten.
type Store struct {
	lru *lru.Cache[string, *Entry]
	ttl time.Duration
	now func() time.Time
}

func NewStore(capacity int, ttl time.Duration, onEvict func(key string)) (*Store, error) {
	c, err := lru.NewWithEvict[string, *Entry](capacity, func(key string, _ *Entry) {
		if onEvict != nil {
			onEvict(key)
		}
	})
	if err != nil {
		return nil, err
	}

	return &Store{
		lru: c,
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Get returns the entry iff it is still fresh. A stale entry is
// reported as absent but left in place.
func (s *Store) Get(key string) (*Entry, bool) {
	ent, ok := s.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !s.now().Before(ent.ExpiresAt) {
		return nil, false
	}
	return ent, true
}

// GetStale returns the entry regardless of freshness.
func (s *Store) GetStale(key string) (*Entry, bool) {
	return s.lru.Get(key)
}

// Put inserts or overwrites. The LRU trims the least-recently-used
// entry itself once over capacity, so size never exceeds it.
func (s *Store) Put(key string, p Profile) *Entry {
	now := s.now()
	ent := &Entry{
		Key:       key,
		Profile:   p,
		FetchedAt: now,
		ExpiresAt: now.Add(s.ttl),
		Source:    SourceNetwork,
	}
	s.lru.Add(key, ent)
	return ent
}

func (s *Store) Remove(key string) {
	s.lru.Remove(key)
}

func (s *Store) Clear() {
	s.lru.Purge()
}

func (s *Store) Len() int {
	return s.lru.Len()
}
