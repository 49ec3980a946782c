package avatar

import "sync"

// Metrics aggregates coordinator counters. Counts are monotonic within
// a session except on explicit cache clear, which resets them.
type Metrics struct {
	mu          sync.RWMutex
	hits        int64
	misses      int64
	errors      int64
	evictions   int64
	staleServed int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordHit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}

func (m *Metrics) RecordMiss() {
	m.mu.Lock()
	m.misses++
	m.mu.Unlock()
}

func (m *Metrics) RecordError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}

func (m *Metrics) RecordEviction() {
	m.mu.Lock()
	m.evictions++
	m.mu.Unlock()
}

func (m *Metrics) RecordStaleServed() {
	m.mu.Lock()
	m.staleServed++
	m.mu.Unlock()
}

func (m *Metrics) Reset() {
	m.mu.Lock()
	m.hits = 0
	m.misses = 0
	m.errors = 0
	m.evictions = 0
	m.staleServed = 0
	m.mu.Unlock()
}

// Stats is a read-only snapshot for the diagnostics surface.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Errors      int64   `json:"errors"`
	Evictions   int64   `json:"evictions"`
	StaleServed int64   `json:"stale_served"`
	HitRate     float64 `json:"hit_rate"`
	CacheSize   int     `json:"cache_size"`
	Capacity    int     `json:"capacity"`
}

func (m *Metrics) Snapshot(size, capacity int) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rate float64
	if total := m.hits + m.misses; total > 0 {
		rate = float64(m.hits) / float64(total)
	}

	return Stats{
		Hits:        m.hits,
		Misses:      m.misses,
		Errors:      m.errors,
		Evictions:   m.evictions,
		StaleServed: m.staleServed,
		HitRate:     rate,
		CacheSize:   size,
		Capacity:    capacity,
	}
}
