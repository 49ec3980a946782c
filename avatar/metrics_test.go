package avatar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordHit()
	m.RecordHit()
	m.RecordHit()
	m.RecordMiss()
	m.RecordError()
	m.RecordEviction()
	m.RecordStaleServed()

	s := m.Snapshot(2, 500)
	assert.EqualValues(t, 3, s.Hits)
	assert.EqualValues(t, 1, s.Misses)
	assert.EqualValues(t, 1, s.Errors)
	assert.EqualValues(t, 1, s.Evictions)
	assert.EqualValues(t, 1, s.StaleServed)
	assert.InDelta(t, 0.75, s.HitRate, 0.001)
	assert.Equal(t, 2, s.CacheSize)
	assert.Equal(t, 500, s.Capacity)
}

func TestMetricsEmptyHitRate(t *testing.T) {
	m := NewMetrics()
	assert.Zero(t, m.Snapshot(0, 10).HitRate)
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordHit()
	m.RecordMiss()
	m.Reset()

	s := m.Snapshot(0, 10)
	assert.Zero(t, s.Hits)
	assert.Zero(t, s.Misses)
	assert.Zero(t, s.HitRate)
}
