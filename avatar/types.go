// Package avatar caches profile/avatar metadata for a multi-account
// AT Protocol client. The Service is the only boundary callers touch:
// lookups come back as tagged Results and never as raw errors.
package avatar

import (
	"time"

	"github.com/moodesky/plumage/faults"
)

// Profile is the subset of an actor's profile record the cache retains.
type Profile struct {
	DID         string  `json:"did"`
	Handle      string  `json:"handle"`
	DisplayName *string `json:"displayName,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
}

// Source tags where a served profile came from.
type Source string

const (
	SourceNetwork Source = "network"
	SourceStale   Source = "stale"
)

// Entry is one cached profile with its freshness window. An entry is
// fresh iff now < ExpiresAt.
type Entry struct {
	Key       string
	Profile   Profile
	FetchedAt time.Time
	ExpiresAt time.Time
	Source    Source
}

// Result is the outcome of a single lookup. Err is nil on success; a
// failed lookup always resolves to a Result, never a panic or an
// untyped error.
type Result struct {
	DID       string         `json:"did"`
	Profile   *Profile       `json:"profile,omitempty"`
	FromCache bool           `json:"fromCache"`
	Source    Source         `json:"source,omitempty"`
	Err       *faults.Record `json:"-"`
}

func (r Result) OK() bool {
	return r.Err == nil
}

type Config struct {
	TTL            time.Duration `validate:"gt=0"`
	MaxCacheSize   int           `validate:"gt=0"`
	MaxRetries     int           `validate:"gte=0"`
	BackoffInitial time.Duration `validate:"gt=0"`
	BackoffMax     time.Duration `validate:"gt=0"`
	MaxConcurrent  int           `validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		TTL:            5 * time.Minute,
		MaxCacheSize:   500,
		MaxRetries:     3,
		BackoffInitial: 500 * time.Millisecond,
		BackoffMax:     30 * time.Second,
		MaxConcurrent:  8,
	}
}

// withDefaults fills zero fields so callers only set what they care
// about.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TTL == 0 {
		c.TTL = d.TTL
	}
	if c.MaxCacheSize == 0 {
		c.MaxCacheSize = d.MaxCacheSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BackoffInitial == 0 {
		c.BackoffInitial = d.BackoffInitial
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = d.BackoffMax
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	return c
}
