package avatar

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/go-playground/validator"
	"github.com/moodesky/plumage/faults"
	"github.com/moodesky/plumage/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Fetcher looks a single profile up against the appview.
type Fetcher interface {
	GetProfile(ctx context.Context, did string) (*Profile, error)
}

const (
	source      = "avatar"
	opGetAvatar = "getAvatar"
)

// Service is the fetch coordinator. It is the only boundary between
// callers and the network: cache checks, in-flight dedup, retries,
// stale fallback and metrics all happen behind it.
type Service struct {
	store   *Store
	fetcher Fetcher
	metrics *Metrics
	log     *logging.Logger
	cfg     Config
	retry   RetryPolicy
	sf      singleflight.Group
}

type Args struct {
	Fetcher Fetcher
	Logger  *logging.Logger
	Config  Config
}

func NewService(args *Args) (*Service, error) {
	if args.Fetcher == nil {
		return nil, fmt.Errorf("fetcher must be set")
	}

	if args.Logger == nil {
		args.Logger = logging.New(logging.Config{})
	}

	cfg := args.Config.withDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid cache config: %w", err)
	}

	metrics := NewMetrics()

	store, err := NewStore(cfg.MaxCacheSize, cfg.TTL, func(key string) {
		metrics.RecordEviction()
		args.Logger.Debug(source, "entry evicted", map[string]any{"did": key})
	})
	if err != nil {
		return nil, err
	}

	return &Service{
		store:   store,
		fetcher: args.Fetcher,
		metrics: metrics,
		log:     args.Logger,
		cfg:     cfg,
		retry: RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			Initial:    cfg.BackoffInitial,
			Max:        cfg.BackoffMax,
		},
	}, nil
}

type fetchOutcome struct {
	ent *Entry
	rec *faults.Record
}

// GetAvatar resolves one DID, from cache when fresh, otherwise via a
// deduplicated network fetch. It always returns a tagged Result.
func (s *Service) GetAvatar(ctx context.Context, did string) Result {
	if _, err := syntax.ParseDID(did); err != nil {
		rec := faults.New(faults.KindValidation, opGetAvatar, did, err)
		s.metrics.RecordError()
		s.logFault(rec)
		return Result{DID: did, Err: rec}
	}

	if ent, ok := s.store.Get(did); ok {
		s.metrics.RecordHit()
		s.log.Debug(source, "cache hit", map[string]any{"did": did})
		p := ent.Profile
		return Result{DID: did, Profile: &p, FromCache: true, Source: ent.Source}
	}

	s.metrics.RecordMiss()
	s.log.Debug(source, "cache miss", map[string]any{"did": did})

	// concurrent callers for the same key attach to the one in-flight
	// fetch instead of issuing duplicates
	ch := s.sf.DoChan(did, func() (any, error) {
		return s.fetch(did), nil
	})

	select {
	case res := <-ch:
		out := res.Val.(fetchOutcome)
		if out.rec != nil {
			return Result{DID: did, Err: out.rec}
		}
		p := out.ent.Profile
		return Result{
			DID:       did,
			Profile:   &p,
			FromCache: out.ent.Source == SourceStale,
			Source:    out.ent.Source,
		}
	case <-ctx.Done():
		// caller stopped waiting; the fetch keeps running so other
		// waiters on the key are not starved
		rec := faults.New(faults.KindTimeout, opGetAvatar, did, ctx.Err())
		s.metrics.RecordError()
		s.logFault(rec)
		return Result{DID: did, Err: rec}
	}
}

// GetAvatars fans out to GetAvatar per unique key under the configured
// concurrency ceiling. One slow or failed key never blocks the others;
// the map is complete once every key settles.
func (s *Service) GetAvatars(ctx context.Context, dids []string) map[string]Result {
	results := make(map[string]Result, len(dids))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.MaxConcurrent)

	seen := make(map[string]bool, len(dids))
	for _, did := range dids {
		if seen[did] {
			continue
		}
		seen[did] = true

		g.Go(func() error {
			r := s.GetAvatar(ctx, did)
			mu.Lock()
			results[did] = r
			mu.Unlock()
			return nil
		})
	}

	g.Wait()
	return results
}

// ClearCache drops every entry and resets the counters. Safe to call
// while fetches are in flight; whatever lands afterward is simply the
// new baseline.
func (s *Service) ClearCache() {
	s.store.Clear()
	s.metrics.Reset()
	s.log.Info(source, "cache cleared", nil)
}

// Stats returns the read-only snapshot for the diagnostics surface.
func (s *Service) Stats() Stats {
	return s.metrics.Snapshot(s.store.Len(), s.cfg.MaxCacheSize)
}

// fetch is the single winning in-flight fetch for a key. It runs
// detached from any caller context so an abandoned Result does not
// cancel the fetch for other waiters.
func (s *Service) fetch(did string) fetchOutcome {
	done := s.log.StartTimer(source, "avatar fetch", map[string]any{"did": did})

	prof, rec := s.retry.Do(context.Background(), opGetAvatar, did, func() (*Profile, error) {
		return s.fetcher.GetProfile(context.Background(), did)
	})
	if rec != nil {
		s.metrics.RecordError()
		s.logFault(rec)

		if stale, ok := s.store.GetStale(did); ok {
			cp := *stale
			cp.Source = SourceStale
			s.metrics.RecordStaleServed()
			s.log.Warn(source, "serving stale entry after failed refetch", map[string]any{
				"did":  did,
				"kind": string(rec.Kind),
			})
			return fetchOutcome{ent: &cp}
		}

		return fetchOutcome{rec: rec}
	}

	ent := s.store.Put(did, *prof)
	done()
	return fetchOutcome{ent: ent}
}

func (s *Service) logFault(rec *faults.Record) {
	level := slog.LevelWarn
	switch rec.Severity {
	case faults.SeverityHigh:
		level = slog.LevelError
	case faults.SeverityCritical:
		level = logging.LevelCritical
	}
	s.log.Log(level, source, "avatar lookup failed", rec.Fields())
}
