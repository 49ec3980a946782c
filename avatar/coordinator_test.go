package avatar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/moodesky/plumage/faults"
	"github.com/moodesky/plumage/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	delay time.Duration
	fn    func(did string) (*Profile, error)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: map[string]int{}}
}

func (f *fakeFetcher) GetProfile(ctx context.Context, did string) (*Profile, error) {
	f.mu.Lock()
	f.calls[did]++
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.fn != nil {
		return f.fn(did)
	}

	return &Profile{
		DID:         did,
		Handle:      "user.test",
		DisplayName: to.StringPtr("Test User"),
		Avatar:      to.StringPtr("https://cdn.test/img/" + did),
	}, nil
}

func (f *fakeFetcher) count(did string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[did]
}

func newTestService(t *testing.T, cfg Config, f Fetcher) *Service {
	t.Helper()

	logger := logging.New(logging.Config{FlushInterval: time.Hour})
	t.Cleanup(logger.Close)

	svc, err := NewService(&Args{
		Fetcher: f,
		Logger:  logger,
		Config:  cfg,
	})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresFetcher(t *testing.T) {
	_, err := NewService(&Args{})
	assert.Error(t, err)
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	_, err := NewService(&Args{
		Fetcher: newFakeFetcher(),
		Config:  Config{MaxCacheSize: -1},
	})
	assert.Error(t, err)
}

// two immediate lookups without intervening expiry make one network call
func TestGetAvatarIdempotent(t *testing.T) {
	f := newFakeFetcher()
	svc := newTestService(t, Config{}, f)

	first := svc.GetAvatar(context.Background(), "did:plc:alice")
	require.True(t, first.OK())
	assert.False(t, first.FromCache)
	assert.Equal(t, SourceNetwork, first.Source)

	second := svc.GetAvatar(context.Background(), "did:plc:alice")
	require.True(t, second.OK())
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Profile.Handle, second.Profile.Handle)

	assert.Equal(t, 1, f.count("did:plc:alice"))

	stats := svc.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

// two concurrent lookups before either resolves share one network call
func TestConcurrentLookupsShareOneFetch(t *testing.T) {
	f := newFakeFetcher()
	f.delay = 50 * time.Millisecond
	svc := newTestService(t, Config{}, f)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.GetAvatar(context.Background(), "did:plc:xxx")
		}(i)
	}
	wg.Wait()

	require.True(t, results[0].OK())
	require.True(t, results[1].OK())
	assert.Equal(t, *results[0].Profile, *results[1].Profile)
	assert.Equal(t, 1, f.count("did:plc:xxx"))
}

func TestGetAvatarValidation(t *testing.T) {
	f := newFakeFetcher()
	svc := newTestService(t, Config{}, f)

	res := svc.GetAvatar(context.Background(), "not-a-did")

	require.False(t, res.OK())
	assert.Equal(t, faults.KindValidation, res.Err.Kind)
	assert.Equal(t, 0, f.count("not-a-did"), "invalid keys never hit the network")
}

func TestBatchPartialFailure(t *testing.T) {
	f := newFakeFetcher()
	f.fn = func(did string) (*Profile, error) {
		if did == "did:plc:broken" {
			return nil, faults.New(faults.KindPermission, opGetAvatar, did, errors.New("forbidden"))
		}
		return &Profile{DID: did, Handle: "user.test"}, nil
	}
	svc := newTestService(t, Config{}, f)

	dids := []string{"did:plc:alice", "did:plc:broken", "did:plc:carol"}
	results := svc.GetAvatars(context.Background(), dids)

	require.Len(t, results, 3)
	assert.True(t, results["did:plc:alice"].OK())
	assert.True(t, results["did:plc:carol"].OK())

	broken := results["did:plc:broken"]
	require.False(t, broken.OK())
	assert.Equal(t, faults.KindPermission, broken.Err.Kind)
}

func TestBatchDedupesKeys(t *testing.T) {
	f := newFakeFetcher()
	svc := newTestService(t, Config{}, f)

	results := svc.GetAvatars(context.Background(), []string{
		"did:plc:alice", "did:plc:alice", "did:plc:alice",
	})

	require.Len(t, results, 1)
	assert.Equal(t, 1, f.count("did:plc:alice"))
}

// TTL=5000ms, capacity=2: insert A, B, C evicts A; B hits before
// expiry with zero extra calls; B misses after expiry and refetches
func TestEvictionAndExpiryScenario(t *testing.T) {
	f := newFakeFetcher()
	svc := newTestService(t, Config{TTL: 5 * time.Second, MaxCacheSize: 2, MaxRetries: 1}, f)

	base := time.Now()
	now := base
	svc.store.now = func() time.Time { return now }

	for _, did := range []string{"did:plc:aaa", "did:plc:bbb", "did:plc:ccc"} {
		require.True(t, svc.GetAvatar(context.Background(), did).OK())
	}

	assert.Equal(t, 2, svc.store.Len())
	_, ok := svc.store.GetStale("did:plc:aaa")
	assert.False(t, ok, "A should have been evicted as LRU")
	assert.EqualValues(t, 1, svc.Stats().Evictions)

	// read B before expiry: hit, no extra network call
	res := svc.GetAvatar(context.Background(), "did:plc:bbb")
	require.True(t, res.OK())
	assert.True(t, res.FromCache)
	assert.Equal(t, 1, f.count("did:plc:bbb"))

	// past expiry: miss, exactly one refetch, entry refreshed
	now = base.Add(6 * time.Second)
	res = svc.GetAvatar(context.Background(), "did:plc:bbb")
	require.True(t, res.OK())
	assert.False(t, res.FromCache)
	assert.Equal(t, 2, f.count("did:plc:bbb"))

	ent, ok := svc.store.GetStale("did:plc:bbb")
	require.True(t, ok)
	assert.Equal(t, now, ent.FetchedAt)
}

func TestStaleFallbackAfterFailedRefetch(t *testing.T) {
	f := newFakeFetcher()
	svc := newTestService(t, Config{TTL: 5 * time.Second, MaxRetries: 0, BackoffInitial: time.Millisecond, BackoffMax: time.Millisecond}, f)

	base := time.Now()
	now := base
	svc.store.now = func() time.Time { return now }

	require.True(t, svc.GetAvatar(context.Background(), "did:plc:alice").OK())

	// entry goes stale and the network starts failing
	now = base.Add(10 * time.Second)
	f.fn = func(did string) (*Profile, error) {
		return nil, errors.New("connection refused")
	}

	res := svc.GetAvatar(context.Background(), "did:plc:alice")
	require.True(t, res.OK(), "stale fallback should degrade gracefully")
	assert.Equal(t, SourceStale, res.Source)
	assert.True(t, res.FromCache)

	stats := svc.Stats()
	assert.EqualValues(t, 1, stats.StaleServed)
	assert.EqualValues(t, 1, stats.Errors)
}

func TestTerminalFailureWithoutStaleEntry(t *testing.T) {
	f := newFakeFetcher()
	f.fn = func(did string) (*Profile, error) {
		return nil, errors.New("connection refused")
	}
	svc := newTestService(t, Config{MaxRetries: 1, BackoffInitial: time.Millisecond, BackoffMax: time.Millisecond}, f)

	res := svc.GetAvatar(context.Background(), "did:plc:alice")

	require.False(t, res.OK())
	assert.Equal(t, faults.KindNetwork, res.Err.Kind)
	assert.Equal(t, 2, f.count("did:plc:alice"), "maxRetries+1 attempts")
}

func TestClearCacheResets(t *testing.T) {
	f := newFakeFetcher()
	svc := newTestService(t, Config{}, f)

	svc.GetAvatar(context.Background(), "did:plc:alice")
	svc.GetAvatar(context.Background(), "did:plc:alice")
	require.NotZero(t, svc.Stats().Hits)

	svc.ClearCache()

	stats := svc.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.CacheSize)

	// a lookup after clear is simply the new baseline
	res := svc.GetAvatar(context.Background(), "did:plc:alice")
	require.True(t, res.OK())
	assert.Equal(t, 2, f.count("did:plc:alice"))
}

// an abandoned caller gets a timeout result but the in-flight fetch
// still lands for future readers
func TestAbandonedCallerDoesNotCancelFetch(t *testing.T) {
	f := newFakeFetcher()
	f.delay = 50 * time.Millisecond
	svc := newTestService(t, Config{}, f)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	res := svc.GetAvatar(ctx, "did:plc:alice")
	require.False(t, res.OK())
	assert.Equal(t, faults.KindTimeout, res.Err.Kind)

	time.Sleep(100 * time.Millisecond)

	res = svc.GetAvatar(context.Background(), "did:plc:alice")
	require.True(t, res.OK())
	assert.True(t, res.FromCache)
	assert.Equal(t, 1, f.count("did:plc:alice"))
}
