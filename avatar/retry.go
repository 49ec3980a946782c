package avatar

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/moodesky/plumage/faults"
)

// RetryPolicy drives attempt scheduling for one fetch: exponential
// capped backoff, rate-limit wait hints honored when the server sends
// one, and no retry for failures a retry cannot fix.
type RetryPolicy struct {
	MaxRetries int
	Initial    time.Duration
	Max        time.Duration
}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.Initial
	bo.MaxInterval = p.Max
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall time
	bo.Reset()
	return bo
}

// Do runs fn until it succeeds, exhausts MaxRetries, or fails
// terminally. At most MaxRetries+1 attempts are made. Waits use a
// timer select rather than sleep so a pending backoff never wedges
// the caller past ctx cancellation.
func (p RetryPolicy) Do(ctx context.Context, op, did string, fn func() (*Profile, error)) (*Profile, *faults.Record) {
	bo := p.newBackOff()

	for attempt := 0; ; attempt++ {
		prof, err := fn()
		if err == nil {
			return prof, nil
		}

		rec := faults.From(err, op, did)
		rec.RetryCount = attempt

		if !rec.Retryable || attempt >= p.MaxRetries {
			return nil, rec
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop || wait > p.Max {
			wait = p.Max
		}
		if rec.Kind == faults.KindRateLimit && rec.RetryAfter > 0 {
			wait = rec.RetryAfter
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			out := faults.New(faults.KindTimeout, op, did, ctx.Err())
			out.RetryCount = attempt
			return nil, out
		case <-t.C:
		}
	}
}
