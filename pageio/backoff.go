package pageio

import (
	"context"
	"time"

	"github.com/pep-constellation/pep-core/peperr"
)

// Backoff retries fn with capped exponential delay when it returns a
// peperr.KindThrottled error. It does not parse retry timing out of error
// text, since that is fragile; it only honours a structured RetryAfter.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Attempts int
}

// DefaultBackoff mirrors a conservative page-store retry policy: a few
// attempts, capped growth.
func DefaultBackoff() Backoff {
	return Backoff{Initial: 100 * time.Millisecond, Max: 5 * time.Second, Attempts: 5}
}

// Do runs fn, retrying while it returns a Throttled error, until Attempts
// is exhausted or ctx is cancelled.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	delay := b.Initial
	var lastErr error
	for i := 0; i < b.Attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var throttled *peperr.Error
		if !asThrottled(err, &throttled) {
			return err
		}

		wait := delay
		if throttled.RetryAfter > 0 {
			wait = throttled.RetryAfter
		}
		select {
		case <-ctx.Done():
			return peperr.Wrap(peperr.KindCancelled, ctx.Err(), "pageio: backoff cancelled")
		case <-time.After(wait):
		}

		delay *= 2
		if delay > b.Max {
			delay = b.Max
		}
	}
	return lastErr
}

func asThrottled(err error, out **peperr.Error) bool {
	e, ok := err.(*peperr.Error)
	if !ok || e.Kind != peperr.KindThrottled {
		return false
	}
	*out = e
	return true
}
