package registry

import (
	"context"
	"time"

	"github.com/R3E-Network/attestation_layer/internal/metrics"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 2 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep is the production SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryPolicy bounds WithRetry.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       SleepFunc
}

// DefaultRetryPolicy is three attempts two seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultRetryAttempts, Delay: DefaultRetryDelay, Sleep: ContextSleep}
}

// WithRetry absorbs read-after-write lag of the transaction history index.
//
// A non-empty page returns immediately. An empty page or an error is retried after
// Delay until MaxAttempts is reached; on the final attempt an empty page is returned
// as-is and an error is propagated. It is meant for history scans only.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, scan func(context.Context) (Page[T], error)) (Page[T], error) {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultRetryAttempts
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	for attempt := 1; ; attempt++ {
		page, err := scan(ctx)
		final := attempt >= attempts

		switch {
		case err != nil && final:
			metrics.RecordRetryAttempt("error")
			return Page[T]{}, err
		case err == nil && (len(page.Items) > 0 || final):
			if len(page.Items) > 0 {
				metrics.RecordRetryAttempt("hit")
			} else {
				metrics.RecordRetryAttempt("empty")
			}
			return page, nil
		}

		metrics.RecordRetryAttempt("retry")
		if err := sleep(ctx, policy.Delay); err != nil {
			return Page[T]{}, err
		}
	}
}
