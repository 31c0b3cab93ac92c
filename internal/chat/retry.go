package chat

import (
	"context"
	"time"

	"github.com/fpang/minipaint/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Retry defaults: four retries after the first attempt, doubling from 5s
// (5s, 10s, 20s, 40s).
const (
	DefaultMaxRetries   = 4
	DefaultInitialDelay = 5 * time.Second
)

// RetryPolicy controls WithRetry.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the policy used for every model call.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, InitialDelay: DefaultInitialDelay}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// WithRetry runs fn, retrying only on rate-limit failures with an
// exponentially doubling delay. Other failures, and a rate limit that
// outlives the budget, are returned classified (see Classify). Only the
// calling goroutine blocks while waiting.
func WithRetry[T any](ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}

	delay := p.InitialDelay
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info().Str("op", op).Int("attempts", attempt+1).Msg("Model call succeeded after retries")
			}
			return v, nil
		}

		if !IsRateLimit(err) || attempt >= p.MaxRetries {
			return zero, Classify(op, err)
		}

		log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Rate limited, backing off")
		metrics.New(metrics.Namespace).
			Dimension("Operation", op).
			Count("ModelRateLimited").
			Metric("BackoffMs", float64(delay.Milliseconds()), metrics.UnitMilliseconds).
			Flush()

		if serr := sleep(ctx, delay); serr != nil {
			return zero, Classify(op, serr)
		}
		delay *= 2
	}
}
