package publish

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// Backoff retries remote calls that fail with a transient upstream status.
// Delays double from Base up to Max, with up to Jitter extra spread. Errors
// without a retryable status propagate immediately.
type Backoff struct {
	Retries int
	Base    time.Duration
	Max     time.Duration
	Jitter  float64
	// Observe, when set, is told about every attempt outcome: stage name,
	// zero-based attempt index, and the delay before the next try (zero on
	// success or final failure).
	Observe func(stage string, attempt int, delay time.Duration, err error)

	Logger *slog.Logger

	retryStatuses map[int]struct{}
	sleep         func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff mirrors the quota behavior of the hosting API: 6 attempts,
// 600ms base doubling to a 30s ceiling, retrying request-timeout, rate-limit
// and server-error statuses.
func DefaultBackoff(logger *slog.Logger) Backoff {
	return Backoff{
		Retries: 6,
		Base:    600 * time.Millisecond,
		Max:     30 * time.Second,
		Jitter:  0.3,
		Logger:  logger,
	}
}

var defaultRetryStatuses = map[int]struct{}{
	408: {}, 429: {}, 500: {}, 502: {}, 503: {}, 504: {},
}

// WithRetryStatuses overrides the retryable status set.
func (b Backoff) WithRetryStatuses(statuses ...int) Backoff {
	set := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	b.retryStatuses = set
	return b
}

func (b Backoff) retryable(status int) bool {
	set := b.retryStatuses
	if set == nil {
		set = defaultRetryStatuses
	}
	_, ok := set[status]
	return ok
}

func (b Backoff) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// Do runs fn under the retry policy. The stage name labels log lines and
// observer callbacks.
func (b Backoff) Do(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	retries := b.Retries
	if retries <= 0 {
		retries = 1
	}
	delay := b.Base

	for attempt := 0; attempt < retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			b.observe(stage, attempt, 0, nil)
			return nil
		}

		status := StatusOf(err)
		last := attempt == retries-1
		if last || !b.retryable(status) {
			b.logger().Warn("backoff.give_up",
				"stage", stage,
				"attempt", attempt,
				"status", status,
				"error", err,
			)
			b.observe(stage, attempt, 0, err)
			return err
		}

		wait := delay + time.Duration(rand.Float64()*b.Jitter*float64(delay))
		b.logger().Info("backoff.retry",
			"stage", stage,
			"attempt", attempt,
			"status", status,
			"sleep_ms", wait.Milliseconds(),
		)
		b.observe(stage, attempt, wait, err)

		if err := b.doSleep(ctx, wait); err != nil {
			return err
		}
		delay *= 2
		if b.Max > 0 && delay > b.Max {
			delay = b.Max
		}
	}
	return fmt.Errorf("%s: retries exceeded", stage)
}

// DoValue is Do for calls that produce a value.
func DoValue[T any](ctx context.Context, b Backoff, stage string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, stage, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (b Backoff) observe(stage string, attempt int, delay time.Duration, err error) {
	if b.Observe != nil {
		b.Observe(stage, attempt, delay, err)
	}
}

func (b Backoff) doSleep(ctx context.Context, d time.Duration) error {
	if b.sleep != nil {
		return b.sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
