package publish

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBackoff sleeps instantly and records observer calls.
func testBackoff(observed *[]string) Backoff {
	b := DefaultBackoff(nil)
	b.Base = time.Millisecond
	b.Max = 4 * time.Millisecond
	b.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	if observed != nil {
		b.Observe = func(stage string, attempt int, delay time.Duration, err error) {
			label := "ok"
			if err != nil {
				label = "err"
			}
			*observed = append(*observed, label)
		}
	}
	return b
}

func TestBackoffRetriesTransientThenSucceeds(t *testing.T) {
	var observed []string
	b := testBackoff(&observed)

	calls := 0
	err := b.Do(context.Background(), "values.update", func(ctx context.Context) error {
		calls++
		if calls <= 3 {
			return &HostError{Status: 429, Op: "values.update"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []string{"err", "err", "err", "ok"}, observed)
}

func TestBackoffNonRetryableFailsImmediately(t *testing.T) {
	b := testBackoff(nil)

	calls := 0
	err := b.Do(context.Background(), "sheets.create", func(ctx context.Context) error {
		calls++
		return &HostError{Status: 403, Op: "sheets.create"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 403, StatusOf(err))
}

func TestBackoffBudgetExhausted(t *testing.T) {
	b := testBackoff(nil)

	calls := 0
	err := b.Do(context.Background(), "drive.files.copy", func(ctx context.Context) error {
		calls++
		return &HostError{Status: 503, Op: "drive.files.copy"}
	})

	require.Error(t, err)
	assert.Equal(t, b.Retries, calls)
	assert.Equal(t, 503, StatusOf(err))
}

func TestBackoffErrorsWithoutStatusAreNotRetried(t *testing.T) {
	b := testBackoff(nil)

	calls := 0
	err := b.Do(context.Background(), "stage", func(ctx context.Context) error {
		calls++
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
}

func TestBackoffStopsOnCancel(t *testing.T) {
	b := testBackoff(nil)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := b.Do(ctx, "stage", func(ctx context.Context) error {
		calls++
		cancel()
		return &HostError{Status: 500}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDoValue(t *testing.T) {
	b := testBackoff(nil)

	calls := 0
	got, err := DoValue(context.Background(), b, "stage", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &HostError{Status: 429}
		}
		return "doc-1", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "doc-1", got)
}
