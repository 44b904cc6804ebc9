package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(attempts int) *Retrier {
	return New(WithMaxAttempts(attempts), WithInitialDelay(time.Millisecond), WithMaxDelay(2*time.Millisecond))
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int

	r := New(
		WithMaxAttempts(4),
		WithInitialDelay(time.Millisecond),
		WithOnRetry(func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }),
	)
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_ReturnsLastError(t *testing.T) {
	calls := 0
	errDown := errors.New("down")

	err := fast(3).Do(context.Background(), func(context.Context) error {
		calls++
		return errDown
	})

	assert.ErrorIs(t, err, errDown)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStops(t *testing.T) {
	calls := 0
	errBadURL := errors.New("bad url")

	err := fast(5).Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errBadURL)
	})

	assert.Equal(t, errBadURL, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast(3).Do(ctx, func(context.Context) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), fast(3), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDelayCapped(t *testing.T) {
	r := New(WithInitialDelay(time.Second), WithMaxDelay(3*time.Second), WithJitter(0))

	assert.Equal(t, time.Second, r.delay(1))
	assert.Equal(t, 2*time.Second, r.delay(2))
	assert.Equal(t, 3*time.Second, r.delay(5))
}
