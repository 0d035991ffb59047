package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zeroBackoff struct{}

func (zeroBackoff) Next(int) time.Duration { return 0 }

func TestExpoJitter_Next(t *testing.T) {
	b := ExpoJitter{Base: 100 * time.Millisecond, Max: time.Second}
	assert.Equal(t, 100*time.Millisecond, b.Next(-1))
	assert.Equal(t, 100*time.Millisecond, b.Next(0))
	assert.Equal(t, 400*time.Millisecond, b.Next(2))
	assert.Equal(t, time.Second, b.Next(10))

	j := ExpoJitter{Base: 100 * time.Millisecond, Jitter: 0.5}
	for i := 0; i < 50; i++ {
		d := j.Next(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	var seen []int
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}, Policy{
		Name:      "test_success",
		Attempts:  5,
		Backoff:   zeroBackoff{},
		OnAttempt: func(i int, _ error) { seen = append(seen, i) },
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{0, 1}, seen)
	assert.Equal(t, 3.0, testutil.ToFloat64(retryAttempts.WithLabelValues("test_success")))
}

func TestDo_Exhausts(t *testing.T) {
	var last error
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), func() error { calls++; return boom }, Policy{
		Name:      "test_exhaust",
		Attempts:  3,
		Backoff:   zeroBackoff{},
		OnExhaust: func(err error) { last = err },
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, last, boom)
	assert.Equal(t, 1.0, testutil.ToFloat64(retryExhausted.WithLabelValues("test_exhaust")))
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	err := Do(context.Background(), func() error { calls++; return fatal }, Policy{
		Attempts:  5,
		Backoff:   zeroBackoff{},
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
	})
	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("fail")
	}, Policy{Attempts: 5, Backoff: ExpoJitter{Base: time.Hour}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCollectors(t *testing.T) {
	assert.Len(t, Collectors(), 3)
}
