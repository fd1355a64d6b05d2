package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func TestPolicy_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	p := Fixed(3, time.Millisecond, func(err error) bool { return errors.Is(err, errTransient) })

	err := p.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_NonRetryableAbortsImmediately(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	p := Fixed(3, time.Millisecond, func(err error) bool { return errors.Is(err, errTransient) })

	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return fatal
	})

	require.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
	var exhausted *ExhaustedError
	assert.False(t, errors.As(err, &exhausted))
}

func TestPolicy_Exhausted(t *testing.T) {
	calls := 0
	p := Fixed(3, 10*time.Millisecond, nil)

	start := time.Now()
	err := p.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errTransient
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPolicy_BackoffCapped(t *testing.T) {
	var stamps []time.Time
	p := Policy{MaxAttempts: 4, Delay: 5 * time.Millisecond, Multiplier: 4, MaxDelay: 10 * time.Millisecond}

	_ = p.Do(context.Background(), func(context.Context, int) error {
		stamps = append(stamps, time.Now())
		return errTransient
	})

	require.Len(t, stamps, 4)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 10*time.Millisecond)
}

func TestPolicy_ContextCancelStopsWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Fixed(3, time.Hour, nil)

	err := p.Do(ctx, func(context.Context, int) error {
		cancel()
		return errTransient
	})

	require.ErrorIs(t, err, context.Canceled)
}
