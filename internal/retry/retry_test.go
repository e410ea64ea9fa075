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

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(5), Always, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	err := DoVoid(context.Background(), fastPolicy(5), Always, func(context.Context) error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.False(t, IsPermanent(err))
	assert.Equal(t, 5, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	errBad := errors.New("bad request")
	err := DoVoid(context.Background(), fastPolicy(5), func(error) Action { return Stop }, func(context.Context) error {
		calls++
		return errBad
	})
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, errBad)
	assert.Equal(t, 1, calls)
}

func TestDo_BackoffDoublesAndCaps(t *testing.T) {
	var waits []time.Duration
	p := Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		OnRetry:        func(_ int, _ error, d time.Duration) { waits = append(waits, d) },
	}
	_ = DoVoid(context.Background(), p, Always, func(context.Context) error { return errTransient })

	assert.Equal(t, []time.Duration{
		time.Millisecond, 2 * time.Millisecond, 4 * time.Millisecond, 4 * time.Millisecond,
	}, waits)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, InitialBackoff: time.Hour}

	calls := 0
	err := DoVoid(ctx, p, Always, func(context.Context) error {
		calls++
		cancel()
		return errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_InvalidPolicy(t *testing.T) {
	_, err := Do(context.Background(), Policy{}, Always, func(context.Context) (int, error) { return 1, nil })
	assert.Error(t, err)
}
