package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBreaker(timeout time.Duration) *CircuitBreaker {
	return New("test", Config{
		MaxRequests:      1,
		Timeout:          timeout,
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Logger:           zap.NewNop(),
	})
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := newTestBreaker(time.Minute)

	for i := 0; i < 10; i++ {
		err := cb.Execute(context.Background(), func() error { return nil })
		require.NoError(t, err)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func() error { return boom })
		assert.Equal(t, boom, err)
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb := newTestBreaker(time.Minute)
	boom := errors.New("boom")

	cb.Execute(context.Background(), func() error { return boom })
	cb.Execute(context.Background(), func() error { return boom })
	cb.Execute(context.Background(), func() error { return nil })
	cb.Execute(context.Background(), func() error { return boom })
	cb.Execute(context.Background(), func() error { return boom })

	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenThenCloses(t *testing.T) {
	cb := newTestBreaker(10 * time.Millisecond)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() error { return boom })
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	err := cb.Execute(context.Background(), func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(10 * time.Millisecond)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		cb.Execute(context.Background(), func() error { return boom })
	}
	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(context.Background(), func() error { return boom })
	assert.Equal(t, boom, err)
	assert.Equal(t, StateOpen, cb.State())
}
