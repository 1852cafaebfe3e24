package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("service down")

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return errDown })
	}
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	failN(cb, 2)
	assert.Equal(t, StateClosed, cb.State())

	failN(cb, 1)
	assert.Equal(t, StateOpen, cb.State())

	// Open circuit fails fast without calling the operation.
	var called bool
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestExecute_SuccessResetsFailureRun(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))

	failN(cb, 2)
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	failN(cb, 2)

	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_HalfOpenProbeRecovers(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(10*time.Millisecond),
		WithMaxHalfOpenRequests(2),
	)

	failN(cb, 1)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecute_FailedProbeReopens(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(10*time.Millisecond),
	)

	failN(cb, 1)
	time.Sleep(15 * time.Millisecond)

	failN(cb, 1)
	assert.Equal(t, StateOpen, cb.State())
}

func TestExecute_HalfOpenBudgetIsLimited(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(5),
		WithTimeout(10*time.Millisecond),
		WithMaxHalfOpenRequests(1),
	)

	failN(cb, 1)
	time.Sleep(15 * time.Millisecond)

	block := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(context.Context) error {
			<-block
			return nil
		})
	}()

	// The single probe slot is taken; the next request is rejected.
	require.Eventually(t, func() bool {
		return cb.State() == StateHalfOpen
	}, time.Second, time.Millisecond)
	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrTooManyRequests)

	close(block)
	require.NoError(t, <-done)
}

func TestReset_ClosesCircuit(t *testing.T) {
	cb := New("test", WithFailureThreshold(1))
	failN(cb, 1)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
}

func TestOnStateChange_ReportsTransitions(t *testing.T) {
	type change struct{ from, to State }
	var changes []change
	cb := New("lessons-api",
		WithFailureThreshold(1),
		WithTimeout(5*time.Millisecond),
		WithOnStateChange(func(name string, from, to State) {
			assert.Equal(t, "lessons-api", name)
			changes = append(changes, change{from, to})
		}),
	)

	failN(cb, 1)
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))

	require.Len(t, changes, 3)
	assert.Equal(t, change{StateClosed, StateOpen}, changes[0])
	assert.Equal(t, change{StateOpen, StateHalfOpen}, changes[1])
	assert.Equal(t, change{StateHalfOpen, StateClosed}, changes[2])
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
}
