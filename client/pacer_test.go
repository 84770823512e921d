package client

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_FirstCallWaitsFromConstruction(t *testing.T) {
	start := time.Unix(1700000000, 0)
	tickSignal := make(chan time.Duration, 1)
	testClock := clock.NewTestClockWithTickSignal(start, tickSignal)

	pacer := NewPacer(2*time.Second, testClock)

	done := make(chan time.Duration, 1)
	go func() {
		waited, err := pacer.Wait(context.Background())
		assert.NoError(t, err)
		done <- waited
	}()

	select {
	case d := <-tickSignal:
		assert.Equal(t, 2*time.Second, d)
	case <-time.After(time.Second):
		t.Fatal("pacer never registered a tick")
	}

	select {
	case <-done:
		t.Fatal("pacer released before the interval elapsed")
	default:
	}

	testClock.SetTime(start.Add(2 * time.Second))

	select {
	case waited := <-done:
		assert.Equal(t, 2*time.Second, waited)
	case <-time.After(time.Second):
		t.Fatal("pacer not released after the interval elapsed")
	}
}

func TestPacer_NoWaitAfterQuietPeriod(t *testing.T) {
	start := time.Unix(1700000000, 0)
	testClock := clock.NewTestClock(start)
	pacer := NewPacer(2*time.Second, testClock)

	testClock.SetTime(start.Add(5 * time.Second))

	waited, err := pacer.Wait(context.Background())
	require.NoError(t, err)
	assert.Zero(t, waited)
}

func TestPacer_SpacingMeasuredFromPreviousRelease(t *testing.T) {
	start := time.Unix(1700000000, 0)
	tickSignal := make(chan time.Duration, 1)
	testClock := clock.NewTestClockWithTickSignal(start, tickSignal)
	pacer := NewPacer(2*time.Second, testClock)

	testClock.SetTime(start.Add(10 * time.Second))
	_, err := pacer.Wait(context.Background())
	require.NoError(t, err)

	// Half a second later the next call still owes 1.5s.
	testClock.SetTime(start.Add(10*time.Second + 500*time.Millisecond))

	done := make(chan struct{})
	go func() {
		_, err := pacer.Wait(context.Background())
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case d := <-tickSignal:
		assert.Equal(t, 1500*time.Millisecond, d)
	case <-time.After(time.Second):
		t.Fatal("pacer never registered a tick")
	}

	testClock.SetTime(start.Add(12 * time.Second))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pacer not released")
	}
}

func TestPacer_ContextCancelled(t *testing.T) {
	testClock := clock.NewTestClock(time.Unix(1700000000, 0))
	pacer := NewPacer(time.Minute, testClock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pacer.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPacer_ZeroInterval(t *testing.T) {
	pacer := NewPacer(0, nil)
	for i := 0; i < 3; i++ {
		waited, err := pacer.Wait(context.Background())
		require.NoError(t, err)
		assert.Zero(t, waited, "call %d", i)
	}
	assert.Zero(t, pacer.Interval())
}
