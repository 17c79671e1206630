package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsImmediatelyOnStart(t *testing.T) {
	var runs atomic.Int32
	s := New(time.Hour, func(ctx context.Context) {
		runs.Add(1)
	})

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
}

func TestSchedulerDropsTicksWhileCycleRuns(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{}, 10)
	release := make(chan struct{})

	s := New(5*time.Millisecond, func(ctx context.Context) {
		runs.Add(1)
		started <- struct{}{}
		<-release
	})

	s.Start(context.Background())

	<-started // first (immediate) cycle is now blocked inside runCycle

	// Several ticker intervals elapse while the cycle is still running;
	// none of them should queue up a second invocation.
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	s.Stop()
}

func TestStopWaitsForInFlightCycle(t *testing.T) {
	cycleFinished := make(chan struct{})
	s := New(time.Hour, func(ctx context.Context) {
		time.Sleep(20 * time.Millisecond)
		close(cycleFinished)
	})

	s.Start(context.Background())
	s.Stop()

	select {
	case <-cycleFinished:
	default:
		t.Fatal("Stop returned before the in-flight cycle drained")
	}
}

func TestStopIsIdempotentWithoutStart(t *testing.T) {
	s := New(time.Second, func(ctx context.Context) {})
	assert.NotPanics(t, func() { s.Stop() })
}
