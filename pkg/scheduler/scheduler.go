// Package scheduler drives one monitoring cycle every configured interval
// (spec.md §4.1, component C1).
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// CycleFunc runs one full monitoring cycle: discover agents, then run the
// per-agent pipeline for each. It must not block indefinitely — every
// external call it makes carries its own timeout (spec.md §5).
type CycleFunc func(ctx context.Context)

// Scheduler emits a tick every Interval and runs CycleFunc once per tick.
// Ticks never overlap: the loop only reads the next tick after the current
// cycle returns, and any tick that arrived mid-cycle is drained away so a
// long cycle is never followed by an immediate back-to-back one.
type Scheduler struct {
	interval time.Duration
	runCycle CycleFunc

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Scheduler that calls runCycle every interval.
func New(interval time.Duration, runCycle CycleFunc) *Scheduler {
	return &Scheduler{
		interval: interval,
		runCycle: runCycle,
	}
}

// Start begins emitting ticks. The first cycle runs immediately (no
// initial delay), matching spec.md §4.1. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("scheduler started", "interval", s.interval)
}

// Stop refuses to start a new cycle, lets any in-flight cycle drain, then
// returns. Safe to call once the scheduler is idle or never started.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
			// A tick that arrived while the cycle ran is dropped, not
			// queued: without this drain it would sit buffered in the
			// ticker channel and fire a back-to-back cycle.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}
