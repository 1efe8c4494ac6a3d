package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Scheduler bounds attempts with a deadline learned from earlier successes.
//
// Until MinObservations successful durations have been recorded no deadline
// is imposed. After that every attempt gets
//
//	floor(mean(last Window durations) / Unit) * Unit + Grace
//
// Timed-out and failed attempts are never recorded. A Scheduler belongs to a
// single run and is not safe for concurrent use.
type Scheduler struct {
	Grace           time.Duration
	Unit            time.Duration
	Window          int
	MinObservations int

	observed []time.Duration
	now      func() time.Time
}

// NewScheduler returns a scheduler with the default grace, unit and window.
func NewScheduler() *Scheduler {
	return &Scheduler{
		Grace:           DefaultDeadlineGrace,
		Unit:            DefaultDeadlineUnit,
		Window:          ObservationWindow,
		MinObservations: MinObservations,
		now:             time.Now,
	}
}

// Observed returns a copy of the recorded durations, oldest first.
func (s *Scheduler) Observed() []time.Duration {
	out := make([]time.Duration, len(s.observed))
	copy(out, s.observed)
	return out
}

// Observe records a successful attempt duration.
func (s *Scheduler) Observe(d time.Duration) {
	s.observed = append(s.observed, d)
}

// Deadline returns the deadline the next attempt would get, and whether one
// is armed at all.
func (s *Scheduler) Deadline() (time.Duration, bool) {
	minObs := s.MinObservations
	if minObs <= 0 {
		minObs = MinObservations
	}
	if len(s.observed) < minObs {
		return 0, false
	}

	window := s.observed
	if s.Window > 0 && len(window) > s.Window {
		window = window[len(window)-s.Window:]
	}
	var sum time.Duration
	for _, d := range window {
		sum += d
	}
	mean := sum / time.Duration(len(window))

	unit := s.Unit
	if unit <= 0 {
		unit = DefaultDeadlineUnit
	}
	return (mean/unit)*unit + s.Grace, true
}

func (s *Scheduler) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// RunWithDeadline runs action under the scheduler's current deadline.
//
// The action receives a context that is cancelled when the deadline passes;
// RunWithDeadline returns ErrTimedOut at that point without waiting for the
// action to notice. Cancellation of ctx itself is returned as ctx.Err().
func RunWithDeadline[T any](ctx context.Context, s *Scheduler, action func(context.Context) (T, error)) (T, error) {
	var zero T

	deadline, armed := s.Deadline()
	runCtx, cancel := context.WithCancel(ctx)
	if armed {
		cancel()
		runCtx, cancel = context.WithTimeout(ctx, deadline)
	}
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	start := s.clock()
	go func() {
		v, err := action(runCtx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			s.Observe(s.clock().Sub(start))
			return r.v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if armed && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimedOut, deadline)
		}
		return zero, r.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %s", ErrTimedOut, deadline)
	}
}
