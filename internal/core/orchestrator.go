package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sender uploads a file to one host. *Transport implements it.
type Sender interface {
	Send(ctx context.Context, d HostDescriptor, f UploadFile) (string, error)
}

// Attempt is the record of one host visited during a run.
type Attempt struct {
	Host     string
	Start    time.Time
	Deadline time.Duration // zero when no deadline was armed
	Elapsed  time.Duration
	Outcome  string // one of the Outcome* constants
	Link     string
	Err      error
}

// RunState is the mutable state of one invocation.
type RunState struct {
	// Links are the accepted links in the order they were collected.
	Links []string
	// Attempts records every host visited, in order.
	Attempts []Attempt
	// Quota caps len(Links); zero means no cap.
	Quota int
}

// NewRunState returns an empty state with the given quota (0 = no cap).
func NewRunState(quota int) *RunState {
	if quota < 0 {
		quota = 0
	}
	return &RunState{Quota: quota}
}

// Remaining returns how many more links may be collected, and false when
// there is no cap.
func (s *RunState) Remaining() (int, bool) {
	if s.Quota == 0 {
		return 0, false
	}
	if n := s.Quota - len(s.Links); n > 0 {
		return n, true
	}
	return 0, true
}

// QuotaMet reports whether the cap has been reached.
func (s *RunState) QuotaMet() bool {
	n, capped := s.Remaining()
	return capped && n == 0
}

// Add appends an accepted link.
func (s *RunState) Add(link string) {
	s.Links = append(s.Links, link)
}

// RunOptions controls an orchestrator run.
type RunOptions struct {
	// Debug stops the run after the first host that was actually contacted.
	Debug bool
	// Reachable holds probe results; hosts mapped to false are skipped and
	// hosts without an entry are treated as reachable.
	Reachable map[string]bool
	// Observer, if set, is called after every attempt.
	Observer func(Attempt)
}

// Orchestrator visits hosts in registry order and collects their links.
type Orchestrator struct {
	Sender    Sender
	Scheduler *Scheduler
}

// NewOrchestrator returns an orchestrator with a fresh adaptive scheduler.
func NewOrchestrator(s Sender) *Orchestrator {
	return &Orchestrator{Sender: s, Scheduler: NewScheduler()}
}

// Run uploads f to hosts one by one and records accepted links in state.
//
// No single host's failure aborts the run. The only error returned is
// ErrInterrupted, when ctx is cancelled; state then holds whatever was
// collected before the interruption.
func (o *Orchestrator) Run(ctx context.Context, hosts []HostDescriptor, f UploadFile, state *RunState, opts RunOptions) error {
	if o.Scheduler == nil {
		o.Scheduler = NewScheduler()
	}

	contacted := 0
	for _, h := range hosts {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		}
		if state.QuotaMet() {
			log.WithField("quota", state.Quota).Debug("Link quota reached")
			break
		}
		if opts.Debug && contacted > 0 {
			log.Debug("Debug mode: stopping after one host")
			break
		}

		if online, ok := opts.Reachable[h.Name]; ok && !online {
			o.record(state, opts, Attempt{Host: h.Name, Start: time.Now(), Outcome: OutcomeSkipped, Err: &SkipError{Reason: "host is unreachable"}})
			continue
		}

		if reason := skipReason(h, f); reason != "" {
			log.WithFields(log.Fields{"host": h.Name, "reason": reason}).Debug("Skipping host")
			o.record(state, opts, Attempt{Host: h.Name, Start: time.Now(), Outcome: OutcomeSkipped, Err: &SkipError{Reason: reason}})
			continue
		}

		deadline, _ := o.Scheduler.Deadline()
		attempt := Attempt{Host: h.Name, Start: time.Now(), Deadline: deadline}
		contacted++
		link, err := RunWithDeadline(ctx, o.Scheduler, func(ctx context.Context) (string, error) {
			return o.Sender.Send(ctx, h, f)
		})
		attempt.Elapsed = time.Since(attempt.Start)

		switch {
		case err == nil:
			attempt.Outcome = OutcomeSuccess
			attempt.Link = link
			state.Add(link)
			log.WithFields(log.Fields{"host": h.Name, "link": link, "took": attempt.Elapsed}).Info("[OK]")
		case errors.Is(err, ErrSkipped):
			attempt.Outcome = OutcomeSkipped
			attempt.Err = err
			log.WithFields(log.Fields{"host": h.Name, "err": err}).Debug("Skipping host")
		case errors.Is(err, ErrTimedOut):
			attempt.Outcome = OutcomeTimedOut
			attempt.Err = err
			log.WithFields(log.Fields{"host": h.Name, "deadline": deadline}).Warn("Timed out, skipping")
		case ctx.Err() != nil:
			attempt.Outcome = OutcomeFailed
			attempt.Err = err
			o.record(state, opts, attempt)
			return fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
		default:
			attempt.Outcome = OutcomeFailed
			attempt.Err = err
			log.WithFields(log.Fields{"host": h.Name, "err": fmt.Sprintf("%+v", err)}).Error("Upload failed")
		}
		o.record(state, opts, attempt)
	}
	return nil
}

func (o *Orchestrator) record(state *RunState, opts RunOptions, a Attempt) {
	state.Attempts = append(state.Attempts, a)
	if opts.Observer != nil {
		opts.Observer(a)
	}
}
