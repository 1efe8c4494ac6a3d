package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seckatie/mirrorup/internal/core/db"
	log "github.com/sirupsen/logrus"
)

// UploadOptions describes one upload run.
type UploadOptions struct {
	// Input is the path the user gave; it is recorded in the history.
	Input string
	File  UploadFile
	Style Style
	// Quota caps the number of links; 0 means no cap.
	Quota int
	// Debug stops after the first contacted host and skips browser providers.
	Debug bool
	// Verbose prints failed attempts on the console too.
	Verbose bool

	Hosts []HostDescriptor
	// Sender defaults to NewTransport().
	Sender Sender
	// Prober, if set, runs a reachability pass before uploading.
	Prober *Prober
	// Providers run after the API hosts when set.
	Providers []Provider
	Workers   int

	Console *Console
}

// UploadResult is what a run produced.
type UploadResult struct {
	State   *RunState
	Entries []Entry
	Output  string
	// RunID is the history id, empty when no history is kept.
	RunID string
	Took  time.Duration
}

// RunUpload is the top-level upload workflow: optional probe pass, API hosts
// in registry order, optional browser providers, then aggregation.
//
// database may be nil. On interrupt the partial result is returned together
// with ErrInterrupted, and the history run is left unfinished.
func RunUpload(ctx context.Context, database *db.DB, opts UploadOptions) (UploadResult, error) {
	start := time.Now()
	res := UploadResult{State: NewRunState(opts.Quota)}
	if opts.Style == "" {
		opts.Style = StyleLines
	}
	if opts.Sender == nil {
		opts.Sender = NewTransport()
	}
	console := opts.Console
	if console == nil {
		console = NewConsole()
	}

	if database != nil {
		id, err := database.CreateRun(opts.Input, string(opts.Style))
		if err != nil {
			log.WithField("err", err).Error("Failed to record run, continuing without history")
			database = nil
		} else {
			res.RunID = id
		}
	}

	var reachable map[string]bool
	if opts.Prober != nil {
		console.Rule("Checking hosts")
		reachable = opts.Prober.Probe(ctx, opts.Hosts)
	}

	console.Rule("Uploading " + opts.File.Name)
	observer := func(a Attempt) {
		switch a.Outcome {
		case OutcomeSuccess:
			console.Attempt(a)
		case OutcomeFailed, OutcomeTimedOut:
			if opts.Verbose {
				console.Attempt(a)
			}
		}
	}

	orch := NewOrchestrator(opts.Sender)
	err := orch.Run(ctx, opts.Hosts, opts.File, res.State, RunOptions{
		Debug:     opts.Debug,
		Reachable: reachable,
		Observer:  observer,
	})

	if err == nil && len(opts.Providers) > 0 && !opts.Debug {
		console.Rule("More links")
		before := len(res.State.Attempts)
		err = RunProviders(ctx, opts.Providers, opts.File, opts.Workers, res.State)
		for _, a := range res.State.Attempts[before:] {
			observer(a)
		}
	}

	res.Took = time.Since(start)
	if database != nil {
		recordLinks(database, res.RunID, res.State)
	}
	if err != nil {
		return res, err
	}

	entries, faults := Aggregate(res.State.Links)
	for _, f := range faults {
		log.WithField("err", f).Warn("Dropping link")
	}
	res.Entries = entries
	res.Output = Format(entries, opts.Style)

	if database != nil {
		if err := database.FinishRun(res.RunID, len(entries)); err != nil {
			log.WithField("err", err).Error("Failed to finish run")
		}
	}
	return res, nil
}

// recordLinks stores the accepted links with the host that produced them.
func recordLinks(database *db.DB, runID string, state *RunState) {
	accepted := make(map[string]bool, len(state.Links))
	for _, l := range state.Links {
		accepted[l] = true
	}
	for _, a := range state.Attempts {
		if a.Outcome != OutcomeSuccess || !accepted[a.Link] {
			continue
		}
		if _, err := database.AddLink(runID, a.Host, a.Link); err != nil {
			log.WithFields(log.Fields{"host": a.Host, "err": err}).Error("Failed to record link")
		}
	}
}

// IsInterrupted reports whether err ended a run because of a user interrupt.
func IsInterrupted(err error) bool {
	return errors.Is(err, ErrInterrupted) || errors.Is(err, context.Canceled)
}

// Describe summarizes the run for the log.
func (r UploadResult) Describe() string {
	return fmt.Sprintf("%d link(s) from %d attempt(s) in %s", len(r.Entries), len(r.State.Attempts), FormatDuration(r.Took))
}
