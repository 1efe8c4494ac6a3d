package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeSender answers each host from a table and records the calls it got.
type fakeSender struct {
	mu      sync.Mutex
	calls   []string
	answers map[string]func(ctx context.Context) (string, error)
}

func (s *fakeSender) Send(ctx context.Context, d HostDescriptor, f UploadFile) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, d.Name)
	answer := s.answers[d.Name]
	s.mu.Unlock()
	if answer == nil {
		return fmt.Sprintf("https://%s.example/%s", d.Name, f.Name), nil
	}
	return answer(ctx)
}

func (s *fakeSender) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func testHosts(limits ...float64) []HostDescriptor {
	hosts := make([]HostDescriptor, len(limits))
	for i, l := range limits {
		hosts[i] = HostDescriptor{
			Name:        fmt.Sprintf("host%d", i+1),
			Server:      fmt.Sprintf("https://host%d.example/upload", i+1),
			SizeLimitMB: l,
			Field:       "file",
			Method:      "POST",
		}
	}
	return hosts
}

func TestOrchestrator_Quota(t *testing.T) {
	hosts := testHosts(10, 10, 10, 10, 10, 10, 10, 10, 10, 10)
	sender := &fakeSender{}
	state := NewRunState(3)

	err := NewOrchestrator(sender).Run(context.Background(), hosts, UploadFile{Name: "a.bin", Size: 100}, state, RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(state.Links) != 3 {
		t.Errorf("collected %d links, want 3", len(state.Links))
	}
	if n := len(sender.Calls()); n != 3 {
		t.Errorf("made %d calls, want 3", n)
	}
}

func TestOrchestrator_QuotaCountsOnlySuccesses(t *testing.T) {
	hosts := testHosts(10, 10, 10, 10)
	sender := &fakeSender{answers: map[string]func(context.Context) (string, error){
		"host1": func(context.Context) (string, error) {
			return "", &TransportError{Host: "host1", Kind: Generic, Err: errors.New("boom")}
		},
	}}
	state := NewRunState(2)

	if err := NewOrchestrator(sender).Run(context.Background(), hosts, UploadFile{Name: "a.bin", Size: 100}, state, RunOptions{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(state.Links) != 2 {
		t.Errorf("collected %d links, want 2", len(state.Links))
	}
	if got := sender.Calls(); len(got) != 3 {
		t.Errorf("calls = %v, want host1..host3", got)
	}
}

func TestOrchestrator_SizeLimits(t *testing.T) {
	// 1MB file against limits of 0.5, 2 and 2 MB.
	hosts := testHosts(0.5, 2, 2)
	sender := &fakeSender{}
	state := NewRunState(0)

	if err := NewOrchestrator(sender).Run(context.Background(), hosts, UploadFile{Name: "a.bin", Size: 1_000_000}, state, RunOptions{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	calls := sender.Calls()
	if len(calls) != 2 || calls[0] != "host2" || calls[1] != "host3" {
		t.Errorf("calls = %v, want [host2 host3]", calls)
	}
	if len(state.Links) > 2 {
		t.Errorf("collected %d links, want at most 2", len(state.Links))
	}
	if state.Attempts[0].Outcome != OutcomeSkipped {
		t.Errorf("host1 outcome = %q, want %q", state.Attempts[0].Outcome, OutcomeSkipped)
	}
}

func TestOrchestrator_FailuresDoNotAbort(t *testing.T) {
	hosts := testHosts(10, 10, 10)
	sender := &fakeSender{answers: map[string]func(context.Context) (string, error){
		"host1": func(context.Context) (string, error) {
			return "", &TransportError{Host: "host1", Kind: BadGateway, Err: errors.New("502")}
		},
		"host2": func(context.Context) (string, error) {
			return "", &SkipError{Reason: "host said no"}
		},
	}}
	state := NewRunState(0)

	var observed []Attempt
	err := NewOrchestrator(sender).Run(context.Background(), hosts, UploadFile{Name: "a.bin", Size: 100}, state, RunOptions{
		Observer: func(a Attempt) { observed = append(observed, a) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(state.Links) != 1 || state.Links[0] != "https://host3.example/a.bin" {
		t.Errorf("links = %v, want only host3", state.Links)
	}

	want := []string{OutcomeFailed, OutcomeSkipped, OutcomeSuccess}
	if len(observed) != len(want) {
		t.Fatalf("observed %d attempts, want %d", len(observed), len(want))
	}
	for i, o := range want {
		if observed[i].Outcome != o {
			t.Errorf("attempt %d outcome = %q, want %q", i, observed[i].Outcome, o)
		}
	}
}

func TestOrchestrator_Debug(t *testing.T) {
	hosts := testHosts(0.1, 10, 10)
	sender := &fakeSender{answers: map[string]func(context.Context) (string, error){
		"host2": func(context.Context) (string, error) {
			return "", &TransportError{Host: "host2", Kind: Generic, Err: errors.New("boom")}
		},
	}}
	state := NewRunState(0)

	err := NewOrchestrator(sender).Run(context.Background(), hosts, UploadFile{Name: "a.bin", Size: 1_000_000}, state, RunOptions{Debug: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// host1 is skipped without contact, host2 is the one contacted host.
	if calls := sender.Calls(); len(calls) != 1 || calls[0] != "host2" {
		t.Errorf("calls = %v, want [host2]", calls)
	}
}

func TestOrchestrator_ReachabilityGate(t *testing.T) {
	hosts := testHosts(10, 10, 10)
	sender := &fakeSender{}
	state := NewRunState(0)

	err := NewOrchestrator(sender).Run(context.Background(), hosts, UploadFile{Name: "a.bin", Size: 100}, state, RunOptions{
		Reachable: map[string]bool{"host1": true, "host2": false},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	calls := sender.Calls()
	if len(calls) != 2 || calls[0] != "host1" || calls[1] != "host3" {
		t.Errorf("calls = %v, want [host1 host3] (no probe result means reachable)", calls)
	}
}

func TestOrchestrator_Timeout(t *testing.T) {
	hosts := testHosts(10, 10, 10, 10, 10)
	sender := &fakeSender{answers: map[string]func(context.Context) (string, error){
		"host4": func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}}
	state := NewRunState(0)

	orch := NewOrchestrator(sender)
	orch.Scheduler = msScheduler()

	if err := orch.Run(context.Background(), hosts, UploadFile{Name: "a.bin", Size: 100}, state, RunOptions{}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(state.Links) != 4 {
		t.Errorf("collected %d links, want 4", len(state.Links))
	}
	if got := state.Attempts[3].Outcome; got != OutcomeTimedOut {
		t.Errorf("host4 outcome = %q, want %q", got, OutcomeTimedOut)
	}
	if state.Attempts[3].Deadline == 0 {
		t.Error("host4 should have run under a deadline")
	}
	if n := len(orch.Scheduler.Observed()); n != 4 {
		t.Errorf("scheduler observed %d durations, want 4 (timeouts excluded)", n)
	}
}

func TestOrchestrator_Interrupt(t *testing.T) {
	hosts := testHosts(10, 10, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &fakeSender{answers: map[string]func(context.Context) (string, error){
		"host2": func(ctx context.Context) (string, error) {
			cancel()
			<-ctx.Done()
			return "", ctx.Err()
		},
	}}
	state := NewRunState(0)

	err := NewOrchestrator(sender).Run(ctx, hosts, UploadFile{Name: "a.bin", Size: 100}, state, RunOptions{})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Run() error = %v, want ErrInterrupted", err)
	}
	if len(state.Links) != 1 {
		t.Errorf("collected %d links, want the 1 from before the interrupt", len(state.Links))
	}
	if calls := sender.Calls(); len(calls) != 2 {
		t.Errorf("calls = %v, want host3 never contacted", calls)
	}
}

func TestRunState_Remaining(t *testing.T) {
	s := NewRunState(0)
	if _, capped := s.Remaining(); capped {
		t.Error("quota 0 should mean no cap")
	}
	s.Add("x")
	if s.QuotaMet() {
		t.Error("uncapped state can never meet its quota")
	}

	s = NewRunState(2)
	s.Add("a")
	if n, capped := s.Remaining(); !capped || n != 1 {
		t.Errorf("Remaining() = %d, %v, want 1, true", n, capped)
	}
	s.Add("b")
	if !s.QuotaMet() {
		t.Error("quota should be met after 2 links")
	}

	if NewRunState(-1).Quota != 0 {
		t.Error("negative quota should be treated as no cap")
	}
}

func TestOrchestrator_ElapsedRecorded(t *testing.T) {
	hosts := testHosts(10)
	sender := &fakeSender{answers: map[string]func(context.Context) (string, error){
		"host1": func(context.Context) (string, error) {
			time.Sleep(5 * time.Millisecond)
			return "https://host1.example/a.bin", nil
		},
	}}
	state := NewRunState(0)
	if err := NewOrchestrator(sender).Run(context.Background(), hosts, UploadFile{Name: "a.bin", Size: 1}, state, RunOptions{}); err != nil {
		t.Fatal(err)
	}
	if state.Attempts[0].Elapsed < 5*time.Millisecond {
		t.Errorf("Elapsed = %v, want >= 5ms", state.Attempts[0].Elapsed)
	}
}
