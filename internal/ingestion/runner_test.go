package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedPoller returns canned cycle results in order, then repeats the last one.
type scriptedPoller struct {
	mu      sync.Mutex
	results []CycleResult
	errs    []error
	calls   int
	onCall  func(n int)
}

func (p *scriptedPoller) PollAll(_ context.Context) (CycleResult, error) {
	p.mu.Lock()
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	n := p.calls
	res, err := p.results[i], p.errs[i]
	onCall := p.onCall
	p.mu.Unlock()

	if onCall != nil {
		onCall(n)
	}
	return res, err
}

func (p *scriptedPoller) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestRunner_NextDelay(t *testing.T) {
	r := NewRunner(RunnerOptions{
		ActiveDelay: 2 * time.Second,
		IdleDelay:   7 * time.Second,
	})

	tests := []struct {
		name string
		res  CycleResult
		err  error
		want time.Duration
	}{
		{"has more drains immediately", CycleResult{HasMore: true, Applied: 50}, nil, 0},
		{"applied waits briefly", CycleResult{Applied: 3}, nil, 2 * time.Second},
		{"empty idles", CycleResult{}, nil, 7 * time.Second},
		{"error idles", CycleResult{HasMore: true}, errors.New("rpc down"), 7 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.nextDelay(tt.res, tt.err); got != tt.want {
				t.Errorf("nextDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunner_DefaultDelays(t *testing.T) {
	r := NewRunner(RunnerOptions{})
	if r.busyDelay != DefaultBusyDelay || r.activeDelay != DefaultActiveDelay || r.idleDelay != DefaultIdleDelay {
		t.Errorf("delays = %v/%v/%v, want defaults", r.busyDelay, r.activeDelay, r.idleDelay)
	}
}

func TestRunner_ErrorsDoNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller := &scriptedPoller{
		results: []CycleResult{{}, {Applied: 2}, {}},
		errs:    []error{errors.New("rpc down"), nil, nil},
		onCall: func(n int) {
			if n == 3 {
				cancel()
			}
		},
	}
	r := NewRunner(RunnerOptions{
		Poller:      poller,
		ActiveDelay: time.Millisecond,
		IdleDelay:   time.Millisecond,
	})

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run returned %v, want nil on shutdown", err)
	}
	if poller.Calls() != 3 {
		t.Errorf("calls = %d, want 3", poller.Calls())
	}

	stats := r.Stats()
	if stats.Cycles != 3 || stats.FailedCycles != 1 {
		t.Errorf("Cycles/FailedCycles = %d/%d, want 3/1", stats.Cycles, stats.FailedCycles)
	}
	if stats.EventsApplied != 2 {
		t.Errorf("EventsApplied = %d, want 2", stats.EventsApplied)
	}
	if stats.LastError != "" {
		t.Errorf("LastError = %q, want cleared after a successful cycle", stats.LastError)
	}
	if stats.Running {
		t.Error("Running = true after Run returned")
	}
}

func TestRunner_StopsDuringIdleWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	poller := &scriptedPoller{results: []CycleResult{{}}, errs: []error{nil}}
	r := NewRunner(RunnerOptions{Poller: poller, IdleDelay: time.Hour})

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	if poller.Calls() != 1 {
		t.Errorf("calls = %d, want 1", poller.Calls())
	}
}

func TestRunner_WakeCutsIdleWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake := make(chan struct{}, 1)
	poller := &scriptedPoller{
		results: []CycleResult{{}},
		errs:    []error{nil},
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	r := NewRunner(RunnerOptions{Poller: poller, IdleDelay: time.Hour, Wake: wake})

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	wake <- struct{}{}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wake signal did not trigger a new cycle")
	}
	if poller.Calls() != 2 {
		t.Errorf("calls = %d, want 2", poller.Calls())
	}
}

func TestRunner_ClosedWakeFallsBackToTimer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake := make(chan struct{})
	close(wake)

	poller := &scriptedPoller{
		results: []CycleResult{{}},
		errs:    []error{nil},
		onCall: func(n int) {
			if n == 3 {
				cancel()
			}
		},
	}
	r := NewRunner(RunnerOptions{Poller: poller, IdleDelay: 5 * time.Millisecond, Wake: wake})

	start := time.Now()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Errorf("elapsed = %v, want timed waits after the wake channel closed", elapsed)
	}
}
