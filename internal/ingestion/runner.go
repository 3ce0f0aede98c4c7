package ingestion

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"vault-indexer/internal/observability"
)

// Default runner delays.
const (
	DefaultBusyDelay   = 0
	DefaultActiveDelay = 1 * time.Second
	DefaultIdleDelay   = 5 * time.Second
)

// Poller runs one pass over every event type.
type Poller interface {
	PollAll(ctx context.Context) (CycleResult, error)
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Poller      Poller
	BusyDelay   time.Duration   // after a cycle with more pages pending. Default: 0
	ActiveDelay time.Duration   // after a cycle that applied events. Default: 1s
	IdleDelay   time.Duration   // after an empty or failed cycle. Default: 5s
	Wake        <-chan struct{} // optional, cuts a pending delay short
	Logger      *zap.Logger
}

// Runner drives the poll loop until its context is cancelled.
type Runner struct {
	poller      Poller
	busyDelay   time.Duration
	activeDelay time.Duration
	idleDelay   time.Duration
	wake        <-chan struct{}
	logger      *zap.Logger

	mu    sync.RWMutex
	stats RunnerStats
}

// RunnerStats is a snapshot of loop progress for health reporting.
type RunnerStats struct {
	Running             bool      `json:"running"`
	Cycles              int64     `json:"cycles"`
	FailedCycles        int64     `json:"failed_cycles"`
	EventsApplied       int64     `json:"events_applied"`
	LastCycleAt         time.Time `json:"last_cycle_at"`
	LastSuccessAt       time.Time `json:"last_success_at"`
	LastApplied         int       `json:"last_applied"`
	LastHasMore         bool      `json:"last_has_more"`
	LastError           string    `json:"last_error,omitempty"`
	DeadLettersResolved int64     `json:"dead_letters_resolved"`
}

// NewRunner creates a new poll runner.
func NewRunner(opts RunnerOptions) *Runner {
	activeDelay := opts.ActiveDelay
	if activeDelay <= 0 {
		activeDelay = DefaultActiveDelay
	}

	idleDelay := opts.IdleDelay
	if idleDelay <= 0 {
		idleDelay = DefaultIdleDelay
	}

	busyDelay := opts.BusyDelay
	if busyDelay < 0 {
		busyDelay = DefaultBusyDelay
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		poller:      opts.Poller,
		busyDelay:   busyDelay,
		activeDelay: activeDelay,
		idleDelay:   idleDelay,
		wake:        opts.Wake,
		logger:      logger.With(zap.String("component", "runner")),
	}
}

// Run loops until ctx is cancelled. Cycle errors never stop the loop;
// they only select the idle delay. Returns nil on shutdown.
func (r *Runner) Run(ctx context.Context) error {
	r.setRunning(true)
	defer r.setRunning(false)

	r.logger.Info("runner started",
		zap.Duration("busy_delay", r.busyDelay),
		zap.Duration("active_delay", r.activeDelay),
		zap.Duration("idle_delay", r.idleDelay),
	)

	for {
		if ctx.Err() != nil {
			r.logger.Info("runner stopping")
			return nil
		}

		start := time.Now()
		res, err := r.poller.PollAll(ctx)
		elapsed := time.Since(start)
		observability.RecordCycle(err, elapsed)
		r.record(res, err, start)

		if err != nil && ctx.Err() == nil {
			r.logger.Error("poll cycle failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		} else if res.Applied > 0 || res.Resolved > 0 {
			r.logger.Info("poll cycle applied events",
				zap.Int("applied", res.Applied),
				zap.Int("dead_letters_resolved", res.Resolved),
				zap.Bool("has_more", res.HasMore),
				zap.Duration("elapsed", elapsed),
			)
		}

		if !r.wait(ctx, r.nextDelay(res, err)) {
			r.logger.Info("runner stopping")
			return nil
		}
	}
}

// nextDelay drains backlogs immediately, rechecks soon after activity
// and otherwise idles.
func (r *Runner) nextDelay(res CycleResult, err error) time.Duration {
	switch {
	case err != nil:
		return r.idleDelay
	case res.HasMore:
		return r.busyDelay
	case res.Applied > 0:
		return r.activeDelay
	}
	return r.idleDelay
}

// wait sleeps for d or until a wake signal. Returns false if ctx ended.
func (r *Runner) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case _, ok := <-r.wake:
			if ok {
				return ctx.Err() == nil
			}
			// Subscription ended; keep polling on timers alone.
			r.wake = nil
		}
	}
}

func (r *Runner) record(res CycleResult, err error, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Cycles++
	r.stats.LastCycleAt = at
	r.stats.LastApplied = res.Applied
	r.stats.LastHasMore = res.HasMore
	r.stats.EventsApplied += int64(res.Applied)
	r.stats.DeadLettersResolved += int64(res.Resolved)
	if err != nil {
		r.stats.FailedCycles++
		r.stats.LastError = err.Error()
		return
	}
	r.stats.LastSuccessAt = at
	r.stats.LastError = ""
}

func (r *Runner) setRunning(running bool) {
	r.mu.Lock()
	r.stats.Running = running
	r.mu.Unlock()
}

// Stats returns a snapshot of runner statistics.
func (r *Runner) Stats() RunnerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}
