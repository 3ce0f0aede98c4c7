package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vault-indexer/internal/decoder"
	"vault-indexer/internal/domain"
	"vault-indexer/internal/idhash"
	"vault-indexer/internal/observability"
	"vault-indexer/internal/storage"
)

// FailurePolicy decides what happens to the cursor when an event fails.
type FailurePolicy string

const (
	// PolicyDeadLetter parks the failed event and lets the cursor move past it.
	PolicyDeadLetter FailurePolicy = "dead-letter"
	// PolicyHalt stops the page at the first failure; the cursor stays before it.
	PolicyHalt FailurePolicy = "halt"
)

// ParseFailurePolicy parses a policy name.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(s); p {
	case PolicyDeadLetter, PolicyHalt:
		return p, nil
	}
	return "", fmt.Errorf("unknown failure policy %q", s)
}

// ErrRequestNotFound reports an event that references an unknown withdrawal request.
var ErrRequestNotFound = errors.New("withdrawal request not found")

// Default coordinator settings.
const (
	DefaultPageLimit        = 50
	DefaultRetryBatch       = 100
	DefaultMaxRetryAttempts = 50
)

// CoordinatorOptions contains configuration for creating a Coordinator.
type CoordinatorOptions struct {
	Source    EventSource
	Stores    *storage.Stores
	Archive   storage.EventArchive // optional
	PackageID string
	Module    string

	Kinds            []domain.EventKind // Default: domain.AllEventKinds()
	FilterMode       FilterMode         // Default: FilterByEventType
	PageLimit        int                // Default: 50
	Policy           FailurePolicy      // Default: PolicyDeadLetter
	Parallel         bool               // one goroutine per event type
	RetryBatch       int                // dead letters re-applied per cycle. Default: 100
	MaxRetryAttempts int                // dead letters at this attempt count are left alone. Default: 50
	Logger           *zap.Logger
}

// Coordinator polls the event source per event type and applies each page.
type Coordinator struct {
	source    EventSource
	stores    *storage.Stores
	archive   storage.EventArchive
	applier   *Applier
	packageID string
	module    string

	kinds            []domain.EventKind
	filterMode       FilterMode
	pageLimit        int
	policy           FailurePolicy
	parallel         bool
	retryBatch       int
	maxRetryAttempts int
	logger           *zap.Logger
}

// NewCoordinator creates a new poll coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = domain.AllEventKinds()
	}

	filterMode := opts.FilterMode
	if !filterMode.IsValid() {
		filterMode = FilterByEventType
	}

	pageLimit := opts.PageLimit
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}

	policy := opts.Policy
	if policy == "" {
		policy = PolicyDeadLetter
	}

	retryBatch := opts.RetryBatch
	if retryBatch <= 0 {
		retryBatch = DefaultRetryBatch
	}

	maxRetryAttempts := opts.MaxRetryAttempts
	if maxRetryAttempts <= 0 {
		maxRetryAttempts = DefaultMaxRetryAttempts
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		source:           opts.Source,
		stores:           opts.Stores,
		archive:          opts.Archive,
		applier:          NewApplier(opts.Stores),
		packageID:        domain.NormalizeAddress(opts.PackageID),
		module:           opts.Module,
		kinds:            kinds,
		filterMode:       filterMode,
		pageLimit:        pageLimit,
		policy:           policy,
		parallel:         opts.Parallel,
		retryBatch:       retryBatch,
		maxRetryAttempts: maxRetryAttempts,
		logger:           logger.With(zap.String("component", "coordinator")),
	}
}

// Kinds returns the event kinds polled each cycle, in order.
func (c *Coordinator) Kinds() []domain.EventKind {
	return append([]domain.EventKind(nil), c.kinds...)
}

// TypeTag returns the fully-qualified type of a kind for this package.
func (c *Coordinator) TypeTag(kind domain.EventKind) string {
	return kind.TypeTag(c.packageID, c.module)
}

// PollResult summarizes one page for one event type.
type PollResult struct {
	EventType string
	Fetched   int
	Applied   int // includes events that were already applied
	Skipped   int // events of another type
	Failed    int
	HasMore   bool
	Cursor    *domain.Position // stored cursor after the page, nil if none yet
}

// CycleResult summarizes one pass over every event type.
type CycleResult struct {
	Types    []PollResult
	Applied  int
	HasMore  bool
	Retried  int // dead letters re-applied
	Resolved int // dead letters that succeeded on retry
}

// PollAll retries pending dead letters, then polls every event type once.
// Sequential mode stops at the first type that fails; parallel mode lets
// every type finish and returns the first error.
func (c *Coordinator) PollAll(ctx context.Context) (CycleResult, error) {
	var cycle CycleResult

	retried, resolved, err := c.RetryDeadLetters(ctx)
	if err != nil {
		c.logger.Warn("dead letter retry failed", zap.Error(err))
	}
	cycle.Retried, cycle.Resolved = retried, resolved

	results := make([]PollResult, len(c.kinds))
	if c.parallel {
		var g errgroup.Group
		for i, kind := range c.kinds {
			g.Go(func() error {
				res, err := c.PollType(ctx, kind)
				results[i] = res
				return err
			})
		}
		err = g.Wait()
	} else {
		for i, kind := range c.kinds {
			results[i], err = c.PollType(ctx, kind)
			if err != nil {
				results = results[:i+1]
				break
			}
		}
	}

	for _, res := range results {
		if res.EventType == "" {
			continue
		}
		cycle.Types = append(cycle.Types, res)
		cycle.Applied += res.Applied
		cycle.HasMore = cycle.HasMore || res.HasMore
	}
	return cycle, err
}

// PollType fetches the page after the stored cursor of one event type,
// applies it in order and moves the cursor over the handled prefix.
func (c *Coordinator) PollType(ctx context.Context, kind domain.EventKind) (PollResult, error) {
	typeTag := c.TypeTag(kind)
	result := PollResult{EventType: typeTag}
	logger := c.logger.With(zap.String("event_type", typeTag))

	var after *domain.Position
	cursor, err := c.stores.Cursors.Get(ctx, typeTag)
	switch {
	case err == nil:
		after = &cursor.Position
	case !errors.Is(err, storage.ErrNotFound):
		return result, fmt.Errorf("read cursor %s: %w", typeTag, err)
	}
	result.Cursor = after

	filter := filterFor(c.filterMode, c.packageID, c.module, kind)
	page, err := c.source.QueryEvents(ctx, filter, after, true, c.pageLimit)
	if err != nil {
		return result, fmt.Errorf("query events %s: %w", typeTag, err)
	}
	result.Fetched = len(page.Events)
	observability.RecordEventsFetched(typeTag, result.Fetched)

	c.archivePage(ctx, page.Events)

	// latest is the furthest position whose event is fully handled.
	latest := after
	stopped := false
	for _, raw := range page.Events {
		if ctx.Err() != nil {
			stopped = true
			break
		}

		if !kind.Matches(raw.Type, c.packageID, c.module) {
			if c.filterMode == FilterByEventType {
				// The query named this type only; hold the cursor before anything else.
				observability.RecordEventError(typeTag, "unexpected_type")
				logger.Error("source returned an event of another type, cursor held",
					zap.String("type", raw.Type),
					zap.String("tx_digest", raw.Position.TxDigest),
					zap.Uint64("event_seq", raw.Position.EventSeq),
				)
				stopped = true
				break
			}
			result.Skipped++
			latest = &raw.Position
			continue
		}

		class, err := c.process(ctx, kind, raw)
		if err == nil {
			result.Applied++
			latest = &raw.Position
			continue
		}

		result.Failed++
		observability.RecordEventError(typeTag, string(class))
		logger.Warn("event failed",
			zap.String("tx_digest", raw.Position.TxDigest),
			zap.Uint64("event_seq", raw.Position.EventSeq),
			zap.String("error_class", string(class)),
			zap.Error(err),
		)

		if c.policy == PolicyHalt {
			stopped = true
			break
		}
		if dlErr := c.deadLetter(ctx, raw, class, err); dlErr != nil {
			logger.Error("dead letter write failed, cursor held before event",
				zap.String("tx_digest", raw.Position.TxDigest),
				zap.Uint64("event_seq", raw.Position.EventSeq),
				zap.Error(dlErr),
			)
			stopped = true
			break
		}
		latest = &raw.Position
	}
	observability.RecordEventsSkipped(typeTag, result.Skipped)

	if latest != nil && (after == nil || *latest != *after) {
		stored, err := c.stores.Cursors.Upsert(context.WithoutCancel(ctx), typeTag, *latest)
		if err != nil {
			return result, fmt.Errorf("upsert cursor %s: %w", typeTag, err)
		}
		result.Cursor = &stored.Position
		observability.RecordCursorAdvance(typeTag)
	}

	result.HasMore = page.HasNextPage && !stopped
	if result.Fetched > 0 {
		logger.Debug("page processed",
			zap.Int("fetched", result.Fetched),
			zap.Int("applied", result.Applied),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
			zap.Bool("has_more", result.HasMore),
		)
	}
	return result, nil
}

// process decodes and applies one event. Writes ignore cancellation so a
// shutdown never cuts a single write in half.
func (c *Coordinator) process(ctx context.Context, kind domain.EventKind, raw *domain.RawEvent) (domain.ErrorClass, error) {
	start := time.Now()

	ev, err := decoder.Decode(kind, raw)
	if err != nil {
		return domain.ErrorClassDecode, err
	}

	outcome, err := c.applier.Apply(context.WithoutCancel(ctx), ev)
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		return domain.ErrorClassTransition, err
	case err != nil:
		return domain.ErrorClassStorage, err
	case outcome == OutcomeNotFound:
		return domain.ErrorClassNotFound, ErrRequestNotFound
	}

	observability.RecordEventApplied(raw.Type, outcome.String(), time.Since(start))
	return "", nil
}

// deadLetter parks a failed event.
func (c *Coordinator) deadLetter(ctx context.Context, raw *domain.RawEvent, class domain.ErrorClass, cause error) error {
	d := &domain.DeadLetter{
		ID:          idhash.DeadLetterID(raw.Type, raw.Position),
		EventType:   raw.Type,
		Position:    raw.Position,
		TimestampMs: raw.TimestampMs,
		Payload:     raw.Payload,
		Reason:      cause.Error(),
		ErrorClass:  class,
		Retryable:   class.Retryable(),
	}
	if err := c.stores.DeadLetters.Insert(context.WithoutCancel(ctx), d); err != nil {
		return err
	}
	observability.RecordDeadLetter(raw.Type)
	return nil
}

// RetryDeadLetters re-applies pending retryable dead letters.
// Returns how many were tried and how many succeeded.
func (c *Coordinator) RetryDeadLetters(ctx context.Context) (retried, resolved int, err error) {
	pending, err := c.stores.DeadLetters.ListPending(ctx, c.retryBatch)
	if err != nil {
		return 0, 0, fmt.Errorf("list dead letters: %w", err)
	}

	for _, d := range pending {
		if ctx.Err() != nil {
			break
		}
		if d.Attempts >= c.maxRetryAttempts {
			continue
		}
		kind, ok := domain.ParseEventKind(d.EventType)
		if !ok {
			continue
		}

		retried++
		writeCtx := context.WithoutCancel(ctx)
		if _, perr := c.process(ctx, kind, d.RawEvent()); perr != nil {
			if err := c.stores.DeadLetters.RecordAttempt(writeCtx, d.ID, perr.Error()); err != nil {
				return retried, resolved, fmt.Errorf("record dead letter attempt: %w", err)
			}
			continue
		}

		if err := c.stores.DeadLetters.MarkResolved(writeCtx, d.ID); err != nil {
			return retried, resolved, fmt.Errorf("resolve dead letter: %w", err)
		}
		resolved++
		observability.RecordDeadLetterResolved(d.EventType)
		c.logger.Info("dead letter resolved",
			zap.String("event_type", d.EventType),
			zap.String("tx_digest", d.Position.TxDigest),
			zap.Uint64("event_seq", d.Position.EventSeq),
			zap.Int("attempts", d.Attempts),
		)
	}
	return retried, resolved, nil
}

// archivePage copies a fetched page into the raw archive. Failures are logged only.
func (c *Coordinator) archivePage(ctx context.Context, events []*domain.RawEvent) {
	if c.archive == nil || len(events) == 0 {
		return
	}
	if err := c.archive.Archive(context.WithoutCancel(ctx), events); err != nil {
		c.logger.Warn("archive page failed", zap.Int("events", len(events)), zap.Error(err))
	}
}
