package replay

import (
	"context"
	"fmt"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/storage"
)

// Runner loads archived events and replays them in deterministic order.
type Runner struct {
	archive  storage.EventArchive
	typeTags []string
}

// NewRunner creates a new replay runner over the given event types.
func NewRunner(archive storage.EventArchive, typeTags []string) *Runner {
	return &Runner{
		archive:  archive,
		typeTags: typeTags,
	}
}

// Run loads every archived event of the configured types and replays them
// through the engine. Returns the number of events replayed.
func (r *Runner) Run(ctx context.Context, engine Engine) (int, error) {
	batches := make([][]*domain.RawEvent, 0, len(r.typeTags))
	for _, tag := range r.typeTags {
		events, err := r.archive.GetByType(ctx, tag, 0)
		if err != nil {
			return 0, fmt.Errorf("load archived %s: %w", tag, err)
		}
		batches = append(batches, events)
	}

	events := MergeEvents(batches...)
	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := engine.OnEvent(ctx, event); err != nil {
			return i, err
		}
	}
	return len(events), nil
}
