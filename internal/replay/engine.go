// Package replay rebuilds materialized state from the raw event archive.
package replay

import (
	"context"
	"errors"
	"fmt"

	"vault-indexer/internal/decoder"
	"vault-indexer/internal/domain"
	"vault-indexer/internal/ingestion"
)

// Engine processes archived events in order.
type Engine interface {
	// OnEvent is called for each event in (timestamp, kind, position) order.
	OnEvent(ctx context.Context, event *domain.RawEvent) error
}

// Summary counts what a replay did.
type Summary struct {
	Events             int `json:"events"`
	Applied            int `json:"applied"`
	Duplicates         int `json:"duplicates"`
	NotFound           int `json:"not_found"`
	DecodeFailures     int `json:"decode_failures"`
	IllegalTransitions int `json:"illegal_transitions"`
}

// ApplyEngine decodes each event and writes it through an ingestion.Applier.
// Event-level anomalies are counted; storage failures abort the replay.
type ApplyEngine struct {
	applier *ingestion.Applier
	summary Summary
}

// NewApplyEngine creates an engine writing through applier.
func NewApplyEngine(applier *ingestion.Applier) *ApplyEngine {
	return &ApplyEngine{applier: applier}
}

// OnEvent decodes and applies one event.
func (e *ApplyEngine) OnEvent(ctx context.Context, raw *domain.RawEvent) error {
	e.summary.Events++

	ev, err := decoder.DecodeRaw(raw)
	if err != nil {
		e.summary.DecodeFailures++
		return nil
	}

	outcome, err := e.applier.Apply(ctx, ev)
	switch {
	case errors.Is(err, domain.ErrIllegalTransition):
		e.summary.IllegalTransitions++
		return nil
	case err != nil:
		return fmt.Errorf("apply %s at %s: %w", raw.Type, raw.Position, err)
	}

	switch outcome {
	case ingestion.OutcomeApplied:
		e.summary.Applied++
	case ingestion.OutcomeDuplicate:
		e.summary.Duplicates++
	case ingestion.OutcomeNotFound:
		e.summary.NotFound++
	}
	return nil
}

// Summary returns the counts so far.
func (e *ApplyEngine) Summary() Summary {
	return e.summary
}
