package ingestion

import (
	"context"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/sui"
)

// EventSource returns ascending pages of ledger events.
// A nil position asks for the first page of the stream.
type EventSource interface {
	QueryEvents(ctx context.Context, filter sui.EventFilter, after *domain.Position, ascending bool, limit int) (*sui.EventPage, error)
}

var _ EventSource = (*sui.HTTPClient)(nil)

// FilterMode selects how the source is asked for one event type.
type FilterMode string

const (
	// FilterByEventType asks for exactly one fully-qualified type per query.
	FilterByEventType FilterMode = "event_type"
	// FilterByModule asks for every event of the module and filters locally.
	FilterByModule FilterMode = "module"
)

// IsValid checks if the mode is a known value.
func (m FilterMode) IsValid() bool {
	return m == FilterByEventType || m == FilterByModule
}

// filterFor builds the source filter for one event type.
func filterFor(mode FilterMode, packageID, module string, kind domain.EventKind) sui.EventFilter {
	if mode == FilterByModule {
		return sui.EventFilter{MoveModule: &sui.MoveModuleFilter{Package: packageID, Module: module}}
	}
	return sui.EventFilter{MoveEventType: kind.TypeTag(packageID, module)}
}
