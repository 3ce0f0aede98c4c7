package sui

import (
	"context"

	"vault-indexer/internal/domain"
)

// RPCClient defines the Sui JSON-RPC calls the indexer uses.
type RPCClient interface {
	// QueryEvents returns one page of events strictly after the given position.
	// A nil position starts from the beginning of the stream.
	QueryEvents(ctx context.Context, filter EventFilter, after *domain.Position, ascending bool, limit int) (*EventPage, error)
}

// Subscriber defines the Sui WebSocket subscription interface.
type Subscriber interface {
	// SubscribeEvents streams events matching the filter as they are emitted.
	SubscribeEvents(ctx context.Context, filter EventFilter) (<-chan *domain.RawEvent, error)

	// Close closes the WebSocket connection.
	Close() error
}
