package ingestion

import (
	"context"

	"go.uber.org/zap"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/sui"
)

// Subscriber streams ledger events as they are emitted.
type Subscriber interface {
	SubscribeEvents(ctx context.Context, filter sui.EventFilter) (<-chan *domain.RawEvent, error)
}

var _ Subscriber = (*sui.WSClient)(nil)

// WakeOnEvents subscribes to the package module and turns every notification
// into a non-blocking wake signal for the Runner. Notifications carry no data
// the poller relies on; the cursor-driven query stays the source of truth.
func WakeOnEvents(ctx context.Context, sub Subscriber, packageID, module string, logger *zap.Logger) (<-chan struct{}, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	events, err := sub.SubscribeEvents(ctx, sui.EventFilter{
		MoveModule: &sui.MoveModuleFilter{Package: packageID, Module: module},
	})
	if err != nil {
		return nil, err
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer close(wake)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					logger.Warn("event subscription closed")
					return
				}
				logger.Debug("event notification", zap.String("event_type", ev.Type))
				select {
				case wake <- struct{}{}:
				default:
				}
			}
		}
	}()
	return wake, nil
}
