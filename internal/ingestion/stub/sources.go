package stub

import (
	"context"
	"sync"

	"vault-indexer/internal/domain"
	"vault-indexer/internal/sui"
)

// StubEventSource serves a fixed, ordered in-memory event stream for testing.
// Implements ingestion.EventSource interface.
type StubEventSource struct {
	mu      sync.Mutex
	events  []*domain.RawEvent
	failErr error
	queries int
}

// NewStubEventSource creates a new stub source with the given events in ledger order.
func NewStubEventSource(events ...*domain.RawEvent) *StubEventSource {
	return &StubEventSource{events: events}
}

// Append adds events to the end of the stream.
func (s *StubEventSource) Append(events ...*domain.RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

// FailWith makes every query return err until called again with nil.
func (s *StubEventSource) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Queries returns how many times QueryEvents was called.
func (s *StubEventSource) Queries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// QueryEvents returns up to limit matching events strictly after the given position.
// Returns copies to prevent mutation.
func (s *StubEventSource) QueryEvents(_ context.Context, filter sui.EventFilter, after *domain.Position, ascending bool, limit int) (*sui.EventPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries++
	if s.failErr != nil {
		return nil, s.failErr
	}

	var matching []*domain.RawEvent
	for _, e := range s.events {
		if matches(filter, e.Type) {
			matching = append(matching, e)
		}
	}
	if !ascending {
		for i, j := 0, len(matching)-1; i < j; i, j = i+1, j-1 {
			matching[i], matching[j] = matching[j], matching[i]
		}
	}

	start := 0
	if after != nil {
		for i, e := range matching {
			if e.Position == *after {
				start = i + 1
				break
			}
		}
	}

	end := len(matching)
	if limit > 0 && start+limit < end {
		end = start + limit
	}

	page := &sui.EventPage{HasNextPage: end < len(matching)}
	for _, e := range matching[start:end] {
		copy := *e
		page.Events = append(page.Events, &copy)
	}
	if n := len(page.Events); n > 0 {
		next := page.Events[n-1].Position
		page.NextCursor = &next
	}
	return page, nil
}

// matches compares types the way the node does, with addresses normalized.
func matches(filter sui.EventFilter, typeTag string) bool {
	tag, ok := domain.ParseTypeTag(typeTag)
	if !ok {
		return false
	}
	if filter.MoveModule != nil {
		return tag.SameModule(filter.MoveModule.Package, filter.MoveModule.Module)
	}
	want, ok := domain.ParseTypeTag(filter.MoveEventType)
	return ok && tag == want
}
