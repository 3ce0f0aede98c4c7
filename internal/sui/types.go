package sui

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"

	"vault-indexer/internal/domain"
)

// DigestLength is the decoded size of a transaction digest.
const DigestLength = 32

// EventFilter selects events for suix_queryEvents and suix_subscribeEvent.
// Exactly one field should be set.
type EventFilter struct {
	MoveEventType string            // fully-qualified "<package>::<module>::<Name>"
	MoveModule    *MoveModuleFilter // every event emitted by one module
}

// MoveModuleFilter matches events emitted by a module.
type MoveModuleFilter struct {
	Package string `json:"package"`
	Module  string `json:"module"`
}

// MarshalJSON renders the filter in the RPC's externally tagged form.
func (f EventFilter) MarshalJSON() ([]byte, error) {
	switch {
	case f.MoveEventType != "":
		return json.Marshal(map[string]string{"MoveEventType": f.MoveEventType})
	case f.MoveModule != nil:
		return json.Marshal(map[string]*MoveModuleFilter{"MoveModule": f.MoveModule})
	}
	return nil, fmt.Errorf("empty event filter")
}

// String returns a short description for logs.
func (f EventFilter) String() string {
	if f.MoveModule != nil {
		return f.MoveModule.Package + "::" + f.MoveModule.Module
	}
	return f.MoveEventType
}

// EventPage is one ascending page of events.
type EventPage struct {
	Events      []*domain.RawEvent
	NextCursor  *domain.Position
	HasNextPage bool
}

// EventID is the RPC form of a position. The sequence travels as a decimal string.
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// eventIDFrom converts a position to its RPC form.
func eventIDFrom(p *domain.Position) *EventID {
	if p == nil {
		return nil
	}
	return &EventID{TxDigest: p.TxDigest, EventSeq: strconv.FormatUint(p.EventSeq, 10)}
}

// Position validates the id and converts it to a domain position.
func (id EventID) Position() (domain.Position, error) {
	if err := ParseDigest(id.TxDigest); err != nil {
		return domain.Position{}, err
	}
	seq, err := strconv.ParseUint(id.EventSeq, 10, 64)
	if err != nil {
		return domain.Position{}, fmt.Errorf("invalid event seq %q: %w", id.EventSeq, err)
	}
	return domain.Position{TxDigest: id.TxDigest, EventSeq: seq}, nil
}

// ParseDigest checks that s is a base58 encoded 32-byte transaction digest.
func ParseDigest(s string) error {
	b, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(b) != DigestLength {
		return fmt.Errorf("invalid digest %q: %d bytes, want %d", s, len(b), DigestLength)
	}
	return nil
}

// Event is a SuiEvent as returned by the RPC.
type Event struct {
	ID                EventID         `json:"id"`
	PackageID         string          `json:"packageId"`
	TransactionModule string          `json:"transactionModule"`
	Sender            string          `json:"sender"`
	Type              string          `json:"type"`
	ParsedJSON        json.RawMessage `json:"parsedJson"`
	TimestampMs       *string         `json:"timestampMs,omitempty"`
}

// Raw converts the RPC event to a domain raw event.
func (e *Event) Raw() (*domain.RawEvent, error) {
	pos, err := e.ID.Position()
	if err != nil {
		return nil, err
	}

	raw := &domain.RawEvent{
		Type:     e.Type,
		Position: pos,
		Sender:   e.Sender,
		Payload:  e.ParsedJSON,
	}
	if e.TimestampMs != nil && *e.TimestampMs != "" {
		ts, err := strconv.ParseInt(*e.TimestampMs, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timestampMs %q: %w", *e.TimestampMs, err)
		}
		raw.TimestampMs = &ts
	}
	return raw, nil
}

// queryEventsResult is the raw RPC response for suix_queryEvents.
type queryEventsResult struct {
	Data        []Event  `json:"data"`
	NextCursor  *EventID `json:"nextCursor"`
	HasNextPage bool     `json:"hasNextPage"`
}
