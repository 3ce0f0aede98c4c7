package replay

import (
	"sort"

	"vault-indexer/internal/domain"
)

// SortEvents orders events by (timestamp_ms ASC, kind rank ASC, tx_digest ASC, event_seq ASC).
// Positions carry no cross-transaction order, so the checkpoint timestamp is
// the primary key; within one timestamp, creations precede the transitions
// that reference them. Events without a timestamp go last.
func SortEvents(events []*domain.RawEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareEvents(events[i], events[j]) < 0
	})
}

// MergeEvents combines per-type batches into one sorted stream.
func MergeEvents(batches ...[]*domain.RawEvent) []*domain.RawEvent {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	events := make([]*domain.RawEvent, 0, n)
	for _, b := range batches {
		events = append(events, b...)
	}
	SortEvents(events)
	return events
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareEvents(a, b *domain.RawEvent) int {
	if c := compareTimestamps(a.TimestampMs, b.TimestampMs); c != 0 {
		return c
	}
	if ra, rb := kindRank(a.Type), kindRank(b.Type); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if a.Position.TxDigest != b.Position.TxDigest {
		if a.Position.TxDigest < b.Position.TxDigest {
			return -1
		}
		return 1
	}
	if a.Position.EventSeq != b.Position.EventSeq {
		if a.Position.EventSeq < b.Position.EventSeq {
			return -1
		}
		return 1
	}
	return 0
}

func compareTimestamps(a, b *int64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

// kindRank is the position of the event's kind in dependency order.
// Unknown types rank after every known kind.
func kindRank(typeTag string) int {
	kind, ok := domain.ParseEventKind(typeTag)
	if !ok {
		return len(domain.AllEventKinds())
	}
	for i, k := range domain.AllEventKinds() {
		if k == kind {
			return i
		}
	}
	return len(domain.AllEventKinds())
}
