package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ErrorClass groups event failures for dead letters and metrics.
type ErrorClass string

const (
	ErrorClassDecode     ErrorClass = "decode"
	ErrorClassNotFound   ErrorClass = "not_found"
	ErrorClassTransition ErrorClass = "illegal_transition"
	ErrorClassStorage    ErrorClass = "storage"
)

// Retryable reports whether a later replay of the event may succeed.
// Lookups and transitions depend on events of other kinds that may not have
// been polled yet; malformed payloads never heal.
func (c ErrorClass) Retryable() bool {
	return c == ErrorClassNotFound || c == ErrorClassTransition || c == ErrorClassStorage
}

// DeadLetter is an event that could not be applied and was parked so the
// cursor can move on without losing it.
// Corresponds to dead_letters table in PostgreSQL.
type DeadLetter struct {
	ID            uuid.UUID       `json:"id"`         // PRIMARY KEY
	EventType     string          `json:"event_type"` // UNIQUE (event_type, tx_digest, event_seq)
	Position      Position        `json:"position"`
	TimestampMs   *int64          `json:"timestamp_ms,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	ErrorClass    ErrorClass      `json:"error_class"`
	Retryable     bool            `json:"retryable"`
	Attempts      int             `json:"attempts"`
	FirstSeenAt   time.Time       `json:"first_seen_at"`
	LastAttemptAt time.Time       `json:"last_attempt_at"`
	ResolvedAt    *time.Time      `json:"resolved_at,omitempty"`
}

// RawEvent rebuilds the event the dead letter was created from.
func (d *DeadLetter) RawEvent() *RawEvent {
	return &RawEvent{
		Type:        d.EventType,
		Position:    d.Position,
		TimestampMs: d.TimestampMs,
		Payload:     d.Payload,
	}
}
