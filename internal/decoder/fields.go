package decoder

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"vault-indexer/internal/domain"
)

// reader extracts typed fields from a JSON object payload.
// The first failure is kept in err and later reads become no-ops,
// so a decode function can read every field and check err once.
type reader struct {
	kind   domain.EventKind
	fields map[string]json.RawMessage
	err    error
}

func newReader(kind domain.EventKind, payload json.RawMessage) (*reader, error) {
	var fields map[string]json.RawMessage
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, &DecodeError{Kind: kind, Reason: "empty payload"}
	}
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return nil, &DecodeError{Kind: kind, Reason: "payload is not a JSON object"}
	}
	return &reader{kind: kind, fields: fields}, nil
}

func (r *reader) fail(field, reason string) {
	if r.err == nil {
		r.err = &DecodeError{Kind: r.kind, Field: field, Reason: reason}
	}
}

// lookup returns the first present, non-null alias.
func (r *reader) lookup(names ...string) (string, json.RawMessage, bool) {
	for _, name := range names {
		v, ok := r.fields[name]
		if ok && !isNull(v) {
			return name, v, true
		}
	}
	return names[0], nil, false
}

func (r *reader) requiredString(names ...string) string {
	s, ok := r.optionalString(names...)
	if r.err == nil && (!ok || s == "") {
		r.fail(names[0], "missing")
	}
	return s
}

// optionalString accepts a JSON string or an object id wrapper {"id": "0x.."}.
func (r *reader) optionalString(names ...string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	name, raw, ok := r.lookup(names...)
	if !ok {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var wrapped struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.ID != nil {
		return *wrapped.ID, true
	}
	r.fail(name, "expected string")
	return "", false
}

func (r *reader) requiredInt(names ...string) int64 {
	n, ok := r.optionalInt(names...)
	if r.err == nil && !ok {
		r.fail(names[0], "missing")
	}
	return n
}

// optionalInt accepts decimal-digit strings and JSON integers.
// Values must be non-negative and fit in int64.
func (r *reader) optionalInt(names ...string) (int64, bool) {
	if r.err != nil {
		return 0, false
	}
	name, raw, ok := r.lookup(names...)
	if !ok {
		return 0, false
	}

	text := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(raw, &text); err != nil {
			r.fail(name, "expected decimal string")
			return 0, false
		}
	}
	if text == "" || strings.ContainsAny(text, "+-.eE") {
		r.fail(name, "expected non-negative integer, got "+quote(text))
		return 0, false
	}
	u, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		r.fail(name, "expected non-negative integer, got "+quote(text))
		return 0, false
	}
	if u > math.MaxInt64 {
		r.fail(name, "value overflows int64")
		return 0, false
	}
	return int64(u), true
}

// optionalStatus accepts "Approved" or {"variant": "Approved", "fields": {}}.
func (r *reader) optionalStatus(names ...string) (domain.RequestStatus, bool) {
	if r.err != nil {
		return "", false
	}
	name, raw, ok := r.lookup(names...)
	if !ok {
		return "", false
	}

	var variant string
	if err := json.Unmarshal(raw, &variant); err != nil {
		var tagged struct {
			Variant *string `json:"variant"`
		}
		if err := json.Unmarshal(raw, &tagged); err != nil || tagged.Variant == nil {
			r.fail(name, "expected status string or tagged variant")
			return "", false
		}
		variant = *tagged.Variant
	}

	status, err := domain.ParseRequestStatus(variant)
	if err != nil {
		r.fail(name, "unknown variant "+quote(variant))
		return "", false
	}
	return status, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func quote(s string) string {
	const max = 32
	if len(s) > max {
		s = s[:max] + "..."
	}
	return strconv.Quote(s)
}
