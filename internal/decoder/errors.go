package decoder

import (
	"errors"
	"fmt"

	"vault-indexer/internal/domain"
)

// ErrUnknownKind is returned by Decode for an event kind outside the known set.
var ErrUnknownKind = errors.New("unknown event kind")

// DecodeError reports a payload field that is missing or malformed.
type DecodeError struct {
	Kind   domain.EventKind
	Field  string
	Reason string
	Err    error // underlying sentinel, if any
}

func (e *DecodeError) Error() string {
	reason := e.Reason
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	if e.Field == "" {
		return fmt.Sprintf("decode %s: %s", e.Kind, reason)
	}
	return fmt.Sprintf("decode %s: field %s: %s", e.Kind, e.Field, reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err (or anything it wraps) is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
