package sui

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDigest(t *testing.T) {
	assert.NoError(t, ParseDigest(testDigest(7)))
	assert.Error(t, ParseDigest(""))
	assert.Error(t, ParseDigest("0OIl"))
	assert.Error(t, ParseDigest("3yZe7d"))
}

func TestEventFilter_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(EventFilter{MoveEventType: "0x1::m::E"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"MoveEventType":"0x1::m::E"}`, string(b))

	_, err = json.Marshal(EventFilter{})
	assert.Error(t, err)
}

func TestEvent_Raw(t *testing.T) {
	ts := "12"
	e := Event{
		ID:          EventID{TxDigest: testDigest(3), EventSeq: "4"},
		Type:        "0x1::m::E",
		ParsedJSON:  json.RawMessage(`{}`),
		TimestampMs: &ts,
	}

	raw, err := e.Raw()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), raw.Position.EventSeq)
	assert.Equal(t, int64(12), *raw.TimestampMs)

	e.ID.EventSeq = "-1"
	_, err = e.Raw()
	assert.Error(t, err)

	e.ID.EventSeq = "1"
	bad := "soon"
	e.TimestampMs = &bad
	_, err = e.Raw()
	assert.Error(t, err)
}
