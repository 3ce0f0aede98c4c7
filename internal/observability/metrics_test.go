package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCycle(t *testing.T) {
	okBefore := testutil.ToFloat64(DefaultMetrics.CyclesTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(DefaultMetrics.CyclesTotal.WithLabelValues("error"))

	RecordCycle(nil, 10*time.Millisecond)
	RecordCycle(errors.New("rpc down"), 10*time.Millisecond)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(DefaultMetrics.CyclesTotal.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(DefaultMetrics.CyclesTotal.WithLabelValues("error")))
	assert.Greater(t, testutil.ToFloat64(DefaultMetrics.LastSuccessfulCycle), float64(0))
}

func TestRecordEventsSkipped_IgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.EventsSkipped.WithLabelValues("pkg::m::Zero"))
	RecordEventsSkipped("pkg::m::Zero", 0)
	RecordEventsSkipped("pkg::m::Zero", 3)
	assert.Equal(t, before+3, testutil.ToFloat64(DefaultMetrics.EventsSkipped.WithLabelValues("pkg::m::Zero")))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "2xx", statusLabel(200))
	assert.Equal(t, "4xx", statusLabel(404))
	assert.Equal(t, "5xx", statusLabel(503))
}
