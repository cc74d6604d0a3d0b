package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/softframe/embedctl/internal/testutil/testlog"
)

func TestRegisterMetricsIdempotent(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics() // must not panic on double registration
}

func TestRecordersCount(t *testing.T) {
	testlog.Start(t)
	RecordCallIssued("metrics.test")
	RecordCallIssued("metrics.test")
	if got := testutil.ToFloat64(callsIssued.WithLabelValues("metrics.test")); got != 2 {
		t.Fatalf("calls_total=%v want 2", got)
	}

	RecordCallResolved("metrics.test", OutcomeOK, 5*time.Millisecond)
	if got := testutil.ToFloat64(callResults.WithLabelValues("metrics.test", OutcomeOK)); got != 1 {
		t.Fatalf("call_results_total=%v want 1", got)
	}

	RecordEnvelopeDropped(DropMalformed)
	if got := testutil.ToFloat64(envelopesDropped.WithLabelValues(DropMalformed)); got < 1 {
		t.Fatalf("dropped_envelopes_total=%v want >=1", got)
	}

	RecordEventDispatched(true)
	if got := testutil.ToFloat64(eventsDispatched.WithLabelValues("true")); got < 1 {
		t.Fatalf("events_total=%v want >=1", got)
	}
}
