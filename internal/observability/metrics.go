package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	callsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedctl",
			Subsystem: "channel",
			Name:      "calls_total",
			Help:      "Correlated calls issued to the host.",
		},
		[]string{"func"},
	)
	callResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedctl",
			Subsystem: "channel",
			Name:      "call_results_total",
			Help:      "Correlated call outcomes.",
		},
		[]string{"func", "outcome"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "embedctl",
			Subsystem: "channel",
			Name:      "call_duration_seconds",
			Help:      "Correlated call round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"func", "outcome"},
	)
	eventsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedctl",
			Subsystem: "channel",
			Name:      "events_total",
			Help:      "Inbound events forwarded to the handler registry.",
		},
		[]string{"handled"},
	)
	envelopesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedctl",
			Subsystem: "channel",
			Name:      "dropped_envelopes_total",
			Help:      "Inbound envelopes dropped at the dispatch boundary.",
		},
		[]string{"reason"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "embedctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

// Outcome labels for RecordCallResolved.
const (
	OutcomeOK          = "ok"
	OutcomeRemoteError = "remote_error"
	OutcomeTimeout     = "timeout"
	OutcomeClosed      = "closed"
	OutcomeSendFailed  = "send_failed"
)

// Drop-reason labels for RecordEnvelopeDropped.
const (
	DropMalformed = "malformed"
	DropUnknownID = "unknown_id"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			callsIssued, callResults, callDuration,
			eventsDispatched, envelopesDropped,
			httpRequests, httpDuration,
		)
	})
}

func RecordCallIssued(funcName string) {
	RegisterMetrics()
	callsIssued.WithLabelValues(funcName).Inc()
}

func RecordCallResolved(funcName, outcome string, duration time.Duration) {
	RegisterMetrics()
	callResults.WithLabelValues(funcName, outcome).Inc()
	callDuration.WithLabelValues(funcName, outcome).Observe(duration.Seconds())
}

func RecordEventDispatched(handled bool) {
	RegisterMetrics()
	eventsDispatched.WithLabelValues(strconv.FormatBool(handled)).Inc()
}

func RecordEnvelopeDropped(reason string) {
	RegisterMetrics()
	envelopesDropped.WithLabelValues(reason).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
