package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol/rpc"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ribbit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ribbit",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	bridgeCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ribbit",
			Subsystem: "bridge",
			Name:      "calls_total",
			Help:      "Bridge calls by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	bridgeCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ribbit",
			Subsystem: "bridge",
			Name:      "call_duration_seconds",
			Help:      "Time from send to outcome; approvals wait on a human.",
			Buckets:   []float64{0.01, 0.05, 0.25, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
		[]string{"method", "outcome"},
	)
	bridgePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ribbit",
			Subsystem: "bridge",
			Name:      "pending_requests",
			Help:      "Requests awaiting a reply.",
		},
	)
	bridgeDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ribbit",
			Subsystem: "bridge",
			Name:      "dropped_envelopes_total",
			Help:      "Inbound envelopes discarded, e.g. replies for expired requests.",
		},
		[]string{"reason"},
	)
	sessionConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ribbit",
			Subsystem: "wallet",
			Name:      "session_connected",
			Help:      "1 while a wallet session is active.",
		},
	)
	transfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ribbit",
			Subsystem: "txn",
			Name:      "transfers_total",
			Help:      "Transfers by outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			bridgeCalls, bridgeCallDuration, bridgePending, bridgeDropped,
			sessionConnected, transfers,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordSession mirrors the session state into the connected gauge.
func RecordSession(connected bool) {
	RegisterMetrics()
	if connected {
		sessionConnected.Set(1)
		return
	}
	sessionConnected.Set(0)
}

// RecordTransfer counts a transfer as approved, rejected or failed.
func RecordTransfer(outcome string) {
	RegisterMetrics()
	transfers.WithLabelValues(outcome).Inc()
}

// BridgeRecorder exports correlator telemetry to prometheus.
type BridgeRecorder struct{}

var _ rpc.Recorder = BridgeRecorder{}

func NewBridgeRecorder() BridgeRecorder {
	RegisterMetrics()
	return BridgeRecorder{}
}

func (BridgeRecorder) ObserveCall(method protocol.Method, outcome string, d time.Duration) {
	bridgeCalls.WithLabelValues(string(method), outcome).Inc()
	bridgeCallDuration.WithLabelValues(string(method), outcome).Observe(d.Seconds())
}

func (BridgeRecorder) PendingRequests(n int) {
	bridgePending.Set(float64(n))
}

func (BridgeRecorder) Dropped(reason string) {
	bridgeDropped.WithLabelValues(reason).Inc()
}
