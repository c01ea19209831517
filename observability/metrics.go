package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Invocation outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeTyped = "typed_error"
	OutcomeFatal = "fatal"
)

// SinkMetrics tracks contract invocations and retirements.
type SinkMetrics struct {
	invocations *prometheus.CounterVec
	typedErrors *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	retired     prometheus.Counter
	retirements prometheus.Counter
	ledger      prometheus.Gauge
}

// RPCMetrics tracks gateway traffic.
type RPCMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	sinkMetricsOnce sync.Once
	sinkRegistry    *SinkMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// Sink returns the lazily-initialised sink metrics registry.
func Sink() *SinkMetrics {
	sinkMetricsOnce.Do(func() {
		sinkRegistry = &SinkMetrics{
			invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sorocarbon",
				Subsystem: "sink",
				Name:      "invocations_total",
				Help:      "Contract invocations segmented by function and outcome.",
			}, []string{"function", "outcome"}),
			typedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sorocarbon",
				Subsystem: "sink",
				Name:      "typed_errors_total",
				Help:      "Typed contract errors segmented by function and error code.",
			}, []string{"function", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sorocarbon",
				Subsystem: "sink",
				Name:      "invocation_duration_seconds",
				Help:      "Latency distribution of contract invocations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"function"}),
			retired: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "sorocarbon",
				Subsystem: "sink",
				Name:      "retired_units_total",
				Help:      "Quantized source asset units retired (1e7 units per tonne).",
			}),
			retirements: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "sorocarbon",
				Subsystem: "sink",
				Name:      "retirements_total",
				Help:      "Completed retirements.",
			}),
			ledger: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "sorocarbon",
				Subsystem: "host",
				Name:      "ledger_sequence",
				Help:      "Current ledger sequence of the execution host.",
			}),
		}
		prometheus.MustRegister(
			sinkRegistry.invocations,
			sinkRegistry.typedErrors,
			sinkRegistry.latency,
			sinkRegistry.retired,
			sinkRegistry.retirements,
			sinkRegistry.ledger,
		)
	})
	return sinkRegistry
}

// ObserveInvocation records one invocation. code is the typed error code and
// is ignored unless outcome is OutcomeTyped.
func (m *SinkMetrics) ObserveInvocation(function, outcome string, code uint32, duration time.Duration) {
	if m == nil {
		return
	}
	if function == "" {
		function = "unknown"
	}
	m.invocations.WithLabelValues(function, outcome).Inc()
	if outcome == OutcomeTyped {
		m.typedErrors.WithLabelValues(function, strconv.FormatUint(uint64(code), 10)).Inc()
	}
	m.latency.WithLabelValues(function).Observe(duration.Seconds())
}

// RecordRetirement adds a completed retirement of amount units.
func (m *SinkMetrics) RecordRetirement(amount int64) {
	if m == nil || amount < 0 {
		return
	}
	m.retirements.Inc()
	m.retired.Add(float64(amount))
}

// SetLedger publishes the host ledger sequence.
func (m *SinkMetrics) SetLedger(seq uint32) {
	if m == nil {
		return
	}
	m.ledger.Set(float64(seq))
}

// RPC returns the lazily-initialised gateway metrics registry.
func RPC() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sorocarbon",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sorocarbon",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sorocarbon",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Requests rejected by throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.requests,
			rpcRegistry.latency,
			rpcRegistry.throttles,
		)
	})
	return rpcRegistry
}

// Observe records a handled request. errCode is the JSON-RPC error code, zero
// on success.
func (m *RPCMetrics) Observe(method string, errCode int, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if errCode != 0 {
		outcome = strconv.Itoa(errCode)
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *RPCMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}
