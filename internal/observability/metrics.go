package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// total requests per endpoint, method and status code
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_requests_total",
			Help: "Total API requests received",
		},
		[]string{"endpoint", "method", "status"},
	)

	// request latency per endpoint and method
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_request_duration_seconds",
			Help:    "Histogram of request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)

	// ad requests started by an event handler
	AdRequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_ad_requests_total",
			Help: "Total ad requests issued to the host ad server",
		},
		[]string{"integration"},
	)

	// terminal notices delivered to the listener, including mismatch diagnostics
	DecisionCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_decisions_total",
			Help: "Outcomes delivered to the bidding SDK listener",
		},
		[]string{"integration", "outcome"},
	)

	// time from request start to committed outcome
	DecisionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_decision_duration_seconds",
			Help:    "Time between ad request and committed outcome",
			Buckets: []float64{.005, .01, .025, .05, .1, .2, .3, .4, .5, .75, 1, 2.5},
		},
		[]string{"integration", "outcome"},
	)

	// wait windows by result: started, cancelled or expired
	WaitWindowCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_wait_windows_total",
			Help: "Partner win wait windows by result",
		},
		[]string{"integration", "result"},
	)

	// event receiver replaced by publisher code
	ListenerOverrideCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_listener_overrides_total",
			Help: "Ad requests where the host event receiver was replaced",
		},
		[]string{"integration"},
	)

	// host ad server round trip
	HostRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_host_request_duration_seconds",
			Help:    "Duration of host ad server requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"integration", "status"},
	)

	// ad requests checked against the per-slot rate limiter
	RateLimitRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_rate_limit_requests_total",
			Help: "Ad requests checked by the slot rate limiter",
		},
		[]string{"slot"},
	)

	// ad requests rejected by the per-slot rate limiter
	RateLimitHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_rate_limit_hits_total",
			Help: "Ad requests rejected by the slot rate limiter",
		},
		[]string{"slot"},
	)

	// decision records that could not be persisted
	RecordErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_record_errors_total",
			Help: "Decision records that failed to persist",
		},
		[]string{"recorder"},
	)
)

func init() {
	// register all metrics
	prometheus.MustRegister(
		RequestCount,
		RequestLatency,
		AdRequestCount,
		DecisionCount,
		DecisionLatency,
		WaitWindowCount,
		ListenerOverrideCount,
		HostRequestLatency,
		RateLimitRequests,
		RateLimitHits,
		RecordErrors,
	)
}
