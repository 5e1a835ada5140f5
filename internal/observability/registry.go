package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics
// so components can be tested without the global Prometheus registry.
type MetricsRegistry interface {
	// HTTP Request metrics
	IncrementRequests(endpoint, method, status string)
	RecordRequestLatency(endpoint, method string, duration time.Duration)

	// Ad request metrics
	IncrementAdRequests(integration string)
	IncrementListenerOverride(integration string)
	RecordHostRequestLatency(integration, status string, duration time.Duration)

	// Arbitration metrics
	IncrementDecision(integration, outcome string)
	RecordDecisionLatency(integration, outcome string, duration time.Duration)
	IncrementWaitWindow(integration, result string)

	// Rate limiting metrics
	IncrementRateLimitRequests(slot string)
	IncrementRateLimitHits(slot string)

	// Persistence metrics
	IncrementRecordErrors(recorder string)
}

// Wait window results.
const (
	WaitWindowStarted   = "started"
	WaitWindowCancelled = "cancelled"
	WaitWindowExpired   = "expired"
)

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

// HTTP Request metrics
func (r *PrometheusRegistry) IncrementRequests(endpoint, method, status string) {
	RequestCount.WithLabelValues(endpoint, method, status).Inc()
}

func (r *PrometheusRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	RequestLatency.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

// Ad request metrics
func (r *PrometheusRegistry) IncrementAdRequests(integration string) {
	AdRequestCount.WithLabelValues(integration).Inc()
}

func (r *PrometheusRegistry) IncrementListenerOverride(integration string) {
	ListenerOverrideCount.WithLabelValues(integration).Inc()
}

func (r *PrometheusRegistry) RecordHostRequestLatency(integration, status string, duration time.Duration) {
	HostRequestLatency.WithLabelValues(integration, status).Observe(duration.Seconds())
}

// Arbitration metrics
func (r *PrometheusRegistry) IncrementDecision(integration, outcome string) {
	DecisionCount.WithLabelValues(integration, outcome).Inc()
}

func (r *PrometheusRegistry) RecordDecisionLatency(integration, outcome string, duration time.Duration) {
	DecisionLatency.WithLabelValues(integration, outcome).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementWaitWindow(integration, result string) {
	WaitWindowCount.WithLabelValues(integration, result).Inc()
}

// Rate limiting metrics
func (r *PrometheusRegistry) IncrementRateLimitRequests(slot string) {
	RateLimitRequests.WithLabelValues(slot).Inc()
}

func (r *PrometheusRegistry) IncrementRateLimitHits(slot string) {
	RateLimitHits.WithLabelValues(slot).Inc()
}

// Persistence metrics
func (r *PrometheusRegistry) IncrementRecordErrors(recorder string) {
	RecordErrors.WithLabelValues(recorder).Inc()
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

// HTTP Request metrics
func (r *NoOpRegistry) IncrementRequests(endpoint, method, status string)                    {}
func (r *NoOpRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {}

// Ad request metrics
func (r *NoOpRegistry) IncrementAdRequests(integration string)                                      {}
func (r *NoOpRegistry) IncrementListenerOverride(integration string)                                {}
func (r *NoOpRegistry) RecordHostRequestLatency(integration, status string, duration time.Duration) {}

// Arbitration metrics
func (r *NoOpRegistry) IncrementDecision(integration, outcome string)                            {}
func (r *NoOpRegistry) RecordDecisionLatency(integration, outcome string, duration time.Duration) {}
func (r *NoOpRegistry) IncrementWaitWindow(integration, result string)                           {}

// Rate limiting metrics
func (r *NoOpRegistry) IncrementRateLimitRequests(slot string) {}
func (r *NoOpRegistry) IncrementRateLimitHits(slot string)     {}

// Persistence metrics
func (r *NoOpRegistry) IncrementRecordErrors(recorder string) {}
