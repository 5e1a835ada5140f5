package observability

import (
	"strings"
	"sync"
	"time"
)

// MockMetricsRegistry counts calls so tests can assert on emitted metrics.
// Keys are the method name followed by its label values joined with "/",
// e.g. "IncrementDecision/banner/host_won".
type MockMetricsRegistry struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMockMetricsRegistry creates an empty MockMetricsRegistry.
func NewMockMetricsRegistry() *MockMetricsRegistry {
	return &MockMetricsRegistry{counts: make(map[string]int)}
}

func (m *MockMetricsRegistry) inc(name string, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[key(name, labels)]++
}

// Count returns how many times name was called with the given labels.
func (m *MockMetricsRegistry) Count(name string, labels ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key(name, labels)]
}

func key(name string, labels []string) string {
	if len(labels) == 0 {
		return name
	}
	return name + "/" + strings.Join(labels, "/")
}

// HTTP Request metrics
func (m *MockMetricsRegistry) IncrementRequests(endpoint, method, status string) {
	m.inc("IncrementRequests", endpoint, method, status)
}

func (m *MockMetricsRegistry) RecordRequestLatency(endpoint, method string, duration time.Duration) {
	m.inc("RecordRequestLatency", endpoint, method)
}

// Ad request metrics
func (m *MockMetricsRegistry) IncrementAdRequests(integration string) {
	m.inc("IncrementAdRequests", integration)
}

func (m *MockMetricsRegistry) IncrementListenerOverride(integration string) {
	m.inc("IncrementListenerOverride", integration)
}

func (m *MockMetricsRegistry) RecordHostRequestLatency(integration, status string, duration time.Duration) {
	m.inc("RecordHostRequestLatency", integration, status)
}

// Arbitration metrics
func (m *MockMetricsRegistry) IncrementDecision(integration, outcome string) {
	m.inc("IncrementDecision", integration, outcome)
}

func (m *MockMetricsRegistry) RecordDecisionLatency(integration, outcome string, duration time.Duration) {
	m.inc("RecordDecisionLatency", integration, outcome)
}

func (m *MockMetricsRegistry) IncrementWaitWindow(integration, result string) {
	m.inc("IncrementWaitWindow", integration, result)
}

// Rate limiting metrics
func (m *MockMetricsRegistry) IncrementRateLimitRequests(slot string) {
	m.inc("IncrementRateLimitRequests", slot)
}

func (m *MockMetricsRegistry) IncrementRateLimitHits(slot string) {
	m.inc("IncrementRateLimitHits", slot)
}

// Persistence metrics
func (m *MockMetricsRegistry) IncrementRecordErrors(recorder string) {
	m.inc("IncrementRecordErrors", recorder)
}
