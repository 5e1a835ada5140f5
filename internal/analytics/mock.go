package analytics

import (
	"context"
	"sync"

	"github.com/patrickwarner/openbidbridge/internal/models"
)

var _ AnalyticsService = (*MockAnalytics)(nil)

// MockAnalytics keeps recorded decisions in memory for tests.
type MockAnalytics struct {
	mu      sync.Mutex
	Records []models.DecisionRecord
	// Err, when set, is returned from every call.
	Err error
}

// NewMockAnalytics creates a new mock analytics instance
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

func (m *MockAnalytics) RecordDecision(_ context.Context, rec models.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Records = append(m.Records, rec)
	return nil
}

func (m *MockAnalytics) GetEventsByRequestID(_ context.Context, requestID string) ([]EventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []EventRecord
	for _, r := range m.Records {
		if r.RequestID != requestID {
			continue
		}
		ev := EventRecord{
			Timestamp:       r.Timestamp,
			RequestID:       r.RequestID,
			SlotID:          r.SlotID,
			AdUnitID:        r.AdUnitID,
			Integration:     string(r.Integration),
			Outcome:         r.Outcome,
			Message:         r.Message,
			BidPrice:        r.BidPrice,
			PartnerEligible: r.PartnerEligible,
			LatencyMS:       r.Latency.Milliseconds(),
		}
		if r.BidID != "" {
			id := r.BidID
			ev.BidID = &id
		}
		out = append(out, ev)
	}
	return out, nil
}

// Len returns how many decisions were recorded.
func (m *MockAnalytics) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}
