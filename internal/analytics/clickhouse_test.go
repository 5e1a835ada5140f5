package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/openbidbridge/internal/models"
)

func newMockAnalytics(t *testing.T) (*Analytics, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &Analytics{DB: conn}, mock
}

func TestRecordDecision(t *testing.T) {
	a, mock := newMockAnalytics(t)
	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO arbitration_events").
		WithArgs(ts, "req-1", "home", "/6499/home", "banner", "partner_won", "", "bid-1", 2.5, true, int64(120)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := a.RecordDecision(context.Background(), models.DecisionRecord{
		RequestID:       "req-1",
		SlotID:          "home",
		AdUnitID:        "/6499/home",
		Integration:     models.IntegrationBanner,
		Outcome:         "partner_won",
		BidID:           "bid-1",
		BidPrice:        2.5,
		PartnerEligible: true,
		Latency:         120 * time.Millisecond,
		Timestamp:       ts,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDecisionNullBid(t *testing.T) {
	a, mock := newMockAnalytics(t)
	mock.ExpectExec("INSERT INTO arbitration_events").
		WithArgs(sqlmock.AnyArg(), "req-2", "launch", "unit", "interstitial", "no_fill", "NETWORK_NO_FILL", nil, 0.0, false, int64(0)).
		WillReturnError(errors.New("boom"))

	err := a.RecordDecision(context.Background(), models.DecisionRecord{
		RequestID:   "req-2",
		SlotID:      "launch",
		AdUnitID:    "unit",
		Integration: models.IntegrationInterstitial,
		Outcome:     "no_fill",
		Message:     "NETWORK_NO_FILL",
	})
	assert.ErrorContains(t, err, "insert no_fill event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEventsByRequestID(t *testing.T) {
	a, mock := newMockAnalytics(t)
	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	cols := []string{"timestamp", "request_id", "slot_id", "ad_unit_id", "integration", "outcome", "message", "bid_id", "bid_price", "partner_eligible", "latency_ms"}
	mock.ExpectQuery("SELECT timestamp, request_id").WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(ts, "req-1", "home", "/6499/home", "banner", "host_won", "", nil, 1.2, true, int64(400)))

	events, err := a.GetEventsByRequestID(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "host_won", events[0].Outcome)
	assert.Nil(t, events[0].BidID)
	assert.Equal(t, int64(400), events[0].LatencyMS)
	assert.True(t, events[0].PartnerEligible)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnavailable(t *testing.T) {
	var a *Analytics
	assert.ErrorIs(t, a.RecordDecision(context.Background(), models.DecisionRecord{}), ErrUnavailable)
	_, err := a.GetEventsByRequestID(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
	a.Close()
}

func TestMockAnalytics(t *testing.T) {
	m := NewMockAnalytics()
	require.NoError(t, m.RecordDecision(context.Background(), models.DecisionRecord{RequestID: "a", Outcome: "host_won", BidID: "b"}))
	require.NoError(t, m.RecordDecision(context.Background(), models.DecisionRecord{RequestID: "z", Outcome: "no_fill"}))

	events, err := m.GetEventsByRequestID(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].BidID)
	assert.Equal(t, "b", *events[0].BidID)
	assert.Equal(t, 2, m.Len())
}
