package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/openbidbridge/internal/models"
)

// AnalyticsService defines the interface for analytics operations.
// Implementations should handle cases where underlying storage is unavailable
// by returning ErrUnavailable.
type AnalyticsService interface {
	// RecordDecision appends one arbitration outcome to the event log.
	RecordDecision(ctx context.Context, rec models.DecisionRecord) error
	// GetEventsByRequestID returns every outcome logged for an ad request.
	GetEventsByRequestID(ctx context.Context, requestID string) ([]EventRecord, error)
}

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

// EventRecord mirrors a row in the arbitration_events table.
type EventRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	RequestID       string    `json:"request_id"`
	SlotID          string    `json:"slot_id"`
	AdUnitID        string    `json:"ad_unit_id"`
	Integration     string    `json:"integration"`
	Outcome         string    `json:"outcome"`
	Message         string    `json:"message,omitempty"`
	BidID           *string   `json:"bid_id"`
	BidPrice        float64   `json:"bid_price"`
	PartnerEligible bool      `json:"partner_eligible"`
	LatencyMS       int64     `json:"latency_ms"`
}

const createEventsTable = `CREATE TABLE IF NOT EXISTS arbitration_events (
       timestamp        DateTime64(3),
       request_id       String,
       slot_id          String,
       ad_unit_id       String,
       integration      LowCardinality(String),
       outcome          LowCardinality(String),
       message          String,
       bid_id           Nullable(String),
       bid_price        Float64,
       partner_eligible Bool,
       latency_ms       Int64
   ) ENGINE=MergeTree() ORDER BY (slot_id, timestamp)`

// InitClickHouse connects to ClickHouse and ensures the events table exists.
func InitClickHouse(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Analytics, error) {
	db, err := otelsql.Open("clickhouse", dsn,
		otelsql.WithAttributes(attribute.String("db.system", "clickhouse")),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), createEventsTable); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: db}, nil
}

// RecordDecision inserts a single outcome row.
func (a *Analytics) RecordDecision(ctx context.Context, rec models.DecisionRecord) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	var bidID sql.NullString
	if rec.BidID != "" {
		bidID.String = rec.BidID
		bidID.Valid = true
	}
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	stmt := `INSERT INTO arbitration_events (timestamp, request_id, slot_id, ad_unit_id, integration, outcome, message, bid_id, bid_price, partner_eligible, latency_ms) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt, ts, rec.RequestID, rec.SlotID, rec.AdUnitID, string(rec.Integration),
		rec.Outcome, rec.Message, bidID, rec.BidPrice, rec.PartnerEligible, rec.Latency.Milliseconds()); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("outcome", rec.Outcome))
		return fmt.Errorf("insert %s event: %w", rec.Outcome, err)
	}
	return nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}

// GetEventsByRequestID returns all events for a given request ID ordered by timestamp.
func (a *Analytics) GetEventsByRequestID(ctx context.Context, id string) ([]EventRecord, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, request_id, slot_id, ad_unit_id, integration, outcome, message, bid_id, bid_price, partner_eligible, latency_ms FROM arbitration_events WHERE request_id=? ORDER BY timestamp`
	rows, err := a.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []EventRecord
	for rows.Next() {
		var ev EventRecord
		if err := rows.Scan(&ev.Timestamp, &ev.RequestID, &ev.SlotID, &ev.AdUnitID, &ev.Integration, &ev.Outcome,
			&ev.Message, &ev.BidID, &ev.BidPrice, &ev.PartnerEligible, &ev.LatencyMS); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}
