package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/analytics"
	"github.com/patrickwarner/openbidbridge/internal/config"
	"github.com/patrickwarner/openbidbridge/internal/db"
	"github.com/patrickwarner/openbidbridge/internal/models"
)

type GetRequestEventsInput struct {
	RequestID string `json:"request_id" jsonschema:"ad request id returned by the bridge"`
}

// Event is one logged outcome. Timestamps are RFC 3339 strings.
type Event struct {
	Timestamp       string  `json:"timestamp"`
	SlotID          string  `json:"slot_id"`
	Integration     string  `json:"integration"`
	Outcome         string  `json:"outcome"`
	Message         string  `json:"message,omitempty"`
	BidID           string  `json:"bid_id,omitempty"`
	BidPrice        float64 `json:"bid_price"`
	PartnerEligible bool    `json:"partner_eligible"`
	LatencyMS       int64   `json:"latency_ms"`
}

type GetRequestEventsOutput struct {
	RequestID string  `json:"request_id"`
	Events    []Event `json:"events"`
}

type GetSlotStatsInput struct {
	SlotID string `json:"slot_id" jsonschema:"slot id as used in /slots/{slot}"`
	Date   string `json:"date,omitempty" jsonschema:"day in YYYY-MM-DD, defaults to today (UTC)"`
}

type GetSlotStatsOutput struct {
	SlotID string           `json:"slot_id"`
	Date   string           `json:"date"`
	Counts map[string]int64 `json:"counts"`
	// WinRate is partner wins over all win decisions, zero when there were none.
	WinRate float64 `json:"partner_win_rate"`
}

type ListSlotsInput struct{}

type ListSlotsOutput struct {
	Slots []models.Slot `json:"slots"`
}

type statsReader interface {
	DecisionCounts(ctx context.Context, slotID string, day time.Time) (map[string]int64, error)
}

type slotLister interface {
	LoadSlots(ctx context.Context) ([]models.Slot, error)
}

// DiagServer answers diagnostics questions about arbitration outcomes.
type DiagServer struct {
	events analytics.AnalyticsService
	stats  statsReader
	slots  slotLister
	logger *zap.Logger
}

// GetRequestEvents implements the get_request_events tool.
func (s *DiagServer) GetRequestEvents(ctx context.Context, req *mcp.CallToolRequest, input GetRequestEventsInput) (*mcp.CallToolResult, GetRequestEventsOutput, error) {
	if input.RequestID == "" {
		return nil, GetRequestEventsOutput{}, fmt.Errorf("request_id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	events, err := s.events.GetEventsByRequestID(ctx, input.RequestID)
	if err != nil {
		return nil, GetRequestEventsOutput{}, fmt.Errorf("query events: %w", err)
	}
	out := GetRequestEventsOutput{RequestID: input.RequestID, Events: make([]Event, 0, len(events))}
	for _, ev := range events {
		e := Event{
			Timestamp:       ev.Timestamp.UTC().Format(time.RFC3339Nano),
			SlotID:          ev.SlotID,
			Integration:     ev.Integration,
			Outcome:         ev.Outcome,
			Message:         ev.Message,
			BidPrice:        ev.BidPrice,
			PartnerEligible: ev.PartnerEligible,
			LatencyMS:       ev.LatencyMS,
		}
		if ev.BidID != nil {
			e.BidID = *ev.BidID
		}
		out.Events = append(out.Events, e)
	}
	s.logger.Info("request events", zap.String("request_id", input.RequestID), zap.Int("events", len(events)))
	return nil, out, nil
}

// GetSlotStats implements the get_slot_stats tool.
func (s *DiagServer) GetSlotStats(ctx context.Context, req *mcp.CallToolRequest, input GetSlotStatsInput) (*mcp.CallToolResult, GetSlotStatsOutput, error) {
	if input.SlotID == "" {
		return nil, GetSlotStatsOutput{}, fmt.Errorf("slot_id is required")
	}
	day := time.Now().UTC()
	if input.Date != "" {
		var err error
		if day, err = time.Parse("2006-01-02", input.Date); err != nil {
			return nil, GetSlotStatsOutput{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
		}
	}

	counts, err := s.stats.DecisionCounts(ctx, input.SlotID, day)
	if err != nil {
		return nil, GetSlotStatsOutput{}, fmt.Errorf("read counters: %w", err)
	}
	out := GetSlotStatsOutput{SlotID: input.SlotID, Date: day.Format("2006-01-02"), Counts: counts}
	if wins := counts["partner_won"] + counts["host_won"]; wins > 0 {
		out.WinRate = float64(counts["partner_won"]) / float64(wins)
	}
	return nil, out, nil
}

// ListSlots implements the list_slots tool.
func (s *DiagServer) ListSlots(ctx context.Context, req *mcp.CallToolRequest, input ListSlotsInput) (*mcp.CallToolResult, ListSlotsOutput, error) {
	if s.slots == nil {
		return nil, ListSlotsOutput{}, fmt.Errorf("slot registry not configured")
	}
	slots, err := s.slots.LoadSlots(ctx)
	if err != nil {
		return nil, ListSlotsOutput{}, err
	}
	if slots == nil {
		slots = []models.Slot{}
	}
	return nil, ListSlotsOutput{Slots: slots}, nil
}

func newMCPServer(diag *DiagServer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "openbid-bridge",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_request_events",
		Description: "List the logged arbitration outcomes for one ad request",
	}, diag.GetRequestEvents)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_slot_stats",
		Description: "Daily decision counters for a slot, with the partner win rate",
	}, diag.GetSlotStats)
	if diag.slots != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        "list_slots",
			Description: "List the active slots in the slot registry",
		}, diag.ListSlots)
	}
	return server
}

func main() {
	// stdout carries the protocol, so logs go to stderr
	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	zcfg.EncoderConfig.TimeKey = "ts"
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger = logger.Named("openbid-bridge-mcp").With(zap.String("service", "openbid-bridge-mcp"))

	cfg := config.Load()

	store, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer store.Close()

	events, err := analytics.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns, cfg.CHMaxIdleConns, cfg.CHConnMaxLifetime, cfg.CHConnMaxIdleTime)
	if err != nil {
		logger.Fatal("Failed to connect to ClickHouse", zap.Error(err))
	}
	defer events.Close()

	diag := &DiagServer{events: events, stats: store, logger: logger}
	if cfg.PostgresDSN != "" {
		pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		defer pg.Close()
		diag.slots = pg
	}

	var logBuffer bytes.Buffer
	transport := &mcp.LoggingTransport{
		Transport: &mcp.StdioTransport{},
		Writer:    &logBuffer,
	}

	logger.Info("MCP Server running via stdio")
	if err := newMCPServer(diag).Run(context.Background(), transport); err != nil {
		logger.Fatal("Server error", zap.Error(err), zap.String("mcp_logs", logBuffer.String()))
	}
}
