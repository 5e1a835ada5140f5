package models

import "time"

// DecisionRecord describes one outcome delivered to the bidding SDK. It is
// written to the Redis counters and the ClickHouse event log.
type DecisionRecord struct {
	RequestID       string        `json:"request_id"`
	SlotID          string        `json:"slot_id"`
	AdUnitID        string        `json:"ad_unit_id"`
	Integration     Integration   `json:"integration"`
	Outcome         string        `json:"outcome"` // outcome.Kind string form
	Message         string        `json:"message,omitempty"`
	BidID           string        `json:"bid_id,omitempty"`
	BidPrice        float64       `json:"bid_price"`
	PartnerEligible bool          `json:"partner_eligible"`
	Latency         time.Duration `json:"latency"`
	Timestamp       time.Time     `json:"timestamp"`
}
