package models

import (
	"github.com/patrickwarner/openbidbridge/internal/targeting"
	"go.uber.org/zap/zapcore"
)

// Bid is the partner's bid for one ad request, handed to an event handler by
// the bidding SDK. Only the price and targeting influence arbitration; the
// remaining fields are carried through to the host request and logs.
type Bid struct {
	ID      string  `json:"id"`
	ImpID   string  `json:"impid,omitempty"`
	Partner string  `json:"partner,omitempty"` // Name of the bidder that produced the bid.
	Price   float64 `json:"price"`             // Net price; a positive price makes the partner a contender.
	// Status is BidStatusWon when the bid won the partner's own auction.
	// Other values mean the partner's line item will not be picked up.
	Status  int     `json:"status,omitempty"`
	Width   int     `json:"w,omitempty"`
	Height  int     `json:"h,omitempty"`
	DealID  string  `json:"deal_id,omitempty"`
	// RefreshInterval is the partner's requested refresh in seconds, zero when unset.
	RefreshInterval int `json:"refresh_interval,omitempty"`
	// Targeting holds the key/values the host ad server line items are keyed on.
	// Order matters for keyword-string integrations.
	Targeting *targeting.Map `json:"targeting,omitempty"`
}

// BidStatusWon marks a bid that won the partner auction.
const BidStatusWon = 1

// HasWon reports whether the bid won the partner auction.
func (b *Bid) HasWon() bool {
	return b != nil && b.Status == BidStatusWon
}

// IsPartnerEligible reports whether the partner can win the request: it
// placed a bid with a strictly positive price.
func (b *Bid) IsPartnerEligible() bool {
	return b != nil && b.Price > 0
}

// MarshalLogObject lets a bid be logged with zap.Object.
func (b *Bid) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", b.ID)
	enc.AddString("partner", b.Partner)
	enc.AddFloat64("price", b.Price)
	enc.AddInt("status", b.Status)
	if b.Width > 0 && b.Height > 0 {
		enc.AddString("size", AdSize{W: b.Width, H: b.Height}.String())
	}
	if b.DealID != "" {
		enc.AddString("deal_id", b.DealID)
	}
	if b.RefreshInterval > 0 {
		enc.AddInt("refresh_interval", b.RefreshInterval)
	}
	enc.AddInt("targeting_keys", b.Targeting.Len())
	return nil
}
