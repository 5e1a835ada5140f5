package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Integration identifies which host ad server flow a slot uses.
type Integration string

const (
	// IntegrationBanner races the host "loaded" callback against the partner's
	// app event win signal.
	IntegrationBanner Integration = "banner"
	// IntegrationInterstitial is the mediation-network flow: the partner bid is
	// forwarded as keywords and a load always means the host won.
	IntegrationInterstitial Integration = "interstitial"
	// IntegrationMediationBanner is a banner served through a mediation
	// network: keywords instead of custom targeting, and no race.
	IntegrationMediationBanner Integration = "mediation_banner"
)

// Valid reports whether i is a known integration.
func (i Integration) Valid() bool {
	switch i {
	case IntegrationBanner, IntegrationInterstitial, IntegrationMediationBanner:
		return true
	}
	return false
}

// AdSize is a creative size in pixels.
type AdSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

func (s AdSize) String() string {
	return strconv.Itoa(s.W) + "x" + strconv.Itoa(s.H)
}

// ParseAdSize parses "WxH".
func ParseAdSize(s string) (AdSize, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), "x")
	if !ok {
		return AdSize{}, fmt.Errorf("invalid ad size %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return AdSize{}, fmt.Errorf("invalid ad size width %q", s)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return AdSize{}, fmt.Errorf("invalid ad size height %q", s)
	}
	return AdSize{W: width, H: height}, nil
}

// ParseAdSizes parses a comma separated list such as "320x50,300x250".
func ParseAdSizes(s string) ([]AdSize, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var sizes []AdSize
	for _, part := range strings.Split(s, ",") {
		size, err := ParseAdSize(part)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}

// FormatAdSizes is the inverse of ParseAdSizes.
func FormatAdSizes(sizes []AdSize) string {
	parts := make([]string, len(sizes))
	for i, s := range sizes {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Slot is an ad slot wired to one event handler. Slots come from the
// Postgres slot registry or the SLOTS environment variable.
type Slot struct {
	// ID is the publisher-facing slot name used in API paths (e.g. "home-banner").
	ID string `json:"id"`
	// AdUnitID is the host ad server's ad unit path the slot requests against.
	AdUnitID    string      `json:"ad_unit_id"`
	Integration Integration `json:"integration"`
	Sizes       []AdSize    `json:"sizes,omitempty"`
	// WinKey overrides the app event name that signals a partner win.
	WinKey string `json:"win_key,omitempty"`
	// WaitWindow overrides the partner win wait window; zero uses the default.
	WaitWindow time.Duration `json:"wait_window,omitempty"`
}

// ParseSlots parses the SLOTS format: entries separated by ";", each
// "id=ad_unit_id[|integration[|sizes]]", for example
// "home=/6499/home|banner|320x50,300x250;launch=/6499/launch|interstitial".
func ParseSlots(s string) ([]Slot, error) {
	var slots []Slot
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, rest, ok := strings.Cut(entry, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid slot entry %q", entry)
		}
		fields := strings.Split(rest, "|")
		slot := Slot{ID: strings.TrimSpace(id), AdUnitID: strings.TrimSpace(fields[0]), Integration: IntegrationBanner}
		if slot.AdUnitID == "" {
			return nil, fmt.Errorf("slot %q has no ad unit", slot.ID)
		}
		if len(fields) > 1 && fields[1] != "" {
			slot.Integration = Integration(strings.TrimSpace(fields[1]))
			if !slot.Integration.Valid() {
				return nil, fmt.Errorf("slot %q has unknown integration %q", slot.ID, fields[1])
			}
		}
		if len(fields) > 2 {
			sizes, err := ParseAdSizes(fields[2])
			if err != nil {
				return nil, fmt.Errorf("slot %q: %w", slot.ID, err)
			}
			slot.Sizes = sizes
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
