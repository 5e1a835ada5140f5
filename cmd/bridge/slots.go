package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/api"
	"github.com/patrickwarner/openbidbridge/internal/config"
	"github.com/patrickwarner/openbidbridge/internal/db"
	"github.com/patrickwarner/openbidbridge/internal/eventhandler"
	"github.com/patrickwarner/openbidbridge/internal/hostclient"
	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/observability"
)

// newSlotHandler builds the event handler for one slot on top of the host
// ad server client.
func newSlotHandler(slot models.Slot, client *hostclient.Client, cfg config.Config, base eventhandler.Config) (api.AdSlot, error) {
	hc := base
	hc.Slot = slot
	if slot.WinKey == "" {
		hc.WinKey = cfg.PartnerWinKey
	}
	if slot.WaitWindow <= 0 {
		hc.WaitWindow = cfg.WinWaitWindow
	}

	switch slot.Integration {
	case models.IntegrationBanner:
		return eventhandler.NewBannerEventHandler(client.NewBannerView(slot.AdUnitID), hc), nil
	case models.IntegrationInterstitial:
		return eventhandler.NewInterstitialEventHandler(client.InterstitialFactory(), hc), nil
	case models.IntegrationMediationBanner:
		return eventhandler.NewMediationBannerEventHandler(client.NewMediationBanner(slot.AdUnitID, slot.Sizes), hc), nil
	default:
		return nil, fmt.Errorf("slot %s: unknown integration %q", slot.ID, slot.Integration)
	}
}

// registerSlots creates a handler per catalog slot and mounts it on srv.
func registerSlots(srv *api.Server, catalog *db.DB, client *hostclient.Client, cfg config.Config, base eventhandler.Config, logger *zap.Logger) error {
	logger = observability.OrNop(logger)
	for _, id := range catalog.SlotIDs() {
		slot, _ := catalog.Slot(id)
		h, err := newSlotHandler(slot, client, cfg, base)
		if err != nil {
			return err
		}
		if err := srv.RegisterSlot(slot, h); err != nil {
			h.Destroy()
			return err
		}
		logger.Info("slot registered",
			zap.String("slot", slot.ID),
			zap.String("ad_unit_id", slot.AdUnitID),
			zap.String("integration", string(slot.Integration)),
			zap.String("sizes", models.FormatAdSizes(slot.Sizes)))
	}
	return nil
}
