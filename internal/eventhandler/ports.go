// Package eventhandler connects the bidding SDK to a host ad server. A
// handler issues each ad request, feeds the host's callbacks into an
// arbiter.Arbiter and reports the result to the SDK's Listener.
package eventhandler

import (
	"context"

	"github.com/patrickwarner/openbidbridge/internal/arbiter"
	"github.com/patrickwarner/openbidbridge/internal/models"
	"github.com/patrickwarner/openbidbridge/internal/outcome"
	"github.com/patrickwarner/openbidbridge/internal/targeting"
)

// Listener is the bidding SDK's event listener. For every ad request exactly
// one of OnPartnerWon, OnHostWon or OnFailed is called. A SignalingMismatch
// may follow OnHostWon through OnFailed as a diagnostic.
type Listener interface {
	OnPartnerWon()
	OnHostWon(ad HostAd)
	OnOpened()
	OnClosed()
	OnLeftApplication()
	OnFailed(err *outcome.Error)
}

// RequestListener is implemented by listeners that need to know which ad
// request an outcome belongs to. The handler calls ForRequest for every
// outcome and delivers to the returned Listener instead.
type RequestListener interface {
	Listener
	ForRequest(id arbiter.RequestID) Listener
}

// DecisionRecorder persists delivered outcomes. Recording happens off the
// delivery path; errors are logged and counted.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, rec models.DecisionRecord) error
}

// HostAd is the host ad server object that rendered the host's creative.
type HostAd interface {
	AdUnitID() string
	// Size is the served creative size, false until an ad has loaded.
	Size() (models.AdSize, bool)
}

// AdRequest is what a banner handler asks the host ad server for.
type AdRequest struct {
	ID              arbiter.RequestID
	AdUnitID        string
	Sizes           []models.AdSize
	CustomTargeting *targeting.Map
}

// HostEvents are the host ad server's banner callbacks. Load outcomes and app
// events carry the request they belong to.
type HostEvents interface {
	OnAdLoaded(id arbiter.RequestID)
	OnAdFailedToLoad(id arbiter.RequestID, code outcome.HostCode)
	OnAppEvent(id arbiter.RequestID, name, data string)
	OnAdOpened()
	OnAdClosed()
	OnAdLeftApplication()
}

// BannerAdView is the host ad server's banner view.
type BannerAdView interface {
	HostAd
	EventReceiver() HostEvents
	SetEventReceiver(r HostEvents)
	// LoadAd starts loading and returns; the result arrives through HostEvents.
	LoadAd(ctx context.Context, req *AdRequest) error
	Destroy()
}

// InterstitialEvents are a mediation network's interstitial callbacks.
type InterstitialEvents interface {
	OnInterstitialLoaded(id arbiter.RequestID)
	OnInterstitialFailed(id arbiter.RequestID, code outcome.NetworkCode)
	OnInterstitialShown()
	OnInterstitialClicked()
	OnInterstitialDismissed()
}

// InterstitialAd is a mediation network's interstitial. A fresh one is
// created for every request.
type InterstitialAd interface {
	HostAd
	EventReceiver() InterstitialEvents
	SetEventReceiver(r InterstitialEvents)
	Keywords() string
	SetKeywords(keywords string)
	LocalExtras() map[string]any
	SetLocalExtras(extras map[string]any)
	// Load starts loading and returns; the result arrives through InterstitialEvents.
	Load(ctx context.Context, id arbiter.RequestID) error
	IsReady() bool
	Show() error
	Destroy()
}

// InterstitialFactory creates the interstitial for an ad unit.
type InterstitialFactory func(adUnitID string) InterstitialAd

// MediationBannerEvents are a mediation network's banner callbacks.
type MediationBannerEvents interface {
	OnBannerLoaded(id arbiter.RequestID)
	OnBannerFailed(id arbiter.RequestID, code outcome.NetworkCode)
	OnBannerClicked()
	OnBannerExpanded()
	OnBannerCollapsed()
}

// MediationBannerView is a mediation network's banner view. Unlike an
// interstitial it lives as long as the handler and is reused per request.
type MediationBannerView interface {
	HostAd
	EventReceiver() MediationBannerEvents
	SetEventReceiver(r MediationBannerEvents)
	Keywords() string
	SetKeywords(keywords string)
	LocalExtras() map[string]any
	SetLocalExtras(extras map[string]any)
	// Load starts loading and returns; the result arrives through MediationBannerEvents.
	Load(ctx context.Context, id arbiter.RequestID) error
	Destroy()
}
