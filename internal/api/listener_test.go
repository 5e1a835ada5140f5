package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidbridge/internal/outcome"
)

func TestSlotListenerHoldsOutcomesUntilBound(t *testing.T) {
	l := &slotListener{logger: zap.NewNop()}
	ch := l.expect()

	// Both arrive before the request id is known.
	l.ForRequest("req-1").OnPartnerWon()
	l.ForRequest("req-2").OnHostWon(sizedAd{})
	assert.Empty(t, ch)

	l.bind(ch, "req-2")
	require.Len(t, ch, 1)
	d := <-ch
	assert.Equal(t, outcome.HostWon, d.kind)
	assert.Equal(t, "300x250", d.size)
}

func TestSlotListenerIgnoresOtherRequestsOnceBound(t *testing.T) {
	l := &slotListener{logger: zap.NewNop()}
	ch := l.expect()
	l.bind(ch, "req-2")

	l.ForRequest("req-1").OnFailed(outcome.New(outcome.NoFill, "late"))
	l.OnPartnerWon()
	assert.Empty(t, ch)

	l.ForRequest("req-2").OnPartnerWon()
	require.Len(t, ch, 1)
	assert.Equal(t, outcome.PartnerWon, (<-ch).kind)

	// The waiter is spent; a later outcome for the same request is dropped.
	l.ForRequest("req-2").OnFailed(outcome.New(outcome.SignalingMismatch, "late win"))
	assert.Empty(t, ch)
}

func TestSlotListenerAbandon(t *testing.T) {
	l := &slotListener{logger: zap.NewNop()}
	ch := l.expect()
	l.bind(ch, "req-1")
	l.abandon(ch)

	l.ForRequest("req-1").OnPartnerWon()
	assert.Empty(t, ch)
}
