package outcome

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostKind(t *testing.T) {
	tests := []struct {
		code     HostCode
		expected Kind
	}{
		{HostInternalError, InternalError},
		{HostInvalidRequest, InvalidRequest},
		{HostNetworkError, NetworkError},
		{HostNoFill, NoFill},
		{HostCode(42), InternalError},
		{HostCode(-1), InternalError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, HostKind(tt.code), "code %d", tt.code)
	}
}

func TestNormalizeHostMessages(t *testing.T) {
	assert.Equal(t, "host ad server gives no fill error", NormalizeHost(HostNoFill).Message)
	assert.Equal(t, "host ad server gives invalid request error", NormalizeHost(HostInvalidRequest).Message)

	err := NormalizeHost(HostCode(9))
	assert.Equal(t, InternalError, err.Kind)
	assert.Equal(t, "host ad server failed with error code: 9", err.Message)
}

func TestNetworkKind(t *testing.T) {
	tests := []struct {
		code     NetworkCode
		expected Kind
	}{
		{NetworkNoFill, NoFill},
		{NetworkNetworkNoFill, NoFill},
		{NetworkNoConnection, NetworkError},
		{NetworkTimeout, NetworkError},
		{NetworkServerError, ServerError},
		{NetworkCancelled, RequestCancelled},
		{NetworkInvalidState, InternalError},
		{NetworkCode("SOMETHING_NEW"), InternalError},
		{NetworkCode(""), InternalError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, NetworkKind(tt.code), "code %q", tt.code)
	}
}

func TestNetworkBannerKind(t *testing.T) {
	assert.Equal(t, InvalidRequest, NetworkBannerKind(NetworkInvalidState))
	assert.Equal(t, NoFill, NetworkBannerKind(NetworkNoFill))
	assert.Equal(t, NetworkError, NetworkBannerKind(NetworkNoConnection))
	assert.Equal(t, InternalError, NetworkBannerKind(NetworkUnspecified))

	err := NormalizeNetworkBanner(NetworkInvalidState)
	assert.Equal(t, InvalidRequest, err.Kind)
	assert.Equal(t, "NETWORK_INVALID_STATE", err.Message)
	assert.Equal(t, "UNSPECIFIED", NormalizeNetworkBanner("").Message)
}

func TestNormalizeNetworkUsesCodeAsMessage(t *testing.T) {
	err := NormalizeNetwork(NetworkTimeout)
	assert.Equal(t, NetworkError, err.Kind)
	assert.Equal(t, "NETWORK_TIMEOUT", err.Message)
	assert.Equal(t, "UNSPECIFIED", NormalizeNetwork("").Message)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Unknown, KindOf(nil))
	assert.Equal(t, NoFill, KindOf(fmt.Errorf("load: %w", New(NoFill, "empty"))))
	assert.Equal(t, RequestCancelled, KindOf(fmt.Errorf("fetch: %w", context.Canceled)))
	assert.Equal(t, NetworkError, KindOf(context.DeadlineExceeded))
	assert.Equal(t, InternalError, KindOf(errors.New("boom")))
}

func TestFromError(t *testing.T) {
	orig := New(ServerError, "503")
	assert.Same(t, orig, FromError(fmt.Errorf("wrapped: %w", orig)))

	conv := FromError(errors.New("boom"))
	assert.Equal(t, InternalError, conv.Kind)
	assert.Equal(t, "boom", conv.Message)
}

func TestKindClassification(t *testing.T) {
	for _, k := range Kinds() {
		parsed, ok := ParseKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, parsed)
	}
	assert.True(t, PartnerWon.IsWin())
	assert.False(t, SignalingMismatch.IsWin())
	assert.False(t, SignalingMismatch.IsFailure())
	assert.True(t, NoFill.IsFailure())
	assert.Equal(t, "unknown", Kind(99).String())
	assert.Equal(t, "signaling_mismatch: late", New(SignalingMismatch, "late").Error())
}
