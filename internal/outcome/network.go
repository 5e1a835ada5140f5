package outcome

// NetworkCode is a load error code reported by a mediation network SDK.
type NetworkCode string

const (
	NetworkNoFill        NetworkCode = "NO_FILL"
	NetworkNetworkNoFill NetworkCode = "NETWORK_NO_FILL"
	NetworkNoConnection  NetworkCode = "NO_CONNECTION"
	NetworkTimeout       NetworkCode = "NETWORK_TIMEOUT"
	NetworkServerError   NetworkCode = "SERVER_ERROR"
	NetworkCancelled     NetworkCode = "CANCELLED"
	NetworkInvalidState  NetworkCode = "NETWORK_INVALID_STATE"
	NetworkInternalError NetworkCode = "INTERNAL_ERROR"
	NetworkUnspecified   NetworkCode = "UNSPECIFIED"
)

// NetworkKind maps a mediation network error code to a canonical kind.
func NetworkKind(code NetworkCode) Kind {
	switch code {
	case NetworkNoFill, NetworkNetworkNoFill:
		return NoFill
	case NetworkNoConnection, NetworkTimeout:
		return NetworkError
	case NetworkServerError:
		return ServerError
	case NetworkCancelled:
		return RequestCancelled
	default:
		return InternalError
	}
}

// NetworkBannerKind is NetworkKind for mediation banners, where an invalid
// network state is reported as an invalid request.
func NetworkBannerKind(code NetworkCode) Kind {
	if code == NetworkInvalidState {
		return InvalidRequest
	}
	return NetworkKind(code)
}

// NormalizeNetworkBanner builds the failure reported for a mediation banner
// error code.
func NormalizeNetworkBanner(code NetworkCode) *Error {
	return New(NetworkBannerKind(code), networkMessage(code))
}

func networkMessage(code NetworkCode) string {
	if code == "" {
		return string(NetworkUnspecified)
	}
	return string(code)
}

// NormalizeNetwork builds the failure reported for a mediation network error code.
// The message is the code itself.
func NormalizeNetwork(code NetworkCode) *Error {
	return New(NetworkKind(code), networkMessage(code))
}
