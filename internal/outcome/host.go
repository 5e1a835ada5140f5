package outcome

// HostCode is a load error code reported by the host ad server.
type HostCode int

const (
	HostInternalError  HostCode = 0
	HostInvalidRequest HostCode = 1
	HostNetworkError   HostCode = 2
	HostNoFill         HostCode = 3
)

// HostKind maps a host ad server error code to a canonical kind.
func HostKind(code HostCode) Kind {
	switch code {
	case HostInvalidRequest:
		return InvalidRequest
	case HostNetworkError:
		return NetworkError
	case HostNoFill:
		return NoFill
	default:
		return InternalError
	}
}

// NormalizeHost builds the failure reported for a host ad server error code.
func NormalizeHost(code HostCode) *Error {
	switch kind := HostKind(code); kind {
	case InvalidRequest:
		return New(kind, "host ad server gives invalid request error")
	case NetworkError:
		return New(kind, "host ad server gives network error")
	case NoFill:
		return New(kind, "host ad server gives no fill error")
	default:
		return Newf(kind, "host ad server failed with error code: %d", int(code))
	}
}
