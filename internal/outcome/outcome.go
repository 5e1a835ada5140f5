// Package outcome defines the canonical outcomes reported to the bidding SDK
// and the tables that map each ad server's error vocabulary onto them.
package outcome

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a canonical outcome of an ad request.
type Kind int

const (
	Unknown Kind = iota
	PartnerWon
	HostWon
	// SignalingMismatch is a diagnostic: the partner win signal arrived after
	// the request had already been committed to the host.
	SignalingMismatch
	InvalidRequest
	NetworkError
	NoFill
	ServerError
	RequestCancelled
	InternalError
)

var kindNames = map[Kind]string{
	PartnerWon:        "partner_won",
	HostWon:           "host_won",
	SignalingMismatch: "signaling_mismatch",
	InvalidRequest:    "invalid_request",
	NetworkError:      "network_error",
	NoFill:            "no_fill",
	ServerError:       "server_error",
	RequestCancelled:  "request_cancelled",
	InternalError:     "internal_error",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// IsWin reports whether k is one of the two win decisions.
func (k Kind) IsWin() bool {
	return k == PartnerWon || k == HostWon
}

// IsFailure reports whether k terminates a request without a winner.
func (k Kind) IsFailure() bool {
	return k >= InvalidRequest && k <= InternalError
}

// ParseKind returns the Kind whose String form is s.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return Unknown, false
}

// Kinds lists every defined outcome in declaration order.
func Kinds() []Kind {
	return []Kind{PartnerWon, HostWon, SignalingMismatch, InvalidRequest, NetworkError, NoFill, ServerError, RequestCancelled, InternalError}
}

// Error is a failure or diagnostic delivered to the listener's OnFailed.
type Error struct {
	Kind    Kind
	Message string
}

// New returns an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf returns an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// KindOf extracts the canonical kind from err. Context errors map to
// RequestCancelled and NetworkError; anything else unrecognized is InternalError.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	switch {
	case errors.Is(err, context.Canceled):
		return RequestCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return NetworkError
	}
	return InternalError
}

// FromError converts err into an *Error, keeping its message.
func FromError(err error) *Error {
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return New(KindOf(err), err.Error())
}
