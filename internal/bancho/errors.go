package bancho

import "errors"

// Kind classifies a core error the way the transport shell and dispatch
// layer need to translate it (local kind <-> RPC status <-> HTTP code).
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindInvalidPacketPayload
	KindPacketPayloadNotExists
	KindSessionNotExists
	KindSessionCreateFailed
	KindInvalidConnectionInfo
	KindChannelNotExists
	KindChannelPermissionDenied
	KindRpcError
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindInvalidPacketPayload:
		return "InvalidPacketPayload"
	case KindPacketPayloadNotExists:
		return "PacketPayloadNotExists"
	case KindSessionNotExists:
		return "SessionNotExists"
	case KindSessionCreateFailed:
		return "SessionCreateFailed"
	case KindInvalidConnectionInfo:
		return "InvalidConnectionInfo"
	case KindChannelNotExists:
		return "ChannelNotExists"
	case KindChannelPermissionDenied:
		return "ChannelPermissionDenied"
	case KindRpcError:
		return "RpcError"
	default:
		return "Internal"
	}
}

// Error is a kinded core error, wrapping an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Msg + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on kind via errors.Is(err, bancho.KindSessionNotExists.Err()).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// ErrSessionNotExists is a sentinel usable with errors.Is for the common
// "lookup resolved to nothing" case.
var ErrSessionNotExists = &Error{Kind: KindSessionNotExists, Msg: "session not found"}

// ErrChannelNotExists is a sentinel for channel lookups.
var ErrChannelNotExists = &Error{Kind: KindChannelNotExists, Msg: "channel not found"}

// NewInvalidArgument builds an InvalidArgument error with a descriptive message.
func NewInvalidArgument(msg string) error {
	return newErr(KindInvalidArgument, msg, nil)
}

// NewInternal wraps an unexpected error as an Internal kind.
func NewInternal(msg string, cause error) error {
	return newErr(KindInternal, msg, cause)
}

// NewRpcError wraps a transport-level failure.
func NewRpcError(status string, cause error) error {
	return newErr(KindRpcError, status, cause)
}

// NewPacketPayloadNotExists reports a required-but-missing payload.
func NewPacketPayloadNotExists(msg string) error {
	return newErr(KindPacketPayloadNotExists, msg, nil)
}

// NewInvalidPacketPayload wraps a payload that failed to decode.
func NewInvalidPacketPayload(msg string, cause error) error {
	return newErr(KindInvalidPacketPayload, msg, cause)
}
