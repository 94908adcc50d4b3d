// ABOUTME: Error taxonomy shared across the client
// ABOUTME: Network, Protocol, Timeout, UnsupportedCodec, SinkError, Internal
package errs

import "errors"

// Kind is the broad category of a client error, used by the controller
// to decide how to recover.
type Kind int

const (
	// KindNetwork covers connect/read/write failures and remote close.
	KindNetwork Kind = iota
	// KindProtocol covers malformed frames and unknown required fields.
	KindProtocol
	// KindTimeout covers per-request and cumulative request timeouts.
	KindTimeout
	// KindUnsupportedCodec covers an unrecognized codec name.
	KindUnsupportedCodec
	// KindSink covers audio device/backend failures.
	KindSink
	// KindInternal covers invariant violations.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "Network"
	case KindProtocol:
		return "Protocol"
	case KindTimeout:
		return "Timeout"
	case KindUnsupportedCodec:
		return "UnsupportedCodec"
	case KindSink:
		return "SinkError"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch
// recovery behavior with errors.As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + ": " + e.Op
	}
	return e.Kind.String() + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target shares this error's Kind, so plain
// `errors.Is(err, errs.Network)`-style sentinel checks work alongside
// the richer *Error wrapping.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

// New builds an *Error of the given kind.
func New(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Sentinel values for errors.Is(err, errs.Network) style checks against
// a bare kind with no operation detail attached.
var (
	Network          = &Error{Kind: KindNetwork}
	Protocol         = &Error{Kind: KindProtocol}
	Timeout          = &Error{Kind: KindTimeout}
	UnsupportedCodec = &Error{Kind: KindUnsupportedCodec}
	Sink             = &Error{Kind: KindSink}
	Internal         = &Error{Kind: KindInternal}
)
