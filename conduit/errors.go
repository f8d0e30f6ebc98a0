package conduit

import "errors"

// Public protocol errors. These are the only errors a caller should need to
// compare against with errors.Is; anything else returned by this package
// wraps one of these, or reports a problem with the underlying channel.
var (
	// ErrOutOfOrder is returned when an operation is invoked while the
	// engine's ingress or egress state does not permit it (e.g. calling
	// ReadSomeBody before ReadRequest has produced a message, or calling
	// Write before WriteMetadata).
	ErrOutOfOrder = errors.New("conduit: operation out of order for current state")

	// ErrParsingError is returned when the push parser rejects the byte
	// stream. The connection must be closed; the engine does not attempt
	// to resynchronize mid-message.
	ErrParsingError = errors.New("conduit: malformed HTTP message")

	// ErrBufferExhausted is returned when the ingress buffer fills up
	// without the current parse target being satisfied. Fatal: the
	// buffer is fixed-size and never grows.
	ErrBufferExhausted = errors.New("conduit: ingress buffer exhausted before target reached")

	// ErrNativeStreamUnsupported is returned by WriteMetadata when the
	// peer's declared protocol version cannot carry a chunked/streamed
	// response (HTTP/1.0 and earlier).
	ErrNativeStreamUnsupported = errors.New("conduit: streamed response unsupported on this protocol version")

	// ErrInvalidBuffer is returned synchronously by New when given a
	// zero-length buffer. Construction cannot succeed without backing
	// storage for the ingress state machine.
	ErrInvalidBuffer = errors.New("conduit: buffer must be non-empty")
)

// internal sentinels used to distinguish parser callback outcomes from one
// another without allocating; never returned to a caller directly.
var (
	errAbortUpgrade     = errors.New("conduit: parser stepped aside for Upgrade")
	errVersionRejected  = errors.New("conduit: HTTP major version not supported")
)
