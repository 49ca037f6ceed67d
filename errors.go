package livesession

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rs/zerolog"
)

// Sentinel errors for session and connection state.
var (
	ErrSessionClosed    = errors.New("session is closed")
	ErrAlreadyOpen      = errors.New("connection has already been opened")
	ErrHandshakeTimeout = errors.New("no CONNECTED frame before handshake timeout")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrInvalidHeader    = errors.New("invalid frame header")
)

// ConnectionError represents a failure to open or keep the socket to the broker.
type ConnectionError struct {
	URL    string
	Reason string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error [%s]: %s", e.URL, e.Reason)
}

// DecodeError is returned by Decode for input that is not a well-formed frame.
type DecodeError struct {
	Reason string
	Raw    []byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformedFrame, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformedFrame
}

// ErrorKind classifies errors that the client contains instead of returning.
type ErrorKind int

const (
	ErrDecodeFailure  ErrorKind = iota // inbound frame couldn't be decoded
	ErrPayloadInvalid                  // MESSAGE body is not valid JSON
	ErrProtocol                        // frame is well formed but violates the protocol
	ErrServerError                     // broker sent an ERROR frame
	ErrTransport                       // socket failed or closed
	ErrTransportWrite                  // failed to write to connection
	ErrCallbackPanic                   // subscriber callback panicked
	ErrFrameRejected                   // outbound frame failed validation and was not written
)

var errorKindNames = [...]string{
	ErrDecodeFailure:  "ErrDecodeFailure",
	ErrPayloadInvalid: "ErrPayloadInvalid",
	ErrProtocol:       "ErrProtocol",
	ErrServerError:    "ErrServerError",
	ErrTransport:      "ErrTransport",
	ErrTransportWrite: "ErrTransportWrite",
	ErrCallbackPanic:  "ErrCallbackPanic",
	ErrFrameRejected:  "ErrFrameRejected",
}

func (k ErrorKind) String() string {
	if int(k) >= 0 && int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// SDKError is an error the client could not deliver to a direct caller.
// These errors are routed to the ErrorHandler provided at session creation.
type SDKError struct {
	Kind         ErrorKind
	ConnectionID string  // instance id of the connection that hit the error
	Command      Command // frame command, if known
	Destination  string  // destination header, if known
	Cause        error
	Raw          []byte // raw frame or body
	Timestamp    time.Time
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v (cmd=%s dest=%s)", e.Kind, e.Cause, e.Command, e.Destination)
	}
	return fmt.Sprintf("%s (cmd=%s dest=%s)", e.Kind, e.Command, e.Destination)
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ErrorHandler is called for every error that cannot be returned to a
// direct caller. It MUST be provided when creating a session, and may be
// called from the connection's reader goroutine.
type ErrorHandler func(SDKError)

// LogErrors returns an ErrorHandler that logs all errors to the given logger.
func LogErrors(logger *log.Logger) ErrorHandler {
	return func(e SDKError) {
		if e.Cause != nil {
			logger.Printf("[livesession] %s: %v (cmd=%s dest=%s)", e.Kind, e.Cause, e.Command, e.Destination)
		} else {
			logger.Printf("[livesession] %s (cmd=%s dest=%s)", e.Kind, e.Command, e.Destination)
		}
	}
}

// ZerologErrors returns an ErrorHandler that writes one structured event per
// error. Transport failures log at warn level, everything else at error.
func ZerologErrors(logger zerolog.Logger) ErrorHandler {
	return func(e SDKError) {
		ev := logger.Error()
		if e.Kind == ErrTransport {
			ev = logger.Warn()
		}
		ev = ev.Str("kind", e.Kind.String()).Str("conn", e.ConnectionID).Time("at", e.Timestamp)
		if e.Command != "" {
			ev = ev.Str("command", string(e.Command))
		}
		if e.Destination != "" {
			ev = ev.Str("destination", e.Destination)
		}
		if e.Cause != nil {
			ev = ev.Err(e.Cause)
		}
		ev.Msg("livesession")
	}
}
