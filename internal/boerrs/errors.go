// Package boerrs defines the stable error taxonomy shared by every layer of
// the Bolt client transport. Every error carries a taxonomy Kind so callers
// can classify failures with IsKind instead of string matching; handshake,
// chunk, network and server-failure errors have their own types for
// errors.As, and every other kind uses the generic BoltError. All of them
// compose with the standard errors.Is/As chain.
package boerrs

import (
	"context"
	stdErrors "errors"
	"fmt"
)

// Kind identifies a taxonomy entry independent of the concrete Go type that
// carries it, so the connection state machine can switch on it directly.
type Kind string

const (
	KindInvalidArgument           Kind = "InvalidArgument"
	KindSerializationError        Kind = "SerializationError"
	KindDeserializationError      Kind = "DeserializationError"
	KindInvalidMessageFormat      Kind = "InvalidMessageFormat"
	KindUnsupportedProtocolVer    Kind = "UnsupportedProtocolVersion"
	KindHandshakeNoCommonVersion  Kind = "HandshakeNoCommonVersion"
	KindHandshakeMagicMismatch    Kind = "HandshakeMagicMismatch"
	KindHandshakeFailed           Kind = "HandshakeFailed"
	KindNetworkError              Kind = "NetworkError"
	KindChunkTooLarge             Kind = "ChunkTooLarge"
	KindChunkEncodingError        Kind = "ChunkEncodingError"
	KindChunkDecodingError        Kind = "ChunkDecodingError"
	KindOutOfMemory               Kind = "OutOfMemory"
	KindRecursionDepthExceeded    Kind = "RecursionDepthExceeded"
	KindMessageTooLarge           Kind = "MessageTooLarge"
	KindInvalidState              Kind = "InvalidState"
	KindUnknownError              Kind = "UnknownError"
)

// taxonomyMarker is implemented by every error type below so callers can
// test membership in the taxonomy without enumerating concrete types.
type taxonomyMarker interface {
	error
	Kind() Kind
}

// BoltError is the generic taxonomy error: an operation name, the kind, and
// an optional wrapped cause.
type BoltError struct {
	Op   string
	K    Kind
	Err  error
}

func (e *BoltError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.K, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.K, e.Op, e.Err)
}
func (e *BoltError) Unwrap() error { return e.Err }
func (e *BoltError) Kind() Kind    { return e.K }

// New constructs a BoltError for the given taxonomy kind.
func New(k Kind, op string, cause error) error {
	return &BoltError{Op: op, K: k, Err: cause}
}

// HandshakeError indicates a handshake-layer violation: a bad magic, no
// common version proposed, an unparseable reply, or an I/O failure during
// the exchange itself.
type HandshakeError struct {
	Op  string
	K   Kind
	Err error
}

func (e *HandshakeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("handshake error (%s): %s", e.K, e.Op)
	}
	return fmt.Sprintf("handshake error (%s): %s: %v", e.K, e.Op, e.Err)
}
func (e *HandshakeError) Unwrap() error { return e.Err }
func (e *HandshakeError) Kind() Kind    { return e.K }

func NewHandshakeError(k Kind, op string, cause error) error {
	return &HandshakeError{Op: op, K: k, Err: cause}
}

// ChunkError indicates a chunking-codec violation (oversized header,
// allocation failure, malformed terminator).
type ChunkError struct {
	Op  string
	K   Kind
	Err error
}

func (e *ChunkError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("chunk error (%s): %s", e.K, e.Op)
	}
	return fmt.Sprintf("chunk error (%s): %s: %v", e.K, e.Op, e.Err)
}
func (e *ChunkError) Unwrap() error { return e.Err }
func (e *ChunkError) Kind() Kind    { return e.K }

func NewChunkError(k Kind, op string, cause error) error {
	return &ChunkError{Op: op, K: k, Err: cause}
}

// NetworkError wraps any transport-layer failure, including timeouts, which
// are surfaced to callers indistinguishably from other network errors.
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("network error (timeout): %s: %v", e.Op, e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("network error: %s", e.Op)
	}
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}
func (e *NetworkError) Unwrap() error { return e.Err }
func (e *NetworkError) Kind() Kind    { return KindNetworkError }

func NewNetworkError(op string, cause error) error {
	return &NetworkError{Op: op, Err: cause}
}

func NewNetworkTimeout(op string, cause error) error {
	return &NetworkError{Op: op, Timeout: true, Err: cause}
}

// ServerFailure represents a classified Bolt FAILURE response: a
// server-reported error with a code/message pair and the taxonomy kind it
// was classified into.
type ServerFailure struct {
	Code    string
	Message string
	K       Kind
	Fatal   bool // true when the failure moves the connection to DEFUNCT
}

func (e *ServerFailure) Error() string {
	return fmt.Sprintf("server failure [%s]: %s", e.Code, e.Message)
}
func (e *ServerFailure) Kind() Kind { return e.K }

func NewServerFailure(code, message string, k Kind, fatal bool) error {
	return &ServerFailure{Code: code, Message: message, K: k, Fatal: fatal}
}

// IsKind reports whether the first taxonomy error in err's chain is of kind
// k; taxonomy errors wrapped beneath that one are not examined.
func IsKind(err error, k Kind) bool {
	if err == nil {
		return false
	}
	var tm taxonomyMarker
	if stdErrors.As(err, &tm) {
		return tm.Kind() == k
	}
	return false
}

// IsTaxonomy reports whether err's chain contains any taxonomy error.
func IsTaxonomy(err error) bool {
	if err == nil {
		return false
	}
	var tm taxonomyMarker
	return stdErrors.As(err, &tm)
}

// IsTimeout reports whether err is, or wraps, a timeout: our own
// NetworkError{Timeout:true}, context.DeadlineExceeded, or any error
// exposing a Timeout() bool method that returns true.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if stdErrors.As(err, &ne) && ne.Timeout {
		return true
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var toErr interface{ Timeout() bool }
	if stdErrors.As(err, &toErr) && toErr.Timeout() {
		return true
	}
	return false
}

// usage: wrap underlying causes with fmt.Errorf("...: %w", err) before
// handing them to a constructor so errors.Is/As can still reach the root.
