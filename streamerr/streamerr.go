// Package streamerr classifies transport failures so callers can branch on
// category with errors.As instead of inspecting message strings.
package streamerr

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindEncoding is a failure composing a chunk. Fatal to that encode call only.
	KindEncoding Kind = iota
	// KindConnection is an address resolution, connect, or TLS handshake failure.
	KindConnection
	// KindDecode is an ack record that could not be decoded. Never terminal.
	KindDecode
	// KindFragment is an ERROR ack reported by the service for one fragment.
	KindFragment
	// KindEmptyFrame is a zero-length frame rejected at the sink boundary.
	KindEmptyFrame
	// KindCallback is a lifecycle or ack handler that returned an error.
	KindCallback
	// KindIO is a read or write failure on an established connection.
	KindIO
)

var kindNames = map[Kind]string{
	KindEncoding:   "encoding",
	KindConnection: "connection",
	KindDecode:     "decode",
	KindFragment:   "fragment",
	KindEmptyFrame: "empty_frame",
	KindCallback:   "callback",
	KindIO:         "io",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified transport failure.
type Error struct {
	Kind Kind
	// Op names the failing operation (e.g. "chunk.encode", "socket.dial").
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the error terminates the connection it occurred on.
// Encoding, decode, fragment and empty-frame failures are local to one call.
func (e *Error) IsFatal() bool {
	switch e.Kind {
	case KindConnection, KindIO, KindCallback:
		return true
	default:
		return false
	}
}

// New creates a classified error.
func New(kind Kind, op string, cause error) error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is returns true if err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return 0, false
}

// IsFatal returns true if err's chain contains a fatal *Error.
func IsFatal(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.IsFatal()
	}
	return false
}
