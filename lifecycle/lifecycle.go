// Package lifecycle defines the callbacks the transport layer invokes to
// report stream health and backpressure to the session manager.
//
// Every method may fail. The transport treats a callback failure like any
// other transport fault: it ends the session.
package lifecycle

import "time"

// Callbacks is implemented by the session manager.
// Arguments are scalars only; no payload bytes cross this boundary.
type Callbacks interface {
	// StreamUnderflow reports that the upload source ran dry.
	StreamUnderflow() error

	// StreamLatencyPressure reports the current buffer duration exceeding its target.
	StreamLatencyPressure(duration time.Duration) error

	// StreamConnectionStale reports no ack received for the given duration.
	StreamConnectionStale(sinceLastAck time.Duration) error

	// DroppedFrame reports a frame the buffer discarded.
	DroppedFrame(timecode int64) error

	// DroppedFragment reports a fragment the buffer discarded.
	DroppedFragment(timecode int64) error

	// StreamError reports a fragment-level or transport error.
	StreamError(fragmentTimecode int64, statusCode int) error

	// StreamDataAvailable reports buffered data ready to send.
	StreamDataAvailable(duration time.Duration, availableBytes int64) error

	// StreamReady reports the session is armed and upload may begin.
	StreamReady() error

	// StreamClosed reports the session has ended.
	StreamClosed() error
}

// NopCallbacks accepts every notification and never fails.
type NopCallbacks struct{}

// Nop is the default Callbacks value.
var Nop Callbacks = NopCallbacks{}

// StreamUnderflow is a no-op.
func (NopCallbacks) StreamUnderflow() error { return nil }

// StreamLatencyPressure is a no-op.
func (NopCallbacks) StreamLatencyPressure(time.Duration) error { return nil }

// StreamConnectionStale is a no-op.
func (NopCallbacks) StreamConnectionStale(time.Duration) error { return nil }

// DroppedFrame is a no-op.
func (NopCallbacks) DroppedFrame(int64) error { return nil }

// DroppedFragment is a no-op.
func (NopCallbacks) DroppedFragment(int64) error { return nil }

// StreamError is a no-op.
func (NopCallbacks) StreamError(int64, int) error { return nil }

// StreamDataAvailable is a no-op.
func (NopCallbacks) StreamDataAvailable(time.Duration, int64) error { return nil }

// StreamReady is a no-op.
func (NopCallbacks) StreamReady() error { return nil }

// StreamClosed is a no-op.
func (NopCallbacks) StreamClosed() error { return nil }

// OrNop returns cb, or Nop when cb is nil.
func OrNop(cb Callbacks) Callbacks {
	if cb == nil {
		return Nop
	}
	return cb
}
