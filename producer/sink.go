// Package producer is the boundary through which media sources push frames
// into the buffering engine.
package producer

import (
	"context"
	"errors"

	"github.com/pithecene-io/fragstream/streamerr"
	"github.com/pithecene-io/fragstream/types"
)

// Engine is the buffering engine that decides what bytes to send and when.
// Implementations must preserve PutFrame order.
type Engine interface {
	// PutFrame hands one frame to the engine.
	PutFrame(ctx context.Context, frame types.Frame) error

	// SetCodecPrivateData replaces the format definition. Nil clears it.
	SetCodecPrivateData(ctx context.Context, data []byte) error

	// PutFragmentMetadata tags the current fragment.
	PutFragmentMetadata(ctx context.Context, meta types.FragmentMetadata) error
}

// ErrEmptyFrame is the cause carried by the KindEmptyFrame error from OnFrame.
var ErrEmptyFrame = errors.New("frame has no data")

// Sink forwards media source calls to an Engine.
// All methods are synchronous hand-offs; engine errors return unchanged.
type Sink struct {
	engine Engine
}

// NewSink creates a Sink over engine.
func NewSink(engine Engine) *Sink {
	return &Sink{engine: engine}
}

// OnFrame forwards a non-empty frame. A zero-length frame is rejected with a
// KindEmptyFrame error before the engine sees it.
func (s *Sink) OnFrame(ctx context.Context, frame types.Frame) error {
	if frame.Size() == 0 {
		return streamerr.New(streamerr.KindEmptyFrame, "producer.on_frame", ErrEmptyFrame)
	}
	return s.engine.PutFrame(ctx, frame)
}

// OnCodecPrivateData forwards a format-definition change. Nil clears it.
func (s *Sink) OnCodecPrivateData(ctx context.Context, data []byte) error {
	return s.engine.SetCodecPrivateData(ctx, data)
}

// OnFragmentMetadata forwards an out-of-band tag for the current fragment.
func (s *Sink) OnFragmentMetadata(ctx context.Context, name, value string, persistent bool) error {
	return s.engine.PutFragmentMetadata(ctx, types.FragmentMetadata{
		Name:       name,
		Value:      value,
		Persistent: persistent,
	})
}
