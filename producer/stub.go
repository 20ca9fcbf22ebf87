package producer

import (
	"context"
	"sync"

	"github.com/pithecene-io/fragstream/types"
)

// StubEngine is a test engine that records calls without buffering.
type StubEngine struct {
	mu sync.Mutex

	// Frames stores every PutFrame argument in order.
	Frames []types.Frame
	// CodecPrivateData holds every SetCodecPrivateData argument in order.
	CodecPrivateData [][]byte
	// Metadata stores every PutFragmentMetadata argument in order.
	Metadata []types.FragmentMetadata

	// ErrorOnPut, if non-nil, is returned by every method.
	ErrorOnPut error
}

// NewStubEngine creates an empty StubEngine.
func NewStubEngine() *StubEngine {
	return &StubEngine{}
}

// PutFrame records the frame.
func (e *StubEngine) PutFrame(_ context.Context, frame types.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ErrorOnPut != nil {
		return e.ErrorOnPut
	}
	e.Frames = append(e.Frames, frame)
	return nil
}

// SetCodecPrivateData records the data.
func (e *StubEngine) SetCodecPrivateData(_ context.Context, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ErrorOnPut != nil {
		return e.ErrorOnPut
	}
	e.CodecPrivateData = append(e.CodecPrivateData, data)
	return nil
}

// PutFragmentMetadata records the tag.
func (e *StubEngine) PutFragmentMetadata(_ context.Context, meta types.FragmentMetadata) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ErrorOnPut != nil {
		return e.ErrorOnPut
	}
	e.Metadata = append(e.Metadata, meta)
	return nil
}

// Calls returns the total number of recorded calls.
func (e *StubEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Frames) + len(e.CodecPrivateData) + len(e.Metadata)
}

var _ Engine = (*StubEngine)(nil)
