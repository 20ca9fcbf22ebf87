// Package gate holds back reads from a byte source until it is released.
//
// A Stream starts blocked. Release moves it to unblocked exactly once and
// wakes every waiting reader; it never re-blocks. Close forces the release
// before closing the source, so no reader is stranded during teardown.
package gate

import (
	"context"
	"io"
	"sync"
)

// Stream wraps a byte source behind a one-way gate.
//
// The gate is a channel closed under sync.Once: a reader that observes the
// open channel and then waits on it cannot miss a concurrent Release, because
// receiving from a closed channel never blocks.
type Stream struct {
	src      io.ReadCloser
	released chan struct{}
	once     sync.Once
	byteBuf  [1]byte
	byteMu   sync.Mutex
}

// New wraps src in a blocked Stream.
func New(src io.ReadCloser) *Stream {
	return &Stream{
		src:      src,
		released: make(chan struct{}),
	}
}

// Release unblocks the stream. Calling it again is a no-op.
func (s *Stream) Release() {
	s.once.Do(func() { close(s.released) })
}

// Released reports whether the gate is open.
func (s *Stream) Released() bool {
	select {
	case <-s.released:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the stream is released.
func (s *Stream) Done() <-chan struct{} {
	return s.released
}

// Wait blocks until the stream is released or ctx is done.
// Read does not take a context; use Wait first when the caller needs to
// abandon the wait.
func (s *Stream) Wait(ctx context.Context) error {
	select {
	case <-s.released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stream) await() {
	<-s.released
}

// Read blocks until released, then reads from the source.
func (s *Stream) Read(p []byte) (int, error) {
	s.await()
	return s.src.Read(p)
}

// ReadByte blocks until released, then reads a single byte.
func (s *Stream) ReadByte() (byte, error) {
	s.await()

	s.byteMu.Lock()
	defer s.byteMu.Unlock()

	for {
		n, err := s.src.Read(s.byteBuf[:])
		if n == 1 {
			return s.byteBuf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// ReadInto blocks until released, then reads up to length bytes into
// p[off:off+length].
func (s *Stream) ReadInto(p []byte, off, length int) (int, error) {
	if off < 0 || length < 0 || off+length > len(p) {
		return 0, io.ErrShortBuffer
	}
	return s.Read(p[off : off+length])
}

// Close releases the gate and then closes the source.
func (s *Stream) Close() error {
	s.Release()
	return s.src.Close()
}

var (
	_ io.ReadCloser = (*Stream)(nil)
	_ io.ByteReader = (*Stream)(nil)
)
