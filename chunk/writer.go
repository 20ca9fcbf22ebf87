package chunk

import (
	"io"
	"sync"

	"github.com/pithecene-io/fragstream/streamerr"
)

// Writer frames every Write as one chunk on the underlying writer.
// It is safe for concurrent use. Each chunk is written whole, so chunks from
// concurrent writers never interleave.
type Writer struct {
	w      io.Writer
	mu     sync.Mutex
	closed bool
	chunks int64
	bytes  int64
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write encodes p as a single chunk. Empty writes emit nothing so that a
// stray zero-length Write can never terminate the body early.
func (cw *Writer) Write(p []byte) (int, error) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return 0, io.ErrClosedPipe
	}
	if len(p) == 0 {
		return 0, nil
	}

	frame, err := Encode(p, len(p))
	if err != nil {
		return 0, err
	}
	if _, err := cw.w.Write(frame); err != nil {
		return 0, streamerr.New(streamerr.KindIO, "chunk.write", err)
	}
	cw.chunks++
	cw.bytes += int64(len(p))
	return len(p), nil
}

// Close writes the terminating chunk. Subsequent writes fail.
// It does not close the underlying writer.
func (cw *Writer) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return nil
	}
	cw.closed = true
	if _, err := cw.w.Write(Terminator()); err != nil {
		return streamerr.New(streamerr.KindIO, "chunk.terminate", err)
	}
	return nil
}

// Counts returns the number of chunks and payload bytes written so far.
func (cw *Writer) Counts() (chunks, payloadBytes int64) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.chunks, cw.bytes
}
