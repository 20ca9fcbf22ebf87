// Package engine provides an in-process buffering engine: producers push
// frames in, and the upload path pulls the buffered bytes out in order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pithecene-io/fragstream/lifecycle"
	"github.com/pithecene-io/fragstream/log"
	"github.com/pithecene-io/fragstream/producer"
	"github.com/pithecene-io/fragstream/streamerr"
	"github.com/pithecene-io/fragstream/types"
)

// ErrClosed is returned by PutFrame after Close.
var ErrClosed = errors.New("engine closed")

// ErrFrameTooLarge is returned when a frame alone exceeds MaxBytes.
var ErrFrameTooLarge = errors.New("frame exceeds buffer byte limit")

// ErrInvalidConfig is returned when neither limit is set.
var ErrInvalidConfig = errors.New("invalid config: at least one of MaxFrames or MaxBytes must be set")

// Config configures a Queue.
type Config struct {
	// MaxFrames bounds the number of buffered frames. Zero means no limit.
	MaxFrames int

	// MaxBytes bounds buffered payload bytes. Zero means no limit.
	// At least one limit must be set.
	MaxBytes int64

	// LatencyTarget, if set, raises StreamLatencyPressure when the buffered
	// timecode span exceeds it.
	LatencyTarget time.Duration

	// TimecodeUnit converts frame timecodes to durations (default 1ms).
	TimecodeUnit time.Duration

	// Callbacks receives underflow, data-available and latency notifications.
	// Nil means lifecycle.Nop.
	Callbacks lifecycle.Callbacks

	// Logger is optional.
	Logger *log.Logger
}

// DefaultConfig returns limits suitable for a single camera stream.
func DefaultConfig() Config {
	return Config{
		MaxFrames:    1024,
		MaxBytes:     16 * 1024 * 1024, // 16 MB
		TimecodeUnit: time.Millisecond,
	}
}

// Stats is a point-in-time view of queue counters.
type Stats struct {
	FramesIn         int64
	FramesOut        int64
	BytesIn          int64
	// BytesOut includes emitted codec private data.
	BytesOut         int64
	BufferedFrames   int
	BufferedBytes    int64
	Underflows       int64
	CodecPrivateSets int64
	MetadataTags     int64
}

// Queue is a bounded FIFO of frames that implements producer.Engine on the
// input side and io.ReadCloser on the output side.
//
// PutFrame blocks while the queue is full; frames are never dropped. Read
// blocks while the queue is empty and returns io.EOF once the queue has been
// closed and drained. Codec private data is emitted ahead of the next frame
// after each change.
type Queue struct {
	cfg Config
	cb  lifecycle.Callbacks

	mu       sync.Mutex
	changed  chan struct{} // closed and replaced on every state change
	frames   []types.Frame
	cur      []byte // unread remainder of the head frame
	header   []byte // codec private data waiting to be emitted
	codec    []byte
	metadata []types.FragmentMetadata
	bytes    int64
	closed   bool

	underflowed bool
	pressured   bool
	stats       Stats
}

// New creates a Queue. Returns ErrInvalidConfig if no limit is set.
func New(cfg Config) (*Queue, error) {
	if cfg.MaxFrames <= 0 && cfg.MaxBytes <= 0 {
		return nil, ErrInvalidConfig
	}
	if cfg.TimecodeUnit <= 0 {
		cfg.TimecodeUnit = time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	return &Queue{
		cfg:     cfg,
		cb:      lifecycle.OrNop(cfg.Callbacks),
		changed: make(chan struct{}),
	}, nil
}

// signal wakes every waiter. Caller must hold mu.
func (q *Queue) signal() {
	close(q.changed)
	q.changed = make(chan struct{})
}

// wait releases mu until the next state change or ctx is done, then
// reacquires it. Caller must hold mu.
func (q *Queue) wait(ctx context.Context) error {
	ch := q.changed
	q.mu.Unlock()
	defer q.mu.Lock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) hasRoom(size int64) bool {
	if q.cfg.MaxFrames > 0 && len(q.frames) >= q.cfg.MaxFrames {
		return false
	}
	if q.cfg.MaxBytes > 0 && q.bytes+size > q.cfg.MaxBytes {
		return false
	}
	return true
}

// span returns the timecode distance between the oldest and newest buffered
// frames. Caller must hold mu.
func (q *Queue) span() time.Duration {
	if len(q.frames) == 0 {
		return 0
	}
	first := q.frames[0].Timecode
	last := q.frames[len(q.frames)-1].Timecode
	return time.Duration(last-first) * q.cfg.TimecodeUnit
}

// PutFrame appends a frame, blocking while the queue is full.
func (q *Queue) PutFrame(ctx context.Context, frame types.Frame) error {
	size := int64(frame.Size())
	if q.cfg.MaxBytes > 0 && size > q.cfg.MaxBytes {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, size, q.cfg.MaxBytes)
	}

	q.mu.Lock()
	for !q.closed && !q.hasRoom(size) {
		if err := q.wait(ctx); err != nil {
			q.mu.Unlock()
			return err
		}
	}
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}

	q.frames = append(q.frames, frame)
	q.bytes += size
	q.stats.FramesIn++
	q.stats.BytesIn += size
	q.underflowed = false
	span := q.span()
	available := q.bytes + int64(len(q.cur)) + int64(len(q.header))

	var pressure bool
	if q.cfg.LatencyTarget > 0 {
		over := span > q.cfg.LatencyTarget
		pressure = over && !q.pressured
		q.pressured = over
	}
	q.signal()
	q.mu.Unlock()

	if err := q.cb.StreamDataAvailable(span, available); err != nil {
		return streamerr.New(streamerr.KindCallback, "engine.data_available", err)
	}
	if pressure {
		q.cfg.Logger.Warn("buffer latency above target", map[string]any{
			"span_ms":   span.Milliseconds(),
			"target_ms": q.cfg.LatencyTarget.Milliseconds(),
		})
		if err := q.cb.StreamLatencyPressure(span); err != nil {
			return streamerr.New(streamerr.KindCallback, "engine.latency_pressure", err)
		}
	}
	return nil
}

// SetCodecPrivateData replaces the format definition emitted ahead of the
// next frame. Nil clears it.
func (q *Queue) SetCodecPrivateData(_ context.Context, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.codec = append([]byte(nil), data...)
	q.header = q.codec
	q.stats.CodecPrivateSets++
	return nil
}

// PutFragmentMetadata records a tag for the current fragment.
func (q *Queue) PutFragmentMetadata(_ context.Context, meta types.FragmentMetadata) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.metadata = append(q.metadata, meta)
	q.stats.MetadataTags++
	return nil
}

// Metadata returns a copy of the recorded fragment tags.
func (q *Queue) Metadata() []types.FragmentMetadata {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]types.FragmentMetadata, len(q.metadata))
	copy(out, q.metadata)
	return out
}

// CodecPrivateData returns the current format definition.
func (q *Queue) CodecPrivateData() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]byte(nil), q.codec...)
}

// Read copies buffered bytes into p, blocking while the queue is empty.
// Returns io.EOF after Close once everything has been read.
func (q *Queue) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	q.mu.Lock()
	for len(q.cur) == 0 && len(q.frames) == 0 {
		if q.closed {
			q.mu.Unlock()
			return 0, io.EOF
		}
		if !q.underflowed {
			q.underflowed = true
			q.stats.Underflows++
			q.mu.Unlock()
			if err := q.cb.StreamUnderflow(); err != nil {
				return 0, streamerr.New(streamerr.KindCallback, "engine.underflow", err)
			}
			q.mu.Lock()
			continue
		}
		_ = q.wait(context.Background())
	}

	if len(q.cur) == 0 {
		head := q.frames[0]
		q.frames[0] = types.Frame{}
		q.frames = q.frames[1:]
		q.bytes -= int64(head.Size())
		q.stats.FramesOut++
		q.cur = head.Data
		if len(q.header) > 0 {
			q.cur = append(append([]byte(nil), q.header...), head.Data...)
			q.header = nil
		}
		q.signal()
	}

	n := copy(p, q.cur)
	q.cur = q.cur[n:]
	q.stats.BytesOut += int64(n)
	q.mu.Unlock()
	return n, nil
}

// Close ends the input side. Buffered bytes remain readable; blocked
// PutFrame calls return ErrClosed. Close is idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	q.signal()
	return nil
}

// Stats returns a snapshot of queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.BufferedFrames = len(q.frames)
	s.BufferedBytes = q.bytes
	return s
}

var (
	_ producer.Engine = (*Queue)(nil)
	_ io.ReadCloser   = (*Queue)(nil)
)
