package lifecycle

import (
	"time"

	"github.com/pithecene-io/fragstream/log"
)

// Logging logs every notification and then forwards it to Next.
// A nil Next behaves like Nop.
type Logging struct {
	Logger *log.Logger
	Next   Callbacks
}

// NewLogging wraps next with logging.
func NewLogging(logger *log.Logger, next Callbacks) *Logging {
	return &Logging{Logger: logger, Next: OrNop(next)}
}

func (l *Logging) next() Callbacks {
	return OrNop(l.Next)
}

func (l *Logging) StreamUnderflow() error {
	l.Logger.Debug("stream underflow", nil)
	return l.next().StreamUnderflow()
}

func (l *Logging) StreamLatencyPressure(d time.Duration) error {
	l.Logger.Warn("stream latency pressure", map[string]any{"duration_ms": d.Milliseconds()})
	return l.next().StreamLatencyPressure(d)
}

func (l *Logging) StreamConnectionStale(d time.Duration) error {
	l.Logger.Warn("stream connection stale", map[string]any{"since_last_ack_ms": d.Milliseconds()})
	return l.next().StreamConnectionStale(d)
}

func (l *Logging) DroppedFrame(tc int64) error {
	l.Logger.Warn("dropped frame", map[string]any{"timecode": tc})
	return l.next().DroppedFrame(tc)
}

func (l *Logging) DroppedFragment(tc int64) error {
	l.Logger.Warn("dropped fragment", map[string]any{"timecode": tc})
	return l.next().DroppedFragment(tc)
}

func (l *Logging) StreamError(tc int64, status int) error {
	l.Logger.Error("stream error", map[string]any{"fragment_timecode": tc, "status": status})
	return l.next().StreamError(tc, status)
}

func (l *Logging) StreamDataAvailable(d time.Duration, size int64) error {
	l.Logger.Debug("stream data available", map[string]any{"duration_ms": d.Milliseconds(), "bytes": size})
	return l.next().StreamDataAvailable(d, size)
}

func (l *Logging) StreamReady() error {
	l.Logger.Info("stream ready", nil)
	return l.next().StreamReady()
}

func (l *Logging) StreamClosed() error {
	l.Logger.Info("stream closed", nil)
	return l.next().StreamClosed()
}

var _ Callbacks = (*Logging)(nil)
