package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pithecene-io/fragstream/ack"
	"github.com/pithecene-io/fragstream/log"
	"github.com/pithecene-io/fragstream/metrics"
	"github.com/pithecene-io/fragstream/types"
)

// Config configures a Writer.
type Config struct {
	// Next, if set, receives every ack after it is journaled.
	Next ack.Handler
	// Collector counts journal writes. Nil-safe.
	Collector *metrics.Collector
	// Logger is optional.
	Logger *log.Logger
}

// Writer appends entries to a journal. It is also an ack.Handler that
// journals each event before passing it on, so it can sit in front of
// any other handler.
//
// A failed journal write is logged and counted but never fails the
// session; the upload matters more than its record.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	seq    int64
	cfg    Config
	now    func() time.Time
	closed bool
}

// NewWriter writes the session header to w and returns a Writer.
func NewWriter(w io.Writer, info SessionInfo, cfg Config) (*Writer, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	if info.JournalVersion == "" {
		info.JournalVersion = types.JournalVersion
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now().UTC()
	}

	jw := &Writer{w: w, cfg: cfg, now: time.Now}
	if err := jw.append(&Entry{Kind: EntrySession, Session: &info}); err != nil {
		return nil, err
	}
	return jw, nil
}

// Create creates (or truncates) the file at path and writes the header.
// Close closes the file.
func Create(path string, info SessionInfo, cfg Config) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	jw, err := NewWriter(f, info, cfg)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	jw.closer = f
	return jw, nil
}

func (w *Writer) append(e *Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return io.ErrClosedPipe
	}
	e.Seq = w.seq
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = w.now().UTC()
	}
	buf, err := encodeEntry(e)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("write journal entry %d: %w", e.Seq, err)
	}
	w.seq++
	return nil
}

// AppendAck journals a decoded event.
func (w *Writer) AppendAck(ev types.AckEvent) error {
	err := w.append(&Entry{Kind: EntryAck, Event: &ev})
	w.cfg.Collector.IncJournalWrite(err == nil)
	return err
}

// AppendDecodeError journals an undecodable record.
func (w *Writer) AppendDecodeError(record []byte, cause error) error {
	e := &Entry{Kind: EntryDecodeError, Raw: string(record)}
	if cause != nil {
		e.Error = cause.Error()
	}
	err := w.append(e)
	w.cfg.Collector.IncJournalWrite(err == nil)
	return err
}

// HandleAck implements ack.Handler.
func (w *Writer) HandleAck(ctx context.Context, ev types.AckEvent) error {
	if err := w.AppendAck(ev); err != nil {
		w.cfg.Logger.Warn("journal write failed", map[string]any{"error": err.Error()})
	}
	if w.cfg.Next != nil {
		return w.cfg.Next.HandleAck(ctx, ev)
	}
	return nil
}

// HandleDecodeError implements ack.Handler.
func (w *Writer) HandleDecodeError(record []byte, cause error) {
	if err := w.AppendDecodeError(record, cause); err != nil {
		w.cfg.Logger.Warn("journal write failed", map[string]any{"error": err.Error()})
	}
	if w.cfg.Next != nil {
		w.cfg.Next.HandleDecodeError(record, cause)
	}
}

// Entries returns the number of entries written, header included.
func (w *Writer) Entries() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Close stops further appends and closes the file opened by Create.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

var _ ack.Handler = (*Writer)(nil)
