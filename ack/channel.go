package ack

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/pithecene-io/fragstream/log"
	"github.com/pithecene-io/fragstream/metrics"
	"github.com/pithecene-io/fragstream/streamerr"
	"github.com/pithecene-io/fragstream/types"
)

// Config configures a Channel.
type Config struct {
	// MaxRecordSize bounds one buffered record (default DefaultMaxRecordSize).
	MaxRecordSize int
	Logger        *log.Logger
	Collector     *metrics.Collector
}

// Channel reads ack records from the response side of an upload connection
// and dispatches them to a Handler, one at a time, in arrival order.
type Channel struct {
	r       io.Reader
	handler Handler
	cfg     Config

	// lastAck is unix nanoseconds of the most recent decoded event.
	lastAck atomic.Int64
}

// NewChannel creates a Channel reading from r.
func NewChannel(r io.Reader, h Handler, cfg Config) *Channel {
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	return &Channel{r: r, handler: h, cfg: cfg}
}

// LastAckAt returns when the last event was decoded, or the zero time.
func (c *Channel) LastAckAt() time.Time {
	ns := c.lastAck.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Run reads until the stream ends, the handler fails, or ctx is cancelled.
//
// End of stream returns nil. A read failure returns a KindIO error, and a
// handler failure returns a KindCallback error. Undecodable and oversized
// records are passed to HandleDecodeError and skipped.
//
// Run does not interrupt a blocked read on cancellation; the owner of the
// underlying connection closes it to unblock.
func (c *Channel) Run(ctx context.Context) error {
	sc, sp := newRecordScanner(c.r, c.cfg.MaxRecordSize)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		record := sc.Bytes()
		var (
			ev  types.AckEvent
			err error
		)
		if sp.oversized {
			err = streamerr.New(streamerr.KindDecode, "ack.read",
				fmt.Errorf("%w (limit %d bytes)", ErrRecordTooLarge, c.maxRecordSize()))
		} else {
			ev, err = Decode(record)
		}
		if err != nil {
			c.cfg.Collector.IncAckDecodeErrors()
			c.handler.HandleDecodeError(append([]byte(nil), record...), err)
			continue
		}

		c.lastAck.Store(time.Now().UnixNano())
		c.cfg.Collector.IncAck(string(ev.Type))
		c.cfg.Logger.Debug("ack received", map[string]any{
			"type":              string(ev.Type),
			"fragment_timecode": ev.FragmentTimecode,
			"error_code":        ev.ErrorCode,
		})

		if err := c.handler.HandleAck(ctx, ev); err != nil {
			c.cfg.Collector.IncCallbackFailures()
			return streamerr.New(streamerr.KindCallback, "ack.handle", err)
		}
	}

	if err := sc.Err(); err != nil {
		return streamerr.New(streamerr.KindIO, "ack.read", err)
	}
	return nil
}

func (c *Channel) maxRecordSize() int {
	if c.cfg.MaxRecordSize <= 0 {
		return DefaultMaxRecordSize
	}
	return c.cfg.MaxRecordSize
}
