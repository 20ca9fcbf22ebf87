package producer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pithecene-io/fragstream/types"
)

// FeedConfig describes how a byte stream is cut into frames.
type FeedConfig struct {
	// FrameSize is the payload size of every frame but possibly the last.
	FrameSize int
	// FrameDuration advances the timecode per frame, in TimecodeUnit.
	FrameDuration time.Duration
	// TimecodeUnit is the fragment clock resolution (default 1ms).
	TimecodeUnit time.Duration
	// KeyFrameInterval marks every Nth frame as a key frame, starting
	// with the first. Zero or one marks every frame.
	KeyFrameInterval int
	// Pace, if set, waits FrameDuration between frames so the feed runs
	// in real time instead of as fast as the engine accepts.
	Pace bool
}

// FeedStats reports what a Feed pushed.
type FeedStats struct {
	Frames       int64
	Bytes        int64
	LastTimecode int64
}

// Feed reads r to EOF and pushes it through sink as fixed-size frames.
// It returns when r is exhausted, a sink call fails, or ctx is done.
func Feed(ctx context.Context, r io.Reader, sink *Sink, cfg FeedConfig) (FeedStats, error) {
	var st FeedStats
	if cfg.FrameSize <= 0 {
		return st, fmt.Errorf("frame size must be > 0, got %d", cfg.FrameSize)
	}
	if cfg.TimecodeUnit <= 0 {
		cfg.TimecodeUnit = time.Millisecond
	}
	step := int64(cfg.FrameDuration / cfg.TimecodeUnit)
	keyEvery := int64(max(cfg.KeyFrameInterval, 1))

	var tick <-chan time.Time
	if cfg.Pace && cfg.FrameDuration > 0 {
		t := time.NewTicker(cfg.FrameDuration)
		defer t.Stop()
		tick = t.C
	}

	buf := make([]byte, cfg.FrameSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			frame := types.Frame{
				Data:     append([]byte(nil), buf[:n]...),
				Timecode: st.Frames * step,
				KeyFrame: st.Frames%keyEvery == 0,
			}
			if perr := sink.OnFrame(ctx, frame); perr != nil {
				return st, perr
			}
			st.LastTimecode = frame.Timecode
			st.Frames++
			st.Bytes += int64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("read source: %w", err)
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return st, ctx.Err()
			case <-tick:
			}
		}
	}
}
