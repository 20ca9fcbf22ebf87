package lifecycle

import "time"

// Fanout invokes each Callbacks in order and stops at the first failure.
type Fanout []Callbacks

func (f Fanout) each(fn func(Callbacks) error) error {
	for _, cb := range f {
		if cb == nil {
			continue
		}
		if err := fn(cb); err != nil {
			return err
		}
	}
	return nil
}

func (f Fanout) StreamUnderflow() error {
	return f.each(func(cb Callbacks) error { return cb.StreamUnderflow() })
}

func (f Fanout) StreamLatencyPressure(d time.Duration) error {
	return f.each(func(cb Callbacks) error { return cb.StreamLatencyPressure(d) })
}

func (f Fanout) StreamConnectionStale(d time.Duration) error {
	return f.each(func(cb Callbacks) error { return cb.StreamConnectionStale(d) })
}

func (f Fanout) DroppedFrame(tc int64) error {
	return f.each(func(cb Callbacks) error { return cb.DroppedFrame(tc) })
}

func (f Fanout) DroppedFragment(tc int64) error {
	return f.each(func(cb Callbacks) error { return cb.DroppedFragment(tc) })
}

func (f Fanout) StreamError(tc int64, status int) error {
	return f.each(func(cb Callbacks) error { return cb.StreamError(tc, status) })
}

func (f Fanout) StreamDataAvailable(d time.Duration, size int64) error {
	return f.each(func(cb Callbacks) error { return cb.StreamDataAvailable(d, size) })
}

func (f Fanout) StreamReady() error {
	return f.each(func(cb Callbacks) error { return cb.StreamReady() })
}

func (f Fanout) StreamClosed() error {
	return f.each(func(cb Callbacks) error { return cb.StreamClosed() })
}

var _ Callbacks = Fanout(nil)
