package lifecycle

import (
	"sync"
	"time"
)

// Call is one recorded notification.
type Call struct {
	// Method is the Callbacks method name, e.g. "StreamError".
	Method   string
	Timecode int64
	Status   int
	Duration time.Duration
	Bytes    int64
}

// Recorder records every notification in order.
// Use it in tests, or to tally notifications for a session summary.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	// FailOn, if set, is returned by calls whose method name it maps.
	FailOn map[string]error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.FailOn[c.Method]
}

// Calls returns a copy of the recorded notifications.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns how many times method was invoked.
func (r *Recorder) Count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (r *Recorder) StreamUnderflow() error {
	return r.record(Call{Method: "StreamUnderflow"})
}

func (r *Recorder) StreamLatencyPressure(d time.Duration) error {
	return r.record(Call{Method: "StreamLatencyPressure", Duration: d})
}

func (r *Recorder) StreamConnectionStale(d time.Duration) error {
	return r.record(Call{Method: "StreamConnectionStale", Duration: d})
}

func (r *Recorder) DroppedFrame(tc int64) error {
	return r.record(Call{Method: "DroppedFrame", Timecode: tc})
}

func (r *Recorder) DroppedFragment(tc int64) error {
	return r.record(Call{Method: "DroppedFragment", Timecode: tc})
}

func (r *Recorder) StreamError(tc int64, status int) error {
	return r.record(Call{Method: "StreamError", Timecode: tc, Status: status})
}

func (r *Recorder) StreamDataAvailable(d time.Duration, size int64) error {
	return r.record(Call{Method: "StreamDataAvailable", Duration: d, Bytes: size})
}

func (r *Recorder) StreamReady() error {
	return r.record(Call{Method: "StreamReady"})
}

func (r *Recorder) StreamClosed() error {
	return r.record(Call{Method: "StreamClosed"})
}

var _ Callbacks = (*Recorder)(nil)
