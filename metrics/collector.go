// Package metrics provides per-session transport metrics collection.
//
// The Collector accumulates counters during a single upload session. It is a
// leaf package with no internal dependencies. Buffering engine counters are
// absorbed from the engine's stats at session end rather than recorded live.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Session lifecycle
	SessionsStarted   int64
	SessionsCompleted int64
	SessionsFailed    int64

	// Connection
	ConnectSuccess int64
	ConnectFailure int64

	// Upload
	ChunksWritten  int64
	BytesWritten   int64
	FramesRejected int64

	// Acks
	AcksByType       map[string]int64
	AckDecodeErrors  int64
	FragmentErrors   int64
	CallbackFailures int64

	// Engine (absorbed at session end)
	FramesBuffered int64
	BytesBuffered  int64

	// Downstream
	JournalWriteSuccess int64
	JournalWriteFailure int64
	PublishSuccess      int64
	PublishFailure      int64

	// Dimensions (informational, set at construction)
	Stream    string
	Endpoint  string
	SessionID string
}

// Collector accumulates metrics during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	sessionsStarted   int64
	sessionsCompleted int64
	sessionsFailed    int64

	connectSuccess int64
	connectFailure int64

	chunksWritten  int64
	bytesWritten   int64
	framesRejected int64

	acksByType       map[string]int64
	ackDecodeErrors  int64
	fragmentErrors   int64
	callbackFailures int64

	framesBuffered int64
	bytesBuffered  int64

	journalWriteSuccess int64
	journalWriteFailure int64
	publishSuccess      int64
	publishFailure      int64

	stream    string
	endpoint  string
	sessionID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(stream, endpoint, sessionID string) *Collector {
	return &Collector{
		acksByType: make(map[string]int64),
		stream:     stream,
		endpoint:   endpoint,
		sessionID:  sessionID,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Session lifecycle ---

// IncSessionStarted records a session start.
func (c *Collector) IncSessionStarted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsStarted, 1)
}

// IncSessionCompleted records a session that ended cleanly.
func (c *Collector) IncSessionCompleted() {
	if c == nil {
		return
	}
	c.add(&c.sessionsCompleted, 1)
}

// IncSessionFailed records a session that ended on a terminal fault.
func (c *Collector) IncSessionFailed() {
	if c == nil {
		return
	}
	c.add(&c.sessionsFailed, 1)
}

// --- Connection ---

// IncConnectSuccess records an established connection.
func (c *Collector) IncConnectSuccess() {
	if c == nil {
		return
	}
	c.add(&c.connectSuccess, 1)
}

// IncConnectFailure records a failed connection attempt.
func (c *Collector) IncConnectFailure() {
	if c == nil {
		return
	}
	c.add(&c.connectFailure, 1)
}

// --- Upload ---

// AddChunkWritten records one chunk carrying n payload bytes.
func (c *Collector) AddChunkWritten(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksWritten++
	c.bytesWritten += int64(n)
	c.mu.Unlock()
}

// IncFramesRejected records a frame rejected at the sink boundary.
func (c *Collector) IncFramesRejected() {
	if c == nil {
		return
	}
	c.add(&c.framesRejected, 1)
}

// --- Acks ---

// IncAck records a decoded ack of the given type.
// ERROR acks also count as fragment errors.
func (c *Collector) IncAck(ackType string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.acksByType[ackType]++
	if ackType == "ERROR" {
		c.fragmentErrors++
	}
	c.mu.Unlock()
}

// IncAckDecodeErrors records an ack record that failed to decode.
func (c *Collector) IncAckDecodeErrors() {
	if c == nil {
		return
	}
	c.add(&c.ackDecodeErrors, 1)
}

// IncCallbackFailures records a handler or lifecycle callback that failed.
func (c *Collector) IncCallbackFailures() {
	if c == nil {
		return
	}
	c.add(&c.callbackFailures, 1)
}

// --- Engine ---

// AbsorbEngineStats copies buffering counters from the engine at session end.
func (c *Collector) AbsorbEngineStats(framesIn, bytesIn int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesBuffered = framesIn
	c.bytesBuffered = bytesIn
	c.mu.Unlock()
}

// --- Downstream ---

// IncJournalWrite records a journal append outcome.
func (c *Collector) IncJournalWrite(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.add(&c.journalWriteSuccess, 1)
		return
	}
	c.add(&c.journalWriteFailure, 1)
}

// IncPublish records an adapter publish outcome.
func (c *Collector) IncPublish(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.add(&c.publishSuccess, 1)
		return
	}
	c.add(&c.publishFailure, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	acks := make(map[string]int64, len(c.acksByType))
	for k, v := range c.acksByType {
		acks[k] = v
	}

	return Snapshot{
		SessionsStarted:   c.sessionsStarted,
		SessionsCompleted: c.sessionsCompleted,
		SessionsFailed:    c.sessionsFailed,

		ConnectSuccess: c.connectSuccess,
		ConnectFailure: c.connectFailure,

		ChunksWritten:  c.chunksWritten,
		BytesWritten:   c.bytesWritten,
		FramesRejected: c.framesRejected,

		AcksByType:       acks,
		AckDecodeErrors:  c.ackDecodeErrors,
		FragmentErrors:   c.fragmentErrors,
		CallbackFailures: c.callbackFailures,

		FramesBuffered: c.framesBuffered,
		BytesBuffered:  c.bytesBuffered,

		JournalWriteSuccess: c.journalWriteSuccess,
		JournalWriteFailure: c.journalWriteFailure,
		PublishSuccess:      c.publishSuccess,
		PublishFailure:      c.publishFailure,

		Stream:    c.stream,
		Endpoint:  c.endpoint,
		SessionID: c.sessionID,
	}
}
