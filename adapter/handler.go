package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/fragstream/ack"
	"github.com/pithecene-io/fragstream/log"
	"github.com/pithecene-io/fragstream/metrics"
	"github.com/pithecene-io/fragstream/types"
)

// DefaultQueueSize bounds notifications waiting to be published.
const DefaultQueueSize = 256

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	SessionID string
	Stream    string

	// Types selects which acks are published. Empty means ERROR and PERSISTED.
	Types []types.AckEventType

	// QueueSize bounds pending notifications (default DefaultQueueSize).
	// When the queue is full new notifications are dropped and counted as
	// publish failures.
	QueueSize int

	// Next, if set, receives every ack after it is queued.
	Next ack.Handler

	Logger    *log.Logger
	Collector *metrics.Collector
}

// Handler is an ack.Handler that publishes selected acks through an Adapter.
// Publishing happens on a background worker so a slow downstream never stalls
// the ack stream; a publish failure is logged and never ends the session.
type Handler struct {
	adapter Adapter
	cfg     HandlerConfig
	filter  map[types.AckEventType]bool

	mu     sync.Mutex
	seq    int64
	closed bool
	queue  chan *AckNotification

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewHandler starts the publish worker.
func NewHandler(a Adapter, cfg HandlerConfig) *Handler {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}
	sel := cfg.Types
	if len(sel) == 0 {
		sel = []types.AckEventType{types.AckEventError, types.AckEventPersisted}
	}
	filter := make(map[types.AckEventType]bool, len(sel))
	for _, t := range sel {
		filter[t] = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		adapter: a,
		cfg:     cfg,
		filter:  filter,
		queue:   make(chan *AckNotification, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Handler) run() {
	defer close(h.done)
	for n := range h.queue {
		err := h.adapter.Publish(h.ctx, n)
		h.cfg.Collector.IncPublish(err == nil)
		if err != nil {
			h.cfg.Logger.Warn("ack notification publish failed", map[string]any{
				"seq":   n.Seq,
				"type":  n.AckType,
				"error": err.Error(),
			})
		}
	}
}

// HandleAck implements ack.Handler.
func (h *Handler) HandleAck(ctx context.Context, ev types.AckEvent) error {
	if h.filter[ev.Type] {
		h.enqueue(ev)
	}
	if h.cfg.Next != nil {
		return h.cfg.Next.HandleAck(ctx, ev)
	}
	return nil
}

func (h *Handler) enqueue(ev types.AckEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	n := NewAckNotification(h.cfg.SessionID, h.cfg.Stream, h.seq, ev, time.Now())
	h.seq++
	select {
	case h.queue <- n:
	default:
		h.cfg.Collector.IncPublish(false)
		h.cfg.Logger.Warn("ack notification dropped: queue full", map[string]any{
			"seq":  n.Seq,
			"type": n.AckType,
		})
	}
}

// HandleDecodeError implements ack.Handler.
func (h *Handler) HandleDecodeError(record []byte, err error) {
	if h.cfg.Next != nil {
		h.cfg.Next.HandleDecodeError(record, err)
	}
}

// Close stops accepting notifications, waits for queued ones to publish
// until ctx is done, then closes the adapter. Close is idempotent.
func (h *Handler) Close(ctx context.Context) error {
	var err error
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.queue)
		h.mu.Unlock()

		select {
		case <-h.done:
		case <-ctx.Done():
			h.cancel()
			<-h.done
			err = ctx.Err()
		}
		h.cancel()
		if cerr := h.adapter.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

var _ ack.Handler = (*Handler)(nil)
