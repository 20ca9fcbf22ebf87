// Package transport runs one upload session: a single HTTP/1.1 chunked POST
// whose request body carries the buffered media and whose response body
// carries the ack stream.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pithecene-io/fragstream/ack"
	"github.com/pithecene-io/fragstream/chunk"
	"github.com/pithecene-io/fragstream/gate"
	"github.com/pithecene-io/fragstream/lifecycle"
	"github.com/pithecene-io/fragstream/log"
	"github.com/pithecene-io/fragstream/metrics"
	"github.com/pithecene-io/fragstream/socket"
	"github.com/pithecene-io/fragstream/streamerr"
	"github.com/pithecene-io/fragstream/types"
)

const (
	// HeaderSession carries the session ID on the upload request.
	HeaderSession = "X-Fragstream-Session"
	// HeaderStream carries the stream name on the upload request.
	HeaderStream = "X-Fragstream-Stream"

	// DefaultChunkSize is the largest payload read from the source per chunk.
	DefaultChunkSize = 64 * 1024
)

// ErrBadStatus is the cause when the service answers with a non-2xx status.
var ErrBadStatus = errors.New("unexpected response status")

// ErrNotOpen is returned by Run before a successful Open.
var ErrNotOpen = errors.New("session not open")

// ErrClosed is returned by Open when the session was closed while dialing.
var ErrClosed = errors.New("session closed")

// Config configures a Session.
type Config struct {
	// Endpoint is the ingestion URL (http or https).
	Endpoint string
	// StreamName identifies the stream to the service.
	StreamName string
	// Headers are added to the request head.
	Headers map[string]string
	// SessionID overrides the generated session ID.
	SessionID string

	// Socket configures connection establishment.
	Socket socket.Config

	// ChunkSize bounds each chunk's payload (default DefaultChunkSize).
	ChunkSize int
	// MaxAckRecordSize bounds one ack record (default ack.DefaultMaxRecordSize).
	MaxAckRecordSize int
	// StaleAfter, if set, raises StreamConnectionStale when no ack has
	// arrived for that long after the session is armed.
	StaleAfter time.Duration
	// Capture, if set, receives a copy of the chunked request body.
	// A failing capture is logged and dropped; the upload continues.
	Capture io.Writer

	// Callbacks receives lifecycle notifications. Nil means lifecycle.Nop.
	Callbacks lifecycle.Callbacks
	// AckHandler, if set, sees every ack after the lifecycle routing.
	AckHandler ack.Handler
	// OnProgress, if set, receives non-error acks.
	OnProgress func(types.AckEvent)
	// OnFragmentError, if set, receives a KindFragment error per ERROR ack.
	OnFragmentError func(error)

	Logger    *log.Logger
	Collector *metrics.Collector
}

// Result summarizes a finished session.
type Result struct {
	SessionID    string
	Status       int
	Chunks       int64
	PayloadBytes int64
	Duration     time.Duration
	LastAckAt    time.Time
}

// Session is one upload over one connection. It is not reusable.
type Session struct {
	cfg     Config
	id      string
	ep      socket.Endpoint
	builder *socket.Builder
	src     *gate.Stream
	cb      lifecycle.Callbacks
	logger  *log.Logger

	// mu guards conn, body and closed.
	mu      sync.Mutex
	conn    net.Conn
	body    *chunk.Writer
	closed  bool
	channel atomic.Pointer[ack.Channel]
	status  atomic.Int64
	armedAt atomic.Int64

	// finished is set once the ack stream has ended normally; writer
	// failures after that point are expected and suppressed.
	finished  atomic.Bool
	closeOnce sync.Once
	start     time.Time
}

// NewSession creates a session that uploads the bytes of src.
// src is wrapped in a gate and is not read until Arm is called.
func NewSession(cfg Config, src io.ReadCloser) (*Session, error) {
	ep, err := socket.ParseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, streamerr.New(streamerr.KindConnection, "transport.new", err)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithSession(cfg.SessionID)

	sockCfg := cfg.Socket
	if sockCfg.Logger == nil {
		sockCfg.Logger = logger
	}

	return &Session{
		cfg:     cfg,
		id:      cfg.SessionID,
		ep:      ep,
		builder: socket.NewBuilder(sockCfg),
		src:     gate.New(src),
		cb:      lifecycle.OrNop(cfg.Callbacks),
		logger:  logger,
	}, nil
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Endpoint returns the parsed endpoint.
func (s *Session) Endpoint() socket.Endpoint {
	return s.ep
}

// Open connects and writes the request head. The body follows in Run.
func (s *Session) Open(ctx context.Context) error {
	s.start = time.Now()
	s.cfg.Collector.IncSessionStarted()

	conn, err := s.builder.Dial(ctx, s.ep)
	if err != nil {
		s.cfg.Collector.IncConnectFailure()
		return err
	}
	s.cfg.Collector.IncConnectSuccess()

	if err := s.writeHead(conn); err != nil {
		_ = conn.Close()
		return streamerr.New(streamerr.KindIO, "transport.write_head", err)
	}

	var out io.Writer = conn
	if s.cfg.Capture != nil {
		out = io.MultiWriter(conn, &captureWriter{w: s.cfg.Capture, logger: s.logger})
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return streamerr.New(streamerr.KindConnection, "transport.open", ErrClosed)
	}
	s.conn = conn
	s.body = chunk.NewWriter(out)
	s.mu.Unlock()

	s.logger.Info("session opened", map[string]any{
		"endpoint": s.ep.String(),
		"tls":      s.ep.TLS(),
	})
	return nil
}

func (s *Session) writeHead(w io.Writer) error {
	h := make(http.Header, len(s.cfg.Headers)+4)
	for k, v := range s.cfg.Headers {
		h.Set(k, v)
	}
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/octet-stream")
	}
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", "fragstream/"+types.Version)
	}
	h.Set("Transfer-Encoding", "chunked")
	h.Set(HeaderSession, s.id)
	if s.cfg.StreamName != "" {
		h.Set(HeaderStream, s.cfg.StreamName)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "POST %s HTTP/1.1\r\nHost: %s\r\n", s.ep.Path, s.ep.HostHeader())
	if err := h.Write(bw); err != nil {
		return err
	}
	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// Arm releases the upload gate and reports StreamReady.
// Bytes start flowing to the connection once Run is also active.
func (s *Session) Arm() error {
	s.armedAt.CompareAndSwap(0, time.Now().UnixNano())
	s.src.Release()
	if err := s.cb.StreamReady(); err != nil {
		return streamerr.New(streamerr.KindCallback, "transport.arm", err)
	}
	return nil
}

// Run drives the writer and reader roles until the service finishes the
// response, a terminal fault occurs, or ctx is cancelled.
//
// Fragment-level ERROR acks are reported through StreamError and do not end
// the session. Terminal faults are reported through StreamError with the
// HTTP status when one is known, then returned.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	conn, body := s.connection()
	if conn == nil {
		return nil, ErrNotOpen
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, s.shutdown)
	defer stop()

	readerDone := make(chan struct{})
	g.Go(func() error {
		return s.writeBody(body)
	})
	g.Go(func() error {
		defer close(readerDone)
		return s.readAcks(gctx, conn)
	})
	if s.cfg.StaleAfter > 0 {
		g.Go(func() error {
			return s.watchStale(gctx, readerDone)
		})
	}

	err := g.Wait()
	res := s.result(body)

	switch {
	case err == nil:
		s.cfg.Collector.IncSessionCompleted()
		s.logger.Info("session finished", map[string]any{
			"status":        res.Status,
			"chunks":        res.Chunks,
			"payload_bytes": res.PayloadBytes,
			"duration_ms":   res.Duration.Milliseconds(),
		})
		return res, nil
	case ctx.Err() != nil:
		s.cfg.Collector.IncSessionFailed()
		return res, ctx.Err()
	default:
		s.cfg.Collector.IncSessionFailed()
		s.logger.Error("session failed", map[string]any{"error": err.Error()})
		if !streamerr.Is(err, streamerr.KindCallback) {
			_ = s.cb.StreamError(0, res.Status)
		}
		return res, err
	}
}

// connection returns the open connection and its body writer, or nils.
func (s *Session) connection() (net.Conn, *chunk.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn, s.body
}

func (s *Session) result(body *chunk.Writer) *Result {
	chunks, bytes := body.Counts()
	res := &Result{
		SessionID:    s.id,
		Status:       int(s.status.Load()),
		Chunks:       chunks,
		PayloadBytes: bytes,
		Duration:     time.Since(s.start),
	}
	if ch := s.channel.Load(); ch != nil {
		res.LastAckAt = ch.LastAckAt()
	}
	return res
}

// writeBody is the writer role: gate → chunk encoder → connection.
func (s *Session) writeBody(body *chunk.Writer) error {
	buf := make([]byte, s.cfg.ChunkSize)
	for {
		n, err := s.src.Read(buf)
		if n > 0 {
			if _, werr := body.Write(buf[:n]); werr != nil {
				return s.writerErr(werr)
			}
			s.cfg.Collector.AddChunkWritten(n)
		}
		if errors.Is(err, io.EOF) {
			if cerr := body.Close(); cerr != nil {
				return s.writerErr(cerr)
			}
			s.logger.Debug("upload body complete", nil)
			return nil
		}
		if err != nil {
			var se *streamerr.Error
			if errors.As(err, &se) {
				return s.writerErr(err)
			}
			return s.writerErr(streamerr.New(streamerr.KindIO, "transport.read_source", err))
		}
	}
}

func (s *Session) writerErr(err error) error {
	if s.finished.Load() {
		return nil
	}
	return err
}

// readAcks is the reader role: response head, then the ack channel.
func (s *Session) readAcks(ctx context.Context, conn net.Conn) error {
	resp, err := http.ReadResponse(bufio.NewReader(conn), &http.Request{Method: http.MethodPost})
	if err != nil {
		return streamerr.New(streamerr.KindConnection, "transport.read_response", err)
	}
	defer resp.Body.Close()

	s.status.Store(int64(resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return streamerr.New(streamerr.KindConnection, "transport.read_response",
			fmt.Errorf("%w: %s", ErrBadStatus, resp.Status))
	}
	s.logger.Debug("response accepted", map[string]any{"status": resp.StatusCode})

	lh := ack.NewLifecycleHandler(s.cb, s.logger)
	lh.OnProgress = s.cfg.OnProgress
	lh.OnFragmentError = s.cfg.OnFragmentError
	handler := ack.Chain{lh, s.cfg.AckHandler}

	ch := ack.NewChannel(resp.Body, handler, ack.Config{
		MaxRecordSize: s.cfg.MaxAckRecordSize,
		Logger:        s.logger,
		Collector:     s.cfg.Collector,
	})
	s.channel.Store(ch)

	if err := ch.Run(ctx); err != nil {
		return err
	}

	// The service ended the response; stop any upload still in progress.
	s.finished.Store(true)
	s.shutdown()
	return nil
}

// watchStale raises StreamConnectionStale once per quiet period.
func (s *Session) watchStale(ctx context.Context, readerDone <-chan struct{}) error {
	ticker := time.NewTicker(max(s.cfg.StaleAfter/4, 10*time.Millisecond))
	defer ticker.Stop()

	var reported time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-readerDone:
			return nil
		case now := <-ticker.C:
			since := s.lastActivity()
			if since.IsZero() || (!reported.IsZero() && !since.After(reported)) {
				continue
			}
			quiet := now.Sub(since)
			if quiet < s.cfg.StaleAfter {
				continue
			}
			reported = now
			if err := s.cb.StreamConnectionStale(quiet); err != nil {
				return streamerr.New(streamerr.KindCallback, "transport.stale", err)
			}
		}
	}
}

// lastActivity is the later of the last ack and the arm time.
func (s *Session) lastActivity() time.Time {
	var last time.Time
	if ns := s.armedAt.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	if ch := s.channel.Load(); ch != nil {
		if at := ch.LastAckAt(); at.After(last) {
			last = at
		}
	}
	return last
}

// shutdown unblocks both roles.
func (s *Session) shutdown() {
	_ = s.src.Close()
	if conn, _ := s.connection(); conn != nil {
		_ = conn.Close()
	}
}

// Close releases the connection and the source and reports StreamClosed.
// Close is idempotent.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.shutdown()
		s.logger.Info("session closed", nil)
		if cerr := s.cb.StreamClosed(); cerr != nil {
			err = streamerr.New(streamerr.KindCallback, "transport.close", cerr)
		}
	})
	return err
}

// captureWriter copies body bytes to a side writer and stops copying after
// the first failure.
type captureWriter struct {
	w      io.Writer
	logger *log.Logger
	failed bool
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if c.failed {
		return len(p), nil
	}
	if _, err := c.w.Write(p); err != nil {
		c.failed = true
		c.logger.Warn("body capture failed", map[string]any{"error": err.Error()})
	}
	return len(p), nil
}
