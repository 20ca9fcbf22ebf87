package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/fragstream/ack"
	"github.com/pithecene-io/fragstream/adapter"
	"github.com/pithecene-io/fragstream/adapter/redis"
	"github.com/pithecene-io/fragstream/adapter/webhook"
	"github.com/pithecene-io/fragstream/cli/config"
	"github.com/pithecene-io/fragstream/engine"
	"github.com/pithecene-io/fragstream/iox"
	"github.com/pithecene-io/fragstream/journal"
	"github.com/pithecene-io/fragstream/lifecycle"
	"github.com/pithecene-io/fragstream/log"
	"github.com/pithecene-io/fragstream/metrics"
	"github.com/pithecene-io/fragstream/producer"
	"github.com/pithecene-io/fragstream/socket"
	"github.com/pithecene-io/fragstream/transport"
	"github.com/pithecene-io/fragstream/types"
)

// cleanupTimeout bounds adapter drain and journal archival after a session.
const cleanupTimeout = 30 * time.Second

// maxRejectedListed caps PutResult.RejectedFragments; the full count is
// FragmentErrors.
const maxRejectedListed = 20

// PutResult is the summary printed after put.
type PutResult struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	Stream    string `json:"stream" yaml:"stream"`
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Status    int    `json:"status" yaml:"status"`

	Frames       int64         `json:"frames" yaml:"frames"`
	FrameBytes   int64         `json:"frame_bytes" yaml:"frame_bytes"`
	Chunks       int64         `json:"chunks" yaml:"chunks"`
	PayloadBytes int64         `json:"payload_bytes" yaml:"payload_bytes"`
	Duration     time.Duration `json:"duration" yaml:"duration"`

	Acks            map[string]int64 `json:"acks" yaml:"acks"`
	FragmentErrors  int64            `json:"fragment_errors" yaml:"fragment_errors"`
	AckDecodeErrors int64            `json:"ack_decode_errors" yaml:"ack_decode_errors"`
	Published       int64            `json:"published,omitempty" yaml:"published,omitempty"`
	PublishFailures int64            `json:"publish_failures,omitempty" yaml:"publish_failures,omitempty"`

	// RejectedFragments describes the first ERROR acks.
	RejectedFragments []string `json:"rejected_fragments,omitempty" yaml:"rejected_fragments,omitempty"`

	Journal    string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Capture    string `json:"capture,omitempty" yaml:"capture,omitempty"`
	ArchiveKey string `json:"archive_key,omitempty" yaml:"archive_key,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// newArchiver builds the journal archiver. Tests replace it.
var newArchiver = func(ctx context.Context, cfg journal.S3Config) (journal.Archiver, error) {
	return journal.NewS3Archiver(ctx, cfg)
}

// executePut runs one upload session for src and tears everything down.
// The returned result is non-nil whenever a session was attempted.
func executePut(ctx context.Context, opts *putOptions, src io.Reader) (*PutResult, error) {
	cfg := opts.cfg
	sessionID := uuid.NewString()

	baseLogger, err := log.New(log.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}, log.StreamMeta{StreamName: cfg.Stream})
	if err != nil {
		return nil, err
	}
	defer iox.DiscardErr(baseLogger.Sync)
	if opts.quiet && cfg.Log.Level == "" {
		if err := baseLogger.SetLevel("warn"); err != nil {
			return nil, err
		}
	}
	logger := baseLogger.WithSession(sessionID)
	sugar := logger.Sugar()
	if opts.pace && opts.frameDuration <= 0 {
		sugar.Warnf("--pace has no effect with frame duration %s", opts.frameDuration)
	}

	collector := metrics.NewCollector(cfg.Stream, cfg.Endpoint, sessionID)
	callbacks := lifecycle.NewLogging(logger, nil)

	queueCfg := engine.DefaultConfig()
	if cfg.Engine.MaxFrames > 0 {
		queueCfg.MaxFrames = cfg.Engine.MaxFrames
	}
	if cfg.Engine.MaxBytes > 0 {
		queueCfg.MaxBytes = cfg.Engine.MaxBytes
	}
	queueCfg.LatencyTarget = cfg.Engine.LatencyTarget.Duration
	queueCfg.Callbacks = callbacks
	queueCfg.Logger = logger
	queue, err := engine.New(queueCfg)
	if err != nil {
		return nil, err
	}

	result := &PutResult{SessionID: sessionID, Stream: cfg.Stream, Endpoint: cfg.Endpoint}

	// Ack handlers: journal first, then the notification adapter.
	var (
		handler   ack.Handler
		publisher *adapter.Handler
		jw        *journal.Writer
	)
	if cfg.Adapter.Type != "" {
		a, err := buildAdapter(cfg.Adapter)
		if err != nil {
			return nil, err
		}
		publisher = adapter.NewHandler(a, adapter.HandlerConfig{
			SessionID: sessionID,
			Stream:    cfg.Stream,
			Types:     ackTypes(cfg.Adapter.Types),
			Logger:    logger,
			Collector: collector,
		})
		handler = publisher
	}
	if cfg.Journal.Dir != "" {
		result.Journal = filepath.Join(cfg.Journal.Dir, sessionID+".journal")
		jw, err = journal.Create(result.Journal, journal.SessionInfo{
			SessionID: sessionID,
			Stream:    cfg.Stream,
			Endpoint:  cfg.Endpoint,
		}, journal.Config{Next: handler, Collector: collector, Logger: logger})
		if err != nil {
			_ = queue.Close()
			closePublisher(publisher, logger)
			return nil, err
		}
		handler = jw
	}

	var capture io.Writer
	if opts.capture != "" {
		f, err := os.Create(opts.capture)
		if err != nil {
			_ = queue.Close()
			finishDownstream(jw, publisher, cfg.Journal, result, logger)
			return result, fmt.Errorf("create capture: %w", err)
		}
		defer iox.DiscardClose(f)
		capture = f
		result.Capture = opts.capture
	}

	onFragmentError := func(err error) {
		if len(result.RejectedFragments) < maxRejectedListed {
			result.RejectedFragments = append(result.RejectedFragments, err.Error())
		}
	}

	sess, err := transport.NewSession(transport.Config{
		Endpoint:   cfg.Endpoint,
		StreamName: cfg.Stream,
		Headers:    cfg.Headers,
		SessionID:  sessionID,
		Socket: socket.Config{
			ConnectTimeout: cfg.Timeouts.Connect.Duration,
			ReadTimeout:    cfg.Timeouts.Read.Duration,
			WriteTimeout:   cfg.Timeouts.Write.Duration,
			RootCAs:        opts.rootCAs,
		},
		ChunkSize:        cfg.Session.ChunkSize,
		MaxAckRecordSize: cfg.Session.MaxAckRecordSize,
		StaleAfter:       cfg.Session.StaleAfter.Duration,
		Capture:          capture,
		Callbacks:        callbacks,
		OnFragmentError:  onFragmentError,
		AckHandler:       handler,
		Logger:           baseLogger,
		Collector:        collector,
	}, queue)
	if err != nil {
		_ = queue.Close()
		finishDownstream(jw, publisher, cfg.Journal, result, logger)
		return result, err
	}

	runErr := runSession(ctx, sess, queue, opts, src, result, logger)
	runErr = closeSession(sess, runErr, logger)

	stats := queue.Stats()
	collector.AbsorbEngineStats(stats.FramesIn, stats.BytesIn)
	finishDownstream(jw, publisher, cfg.Journal, result, logger)

	snap := collector.Snapshot()
	result.Acks = snap.AcksByType
	result.FragmentErrors = snap.FragmentErrors
	result.AckDecodeErrors = snap.AckDecodeErrors
	result.Published = snap.PublishSuccess
	result.PublishFailures = snap.PublishFailure
	if runErr != nil {
		result.Error = runErr.Error()
	}
	sugar.Infof("sent %d frames in %d chunks, %d acks, %d fragment errors",
		result.Frames, result.Chunks, totalAcks(result.Acks), result.FragmentErrors)
	return result, runErr
}

// closeSession closes sess. A close failure, such as a failing StreamClosed
// callback, becomes the session error unless one is already set.
func closeSession(sess io.Closer, runErr error, logger *log.Logger) error {
	err := sess.Close()
	if err == nil {
		return runErr
	}
	logger.Error("session close failed", map[string]any{"error": err.Error()})
	if runErr == nil {
		return err
	}
	return runErr
}

func totalAcks(byType map[string]int64) int64 {
	var n int64
	for _, c := range byType {
		n += c
	}
	return n
}

// runSession opens the connection, feeds src through the engine and
// drives the session to completion.
func runSession(ctx context.Context, sess *transport.Session, queue *engine.Queue, opts *putOptions, src io.Reader, result *PutResult, logger *log.Logger) error {
	if err := sess.Open(ctx); err != nil {
		_ = queue.Close()
		return err
	}
	if err := sess.Arm(); err != nil {
		return err
	}

	sink := producer.NewSink(queue)
	feedDone := make(chan error, 1)
	go func() {
		defer func() { _ = queue.Close() }()
		feedDone <- feed(ctx, sink, opts, src, result)
	}()

	res, runErr := sess.Run(ctx)
	if res != nil {
		result.Status = res.Status
		result.Chunks = res.Chunks
		result.PayloadBytes = res.PayloadBytes
		result.Duration = res.Duration
	}

	// The session is over; unblock the feeder if it is still pushing.
	_ = queue.Close()
	feedErr := <-feedDone
	if feedErr != nil && !errors.Is(feedErr, engine.ErrClosed) && !errors.Is(feedErr, context.Canceled) {
		logger.Error("feed failed", map[string]any{"error": feedErr.Error()})
		if runErr == nil {
			runErr = feedErr
		}
	}
	return runErr
}

// feed pushes codec private data, tags and then the file's frames.
func feed(ctx context.Context, sink *producer.Sink, opts *putOptions, src io.Reader, result *PutResult) error {
	if len(opts.codecPrivate) > 0 {
		if err := sink.OnCodecPrivateData(ctx, opts.codecPrivate); err != nil {
			return err
		}
	}
	for name, value := range opts.tags {
		if err := sink.OnFragmentMetadata(ctx, name, value, true); err != nil {
			return err
		}
	}

	st, err := producer.Feed(ctx, src, sink, producer.FeedConfig{
		FrameSize:        opts.frameSize,
		FrameDuration:    opts.frameDuration,
		KeyFrameInterval: opts.keyFrameInterval,
		Pace:             opts.pace,
	})
	result.Frames = st.Frames
	result.FrameBytes = st.Bytes
	return err
}

// finishDownstream drains the adapter, closes the journal and archives it.
// Failures here are logged and recorded on the result; the upload
// outcome is already decided.
func finishDownstream(jw *journal.Writer, publisher *adapter.Handler, jcfg config.JournalConfig, result *PutResult, logger *log.Logger) {
	closePublisher(publisher, logger)

	if jw == nil {
		return
	}
	if err := jw.Close(); err != nil {
		logger.Error("journal close failed", map[string]any{"error": err.Error()})
		return
	}
	if jcfg.Archive == "" {
		return
	}

	ctx, cancel := withTimeout(cleanupTimeout)
	defer cancel()

	bucket, prefix := journal.ParseS3Path(jcfg.Archive)
	archiver, err := newArchiver(ctx, journal.S3Config{
		Bucket:       bucket,
		Prefix:       prefix,
		Region:       jcfg.Region,
		Endpoint:     jcfg.Endpoint,
		UsePathStyle: jcfg.S3PathStyle,
	})
	if err != nil {
		logger.Error("journal archive setup failed", map[string]any{"error": err.Error()})
		return
	}
	key, err := archiver.Archive(ctx, result.Journal, result.SessionID)
	if err != nil {
		logger.Error("journal archive failed", map[string]any{"error": err.Error()})
		return
	}
	result.ArchiveKey = key
	logger.Info("journal archived", map[string]any{"key": key})
}

func closePublisher(publisher *adapter.Handler, logger *log.Logger) {
	if publisher == nil {
		return
	}
	ctx, cancel := withTimeout(cleanupTimeout)
	defer cancel()
	if err := publisher.Close(ctx); err != nil {
		logger.Warn("adapter close failed", map[string]any{"error": err.Error()})
	}
}

func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	retries := webhook.DefaultRetries
	if cfg.Retries != nil {
		retries = *cfg.Retries
	}

	switch cfg.Type {
	case config.AdapterWebhook:
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
			Backoff: cfg.Backoff.Duration,
		})
	case config.AdapterRedis:
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
			Backoff: cfg.Backoff.Duration,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Type)
	}
}

func ackTypes(names []string) []types.AckEventType {
	if len(names) == 0 {
		return nil
	}
	out := make([]types.AckEventType, 0, len(names))
	for _, n := range names {
		out = append(out, types.AckEventType(n))
	}
	return out
}
