package cmd

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fragstream/cli/config"
	"github.com/pithecene-io/fragstream/cli/render"
	"github.com/pithecene-io/fragstream/iox"
	"github.com/pithecene-io/fragstream/streamerr"
)

// Exit codes for put. Read-only commands only use exitUsage.
const (
	exitSuccess       = 0
	exitUsage         = 1
	exitConnection    = 2
	exitStreamFailure = 3
)

// Defaults for cutting the input file into frames.
const (
	defaultFrameSize        = 32 * 1024
	defaultFrameDuration    = 40 * time.Millisecond
	defaultKeyFrameInterval = 25
)

// PutCommand returns the put command, the only command that uploads.
func PutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "Stream a media file to an ingestion endpoint and collect its acks",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to fragstream.yaml",
				EnvVars: []string{"FRAGSTREAM_CONFIG"},
			},
			// Destination
			&cli.StringFlag{
				Name:  "endpoint",
				Usage: "Ingestion URL (http:// or https://)",
			},
			&cli.StringFlag{
				Name:  "stream",
				Usage: "Stream name sent with the request",
			},
			&cli.StringSliceFlag{
				Name:  "header",
				Usage: "Extra request header as name=value (repeatable)",
			},
			&cli.StringFlag{
				Name:  "ca-file",
				Usage: "PEM bundle used instead of the system trust store",
			},
			// Framing
			&cli.IntFlag{
				Name:  "frame-size",
				Usage: "Bytes per frame",
				Value: defaultFrameSize,
			},
			&cli.DurationFlag{
				Name:  "frame-duration",
				Usage: "Timecode advance per frame",
				Value: defaultFrameDuration,
			},
			&cli.IntFlag{
				Name:  "key-frame-interval",
				Usage: "Mark every Nth frame as a key frame",
				Value: defaultKeyFrameInterval,
			},
			&cli.BoolFlag{
				Name:  "pace",
				Usage: "Feed frames in real time instead of as fast as possible",
			},
			&cli.StringFlag{
				Name:  "codec-private",
				Usage: "File whose bytes are sent as codec private data before the first frame",
			},
			&cli.StringSliceFlag{
				Name:  "tag",
				Usage: "Fragment metadata tag as name=value (repeatable)",
			},
			// Session
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Maximum chunk payload in bytes",
			},
			&cli.DurationFlag{
				Name:  "stale-after",
				Usage: "Report a stale connection when no ack arrives for this long",
			},
			&cli.StringFlag{
				Name:  "capture",
				Usage: "Write a copy of the chunked request body to this file (read it with inspect wire)",
			},
			// Journal
			&cli.StringFlag{
				Name:  "journal-dir",
				Usage: "Directory for the <session>.journal ack record",
			},
			&cli.StringFlag{
				Name:  "archive",
				Usage: "Upload the journal to S3 after the session (bucket or bucket/prefix)",
			},
			// Logging
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Write logs to a rotated file instead of stderr",
			},
			// Output
			FormatFlag,
			NoColorFlag,
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the result summary and info logs unless a log level is set",
			},
		},
		Action: putAction,
	}
}

// putOptions is the merged result of config file and flags.
type putOptions struct {
	cfg     *config.Config
	file    string
	rootCAs *x509.CertPool

	frameSize        int
	frameDuration    time.Duration
	keyFrameInterval int
	pace             bool
	codecPrivate     []byte
	tags             map[string]string

	capture string
	quiet   bool
}

func putAction(c *cli.Context) error {
	opts, err := resolvePutOptions(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	f, err := os.Open(opts.file)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open input: %v", err), exitUsage)
	}
	defer iox.DiscardClose(f)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, runErr := executePut(ctx, opts, f)
	if result != nil && !opts.quiet {
		if err := r.Render(result); err != nil {
			return err
		}
	}

	if runErr != nil {
		return cli.Exit(runErr.Error(), putExitCode(runErr))
	}
	return nil
}

// putExitCode maps a session failure to an exit code.
func putExitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case streamerr.Is(err, streamerr.KindConnection):
		return exitConnection
	default:
		return exitStreamFailure
	}
}

func resolvePutOptions(c *cli.Context) (*putOptions, error) {
	if c.NArg() < 1 {
		return nil, errors.New("input file required")
	}

	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Flags override the file.
	if c.IsSet("endpoint") {
		cfg.Endpoint = c.String("endpoint")
	}
	if c.IsSet("stream") {
		cfg.Stream = c.String("stream")
	}
	headers, err := parsePairs("header", c.StringSlice("header"))
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 && cfg.Headers == nil {
		cfg.Headers = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		cfg.Headers[k] = v
	}
	if c.IsSet("ca-file") {
		cfg.TLS.CAFile = c.String("ca-file")
	}
	if c.IsSet("chunk-size") {
		cfg.Session.ChunkSize = c.Int("chunk-size")
	}
	if c.IsSet("stale-after") {
		cfg.Session.StaleAfter = config.Duration{Duration: c.Duration("stale-after")}
	}
	if c.IsSet("journal-dir") {
		cfg.Journal.Dir = c.String("journal-dir")
	}
	if c.IsSet("archive") {
		cfg.Journal.Archive = c.String("archive")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-file") {
		cfg.Log.File = c.String("log-file")
	}

	if cfg.Endpoint == "" {
		return nil, errors.New("endpoint required (--endpoint or config endpoint)")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Journal.Archive != "" && cfg.Journal.Dir == "" {
		return nil, errors.New("--archive requires a journal directory")
	}

	opts := &putOptions{
		cfg:              cfg,
		file:             c.Args().First(),
		frameSize:        c.Int("frame-size"),
		frameDuration:    c.Duration("frame-duration"),
		keyFrameInterval: c.Int("key-frame-interval"),
		pace:             c.Bool("pace"),
		capture:          c.String("capture"),
		quiet:            c.Bool("quiet"),
	}
	if opts.frameSize <= 0 {
		return nil, fmt.Errorf("--frame-size must be > 0, got %d", opts.frameSize)
	}

	if opts.tags, err = parsePairs("tag", c.StringSlice("tag")); err != nil {
		return nil, err
	}
	if path := c.String("codec-private"); path != "" {
		if opts.codecPrivate, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read codec private data: %w", err)
		}
	}
	if cfg.TLS.CAFile != "" {
		if opts.rootCAs, err = loadCAFile(cfg.TLS.CAFile); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func loadCAFile(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca file %s: no certificates found", path)
	}
	return pool, nil
}

// withTimeout bounds post-session cleanup that must run even when the
// session context was cancelled.
func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}
