// Package redis publishes ack notifications to a Redis pub/sub channel.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/fragstream/adapter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "fragstream:acks"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel. "{stream}" is replaced by the
	// notification's stream name (default fragstream:acks).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	Retries int
	// Backoff is the delay before the first retry (default adapter.DefaultBackoff).
	Backoff time.Duration
}

// Adapter publishes ack notifications via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis adapter.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{config: cfg, client: goredis.NewClient(opts)}, nil
}

// ChannelFor returns the channel a notification for stream is published on.
func (a *Adapter) ChannelFor(stream string) string {
	return strings.ReplaceAll(a.config.Channel, "{stream}", stream)
}

// Publish sends n as JSON to the configured channel.
func (a *Adapter) Publish(ctx context.Context, n *adapter.AckNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("redis: marshal notification: %w", err)
	}
	channel := a.ChannelFor(n.Stream)

	var lastErr error
	attempts := 1 + a.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(adapter.Backoff(a.config.Backoff, i)):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		lastErr = a.client.Publish(publishCtx, channel, body).Err()
		cancel()
		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases the client connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
