package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/fragstream/types"
)

// Config represents a fragstream.yaml file.
// All values are optional defaults; command-line flags override them.
type Config struct {
	Endpoint string            `yaml:"endpoint"`
	Stream   string            `yaml:"stream"`
	Headers  map[string]string `yaml:"headers,omitempty"`

	Session  SessionConfig  `yaml:"session"`
	TLS      TLSConfig      `yaml:"tls"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Engine   EngineConfig   `yaml:"engine"`
	Log      LogConfig      `yaml:"log"`
	Journal  JournalConfig  `yaml:"journal"`
	Adapter  AdapterConfig  `yaml:"adapter"`
}

// SessionConfig tunes the upload session.
type SessionConfig struct {
	ChunkSize        int      `yaml:"chunk_size"`
	StaleAfter       Duration `yaml:"stale_after"`
	MaxAckRecordSize int      `yaml:"max_ack_record_size"`
}

// TLSConfig customizes server verification.
type TLSConfig struct {
	// CAFile is a PEM bundle used instead of the system trust store.
	CAFile string `yaml:"ca_file"`
}

// TimeoutsConfig bounds connection establishment and idle I/O.
type TimeoutsConfig struct {
	Connect Duration `yaml:"connect"`
	Read    Duration `yaml:"read"`
	Write   Duration `yaml:"write"`
}

// EngineConfig bounds the in-process buffering engine.
type EngineConfig struct {
	MaxFrames     int      `yaml:"max_frames"`
	MaxBytes      int64    `yaml:"max_bytes"`
	LatencyTarget Duration `yaml:"latency_target"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// JournalConfig controls ack journaling and archival.
type JournalConfig struct {
	// Dir is where <session>.journal files are written. Empty disables journaling.
	Dir string `yaml:"dir"`
	// Archive is "bucket" or "bucket/prefix". Empty disables archival.
	Archive     string `yaml:"archive"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// AdapterConfig selects an ack notification adapter.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
	Backoff Duration          `yaml:"backoff,omitempty"`
	// Types lists the ack types to publish. Empty means ERROR and PERSISTED.
	Types []string `yaml:"types,omitempty"`
}

// Adapter type names.
const (
	AdapterWebhook = "webhook"
	AdapterRedis   = "redis"
)

// ErrAdapterURL is returned when an adapter type is set without a URL.
var ErrAdapterURL = errors.New("adapter url is required")

// Validate checks cross-field constraints that YAML decoding cannot.
func (c *Config) Validate() error {
	switch c.Adapter.Type {
	case "":
	case AdapterWebhook, AdapterRedis:
		if c.Adapter.URL == "" {
			return fmt.Errorf("%w for type %q", ErrAdapterURL, c.Adapter.Type)
		}
	default:
		return fmt.Errorf("unknown adapter type %q (want %s or %s)", c.Adapter.Type, AdapterWebhook, AdapterRedis)
	}
	for _, t := range c.Adapter.Types {
		if !types.AckEventType(t).IsKnown() {
			return fmt.Errorf("adapter.types: unknown ack type %q", t)
		}
	}
	if c.Engine.MaxFrames < 0 || c.Engine.MaxBytes < 0 {
		return errors.New("engine limits must be >= 0")
	}
	if c.Session.ChunkSize < 0 {
		return errors.New("session.chunk_size must be >= 0")
	}
	return nil
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	if d.Duration == 0 {
		return "", nil
	}
	return d.String(), nil
}
