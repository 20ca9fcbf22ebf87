// Package adapter publishes ack notifications to downstream systems so that
// consumers can react to persisted or failed fragments without reading the
// upload connection themselves.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/fragstream/types"
)

// EventTypeFragmentAck is the event_type of every AckNotification.
const EventTypeFragmentAck = "fragment_ack"

// DefaultBackoff is the base delay before the first retry. Each further
// retry doubles it.
const DefaultBackoff = 500 * time.Millisecond

// AckNotification is the payload published for one ack event.
type AckNotification struct {
	ContractVersion  string `json:"contract_version"`
	EventType        string `json:"event_type"` // always "fragment_ack"
	SessionID        string `json:"session_id"`
	Stream           string `json:"stream"`
	Seq              int64  `json:"seq"`
	AckType          string `json:"ack_type"`
	FragmentTimecode int64  `json:"fragment_timecode"`
	FragmentNumber   string `json:"fragment_number,omitempty"`
	ErrorCode        int    `json:"error_code,omitempty"`
	Timestamp        string `json:"timestamp"` // RFC 3339
}

// NewAckNotification builds the payload for ev.
func NewAckNotification(sessionID, stream string, seq int64, ev types.AckEvent, at time.Time) *AckNotification {
	return &AckNotification{
		ContractVersion:  types.Version,
		EventType:        EventTypeFragmentAck,
		SessionID:        sessionID,
		Stream:           stream,
		Seq:              seq,
		AckType:          string(ev.Type),
		FragmentTimecode: ev.FragmentTimecode,
		FragmentNumber:   ev.FragmentNumber,
		ErrorCode:        ev.ErrorCode,
		Timestamp:        at.UTC().Format(time.RFC3339Nano),
	}
}

// Adapter publishes ack notifications to a downstream system.
type Adapter interface {
	// Publish sends one notification.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, n *AckNotification) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the delay before retry attempt i (i >= 1).
func Backoff(base time.Duration, i int) time.Duration {
	if base <= 0 {
		base = DefaultBackoff
	}
	return time.Duration(1<<uint(i-1)) * base
}
