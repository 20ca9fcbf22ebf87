// Package reader is the read side of the fragstream CLI.
//
// Commands that look at a finished session (inspect, stats) go through
// this package instead of touching journal files directly, so the same
// payloads feed json, yaml, table and TUI output.
package reader

import (
	"time"

	"github.com/pithecene-io/fragstream/journal"
)

// EntryRow is a journal entry flattened for tabular output.
type EntryRow struct {
	Seq              int64     `json:"seq" yaml:"seq"`
	Kind             string    `json:"kind" yaml:"kind"`
	ReceivedAt       time.Time `json:"received_at" yaml:"received_at"`
	AckType          string    `json:"ack_type,omitempty" yaml:"ack_type,omitempty"`
	FragmentTimecode *int64    `json:"fragment_timecode,omitempty" yaml:"fragment_timecode,omitempty"`
	FragmentNumber   string    `json:"fragment_number,omitempty" yaml:"fragment_number,omitempty"`
	ErrorCode        *int      `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Detail           string    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// InspectSessionResponse is the payload of `fragstream inspect`.
type InspectSessionResponse struct {
	Path    string               `json:"path" yaml:"path"`
	Session *journal.SessionInfo `json:"session" yaml:"session"`
	Entries []EntryRow           `json:"entries" yaml:"entries"`
	// Truncated is set when the journal ends in a partial record.
	Truncated bool `json:"truncated" yaml:"truncated"`
}

// SessionStats is the payload of `fragstream stats`.
type SessionStats struct {
	Path            string `json:"path" yaml:"path"`
	journal.Summary `yaml:",inline"`
	Truncated       bool   `json:"truncated" yaml:"truncated"`
}

// WireChunk is one chunk of a captured upload body.
type WireChunk struct {
	Index  int64 `json:"index" yaml:"index"`
	Offset int64 `json:"offset" yaml:"offset"`
	Size   int   `json:"size" yaml:"size"`
	// Preview is the hex of the first PreviewBytes of the payload.
	Preview string `json:"preview" yaml:"preview"`
}

// WireCapture is the payload of `fragstream inspect wire`.
type WireCapture struct {
	Path         string      `json:"path" yaml:"path"`
	Chunks       int64       `json:"chunks" yaml:"chunks"`
	PayloadBytes int64       `json:"payload_bytes" yaml:"payload_bytes"`
	Terminated   bool        `json:"terminated" yaml:"terminated"`
	Rows         []WireChunk `json:"rows" yaml:"rows"`
}
