// Package journal records a session's ack stream to a length-prefixed
// msgpack file so it can be inspected, summarized and archived afterwards.
package journal

import (
	"time"

	"github.com/pithecene-io/fragstream/types"
)

// EntryKind discriminates journal entries.
type EntryKind string

const (
	// EntrySession is the header entry written once at the start of a journal.
	EntrySession EntryKind = "session"
	// EntryAck is a decoded ack event.
	EntryAck EntryKind = "ack"
	// EntryDecodeError is an ack record that failed to decode.
	EntryDecodeError EntryKind = "decode_error"
)

// SessionInfo identifies the session a journal belongs to.
type SessionInfo struct {
	JournalVersion string    `msgpack:"journal_version" json:"journal_version" yaml:"journal_version"`
	SessionID      string    `msgpack:"session_id" json:"session_id" yaml:"session_id"`
	Stream         string    `msgpack:"stream" json:"stream" yaml:"stream"`
	Endpoint       string    `msgpack:"endpoint" json:"endpoint" yaml:"endpoint"`
	StartedAt      time.Time `msgpack:"started_at" json:"started_at" yaml:"started_at"`
}

// Entry is one journal record.
type Entry struct {
	Seq        int64     `msgpack:"seq" json:"seq" yaml:"seq"`
	Kind       EntryKind `msgpack:"kind" json:"kind" yaml:"kind"`
	ReceivedAt time.Time `msgpack:"received_at" json:"received_at" yaml:"received_at"`

	// Session is set on EntrySession.
	Session *SessionInfo `msgpack:"session,omitempty" json:"session,omitempty" yaml:"session,omitempty"`

	// Event is set on EntryAck.
	Event *types.AckEvent `msgpack:"event,omitempty" json:"event,omitempty" yaml:"event,omitempty"`

	// Raw and Error are set on EntryDecodeError.
	Raw   string `msgpack:"raw,omitempty" json:"raw,omitempty" yaml:"raw,omitempty"`
	Error string `msgpack:"error,omitempty" json:"error,omitempty" yaml:"error,omitempty"`
}
