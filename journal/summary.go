package journal

import (
	"time"

	"github.com/pithecene-io/fragstream/types"
)

// FragmentError is one ERROR ack.
type FragmentError struct {
	FragmentTimecode int64 `json:"fragment_timecode" yaml:"fragment_timecode"`
	ErrorCode        int   `json:"error_code" yaml:"error_code"`
}

// Summary aggregates a journal.
type Summary struct {
	Session *SessionInfo `json:"session,omitempty" yaml:"session,omitempty"`

	Entries      int              `json:"entries" yaml:"entries"`
	Acks         int              `json:"acks" yaml:"acks"`
	AcksByType   map[string]int64 `json:"acks_by_type" yaml:"acks_by_type"`
	DecodeErrors int              `json:"decode_errors" yaml:"decode_errors"`
	Errors       []FragmentError  `json:"errors,omitempty" yaml:"errors,omitempty"`

	// PersistedFragments counts distinct timecodes with a PERSISTED ack.
	PersistedFragments int `json:"persisted_fragments" yaml:"persisted_fragments"`
	// LastPersistedTimecode is the highest persisted timecode, or -1.
	LastPersistedTimecode int64 `json:"last_persisted_timecode" yaml:"last_persisted_timecode"`

	FirstAckAt time.Time     `json:"first_ack_at" yaml:"first_ack_at"`
	LastAckAt  time.Time     `json:"last_ack_at" yaml:"last_ack_at"`
	Span       time.Duration `json:"span" yaml:"span"`
}

// Summarize aggregates entries in order. Duplicate acks for the same
// fragment are counted per ack but collapse in PersistedFragments.
func Summarize(entries []Entry) Summary {
	s := Summary{
		Entries:               len(entries),
		AcksByType:            make(map[string]int64),
		LastPersistedTimecode: -1,
	}
	persisted := make(map[int64]struct{})

	for _, e := range entries {
		switch e.Kind {
		case EntrySession:
			if s.Session == nil {
				s.Session = e.Session
			}
		case EntryDecodeError:
			s.DecodeErrors++
		case EntryAck:
			if e.Event == nil {
				continue
			}
			s.Acks++
			s.AcksByType[string(e.Event.Type)]++
			if s.FirstAckAt.IsZero() || e.ReceivedAt.Before(s.FirstAckAt) {
				s.FirstAckAt = e.ReceivedAt
			}
			if e.ReceivedAt.After(s.LastAckAt) {
				s.LastAckAt = e.ReceivedAt
			}

			switch e.Event.Type {
			case types.AckEventError:
				s.Errors = append(s.Errors, FragmentError{
					FragmentTimecode: e.Event.FragmentTimecode,
					ErrorCode:        e.Event.ErrorCode,
				})
			case types.AckEventPersisted:
				persisted[e.Event.FragmentTimecode] = struct{}{}
				if e.Event.FragmentTimecode > s.LastPersistedTimecode {
					s.LastPersistedTimecode = e.Event.FragmentTimecode
				}
			}
		}
	}

	s.PersistedFragments = len(persisted)
	if !s.FirstAckAt.IsZero() {
		s.Span = s.LastAckAt.Sub(s.FirstAckAt)
	}
	return s
}
