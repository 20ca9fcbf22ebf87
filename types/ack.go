package types

// AckEventType is the acknowledgment type reported by the ingestion service.
type AckEventType string

// Ack event type constants as they appear on the wire.
const (
	AckEventBuffering AckEventType = "BUFFERING"
	AckEventReceived  AckEventType = "RECEIVED"
	AckEventPersisted AckEventType = "PERSISTED"
	AckEventError     AckEventType = "ERROR"
	AckEventIdle      AckEventType = "IDLE"
)

// knownAckTypes is the set of types the decoder accepts.
var knownAckTypes = map[AckEventType]bool{
	AckEventBuffering: true,
	AckEventReceived:  true,
	AckEventPersisted: true,
	AckEventError:     true,
	AckEventIdle:      true,
}

// IsKnown returns true if t is one of the defined ack types.
func (t AckEventType) IsKnown() bool {
	return knownAckTypes[t]
}

// IsProgress returns true for acks that report forward progress of a fragment.
func (t AckEventType) IsProgress() bool {
	return t == AckEventBuffering || t == AckEventReceived || t == AckEventPersisted
}

// IsError returns true for fragment-level failure acks.
func (t AckEventType) IsError() bool {
	return t == AckEventError
}

// AckEvent is one decoded acknowledgment record.
// FragmentTimecode is the correlation key back to the submitted fragment;
// matching it to in-flight fragments is the session manager's job.
type AckEvent struct {
	// Type is the ack type discriminator.
	Type AckEventType `msgpack:"type" json:"type" yaml:"type"`
	// ErrorCode is set for ERROR acks, zero otherwise.
	ErrorCode int `msgpack:"error_code" json:"errorCode" yaml:"error_code"`
	// FragmentTimecode is the fragment's own clock value at submission.
	FragmentTimecode int64 `msgpack:"fragment_timecode" json:"fragmentTimecode" yaml:"fragment_timecode"`
	// FragmentNumber is the service-assigned fragment identifier, when sent.
	FragmentNumber string `msgpack:"fragment_number,omitempty" json:"fragmentNumber,omitempty" yaml:"fragment_number,omitempty"`
}
