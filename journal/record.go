package journal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	// LengthPrefixSize is the size of the big-endian length prefix in bytes.
	LengthPrefixSize = 4
	// MaxPayloadSize bounds one encoded entry.
	MaxPayloadSize = 1 << 20
)

// RecordErrorKind classifies journal read failures.
type RecordErrorKind int

const (
	// RecordErrorPartial indicates a truncated record, usually a journal
	// whose writer did not finish.
	RecordErrorPartial RecordErrorKind = iota
	// RecordErrorTooLarge indicates a length prefix above MaxPayloadSize.
	RecordErrorTooLarge
	// RecordErrorDecode indicates a msgpack decoding failure.
	RecordErrorDecode
)

// RecordError is a journal read failure.
type RecordError struct {
	Kind RecordErrorKind
	Msg  string
	Err  error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// IsTruncated reports whether err is a partial trailing record.
func IsTruncated(err error) bool {
	var re *RecordError
	return errors.As(err, &re) && re.Kind == RecordErrorPartial
}

// encodeEntry returns the length-prefixed msgpack encoding of e.
func encodeEntry(e *Entry) ([]byte, error) {
	payload, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode journal entry: %w", err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("journal entry %d bytes exceeds maximum %d", len(payload), MaxPayloadSize)
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf, nil
}

// readPayload reads one length-prefixed payload.
// Returns io.EOF when the stream ends cleanly between records.
func readPayload(r io.Reader) ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &RecordError{Kind: RecordErrorPartial, Msg: "failed to read length prefix", Err: err}
	}

	size := binary.BigEndian.Uint32(lengthBuf[:])
	if size > MaxPayloadSize {
		return nil, &RecordError{
			Kind: RecordErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", size, MaxPayloadSize),
		}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, &RecordError{Kind: RecordErrorPartial, Msg: "failed to read payload", Err: err}
	}
	return payload, nil
}

func decodeEntry(payload []byte) (Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(payload, &e); err != nil {
		return Entry{}, &RecordError{Kind: RecordErrorDecode, Msg: "failed to decode journal entry", Err: err}
	}
	return e, nil
}
