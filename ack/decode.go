// Package ack decodes the acknowledgment stream the ingestion service sends
// back on the upload connection and dispatches each event to a Handler.
package ack

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/pithecene-io/fragstream/streamerr"
	"github.com/pithecene-io/fragstream/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnknownType is the cause for records whose type is missing or unknown.
var ErrUnknownType = errors.New("unknown ack type")

// wireRecord accepts both the camelCase field set and the service's
// PascalCase names. Field matching is case-insensitive, so "type" also covers
// "Type" and "fragmentTimecode" covers "FragmentTimecode".
type wireRecord struct {
	Type             string              `json:"type"`
	EventType        string              `json:"EventType"`
	ErrorCode        jsoniter.RawMessage `json:"errorCode"`
	ErrorID          *int                `json:"ErrorId"`
	FragmentTimecode *int64              `json:"fragmentTimecode"`
	FragmentNumber   string              `json:"FragmentNumber"`
}

// Decode parses one record into an AckEvent.
// Failures are *streamerr.Error with KindDecode.
func Decode(record []byte) (types.AckEvent, error) {
	trimmed := bytes.TrimSpace(record)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return types.AckEvent{}, decodeErr(fmt.Errorf("record is not a JSON object: %q", truncate(trimmed)))
	}

	var w wireRecord
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return types.AckEvent{}, decodeErr(err)
	}

	typ := w.Type
	if typ == "" {
		typ = w.EventType
	}
	ev := types.AckEvent{
		Type:           types.AckEventType(typ),
		FragmentNumber: w.FragmentNumber,
	}
	if !ev.Type.IsKnown() {
		return types.AckEvent{}, decodeErr(fmt.Errorf("%w: %q", ErrUnknownType, typ))
	}
	if w.FragmentTimecode != nil {
		ev.FragmentTimecode = *w.FragmentTimecode
	}

	code, ok := numericCode(w.ErrorCode)
	switch {
	case ok:
		ev.ErrorCode = code
	case w.ErrorID != nil:
		ev.ErrorCode = *w.ErrorID
	}

	return ev, nil
}

// numericCode extracts an integer from a JSON number or numeric string.
// Symbolic error names are not integers and report ok=false.
func numericCode(raw jsoniter.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	s := string(raw)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func decodeErr(err error) error {
	return streamerr.New(streamerr.KindDecode, "ack.decode", err)
}

func truncate(b []byte) string {
	const limit = 64
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
