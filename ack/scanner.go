package ack

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxRecordSize bounds a single buffered ack record.
const DefaultMaxRecordSize = 1 << 20

// ErrRecordTooLarge is the decode failure reported for a record that grows
// past the configured maximum. The record is cut at the limit and the rest of
// it is discarded up to the next newline.
var ErrRecordTooLarge = errors.New("ack record exceeds maximum size")

// newRecordScanner returns a scanner yielding one record per token.
//
// A record is either a top-level JSON object, found by brace matching that
// skips braces inside strings, or a run of non-object bytes ending at a
// newline. This accepts newline-delimited and back-to-back objects alike.
// Incomplete records stay buffered until more bytes arrive.
//
// An object that never balances is ended early at a raw newline inside a
// string, or at a newline directly followed by '{'. Neither can occur in a
// well-formed record, so the next record is still found.
func newRecordScanner(r io.Reader, maxSize int) (*bufio.Scanner, *recordSplitter) {
	if maxSize <= 0 {
		maxSize = DefaultMaxRecordSize
	}
	sp := &recordSplitter{max: maxSize}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(4096, maxSize)), maxSize)
	sc.Split(sp.split)
	return sc, sp
}

// recordSplitter is a bufio.SplitFunc with the state needed to recover from
// oversized records.
type recordSplitter struct {
	max int

	// skipping is set while the tail of an oversized record is discarded.
	skipping bool
	// oversized reports that the last token was cut at max.
	oversized bool
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func (s *recordSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	s.oversized = false

	if s.skipping {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			s.skipping = false
			return i + 1, nil, nil
		}
		return len(data), nil, nil
	}

	start := 0
	for start < len(data) && isSpace(data[start]) {
		start++
	}
	if start == len(data) {
		return start, nil, nil
	}

	if data[start] == '{' {
		if token, advance, ok := objectEnd(data[start:]); ok {
			return start + advance, bytes.TrimRight(data[start:start+token], "\r"), nil
		}
	} else if i := bytes.IndexByte(data[start:], '\n'); i >= 0 {
		return start + i + 1, bytes.TrimRight(data[start:start+i], "\r"), nil
	}

	if atEOF {
		// Truncated record; hand it out so it is reported, not silently lost.
		return len(data), data[start:], nil
	}
	if len(data) >= s.max {
		s.skipping = true
		s.oversized = true
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

// objectEnd scans the object at the start of data. It returns the length of
// the record and the number of bytes it consumes, or ok=false if the record
// is not yet complete.
func objectEnd(data []byte) (token, advance int, ok bool) {
	depth := 0
	inString := false
	escaped := false
	for i, c := range data {
		if inString {
			switch {
			case c == '\n':
				// JSON strings cannot hold a raw newline.
				return i, i + 1, true
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, i + 1, true
			}
		case '\n':
			if i+1 < len(data) && data[i+1] == '{' {
				return i, i + 1, true
			}
		}
	}
	return 0, 0, false
}
