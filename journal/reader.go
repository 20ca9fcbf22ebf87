package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pithecene-io/fragstream/iox"
)

// Reader reads entries in order.
type Reader struct {
	r io.Reader
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next entry.
//
// Errors:
//   - io.EOF: journal ended cleanly
//   - *RecordError with Kind=RecordErrorPartial: truncated trailing record
//   - *RecordError with Kind=RecordErrorTooLarge or RecordErrorDecode: corrupt journal
func (r *Reader) Next() (Entry, error) {
	payload, err := readPayload(r.r)
	if err != nil {
		return Entry{}, err
	}
	return decodeEntry(payload)
}

// ReadAll reads every entry. A truncated trailing record is tolerated:
// the complete entries before it are returned with a nil error.
func ReadAll(r io.Reader) ([]Entry, error) {
	jr := NewReader(r)
	var entries []Entry
	for {
		e, err := jr.Next()
		switch {
		case err == nil:
			entries = append(entries, e)
		case errors.Is(err, io.EOF), IsTruncated(err):
			return entries, nil
		default:
			return entries, err
		}
	}
}

// ReadFile reads every entry from the journal at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer iox.DiscardClose(f)
	return ReadAll(f)
}
