package reader

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pithecene-io/fragstream/chunk"
	"github.com/pithecene-io/fragstream/iox"
	"github.com/pithecene-io/fragstream/journal"
)

// FileReader reads journals from the local filesystem.
type FileReader struct{}

// InspectSession implements Reader.
func (FileReader) InspectSession(path string) (*InspectSessionResponse, error) {
	entries, truncated, err := readJournal(path)
	if err != nil {
		return nil, err
	}
	return BuildInspect(path, entries, truncated), nil
}

// StatsSession implements Reader.
func (FileReader) StatsSession(path string) (*SessionStats, error) {
	entries, truncated, err := readJournal(path)
	if err != nil {
		return nil, err
	}
	return BuildStats(path, entries, truncated), nil
}

// InspectWire implements Reader.
func (FileReader) InspectWire(path string) (*WireCapture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer iox.DiscardClose(f)
	return BuildWire(path, f)
}

// readJournal reads every complete entry and reports whether the file
// ended in a partial record, which happens when the writer was killed.
func readJournal(path string) ([]journal.Entry, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("open journal: %w", err)
	}
	defer iox.DiscardClose(f)

	jr := journal.NewReader(f)
	var entries []journal.Entry
	for {
		e, err := jr.Next()
		switch {
		case err == nil:
			entries = append(entries, e)
		case errors.Is(err, io.EOF):
			return entries, false, nil
		case journal.IsTruncated(err):
			return entries, true, nil
		default:
			return nil, false, fmt.Errorf("read journal %s: %w", path, err)
		}
	}
}

// PreviewBytes is how much of each chunk payload WireChunk.Preview shows.
const PreviewBytes = 16

// BuildWire decodes a captured chunked body. A body cut off between chunks
// is reported with Terminated unset rather than as an error.
func BuildWire(path string, r io.Reader) (*WireCapture, error) {
	resp := &WireCapture{Path: path, Rows: []WireChunk{}}
	cr := chunk.NewReader(r)
	for {
		payload, err := cr.Next()
		switch {
		case err == nil:
			resp.Rows = append(resp.Rows, WireChunk{
				Index:   int64(len(resp.Rows)),
				Offset:  cr.Offset(),
				Size:    len(payload),
				Preview: hex.EncodeToString(payload[:min(len(payload), PreviewBytes)]),
			})
			continue
		case errors.Is(err, io.EOF):
			resp.Terminated = true
		case errors.Is(err, io.ErrUnexpectedEOF):
		default:
			return nil, fmt.Errorf("decode capture %s: %w", path, err)
		}
		resp.Chunks, resp.PayloadBytes = cr.Counts()
		return resp, nil
	}
}

// BuildInspect assembles the inspect payload from decoded entries.
func BuildInspect(path string, entries []journal.Entry, truncated bool) *InspectSessionResponse {
	resp := &InspectSessionResponse{
		Path:      path,
		Entries:   make([]EntryRow, 0, len(entries)),
		Truncated: truncated,
	}
	for _, e := range entries {
		if e.Kind == journal.EntrySession && resp.Session == nil {
			resp.Session = e.Session
			continue
		}
		resp.Entries = append(resp.Entries, ToRow(e))
	}
	return resp
}

// BuildStats assembles the stats payload from decoded entries.
func BuildStats(path string, entries []journal.Entry, truncated bool) *SessionStats {
	return &SessionStats{
		Path:      path,
		Summary:   journal.Summarize(entries),
		Truncated: truncated,
	}
}

// ToRow flattens one entry.
func ToRow(e journal.Entry) EntryRow {
	row := EntryRow{
		Seq:        e.Seq,
		Kind:       string(e.Kind),
		ReceivedAt: e.ReceivedAt,
	}

	switch e.Kind {
	case journal.EntrySession:
		if e.Session != nil {
			row.Detail = "session " + e.Session.SessionID
		}
	case journal.EntryAck:
		if e.Event == nil {
			break
		}
		tc := e.Event.FragmentTimecode
		row.AckType = string(e.Event.Type)
		row.FragmentTimecode = &tc
		row.FragmentNumber = e.Event.FragmentNumber
		if e.Event.Type.IsError() {
			code := e.Event.ErrorCode
			row.ErrorCode = &code
			row.Detail = "error code " + strconv.Itoa(code)
		}
	case journal.EntryDecodeError:
		row.Detail = e.Error
	}
	return row
}
