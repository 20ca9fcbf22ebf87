package reader

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/fragstream/chunk"
	"github.com/pithecene-io/fragstream/journal"
	"github.com/pithecene-io/fragstream/types"
)

func writeJournal(t *testing.T, events ...types.AckEvent) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "s1.journal")
	jw, err := journal.Create(path, journal.SessionInfo{SessionID: "s1", Stream: "cam-1"}, journal.Config{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, ev := range events {
		if err := jw.AppendAck(ev); err != nil {
			t.Fatalf("AppendAck: %v", err)
		}
	}
	if err := jw.AppendDecodeError([]byte(`{"EventType":`), os.ErrInvalid); err != nil {
		t.Fatalf("AppendDecodeError: %v", err)
	}
	if err := jw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestFileReader_InspectSession(t *testing.T) {
	path := writeJournal(t,
		types.AckEvent{Type: types.AckEventBuffering, FragmentTimecode: 0},
		types.AckEvent{Type: types.AckEventError, FragmentTimecode: 2000, ErrorCode: 4002},
	)

	resp, err := FileReader{}.InspectSession(path)
	if err != nil {
		t.Fatalf("InspectSession: %v", err)
	}
	if resp.Session == nil || resp.Session.SessionID != "s1" {
		t.Fatalf("session = %+v", resp.Session)
	}
	if resp.Truncated {
		t.Error("complete journal reported truncated")
	}
	if len(resp.Entries) != 3 {
		t.Fatalf("got %d rows, want 3", len(resp.Entries))
	}

	errRow := resp.Entries[1]
	if errRow.AckType != "ERROR" || errRow.ErrorCode == nil || *errRow.ErrorCode != 4002 {
		t.Errorf("error row = %+v", errRow)
	}
	if errRow.FragmentTimecode == nil || *errRow.FragmentTimecode != 2000 {
		t.Errorf("error row timecode = %v", errRow.FragmentTimecode)
	}
	if resp.Entries[2].Kind != string(journal.EntryDecodeError) || resp.Entries[2].Detail == "" {
		t.Errorf("decode error row = %+v", resp.Entries[2])
	}
}

func TestFileReader_TruncatedTail(t *testing.T) {
	path := writeJournal(t, types.AckEvent{Type: types.AckEventPersisted, FragmentTimecode: 40})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append(data, 0, 0, 0, 9, 0x81), 0o600); err != nil {
		t.Fatal(err)
	}

	stats, err := FileReader{}.StatsSession(path)
	if err != nil {
		t.Fatalf("StatsSession: %v", err)
	}
	if !stats.Truncated {
		t.Error("expected truncated")
	}
	if stats.LastPersistedTimecode != 40 || stats.Acks != 1 {
		t.Errorf("summary = %+v", stats.Summary)
	}
}

func TestFileReader_Missing(t *testing.T) {
	if _, err := (FileReader{}).InspectSession(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing journal")
	}
}

func TestFileReader_Garbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.journal")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xff}, 8), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := (FileReader{}).StatsSession(path); err == nil {
		t.Fatal("expected error for oversized record")
	}
}

func TestToRow(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	row := ToRow(journal.Entry{
		Seq: 4, Kind: journal.EntryAck, ReceivedAt: at,
		Event: &types.AckEvent{Type: types.AckEventReceived, FragmentTimecode: 80, FragmentNumber: "91"},
	})
	if row.AckType != "RECEIVED" || row.FragmentNumber != "91" || row.ErrorCode != nil {
		t.Errorf("row = %+v", row)
	}
	if !row.ReceivedAt.Equal(at) {
		t.Errorf("ReceivedAt = %v", row.ReceivedAt)
	}

	empty := ToRow(journal.Entry{Seq: 5, Kind: journal.EntryAck})
	if empty.AckType != "" || empty.FragmentTimecode != nil {
		t.Errorf("ack without event = %+v", empty)
	}
}

func TestMemoryReader(t *testing.T) {
	m := NewMemoryReader()
	m.Journals["mem"] = []journal.Entry{
		{Seq: 0, Kind: journal.EntrySession, Session: &journal.SessionInfo{SessionID: "m1"}},
		{Seq: 1, Kind: journal.EntryAck, Event: &types.AckEvent{Type: types.AckEventPersisted, FragmentTimecode: 7}},
	}

	prev := GetReader()
	SetReader(m)
	t.Cleanup(func() { SetReader(prev) })

	stats, err := GetReader().StatsSession("mem")
	if err != nil {
		t.Fatalf("StatsSession: %v", err)
	}
	if stats.PersistedFragments != 1 || stats.Session.SessionID != "m1" {
		t.Errorf("stats = %+v", stats)
	}
	if _, err := GetReader().InspectSession("other"); err == nil {
		t.Error("expected error for unknown path")
	}
}

func encodeBody(t *testing.T, terminate bool, payloads ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := chunk.NewWriter(&buf)
	for _, p := range payloads {
		if _, err := w.Write([]byte(p)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if terminate {
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	return buf.Bytes()
}

func TestFileReader_InspectWire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1.body")
	body := encodeBody(t, true, "abc", strings.Repeat("\x01", 40))
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	resp, err := FileReader{}.InspectWire(path)
	if err != nil {
		t.Fatalf("InspectWire: %v", err)
	}
	if !resp.Terminated || resp.Chunks != 2 || resp.PayloadBytes != 43 {
		t.Errorf("capture = %+v", resp)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(resp.Rows))
	}
	if resp.Rows[0].Preview != "616263" || resp.Rows[0].Offset != 0 {
		t.Errorf("row 0 = %+v", resp.Rows[0])
	}
	if resp.Rows[1].Offset != 8 || resp.Rows[1].Size != 40 || len(resp.Rows[1].Preview) != 2*PreviewBytes {
		t.Errorf("row 1 = %+v", resp.Rows[1])
	}
}

func TestBuildWire(t *testing.T) {
	t.Run("unterminated", func(t *testing.T) {
		resp, err := BuildWire("cut", bytes.NewReader(encodeBody(t, false, "abc")))
		if err != nil {
			t.Fatalf("BuildWire: %v", err)
		}
		if resp.Terminated || resp.Chunks != 1 {
			t.Errorf("capture = %+v, want one chunk, unterminated", resp)
		}
	})
	t.Run("empty", func(t *testing.T) {
		resp, err := BuildWire("empty", bytes.NewReader(nil))
		if err != nil {
			t.Fatalf("BuildWire: %v", err)
		}
		if resp.Terminated || resp.Chunks != 0 || resp.Rows == nil {
			t.Errorf("capture = %+v", resp)
		}
	})
	t.Run("malformed", func(t *testing.T) {
		if _, err := BuildWire("bad", strings.NewReader("zz\r\n")); !errors.Is(err, chunk.ErrMalformed) {
			t.Errorf("err = %v, want chunk.ErrMalformed", err)
		}
	})
}

func TestMemoryReader_InspectWire(t *testing.T) {
	m := NewMemoryReader()
	m.Captures["mem"] = encodeBody(t, true, "xyz")

	resp, err := m.InspectWire("mem")
	if err != nil {
		t.Fatalf("InspectWire: %v", err)
	}
	if resp.Chunks != 1 || !resp.Terminated {
		t.Errorf("capture = %+v", resp)
	}
	if _, err := m.InspectWire("other"); err == nil {
		t.Error("expected error for unknown path")
	}
}
