package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/fragstream/cli/reader"
	"github.com/pithecene-io/fragstream/journal"
	"github.com/pithecene-io/fragstream/log"
	"github.com/pithecene-io/fragstream/transport"
	"github.com/pithecene-io/fragstream/types"
)

// runApp runs args against a test app and returns stdout and the exit code.
func runApp(t *testing.T, args ...string) (string, int) {
	t.Helper()
	var out bytes.Buffer
	app := &cli.App{
		Name:           "fragstream",
		Writer:         &out,
		ErrWriter:      io.Discard,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			PutCommand(),
			InspectCommand(),
			StatsCommand(),
			VersionCommand("abc123"),
		},
	}

	err := app.RunContext(t.Context(), append([]string{"fragstream"}, args...))
	if err == nil {
		return out.String(), exitSuccess
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return out.String(), ec.ExitCode()
	}
	t.Fatalf("unexpected error: %v", err)
	return "", -1
}

// ingestServer accepts one upload, records it, and answers with acks.
type ingestServer struct {
	mu     sync.Mutex
	body   []byte
	header http.Header
	status int
	acks   []string
}

func (s *ingestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.body = body
	s.header = r.Header.Clone()
	s.mu.Unlock()

	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	for _, a := range s.acks {
		_, _ = io.WriteString(w, a+"\n")
	}
}

func (s *ingestServer) received() ([]byte, http.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body, s.header
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func stubArchiver(t *testing.T) *journal.StubArchiver {
	t.Helper()
	stub := &journal.StubArchiver{}
	prev := newArchiver
	newArchiver = func(context.Context, journal.S3Config) (journal.Archiver, error) { return stub, nil }
	t.Cleanup(func() { newArchiver = prev })
	return stub
}

func TestPut_EndToEnd(t *testing.T) {
	srv := &ingestServer{acks: []string{
		`{"type":"BUFFERING","fragmentTimecode":0}`,
		`{"type":"PERSISTED","fragmentTimecode":0}`,
		`{"type":"ERROR","fragmentTimecode":40,"errorCode":4002}`,
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	archive := stubArchiver(t)
	media := writeFile(t, "clip.mkv", "abcdefghij")
	codec := writeFile(t, "codec.bin", "HDR")
	journalDir := t.TempDir()

	out, code := runApp(t, "put",
		"--endpoint", ts.URL+"/put",
		"--stream", "cam-1",
		"--header", "X-Api-Key=k1",
		"--frame-size", "4",
		"--codec-private", codec,
		"--journal-dir", journalDir,
		"--archive", "bucket/acks",
		"--log-level", "error",
		"--format", "json",
		media,
	)
	if code != exitSuccess {
		t.Fatalf("exit code = %d, output:\n%s", code, out)
	}

	var res PutResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if res.Status != http.StatusOK || res.Frames != 3 || res.FrameBytes != 10 {
		t.Errorf("result = %+v", res)
	}
	if res.Acks["PERSISTED"] != 1 || res.FragmentErrors != 1 {
		t.Errorf("acks = %v, fragment errors = %d", res.Acks, res.FragmentErrors)
	}
	if len(res.RejectedFragments) != 1 || !strings.Contains(res.RejectedFragments[0], "error code 4002") {
		t.Errorf("rejected fragments = %q", res.RejectedFragments)
	}
	if res.ArchiveKey != res.SessionID+".journal" {
		t.Errorf("archive key = %q", res.ArchiveKey)
	}

	body, header := srv.received()
	if string(body) != "HDRabcdefghij" {
		t.Errorf("server body = %q", body)
	}
	if header.Get(transport.HeaderStream) != "cam-1" || header.Get("X-Api-Key") != "k1" {
		t.Errorf("server headers = %v", header)
	}
	if header.Get(transport.HeaderSession) != res.SessionID {
		t.Errorf("session header = %q, want %q", header.Get(transport.HeaderSession), res.SessionID)
	}

	if len(archive.Calls) != 1 || archive.Calls[0].LocalPath != res.Journal {
		t.Errorf("archive calls = %+v", archive.Calls)
	}

	// The journal written by put feeds inspect and stats.
	statsOut, code := runApp(t, "stats", "--format", "json", res.Journal)
	if code != exitSuccess {
		t.Fatalf("stats exit code = %d", code)
	}
	var stats reader.SessionStats
	if err := json.Unmarshal([]byte(statsOut), &stats); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, statsOut)
	}
	if stats.Acks != 3 || stats.PersistedFragments != 1 || len(stats.Errors) != 1 {
		t.Errorf("stats = %+v", stats.Summary)
	}
	if stats.Session == nil || stats.Session.SessionID != res.SessionID {
		t.Errorf("stats session = %+v", stats.Session)
	}

	inspectOut, code := runApp(t, "inspect", "--format", "table", "--no-color", res.Journal)
	if code != exitSuccess {
		t.Fatalf("inspect exit code = %d", code)
	}
	if !strings.Contains(inspectOut, "ERROR") || !strings.Contains(inspectOut, "error code 4002") {
		t.Errorf("inspect table:\n%s", inspectOut)
	}
}

func TestPut_ConfigFileWithOverrides(t *testing.T) {
	srv := &ingestServer{acks: []string{`{"type":"PERSISTED","fragmentTimecode":0}`}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	cfgPath := writeFile(t, "fragstream.yaml", "endpoint: "+ts.URL+"/put\nstream: from-file\nlog:\n  level: error\n")
	media := writeFile(t, "clip.mkv", "xyz")

	out, code := runApp(t, "put", "--config", cfgPath, "--stream", "from-flag", "--quiet", media)
	if code != exitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if out != "" {
		t.Errorf("--quiet printed %q", out)
	}
	if _, header := srv.received(); header.Get(transport.HeaderStream) != "from-flag" {
		t.Errorf("stream header = %q", header.Get(transport.HeaderStream))
	}
}

func TestPut_BadStatusIsConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(&ingestServer{status: http.StatusForbidden})
	defer ts.Close()

	media := writeFile(t, "clip.mkv", "abc")
	out, code := runApp(t, "put", "--endpoint", ts.URL, "--log-level", "error", "--format", "json", media)
	if code != exitConnection {
		t.Fatalf("exit code = %d, want %d", code, exitConnection)
	}

	var res PutResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if res.Status != http.StatusForbidden || res.Error == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestPut_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	media := writeFile(t, "clip.mkv", "abc")
	_, code := runApp(t, "put", "--endpoint", "http://"+addr+"/put", "--log-level", "error", "--format", "json", media)
	if code != exitConnection {
		t.Fatalf("exit code = %d, want %d", code, exitConnection)
	}
}

func TestPut_UsageErrors(t *testing.T) {
	media := writeFile(t, "clip.mkv", "abc")

	tests := []struct {
		name string
		args []string
	}{
		{"no file", []string{"put", "--endpoint", "http://127.0.0.1:1/"}},
		{"no endpoint", []string{"put", media}},
		{"bad header", []string{"put", "--endpoint", "http://127.0.0.1:1/", "--header", "novalue", media}},
		{"bad frame size", []string{"put", "--endpoint", "http://127.0.0.1:1/", "--frame-size", "0", media}},
		{"archive without journal", []string{"put", "--endpoint", "http://127.0.0.1:1/", "--archive", "b", media}},
		{"missing file", []string{"put", "--endpoint", "http://127.0.0.1:1/", filepath.Join(t.TempDir(), "nope")}},
		{"bad format", []string{"put", "--endpoint", "http://127.0.0.1:1/", "--format", "xml", media}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, code := runApp(t, tt.args...); code != exitUsage {
				t.Errorf("exit code = %d, want %d", code, exitUsage)
			}
		})
	}
}

func useMemoryReader(t *testing.T) *reader.MemoryReader {
	t.Helper()
	m := reader.NewMemoryReader()
	prev := reader.GetReader()
	reader.SetReader(m)
	t.Cleanup(func() { reader.SetReader(prev) })
	return m
}

func TestInspectAndStats_MemoryReader(t *testing.T) {
	m := useMemoryReader(t)
	m.Journals["s9.journal"] = []journal.Entry{
		{Seq: 0, Kind: journal.EntrySession, Session: &journal.SessionInfo{SessionID: "s9", Stream: "cam-9"}},
		{Seq: 1, Kind: journal.EntryAck, Event: &types.AckEvent{Type: types.AckEventPersisted, FragmentTimecode: 80}},
	}

	out, code := runApp(t, "inspect", "--format", "yaml", "s9.journal")
	if code != exitSuccess {
		t.Fatalf("inspect exit code = %d", code)
	}
	if !strings.Contains(out, "session_id: s9") || !strings.Contains(out, "ack_type: PERSISTED") {
		t.Errorf("inspect yaml:\n%s", out)
	}

	out, code = runApp(t, "stats", "--format", "table", "--no-color", "s9.journal")
	if code != exitSuccess {
		t.Fatalf("stats exit code = %d", code)
	}
	if !strings.Contains(out, "persisted_fragments:") || !strings.Contains(out, "last_persisted_timecode:") {
		t.Errorf("stats table:\n%s", out)
	}
}

func TestReadOnlyCommands_UsageErrors(t *testing.T) {
	useMemoryReader(t)

	tests := []struct {
		name string
		args []string
	}{
		{"inspect without path", []string{"inspect"}},
		{"stats without path", []string{"stats"}},
		{"inspect unknown journal", []string{"inspect", "missing.journal"}},
		{"stats bad format", []string{"stats", "--format", "csv", "x"}},
		{"version tui", []string{"version", "--tui"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, code := runApp(t, tt.args...); code != exitUsage {
				t.Errorf("exit code = %d, want %d", code, exitUsage)
			}
		})
	}
}

func TestVersion(t *testing.T) {
	out, code := runApp(t, "version", "--format", "json")
	if code != exitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	var v VersionResponse
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if v.Version != types.Version || v.Commit != "abc123" {
		t.Errorf("version = %+v", v)
	}
}

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	for _, f := range ReadOnlyFlags() {
		if f.Names()[0] == "tui" {
			return
		}
	}
	t.Error("ReadOnlyFlags should include --tui for explicit rejection")
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs("tag", []string{"camera=front", "note=a=b", " zone =1"})
	if err != nil {
		t.Fatalf("parsePairs: %v", err)
	}
	if got["camera"] != "front" || got["note"] != "a=b" || got["zone"] != "1" {
		t.Errorf("got %v", got)
	}

	if _, err := parsePairs("tag", []string{"=x"}); err == nil {
		t.Error("expected error for empty name")
	}
	if m, err := parsePairs("tag", nil); err != nil || m != nil {
		t.Errorf("empty input = %v, %v", m, err)
	}
}

func TestPutExitCode(t *testing.T) {
	if putExitCode(nil) != exitSuccess {
		t.Error("nil error should be success")
	}
	if putExitCode(errors.New("boom")) != exitStreamFailure {
		t.Error("plain error should be a stream failure")
	}
}

func TestPut_CaptureFeedsInspectWire(t *testing.T) {
	srv := &ingestServer{acks: []string{`{"type":"PERSISTED","fragmentTimecode":0}`}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	media := writeFile(t, "clip.mkv", "abcdefghij")
	dir := t.TempDir()
	capturePath := filepath.Join(dir, "body.chunked")
	logPath := filepath.Join(dir, "put.log")

	out, code := runApp(t, "put",
		"--endpoint", ts.URL+"/put",
		"--frame-size", "4",
		"--frame-duration", "0s",
		"--pace",
		"--capture", capturePath,
		"--log-file", logPath,
		"--quiet",
		media,
	)
	if code != exitSuccess {
		t.Fatalf("exit code = %d, output:\n%s", code, out)
	}

	logs, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logs), "--pace has no effect") {
		t.Errorf("log missing pace warning:\n%s", logs)
	}
	if strings.Contains(string(logs), `"level":"info"`) {
		t.Errorf("--quiet left info logs enabled:\n%s", logs)
	}

	wireOut, code := runApp(t, "inspect", "wire", "--format", "json", capturePath)
	if code != exitSuccess {
		t.Fatalf("inspect wire exit code = %d", code)
	}
	var wire reader.WireCapture
	if err := json.Unmarshal([]byte(wireOut), &wire); err != nil {
		t.Fatalf("decode wire: %v\n%s", err, wireOut)
	}
	if !wire.Terminated || wire.PayloadBytes != 10 || wire.Chunks != int64(len(wire.Rows)) || wire.Chunks == 0 {
		t.Errorf("wire = %+v", wire)
	}
	if body, _ := srv.received(); string(body) != "abcdefghij" {
		t.Errorf("server body = %q", body)
	}
}

func TestInspectWire(t *testing.T) {
	m := useMemoryReader(t)
	var body bytes.Buffer
	_, _ = io.WriteString(&body, "3\r\nabc\r\n0\r\n\r\n")
	m.Captures["s1.chunked"] = body.Bytes()

	out, code := runApp(t, "inspect", "wire", "--format", "table", "--no-color", "s1.chunked")
	if code != exitSuccess {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(out, "PREVIEW") || !strings.Contains(out, "616263") {
		t.Errorf("wire table:\n%s", out)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"no path", []string{"inspect", "wire"}},
		{"unknown capture", []string{"inspect", "wire", "missing.chunked"}},
		{"tui", []string{"inspect", "wire", "--tui", "s1.chunked"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, code := runApp(t, tt.args...); code != exitUsage {
				t.Errorf("exit code = %d, want %d", code, exitUsage)
			}
		})
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestCloseSession(t *testing.T) {
	runFailed := errors.New("stream failed")
	closeFailed := errors.New("StreamClosed refused")

	tests := []struct {
		name     string
		runErr   error
		closeErr error
		want     error
	}{
		{"both ok", nil, nil, nil},
		{"close failure surfaces", nil, closeFailed, closeFailed},
		{"run failure wins", runFailed, closeFailed, runFailed},
		{"run failure kept", runFailed, nil, runFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			closed := false
			sess := closerFunc(func() error {
				closed = true
				return tt.closeErr
			})
			got := closeSession(sess, tt.runErr, log.Nop())
			if !closed {
				t.Error("session was not closed")
			}
			if !errors.Is(got, tt.want) || (tt.want == nil && got != nil) {
				t.Errorf("closeSession() = %v, want %v", got, tt.want)
			}
		})
	}
}
