package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("cam-1", "https://ingest", "s-1")

	c.IncSessionStarted()
	c.IncSessionCompleted()
	c.IncSessionFailed()
	c.IncConnectSuccess()
	c.IncConnectFailure()
	c.IncConnectFailure()
	c.AddChunkWritten(100)
	c.AddChunkWritten(50)
	c.IncFramesRejected()
	c.IncAck("PERSISTED")
	c.IncAck("PERSISTED")
	c.IncAck("ERROR")
	c.IncAckDecodeErrors()
	c.IncCallbackFailures()
	c.IncJournalWrite(true)
	c.IncJournalWrite(false)
	c.IncPublish(true)
	c.IncPublish(true)
	c.IncPublish(false)

	s := c.Snapshot()

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"SessionsStarted", s.SessionsStarted, 1},
		{"SessionsCompleted", s.SessionsCompleted, 1},
		{"SessionsFailed", s.SessionsFailed, 1},
		{"ConnectSuccess", s.ConnectSuccess, 1},
		{"ConnectFailure", s.ConnectFailure, 2},
		{"ChunksWritten", s.ChunksWritten, 2},
		{"BytesWritten", s.BytesWritten, 150},
		{"FramesRejected", s.FramesRejected, 1},
		{"AcksByType[PERSISTED]", s.AcksByType["PERSISTED"], 2},
		{"AcksByType[ERROR]", s.AcksByType["ERROR"], 1},
		{"FragmentErrors", s.FragmentErrors, 1},
		{"AckDecodeErrors", s.AckDecodeErrors, 1},
		{"CallbackFailures", s.CallbackFailures, 1},
		{"JournalWriteSuccess", s.JournalWriteSuccess, 1},
		{"JournalWriteFailure", s.JournalWriteFailure, 1},
		{"PublishSuccess", s.PublishSuccess, 2},
		{"PublishFailure", s.PublishFailure, 1},
	}
	for _, ck := range checks {
		if ck.got != ck.want {
			t.Errorf("%s = %d, want %d", ck.name, ck.got, ck.want)
		}
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("cam-7", "https://ingest:8443", "s-42")
	s := c.Snapshot()

	if s.Stream != "cam-7" {
		t.Errorf("Stream = %q", s.Stream)
	}
	if s.Endpoint != "https://ingest:8443" {
		t.Errorf("Endpoint = %q", s.Endpoint)
	}
	if s.SessionID != "s-42" {
		t.Errorf("SessionID = %q", s.SessionID)
	}
}

func TestCollector_AbsorbEngineStats(t *testing.T) {
	c := NewCollector("cam", "", "")
	c.AbsorbEngineStats(10, 4096)
	c.AbsorbEngineStats(12, 5000)

	s := c.Snapshot()
	if s.FramesBuffered != 12 || s.BytesBuffered != 5000 {
		t.Errorf("engine stats = (%d, %d), want last absorbed (12, 5000)", s.FramesBuffered, s.BytesBuffered)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("cam", "", "")
	c.IncAck("RECEIVED")

	s1 := c.Snapshot()
	s1.AcksByType["RECEIVED"] = 999
	s1.AcksByType["injected"] = 1

	c.IncAck("RECEIVED")
	s2 := c.Snapshot()
	if s2.AcksByType["RECEIVED"] != 2 {
		t.Errorf("AcksByType[RECEIVED] = %d, want 2", s2.AcksByType["RECEIVED"])
	}
	if _, ok := s2.AcksByType["injected"]; ok {
		t.Error("snapshot mutation leaked into collector")
	}
	if s1.AcksByType["RECEIVED"] != 999 {
		t.Error("earlier snapshot changed after collector mutation")
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	c.IncSessionStarted()
	c.IncSessionCompleted()
	c.IncSessionFailed()
	c.IncConnectSuccess()
	c.IncConnectFailure()
	c.AddChunkWritten(10)
	c.IncFramesRejected()
	c.IncAck("PERSISTED")
	c.IncAckDecodeErrors()
	c.IncCallbackFailures()
	c.AbsorbEngineStats(1, 1)
	c.IncJournalWrite(true)
	c.IncPublish(false)

	s := c.Snapshot()
	if s.SessionsStarted != 0 || s.AcksByType != nil {
		t.Errorf("nil collector snapshot should be zero, got %+v", s)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("cam", "", "")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.AddChunkWritten(1)
				c.IncAck("PERSISTED")
				c.IncAckDecodeErrors()
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)
	if s.ChunksWritten != want || s.BytesWritten != want {
		t.Errorf("chunks/bytes = %d/%d, want %d", s.ChunksWritten, s.BytesWritten, want)
	}
	if s.AcksByType["PERSISTED"] != want {
		t.Errorf("AcksByType[PERSISTED] = %d, want %d", s.AcksByType["PERSISTED"], want)
	}
	if s.AckDecodeErrors != want {
		t.Errorf("AckDecodeErrors = %d, want %d", s.AckDecodeErrors, want)
	}
}
