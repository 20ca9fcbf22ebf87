package reader

import (
	"bytes"
	"fmt"

	"github.com/pithecene-io/fragstream/journal"
)

// MemoryReader serves journals and body captures from memory, keyed by path.
type MemoryReader struct {
	Journals map[string][]journal.Entry
	Captures map[string][]byte
}

// NewMemoryReader returns an empty MemoryReader.
func NewMemoryReader() *MemoryReader {
	return &MemoryReader{
		Journals: make(map[string][]journal.Entry),
		Captures: make(map[string][]byte),
	}
}

func (m *MemoryReader) lookup(path string) ([]journal.Entry, error) {
	entries, ok := m.Journals[path]
	if !ok {
		return nil, fmt.Errorf("journal not found: %s", path)
	}
	return entries, nil
}

// InspectSession implements Reader.
func (m *MemoryReader) InspectSession(path string) (*InspectSessionResponse, error) {
	entries, err := m.lookup(path)
	if err != nil {
		return nil, err
	}
	return BuildInspect(path, entries, false), nil
}

// StatsSession implements Reader.
func (m *MemoryReader) StatsSession(path string) (*SessionStats, error) {
	entries, err := m.lookup(path)
	if err != nil {
		return nil, err
	}
	return BuildStats(path, entries, false), nil
}

// InspectWire implements Reader.
func (m *MemoryReader) InspectWire(path string) (*WireCapture, error) {
	body, ok := m.Captures[path]
	if !ok {
		return nil, fmt.Errorf("capture not found: %s", path)
	}
	return BuildWire(path, bytes.NewReader(body))
}
