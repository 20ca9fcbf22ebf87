package reader

// Reader abstracts read-only access to recorded sessions.
type Reader interface {
	InspectSession(path string) (*InspectSessionResponse, error)
	StatsSession(path string) (*SessionStats, error)
	InspectWire(path string) (*WireCapture, error)
}

var defaultReader Reader = FileReader{}

// SetReader replaces the package-level reader. Tests use it to serve
// journals from memory.
func SetReader(r Reader) {
	defaultReader = r
}

// GetReader returns the package-level reader.
func GetReader() Reader {
	return defaultReader
}
