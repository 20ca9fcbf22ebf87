package types

// Frame is a single unit of media payload pushed by a media source.
// The transport layer does not interpret Data beyond its length.
type Frame struct {
	// Data is the encoded sample.
	Data []byte
	// Timecode is the frame's presentation time in fragment clock units.
	Timecode int64
	// KeyFrame marks a frame that may start a new fragment.
	KeyFrame bool
}

// Size returns the payload length in bytes.
func (f Frame) Size() int {
	return len(f.Data)
}

// FragmentMetadata is an out-of-band tag attached to the current fragment.
type FragmentMetadata struct {
	Name  string `msgpack:"name" json:"name"`
	Value string `msgpack:"value" json:"value"`
	// Persistent tags repeat on every subsequent fragment until cleared.
	Persistent bool `msgpack:"persistent" json:"persistent"`
}
