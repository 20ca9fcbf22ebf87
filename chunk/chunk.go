// Package chunk frames binary payloads per HTTP/1.1 chunked transfer encoding.
//
// A chunk is the payload length in lowercase hexadecimal ASCII, CRLF, the
// payload bytes, CRLF. The zero-length chunk terminates a body; this package
// never emits it unless the caller asks via Terminator or Writer.Close.
package chunk

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/pithecene-io/fragstream/streamerr"
)

// crlf terminates both the size line and the payload.
var crlf = []byte("\r\n")

// MaxSizeLine bounds the size line (hex digits plus extensions) accepted by Decode.
const MaxSizeLine = 4096

// ErrMalformed is returned by Decode for a chunk that violates the framing.
var ErrMalformed = errors.New("malformed chunk")

// Encode returns one chunk carrying the first count bytes of payload.
// count must satisfy 0 <= count <= len(payload); count == 0 yields a valid
// empty-body chunk. Failures are *streamerr.Error with KindEncoding and no
// partial output is returned.
func Encode(payload []byte, count int) ([]byte, error) {
	if count < 0 || count > len(payload) {
		return nil, streamerr.New(streamerr.KindEncoding, "chunk.encode",
			fmt.Errorf("count %d out of range [0, %d]", count, len(payload)))
	}

	size := strconv.FormatInt(int64(count), 16)
	var buf bytes.Buffer
	buf.Grow(len(size) + count + 2*len(crlf))

	if err := writeAll(&buf, []byte(size), crlf, payload[:count], crlf); err != nil {
		return nil, streamerr.New(streamerr.KindEncoding, "chunk.encode", err)
	}
	return buf.Bytes(), nil
}

// Terminator returns the zero-length last chunk followed by the empty trailer.
func Terminator() []byte {
	return []byte("0\r\n\r\n")
}

func writeAll(w io.Writer, parts ...[]byte) error {
	for _, p := range parts {
		if _, err := w.Write(p); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads exactly one chunk from r and returns its payload.
// Chunk extensions after ';' on the size line are ignored.
// A zero-length chunk returns an empty, non-nil payload; the trailer
// section that follows a terminating chunk is left unread.
func Decode(r *bufio.Reader) ([]byte, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}
	if i := bytes.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty size line", ErrMalformed)
	}

	n, err := strconv.ParseInt(string(line), 16, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: invalid size %q", ErrMalformed, line)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: short payload: %v", ErrMalformed, err)
	}
	if n == 0 {
		return payload, nil
	}

	var tail [2]byte
	if _, err := io.ReadFull(r, tail[:]); err != nil {
		return nil, fmt.Errorf("%w: missing payload terminator: %v", ErrMalformed, err)
	}
	if !bytes.Equal(tail[:], crlf) {
		return nil, fmt.Errorf("%w: payload terminator %q", ErrMalformed, tail[:])
	}
	return payload, nil
}

// readLine reads a CRLF-terminated line and strips the terminator.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		part, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) == 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: reading size line: %v", ErrMalformed, err)
		}
		line = append(line, part...)
		if len(line) > MaxSizeLine {
			return nil, fmt.Errorf("%w: size line exceeds %d bytes", ErrMalformed, MaxSizeLine)
		}
		if !isPrefix {
			return line, nil
		}
	}
}
