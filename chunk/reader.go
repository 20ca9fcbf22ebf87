package chunk

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Reader decodes a chunked body one chunk at a time.
type Reader struct {
	cr   *countingReader
	br   *bufio.Reader
	cur  []byte
	done bool

	chunks int64
	bytes  int64
	offset int64
}

// NewReader returns a Reader decoding the chunked body in r.
func NewReader(r io.Reader) *Reader {
	cr := &countingReader{r: r}
	return &Reader{cr: cr, br: bufio.NewReader(cr)}
}

// Next returns the payload of the next data chunk. After the terminating
// zero-length chunk and its trailer it returns io.EOF. A body that ends
// between chunks without a terminator returns io.ErrUnexpectedEOF.
func (r *Reader) Next() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}
	r.offset = r.cr.n - int64(r.br.Buffered())

	payload, err := Decode(r.br)
	if errors.Is(err, io.EOF) {
		return nil, io.ErrUnexpectedEOF
	}
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		r.done = true
		if err := r.skipTrailer(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	r.chunks++
	r.bytes += int64(len(payload))
	return payload, nil
}

// Offset returns where the chunk last returned by Next starts in the body.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Counts returns the data chunks and payload bytes decoded so far.
func (r *Reader) Counts() (chunks, bytes int64) {
	return r.chunks, r.bytes
}

// Read implements io.Reader over the concatenated payloads.
func (r *Reader) Read(p []byte) (int, error) {
	for len(r.cur) == 0 {
		next, err := r.Next()
		if err != nil {
			return 0, err
		}
		r.cur = next
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

// skipTrailer consumes trailer fields up to the blank line.
func (r *Reader) skipTrailer() error {
	for {
		line, err := readLine(r.br)
		if err != nil {
			return fmt.Errorf("%w: reading trailer: %v", ErrMalformed, err)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			return nil
		}
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
