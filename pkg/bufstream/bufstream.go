// Package bufstream bridges readable byte streams and in-memory buffers.
package bufstream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrStreamRead is wrapped by every error returned when the source stream
// fails before reaching EOF.
var ErrStreamRead = errors.New("bufstream: stream read failed")

// StreamAndLength pairs a readable stream with its total byte length so
// callers can set Content-Length without buffering again.
type StreamAndLength struct {
	Stream io.ReadCloser
	Length int64
}

// ToBuffer drains r into a single contiguous buffer.
// No partial buffer is returned when the stream errors.
func ToBuffer(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", ErrStreamRead)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamRead, err)
	}
	return buf.Bytes(), nil
}

// FromBuffer wraps data as a single-chunk stream. The returned stream also
// implements io.ReadSeeker.
func FromBuffer(data []byte) *StreamAndLength {
	return &StreamAndLength{
		Stream: &bufferStream{Reader: bytes.NewReader(data)},
		Length: int64(len(data)),
	}
}

type bufferStream struct {
	*bytes.Reader
}

func (b *bufferStream) Close() error { return nil }
