package transform

import (
	"context"
	"errors"
	"io"

	"epub-streamer/pkg/bufstream"
	"epub-streamer/pkg/publication"
)

// ErrInvalidArgument reports a call made with a missing publication, link
// or stream. It signals a caller bug, not a property of the resource.
var ErrInvalidArgument = errors.New("transform: invalid argument")

// Transformer is implemented by every resource transform variant.
type Transformer interface {
	// Supports reports whether the transform applies to link. It must be
	// cheap and free of side effects.
	Supports(pub *publication.Publication, link *publication.Link) bool

	// TransformStream consumes r and returns the transformed resource.
	// rangeBegin and rangeEnd are accepted for variants able to serve
	// partial content. Variants that ignore them return the full resource
	// and leave slicing to the caller.
	TransformStream(ctx context.Context, pub *publication.Publication, link *publication.Link,
		r io.Reader, totalLength, rangeBegin, rangeEnd int64) (*bufstream.StreamAndLength, error)

	// TransformBuffer is the in-memory form of TransformStream.
	TransformBuffer(ctx context.Context, pub *publication.Publication, link *publication.Link,
		data []byte) ([]byte, error)
}

// streamViaBuffer buffers r, runs the buffer form of t and re-wraps the
// result as a stream.
func streamViaBuffer(ctx context.Context, t Transformer, pub *publication.Publication, link *publication.Link, r io.Reader) (*bufstream.StreamAndLength, error) {
	if r == nil {
		return nil, ErrInvalidArgument
	}
	data, err := bufstream.ToBuffer(r)
	if err != nil {
		return nil, err
	}
	out, err := t.TransformBuffer(ctx, pub, link, data)
	if err != nil {
		return nil, err
	}
	return bufstream.FromBuffer(out), nil
}
