package transform

import (
	"context"
	"errors"
	"fmt"
	"io"

	"epub-streamer/pkg/bufstream"
	"epub-streamer/pkg/publication"
)

// Registry holds transform variants in priority order. The first variant
// whose Supports returns true handles a resource.
type Registry struct {
	transforms []Transformer
}

// NewRegistry creates a registry. Requires at least one transform.
func NewRegistry(transforms ...Transformer) (*Registry, error) {
	if len(transforms) == 0 {
		return nil, errors.New("transform registry requires at least one transform")
	}
	s := make([]Transformer, len(transforms))
	copy(s, transforms)
	return &Registry{transforms: s}, nil
}

// DefaultRegistry holds every transform variant the streamer ships.
func DefaultRegistry() *Registry {
	return &Registry{transforms: []Transformer{NewObfIDPFTransform()}}
}

// Find returns the transform handling link, if any.
func (r *Registry) Find(pub *publication.Publication, link *publication.Link) (Transformer, bool) {
	if link == nil {
		return nil, false
	}
	for _, t := range r.transforms {
		if t.Supports(pub, link) {
			return t, true
		}
	}
	return nil, false
}

// Apply runs the transform handling link over src. When no transform
// matches, src is returned as-is with totalLength as its length.
func (r *Registry) Apply(ctx context.Context, pub *publication.Publication, link *publication.Link,
	src io.ReadCloser, totalLength, rangeBegin, rangeEnd int64) (*bufstream.StreamAndLength, bool, error) {
	t, ok := r.Find(pub, link)
	if !ok {
		return &bufstream.StreamAndLength{Stream: src, Length: totalLength}, false, nil
	}
	defer src.Close()
	sal, err := t.TransformStream(ctx, pub, link, src, totalLength, rangeBegin, rangeEnd)
	if err != nil {
		return nil, true, fmt.Errorf("transform %T: %w", t, err)
	}
	return sal, true, nil
}
