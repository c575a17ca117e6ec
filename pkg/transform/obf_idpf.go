package transform

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"strings"
	"unicode"

	"epub-streamer/pkg/bufstream"
	"epub-streamer/pkg/publication"
)

const (
	// AlgorithmIDPF identifies IDPF font obfuscation in encryption.xml.
	AlgorithmIDPF = "http://www.idpf.org/2008/embedding"

	// IDPFPrefixLength is the number of leading bytes masked by the scheme.
	IDPFPrefixLength = 1040

	// IDPFKeySize is the length of the masking key, a SHA-1 digest.
	IDPFKeySize = sha1.Size
)

type obfIDPFTransform struct{}

// NewObfIDPFTransform returns the IDPF font (de)obfuscation transform.
// Masking is an XOR so the same transform both obfuscates and deobfuscates.
func NewObfIDPFTransform() Transformer { return &obfIDPFTransform{} }

func (o *obfIDPFTransform) Supports(_ *publication.Publication, link *publication.Link) bool {
	return link.EncryptionAlgorithm() == AlgorithmIDPF
}

// TransformStream ignores rangeBegin and rangeEnd: the whole resource is
// always rebuilt from its first byte.
func (o *obfIDPFTransform) TransformStream(ctx context.Context, pub *publication.Publication, link *publication.Link,
	r io.Reader, _, _, _ int64) (*bufstream.StreamAndLength, error) {
	return streamViaBuffer(ctx, o, pub, link, r)
}

func (o *obfIDPFTransform) TransformBuffer(ctx context.Context, pub *publication.Publication, link *publication.Link, data []byte) ([]byte, error) {
	if pub == nil || link == nil {
		return nil, fmt.Errorf("obf idpf: %w: nil publication or link", ErrInvalidArgument)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("obf idpf: %w", err)
	}
	key := IDPFKey(pub.Metadata.Identifier)
	return MaskIDPF(key, data), nil
}

// identifierSpace is the whitespace set encoders strip from identifiers
// (the ECMAScript \s class). U+0085 is not part of it.
var identifierSpace = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0009, Hi: 0x000d, Stride: 1},
		{Lo: 0x0020, Hi: 0x0020, Stride: 1},
		{Lo: 0x00a0, Hi: 0x00a0, Stride: 1},
		{Lo: 0x1680, Hi: 0x1680, Stride: 1},
		{Lo: 0x2000, Hi: 0x200a, Stride: 1},
		{Lo: 0x2028, Hi: 0x2029, Stride: 1},
		{Lo: 0x202f, Hi: 0x202f, Stride: 1},
		{Lo: 0x205f, Hi: 0x205f, Stride: 1},
		{Lo: 0x3000, Hi: 0x3000, Stride: 1},
		{Lo: 0xfeff, Hi: 0xfeff, Stride: 1},
	},
	LatinOffset: 3,
}

// IDPFKey derives the masking key from a publication identifier. All
// identifierSpace runes are dropped before hashing.
func IDPFKey(identifier string) [IDPFKeySize]byte {
	normalized := strings.Map(func(r rune) rune {
		if unicode.Is(identifierSpace, r) {
			return -1
		}
		return r
	}, identifier)
	return sha1.Sum([]byte(normalized))
}

// MaskIDPF XORs the first IDPFPrefixLength bytes of data with the cycled key
// and copies the rest. data is left untouched; the result has the same length.
func MaskIDPF(key [IDPFKeySize]byte, data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	n := min(IDPFPrefixLength, len(out))
	for i := 0; i < n; i++ {
		out[i] ^= key[i%IDPFKeySize]
	}
	return out
}
