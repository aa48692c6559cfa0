package serialization

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/eigerco/varint/pkg/serialization/codec"
	"github.com/eigerco/varint/pkg/serialization/codec/varint"
)

// Serializer provides methods to encode and decode values of one unsigned
// width using a specified codec.
type Serializer[T constraints.Unsigned] struct {
	codec codec.Codec
}

// NewSerializer initializes a new Serializer with the given codec.
func NewSerializer[T constraints.Unsigned](c codec.Codec) *Serializer[T] {
	return &Serializer[T]{codec: c}
}

// Encode serializes the given value using the codec.
func (s *Serializer[T]) Encode(v T) ([]byte, error) {
	return s.codec.Marshal(v)
}

// Decode deserializes the given data using the codec.
func (s *Serializer[T]) Decode(data []byte) (T, error) {
	var v T
	if err := s.codec.Unmarshal(data, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// EncodeAll concatenates the varint encodings of vs.
func (s *Serializer[T]) EncodeAll(vs []T) ([]byte, error) {
	if _, err := s.varintCodec(); err != nil {
		return nil, err
	}
	size := 0
	for _, v := range vs {
		size += varint.RequiredSize(v)
	}
	out := make([]byte, 0, size)
	for _, v := range vs {
		out = varint.Append(out, v)
	}
	return out, nil
}

// DecodeAll splits data into consecutive varints. With a strict codec every
// element must be complete and fit in T; a lenient codec accepts whatever
// Decode returns for each element.
func (s *Serializer[T]) DecodeAll(data []byte) ([]T, error) {
	c, err := s.varintCodec()
	if err != nil {
		return nil, err
	}
	var out []T
	for offset := 0; offset < len(data); {
		if !c.Strict() {
			v, n := varint.Decode[T](data[offset:])
			out = append(out, v)
			offset += n
			continue
		}
		v, n, err := varint.DecodeStrict[T](data[offset:])
		if err != nil {
			return nil, fmt.Errorf("decoding element %d at offset %d: %w", len(out), offset, err)
		}
		out = append(out, v)
		offset += n
	}
	return out, nil
}

func (s *Serializer[T]) varintCodec() (*codec.VarintCodec, error) {
	c, ok := s.codec.(*codec.VarintCodec)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotVarintCodec, s.codec)
	}
	return c, nil
}
