package codec

import (
	"fmt"

	"golang.org/x/exp/constraints"

	"github.com/eigerco/varint/pkg/log"
	"github.com/eigerco/varint/pkg/serialization/codec/varint"
)

// VarintCodec implements the Codec interface for base-128 varints.
type VarintCodec struct {
	strict bool
}

type Option func(*VarintCodec)

// WithStrict makes Unmarshal reject truncated, overflowing or over-long input
// instead of decoding it leniently.
func WithStrict(strict bool) Option {
	return func(c *VarintCodec) {
		c.strict = strict
	}
}

// NewVarintCodec initializes an instance of the varint codec
func NewVarintCodec(opts ...Option) *VarintCodec {
	c := &VarintCodec{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *VarintCodec) Strict() bool {
	return c.strict
}

func (c *VarintCodec) Marshal(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case uint8:
		return varint.Encode(x), nil
	case uint16:
		return varint.Encode(x), nil
	case uint32:
		return varint.Encode(x), nil
	case uint64:
		return varint.Encode(x), nil
	case uint:
		return varint.Encode(x), nil
	case uintptr:
		return varint.Encode(x), nil
	case *uint8:
		return marshalPtr(x)
	case *uint16:
		return marshalPtr(x)
	case *uint32:
		return marshalPtr(x)
	case *uint64:
		return marshalPtr(x)
	case *uint:
		return marshalPtr(x)
	case *uintptr:
		return marshalPtr(x)
	default:
		return nil, fmt.Errorf(ErrUnsupportedType, v)
	}
}

func (c *VarintCodec) Unmarshal(data []byte, v interface{}) error {
	switch dst := v.(type) {
	case *uint8:
		return unmarshalInto(c, data, dst)
	case *uint16:
		return unmarshalInto(c, data, dst)
	case *uint32:
		return unmarshalInto(c, data, dst)
	case *uint64:
		return unmarshalInto(c, data, dst)
	case *uint:
		return unmarshalInto(c, data, dst)
	case *uintptr:
		return unmarshalInto(c, data, dst)
	default:
		return fmt.Errorf(ErrUnsupportedType, v)
	}
}

func marshalPtr[T constraints.Unsigned](x *T) ([]byte, error) {
	if x == nil {
		return nil, ErrInvalidPointer
	}
	return varint.Encode(*x), nil
}

func unmarshalInto[T constraints.Unsigned](c *VarintCodec, data []byte, dst *T) error {
	if dst == nil {
		return ErrInvalidPointer
	}
	x, err := decodeValue[T](data, c.strict)
	if err != nil {
		log.Codec.Debug().Err(err).Hex("input", data).Bool("strict", c.strict).Msg("rejected varint")
		return err
	}
	*dst = x
	return nil
}

func decodeValue[T constraints.Unsigned](data []byte, strict bool) (T, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf(ErrDecodingUint, ErrEmptyInput)
	}
	if !strict {
		x, _ := varint.Decode[T](data)
		return x, nil
	}
	x, n, err := varint.DecodeStrict[T](data)
	if err != nil {
		return 0, fmt.Errorf(ErrDecodingUint, err)
	}
	if n != len(data) {
		return 0, fmt.Errorf(ErrDecodingUint, ErrTrailingBytes)
	}
	return x, nil
}
