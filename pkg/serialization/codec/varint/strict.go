package varint

import (
	"golang.org/x/exp/constraints"
)

// DecodeStrict decodes a varint from the start of src and returns the value
// and the exact number of bytes read. Unlike Decode it rejects input that ends
// before the terminating byte (ErrTruncated) and values that do not fit in T
// (ErrOverflow).
func DecodeStrict[T constraints.Unsigned](src []byte) (T, int, error) {
	var (
		x     uint64
		shift uint
	)
	for i, b := range src {
		if i == MaxLen64 {
			return 0, 0, ErrOverflow
		}
		if b < msb {
			// the tenth byte may only carry the top bit of a uint64
			if i == MaxLen64-1 && b > 1 {
				return 0, 0, ErrOverflow
			}
			x |= uint64(b) << shift
			if x > uint64(^T(0)) {
				return 0, 0, ErrOverflow
			}
			return T(x), i + 1, nil
		}
		x |= uint64(b&dropMSB) << shift
		shift += 7
	}
	if len(src) >= MaxLen64 {
		return 0, 0, ErrOverflow
	}
	return 0, 0, ErrTruncated
}
