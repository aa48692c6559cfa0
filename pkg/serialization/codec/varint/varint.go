package varint

import (
	"golang.org/x/exp/constraints"
)

const (
	msb     = 0b1000_0000
	dropMSB = 0b0111_1111

	// MaxGroups is the number of 7-bit groups Decode reads before giving up
	// on finding a terminating byte (70 bits).
	MaxGroups = 10

	// MaxLen64 is the maximum length of a varint-encoded uint64.
	MaxLen64 = 10
)

// RequiredSize64 returns the number of bytes Encode64 produces for x.
func RequiredSize64(x uint64) int {
	if x == 0 {
		return 1
	}
	n := 0
	for x > 0 {
		n++
		x >>= 7
	}
	return n
}

// Put64 encodes x into dst and returns the number of bytes written.
// If the buffer is too small, Put64 will panic.
func Put64(dst []byte, x uint64) int {
	i := 0
	for x >= msb {
		dst[i] = byte(x)&dropMSB | msb
		x >>= 7
		i++
	}
	dst[i] = byte(x)
	return i + 1
}

// Encode64 returns the varint encoding of x in a newly allocated slice
// of exactly RequiredSize64(x) bytes.
func Encode64(x uint64) []byte {
	b := make([]byte, RequiredSize64(x))
	Put64(b, x)
	return b
}

// Decode64 reads a varint from the start of src. It returns the value and
// the number of 7-bit groups consumed. Decoding stops at the first byte with
// the continuation bit clear, at the end of src, or after MaxGroups groups,
// whichever comes first. It never fails: for truncated or malformed input the
// partially accumulated value is returned, and the caller must check that the
// last consumed byte terminated the varint (see DecodeStrict).
func Decode64(src []byte) (uint64, int) {
	var (
		x     uint64
		shift uint
	)
	for _, b := range src {
		x |= uint64(b&dropMSB) << shift
		shift += 7
		if b&msb == 0 || shift >= 7*MaxGroups {
			break
		}
	}
	return x, int(shift / 7)
}

// RequiredSize returns the number of bytes Encode produces for x.
func RequiredSize[T constraints.Unsigned](x T) int {
	return RequiredSize64(uint64(x))
}

// Put encodes x into dst and returns the number of bytes written.
// If the buffer is too small, Put will panic.
func Put[T constraints.Unsigned](dst []byte, x T) int {
	return Put64(dst, uint64(x))
}

// Append appends the varint encoding of x to dst and returns the extended buffer.
func Append[T constraints.Unsigned](dst []byte, x T) []byte {
	var buf [MaxLen64]byte
	n := Put64(buf[:], uint64(x))
	return append(dst, buf[:n]...)
}

// Encode returns the varint encoding of x.
func Encode[T constraints.Unsigned](x T) []byte {
	return Encode64(uint64(x))
}

// Decode decodes a varint from src as Decode64 does and narrows the result
// to T. Bits above the width of T are silently dropped.
func Decode[T constraints.Unsigned](src []byte) (T, int) {
	x, n := Decode64(src)
	return T(x), n
}

// MaxLen returns the maximum encoded length of a value of type T.
func MaxLen[T constraints.Unsigned]() int {
	return RequiredSize64(uint64(^T(0)))
}

// Varint is the varint capability for one unsigned width. It carries no state;
// its zero value is ready to use.
type Varint[T constraints.Unsigned] struct{}

type (
	Uint8   = Varint[uint8]
	Uint16  = Varint[uint16]
	Uint32  = Varint[uint32]
	Uint64  = Varint[uint64]
	Uint    = Varint[uint]
	Uintptr = Varint[uintptr]
)

func (Varint[T]) RequiredSize(x T) int {
	return RequiredSize(x)
}

func (Varint[T]) Encode(x T) []byte {
	return Encode(x)
}

func (Varint[T]) Decode(src []byte) (T, int) {
	return Decode[T](src)
}

func (Varint[T]) DecodeStrict(src []byte) (T, int, error) {
	return DecodeStrict[T](src)
}

func (Varint[T]) MaxLen() int {
	return MaxLen[T]()
}
