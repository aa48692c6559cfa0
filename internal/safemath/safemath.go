package safemath

import (
	"errors"
	"math/bits"
)

var (
	ErrOverflow  = errors.New("number overflow")
	ErrUnderflow = errors.New("number underflow")
)

func Add64(a, b uint64) (uint64, bool) {
	v, carry := bits.Add64(a, b, 0)
	return v, carry == 0
}

func Sub64(a, b uint64) (uint64, bool) {
	v, borrow := bits.Sub64(a, b, 0)
	return v, borrow == 0
}

// CheckedAdd64 is Add64 returning ErrOverflow instead of a flag.
func CheckedAdd64(a, b uint64) (uint64, error) {
	v, ok := Add64(a, b)
	if !ok {
		return 0, ErrOverflow
	}
	return v, nil
}

// CheckedSub64 is Sub64 returning ErrUnderflow instead of a flag.
func CheckedSub64(a, b uint64) (uint64, error) {
	v, ok := Sub64(a, b)
	if !ok {
		return 0, ErrUnderflow
	}
	return v, nil
}
