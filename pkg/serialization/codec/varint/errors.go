package varint

import "errors"

var (
	// ErrTruncated is returned when the input ends before a byte with the
	// continuation bit clear.
	ErrTruncated = errors.New("varint: truncated input")
	// ErrOverflow is returned when the encoded value does not fit the target width.
	ErrOverflow = errors.New("varint: value overflows target width")
)
