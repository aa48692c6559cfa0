package codec

import "errors"

var (
	ErrInvalidPointer = errors.New("invalid pointer")
	ErrEmptyInput     = errors.New("empty input")
	ErrTrailingBytes  = errors.New("trailing bytes after varint")

	ErrUnsupportedType = "unsupported type: %T"
	ErrDecodingUint    = "error decoding uint: %w"
)
