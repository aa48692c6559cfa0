package serialization

import "errors"

// ErrNotVarintCodec is returned by the batch methods of a Serializer whose
// codec does not produce varints.
var ErrNotVarintCodec = errors.New("batch encoding requires the varint codec")
