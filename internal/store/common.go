package store

const (
	ErrFailedBatchCommit = "failed to commit batch: %w"
)

// Prefix constants for all store types
const (
	prefixNumber byte = iota + 1
)

// PrefixToString converts a prefix byte to a string
func PrefixToString(p byte) string {
	switch p {
	case prefixNumber:
		return "number"
	default:
		return "unknown"
	}
}

// makeKey creates a key from a prefix and a name
func makeKey(prefix byte, name []byte) []byte {
	key := make([]byte, 1+len(name))
	key[0] = prefix
	copy(key[1:], name)
	return key
}
