package verification

import "errors"

var (
	// ErrInvalidInput marks a request the engine refuses before touching the store.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCorruptRecord is returned by Compare when the referenced record cannot be decoded.
	ErrCorruptRecord = errors.New("corrupt enrollment record")
	// ErrUnknownComparison is returned for unknown, tampered or expired comparison tokens.
	ErrUnknownComparison = errors.New("unknown or expired comparison token")
)
