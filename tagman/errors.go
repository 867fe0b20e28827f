package tagman

import "errors"

// Sentinel errors for tag operations. Callers use errors.Is; engine
// failures are returned as *status.Error instead.
var (
	ErrNotFound     = errors.New("tag not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrReadOnly     = errors.New("tag is not writable")
	ErrExists       = errors.New("tag already exists")
)
