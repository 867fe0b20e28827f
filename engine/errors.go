package engine

import "errors"

var (
	ErrLibraryNotFound = errors.New("tag library not found")
	ErrSymbolMissing   = errors.New("tag library symbol missing")
	ErrVersion         = errors.New("tag library version not supported")
	ErrUnknownKind     = errors.New("unknown engine kind")
)
