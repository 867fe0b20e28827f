package engine

import "fmt"

// RequireVersion asks e whether it is compatible with the given version
// and returns an ErrVersion error carrying the engine's decoded status
// when it is not.
func RequireVersion(e Engine, major, minor, patch int32) error {
	if rc := e.CheckLibVersion(major, minor, patch); rc != 0 {
		return fmt.Errorf("%w: need %d.%d.%d: %s", ErrVersion, major, minor, patch, e.DecodeError(rc))
	}
	return nil
}
