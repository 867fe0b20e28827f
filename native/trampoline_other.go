//go:build !(darwin || freebsd || (linux && (amd64 || arm64)) || windows)

package native

// newTrampolines reports no callback support where purego cannot create
// C callbacks.
func newTrampolines(*Library) (eventFn, logFn uintptr) {
	return 0, 0
}
