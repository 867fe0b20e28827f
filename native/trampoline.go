//go:build darwin || freebsd || (linux && (amd64 || arm64)) || windows

package native

import "github.com/ebitengine/purego"

// newTrampolines creates the C entry points handed to the library's
// callback registration calls. Each Load uses two of purego's fixed
// callback slots.
func newTrampolines(l *Library) (eventFn, logFn uintptr) {
	eventFn = purego.NewCallback(func(h, event, rc uintptr) uintptr {
		l.dispatchEvent(int32(h), int32(event), int32(rc))
		return 0
	})
	logFn = purego.NewCallback(func(h, level, msg uintptr) uintptr {
		l.dispatchLog(int32(h), int32(level), cString(msg))
		return 0
	})
	return eventFn, logFn
}
