package native

import (
	"unsafe"

	"taglink/engine"
	"taglink/status"
)

// RegisterCallback routes the events of handle h to cb. Libraries
// without callback support return ERR_NOT_IMPLEMENTED.
func (l *Library) RegisterCallback(h int32, cb engine.Callback) int32 {
	if l.registerCallback == nil || l.eventFn == 0 {
		return int32(status.ErrNotImplemented)
	}
	if cb == nil {
		return int32(status.ErrNullPtr)
	}

	l.cbMu.Lock()
	if _, ok := l.callbacks[h]; ok {
		l.cbMu.Unlock()
		return int32(status.ErrDuplicate)
	}
	l.callbacks[h] = cb
	l.cbMu.Unlock()

	rc := l.registerCallback(h, l.eventFn)
	if rc != int32(status.OK) {
		l.cbMu.Lock()
		delete(l.callbacks, h)
		l.cbMu.Unlock()
	}
	return rc
}

// UnregisterCallback calls plc_tag_unregister_callback and forgets the
// handle's callback.
func (l *Library) UnregisterCallback(h int32) int32 {
	if l.unregisterCallback == nil {
		return int32(status.ErrNotImplemented)
	}
	rc := l.unregisterCallback(h)
	l.cbMu.Lock()
	delete(l.callbacks, h)
	l.cbMu.Unlock()
	return rc
}

// RegisterLogger routes the library's debug output to fn.
func (l *Library) RegisterLogger(fn engine.Logger) int32 {
	if l.registerLogger == nil || l.logFn == 0 {
		return int32(status.ErrNotImplemented)
	}
	if fn == nil {
		return int32(status.ErrNullPtr)
	}

	l.cbMu.Lock()
	if l.logger != nil {
		l.cbMu.Unlock()
		return int32(status.ErrDuplicate)
	}
	l.logger = fn
	l.cbMu.Unlock()

	rc := l.registerLogger(l.logFn)
	if rc != int32(status.OK) {
		l.cbMu.Lock()
		l.logger = nil
		l.cbMu.Unlock()
	}
	return rc
}

// UnregisterLogger calls plc_tag_unregister_logger.
func (l *Library) UnregisterLogger() int32 {
	if l.unregisterLogger == nil {
		return int32(status.ErrNotImplemented)
	}
	rc := l.unregisterLogger()
	l.cbMu.Lock()
	l.logger = nil
	l.cbMu.Unlock()
	return rc
}

func (l *Library) dispatchEvent(h, event, rc int32) {
	l.cbMu.Lock()
	cb := l.callbacks[h]
	if event == engine.EventDestroyed {
		delete(l.callbacks, h)
	}
	l.cbMu.Unlock()
	if cb != nil {
		cb(h, event, rc)
	}
}

func (l *Library) dispatchLog(h, level int32, msg string) {
	l.cbMu.Lock()
	fn := l.logger
	l.cbMu.Unlock()
	if fn != nil {
		fn(h, level, msg)
	}
}

// cString copies a zero terminated C string.
func cString(p uintptr) string {
	if p == 0 {
		return ""
	}
	start := unsafe.Pointer(p)
	n := 0
	for *(*byte)(unsafe.Add(start, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(start), n))
}
