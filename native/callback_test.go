package native

import (
	"testing"
	"unsafe"

	"taglink/engine"
	"taglink/status"
)

func TestCallbacksUnbound(t *testing.T) {
	l := &Library{callbacks: make(map[int32]engine.Callback)}
	calls := []struct {
		name string
		rc   int32
	}{
		{"RegisterCallback", l.RegisterCallback(1, func(int32, int32, int32) {})},
		{"UnregisterCallback", l.UnregisterCallback(1)},
		{"RegisterLogger", l.RegisterLogger(func(int32, int32, string) {})},
		{"UnregisterLogger", l.UnregisterLogger()},
	}
	for _, c := range calls {
		if status.Status(c.rc) != status.ErrNotImplemented {
			t.Errorf("%s = %s, want ERR_NOT_IMPLEMENTED", c.name, status.Status(c.rc))
		}
	}
}

func TestDispatchEvent(t *testing.T) {
	l := &Library{callbacks: make(map[int32]engine.Callback)}
	var got []int32
	l.callbacks[7] = func(h, event, rc int32) {
		if h != 7 {
			t.Errorf("handle = %d", h)
		}
		got = append(got, event)
	}

	l.dispatchEvent(7, engine.EventReadStarted, 0)
	l.dispatchEvent(8, engine.EventReadStarted, 0)
	l.dispatchEvent(7, engine.EventDestroyed, 0)
	l.dispatchEvent(7, engine.EventReadStarted, 0)

	if len(got) != 2 || got[0] != engine.EventReadStarted || got[1] != engine.EventDestroyed {
		t.Errorf("events = %v", got)
	}
	if _, ok := l.callbacks[7]; ok {
		t.Error("callback kept after destroy")
	}
}

func TestDispatchLog(t *testing.T) {
	l := &Library{callbacks: make(map[int32]engine.Callback)}
	l.dispatchLog(1, engine.DebugInfo, "dropped")

	var msg string
	l.logger = func(_, _ int32, m string) { msg = m }
	l.dispatchLog(1, engine.DebugInfo, "tag created")
	if msg != "tag created" {
		t.Errorf("msg = %q", msg)
	}
}

func TestCString(t *testing.T) {
	buf := []byte("plc_tag_create\x00trailing")
	if got := cString(uintptr(unsafe.Pointer(&buf[0]))); got != "plc_tag_create" {
		t.Errorf("cString = %q", got)
	}
	if got := cString(0); got != "" {
		t.Errorf("cString(0) = %q", got)
	}
}
