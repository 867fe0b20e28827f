package sim

import (
	"strings"
	"sync"
	"testing"
	"time"

	"taglink/engine"
	"taglink/status"
)

type seen struct {
	event  int32
	status status.Status
}

func recorder(ch chan<- seen) engine.Callback {
	return func(_ int32, event int32, rc int32) {
		ch <- seen{event, status.Status(rc)}
	}
}

func collect(t *testing.T, ch <-chan seen, n int) []seen {
	t.Helper()
	var got []seen
	for len(got) < n {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("got %d of %d events: %+v", len(got), n, got)
		}
	}
	return got
}

func TestCallbackEvents(t *testing.T) {
	e := New(WithCreateLatency(0), WithLatency(20*time.Millisecond))
	id := e.Create(dintTag, 1000)

	ch := make(chan seen, 32)
	if rc := code(e.RegisterCallback(id, recorder(ch))); rc != status.OK {
		t.Fatalf("RegisterCallback = %s", rc)
	}
	if rc := code(e.RegisterCallback(id, recorder(ch))); rc != status.ErrDuplicate {
		t.Errorf("second RegisterCallback = %s, want ERR_DUPLICATE", rc)
	}

	if rc := code(e.Read(id, 1000)); rc != status.OK {
		t.Fatalf("Read = %s", rc)
	}
	if rc := code(e.Write(id, 1000)); rc != status.OK {
		t.Fatalf("Write = %s", rc)
	}
	e.Fail("Counter", OpRead, status.ErrBadReply)
	if rc := code(e.Read(id, 1000)); rc != status.ErrBadReply {
		t.Fatalf("faulted Read = %s", rc)
	}
	if rc := code(e.Read(id, 0)); rc != status.Pending {
		t.Fatalf("async Read = %s", rc)
	}
	e.Abort(id)
	e.Destroy(id)

	want := []seen{
		{engine.EventReadStarted, status.OK},
		{engine.EventReadCompleted, status.OK},
		{engine.EventWriteStarted, status.OK},
		{engine.EventWriteCompleted, status.OK},
		{engine.EventReadStarted, status.OK},
		{engine.EventReadCompleted, status.ErrBadReply},
		{engine.EventReadStarted, status.OK},
		{engine.EventAborted, status.ErrAbort},
		{engine.EventDestroyed, status.OK},
	}
	got := collect(t, ch, len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s/%s, want %s/%s", i,
				engine.EventName(got[i].event), got[i].status,
				engine.EventName(want[i].event), want[i].status)
		}
	}
}

func TestCallbackRegistration(t *testing.T) {
	e := New(WithCreateLatency(0), WithLatency(time.Millisecond))
	id := e.Create(dintTag, 1000)
	ch := make(chan seen, 8)

	tests := []struct {
		name string
		call func() int32
		want status.Status
	}{
		{"unknown handle", func() int32 { return e.RegisterCallback(id+1, recorder(ch)) }, status.ErrNotFound},
		{"nil callback", func() int32 { return e.RegisterCallback(id, nil) }, status.ErrNullPtr},
		{"unregister unset", func() int32 { return e.UnregisterCallback(id) }, status.ErrNotFound},
		{"register", func() int32 { return e.RegisterCallback(id, recorder(ch)) }, status.OK},
		{"unregister", func() int32 { return e.UnregisterCallback(id) }, status.OK},
		{"unregister twice", func() int32 { return e.UnregisterCallback(id) }, status.ErrNotFound},
	}
	for _, tt := range tests {
		if got := code(tt.call()); got != tt.want {
			t.Errorf("%s = %s, want %s", tt.name, got, tt.want)
		}
	}

	e.Read(id, 1000)
	e.Destroy(id)
	select {
	case ev := <-ch:
		t.Errorf("event %s after unregister", engine.EventName(ev.event))
	case <-time.After(30 * time.Millisecond):
	}
}

func TestLogger(t *testing.T) {
	e := New(WithCreateLatency(0))

	type line struct {
		id    int32
		level int32
		msg   string
	}
	var mu sync.Mutex
	var lines []line
	logger := func(id, level int32, msg string) {
		mu.Lock()
		lines = append(lines, line{id, level, msg})
		mu.Unlock()
	}

	if rc := code(e.RegisterLogger(logger)); rc != status.OK {
		t.Fatalf("RegisterLogger = %s", rc)
	}
	if rc := code(e.RegisterLogger(logger)); rc != status.ErrDuplicate {
		t.Errorf("second RegisterLogger = %s, want ERR_DUPLICATE", rc)
	}

	e.SetDebugLevel(engine.DebugInfo)
	id := e.Create(dintTag, 1000)
	e.SetDebugLevel(engine.DebugError)
	e.Destroy(id)

	mu.Lock()
	if len(lines) != 1 {
		t.Fatalf("lines = %+v, want only the create", lines)
	}
	if lines[0].id != id || lines[0].level != engine.DebugInfo || !strings.Contains(lines[0].msg, "Counter") {
		t.Errorf("line = %+v", lines[0])
	}
	mu.Unlock()

	if rc := code(e.UnregisterLogger()); rc != status.OK {
		t.Errorf("UnregisterLogger = %s", rc)
	}
	if rc := code(e.UnregisterLogger()); rc != status.ErrNotFound {
		t.Errorf("second UnregisterLogger = %s, want ERR_NOT_FOUND", rc)
	}
	if rc := code(e.RegisterLogger(nil)); rc != status.ErrNullPtr {
		t.Errorf("nil RegisterLogger = %s, want ERR_NULL_PTR", rc)
	}
}
