package tag

import (
	"testing"
	"time"

	"taglink/engine"
	"taglink/sim"
	"taglink/status"
)

func TestOnEvent(t *testing.T) {
	eng := sim.New(sim.WithCreateLatency(0), sim.WithLatency(time.Millisecond))
	tg, err := Create(eng, counterAttrs, time.Second)
	if err != nil {
		t.Fatal(err)
	}

	events := make(chan Event, 8)
	if err := tg.OnEvent(func(ev Event) { events <- ev }); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if err := tg.OnEvent(func(Event) {}); status.Of(err) != status.ErrDuplicate {
		t.Errorf("second OnEvent = %v, want ERR_DUPLICATE", err)
	}

	if st := tg.Write(time.Second); st != status.OK {
		t.Fatalf("Write = %s", st)
	}
	tg.Destroy()

	want := []int32{engine.EventWriteStarted, engine.EventWriteCompleted, engine.EventDestroyed}
	for i, kind := range want {
		select {
		case ev := <-events:
			if ev.Kind != kind || ev.Status != status.OK {
				t.Errorf("event %d = %s, want %s", i, ev, engine.EventName(kind))
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d never arrived", i)
		}
	}

	if err := tg.OnEvent(func(Event) {}); status.Of(err) != status.ErrNotFound {
		t.Errorf("OnEvent after Destroy = %v, want ERR_NOT_FOUND", err)
	}
}

func TestOnEventRemove(t *testing.T) {
	eng := sim.New(sim.WithCreateLatency(0), sim.WithLatency(time.Millisecond))
	tg := mustCreate(t, eng, counterAttrs)

	if err := tg.OnEvent(nil); status.Of(err) != status.ErrNotFound {
		t.Errorf("removing unset callback = %v, want ERR_NOT_FOUND", err)
	}
	events := make(chan Event, 8)
	if err := tg.OnEvent(func(ev Event) { events <- ev }); err != nil {
		t.Fatal(err)
	}
	if err := tg.OnEvent(nil); err != nil {
		t.Fatalf("remove: %v", err)
	}
	tg.Read(time.Second)
	select {
	case ev := <-events:
		t.Errorf("event %s after removal", ev)
	case <-time.After(30 * time.Millisecond):
	}
}
