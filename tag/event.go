package tag

import (
	"taglink/engine"
	"taglink/status"
)

// Event is one engine notification about a tag.
type Event struct {
	Kind   int32 // one of the engine.Event constants
	Status status.Status
}

func (e Event) String() string {
	return engine.EventName(e.Kind) + ": " + e.Status.String()
}

// OnEvent delivers the tag's read, write, abort and destroy events to fn.
// fn runs on an engine thread and must not block; after an
// engine.EventDestroyed event it must not touch the Tag. A nil fn removes
// the callback. Only one callback may be set at a time.
func (t *Tag) OnEvent(fn func(Event)) error {
	h, ok := t.live()
	if !ok {
		return status.Err("callback", status.ErrNotFound)
	}
	if fn == nil {
		return status.Err("callback", status.Status(t.eng.UnregisterCallback(h)))
	}
	rc := t.eng.RegisterCallback(h, func(_ int32, kind int32, rc int32) {
		fn(Event{Kind: kind, Status: status.Status(rc)})
	})
	return status.Err("callback", status.Status(rc))
}
