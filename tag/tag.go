// Package tag is the client for a single tag handle.
//
// A Tag wraps a handle created by an engine.Engine. Every method is a thin
// delegation to the engine and surfaces the engine's status unchanged:
// nothing is retried, remapped or reordered here. Reads and writes with a
// zero timeout return PENDING immediately and the caller polls Status (or
// uses Wait, ReadAsync, WriteAsync). A non-zero timeout blocks until the
// operation finishes or the timeout expires, in which case the engine
// aborts it and reports ERR_TIMEOUT.
//
// The only status synthesized locally is ERR_NOT_FOUND for any call on a
// Tag after Destroy, so a stale Tag can never reach the engine.
package tag

import (
	"math"
	"sync"
	"time"

	"taglink/engine"
	"taglink/logging"
	"taglink/status"
)

// Tag is one engine handle. It is safe for concurrent use, but multi-call
// sequences on a shared Tag (read then get, set then write) must be
// bracketed by Lock and Unlock.
type Tag struct {
	eng        engine.Engine
	handle     int32
	attributes string

	mu        sync.RWMutex
	destroyed bool
}

// Millis converts a timeout to the engine's millisecond argument.
// Zero and negative durations mean "do not wait"; sub-millisecond
// positive durations round up to one millisecond.
func Millis(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(ms)
}

// Create asks the engine for a new handle.
//
// With timeout == 0 it returns as soon as the engine has accepted the
// attributes; Status may still be PENDING while the engine connects. With
// a positive timeout it blocks until creation finishes, and a creation
// that ends in an error status (ERR_TIMEOUT included) destroys the handle
// and returns that status as a *status.Error.
func Create(eng engine.Engine, attributes string, timeout time.Duration) (*Tag, error) {
	rc := eng.Create(attributes, Millis(timeout))
	if rc < 0 {
		logging.DebugLog("tag", "create %q: %s", attributes, status.Status(rc))
		return nil, status.Err("create", status.Status(rc))
	}
	if rc == 0 {
		// Older engines return a null handle instead of a status.
		return nil, status.Err("create", status.ErrCreate)
	}

	t := &Tag{eng: eng, handle: rc, attributes: attributes}
	logging.DebugLog("tag", "created handle %d for %q", rc, attributes)

	if timeout > 0 {
		if st := t.Status(); st.IsError() {
			t.Destroy()
			return nil, status.Err("create", st)
		}
	}
	return t, nil
}

// Handle returns the engine handle.
func (t *Tag) Handle() int32 {
	return t.handle
}

// Attributes returns the attribute string the tag was created with.
func (t *Tag) Attributes() string {
	return t.attributes
}

// Engine returns the engine that owns the handle.
func (t *Tag) Engine() engine.Engine {
	return t.eng
}

// live returns the handle unless the tag has been destroyed.
func (t *Tag) live() (int32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handle, !t.destroyed
}

// Destroyed reports whether Destroy has been called.
func (t *Tag) Destroyed() bool {
	_, ok := t.live()
	return !ok
}

// Destroy releases the handle. Every later call on the Tag, including a
// second Destroy, returns ERR_NOT_FOUND without reaching the engine.
func (t *Tag) Destroy() status.Status {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return status.ErrNotFound
	}
	t.destroyed = true
	t.mu.Unlock()

	rc := status.Status(t.eng.Destroy(t.handle))
	logging.DebugLog("tag", "destroyed handle %d: %s", t.handle, rc)
	return rc
}

// Status returns the current status without blocking.
func (t *Tag) Status() status.Status {
	h, ok := t.live()
	if !ok {
		return status.ErrNotFound
	}
	return status.Status(t.eng.Status(h))
}

// Read starts a read from the device into the tag buffer.
func (t *Tag) Read(timeout time.Duration) status.Status {
	h, ok := t.live()
	if !ok {
		return status.ErrNotFound
	}
	rc := status.Status(t.eng.Read(h, Millis(timeout)))
	if rc.IsError() {
		logging.DebugLog("tag", "read handle %d: %s", h, rc)
	}
	return rc
}

// Write starts a write of the tag buffer to the device.
func (t *Tag) Write(timeout time.Duration) status.Status {
	h, ok := t.live()
	if !ok {
		return status.ErrNotFound
	}
	rc := status.Status(t.eng.Write(h, Millis(timeout)))
	if rc.IsError() {
		logging.DebugLog("tag", "write handle %d: %s", h, rc)
	}
	return rc
}

// Abort cancels an in-flight read or write.
func (t *Tag) Abort() status.Status {
	h, ok := t.live()
	if !ok {
		return status.ErrNotFound
	}
	return status.Status(t.eng.Abort(h))
}

// Lock takes the engine's per-handle mutex. It blocks while another
// caller holds it and is not reentrant.
func (t *Tag) Lock() status.Status {
	h, ok := t.live()
	if !ok {
		return status.ErrNotFound
	}
	return status.Status(t.eng.Lock(h))
}

// Unlock releases the per-handle mutex.
func (t *Tag) Unlock() status.Status {
	h, ok := t.live()
	if !ok {
		return status.ErrNotFound
	}
	return status.Status(t.eng.Unlock(h))
}

// Size returns the current buffer size in bytes.
func (t *Tag) Size() (int, error) {
	h, ok := t.live()
	if !ok {
		return 0, status.Err("size", status.ErrNotFound)
	}
	n := t.eng.GetSize(h)
	if n < 0 {
		return 0, status.Err("size", status.Status(n))
	}
	return int(n), nil
}

// IntAttribute returns an integer attribute of the handle, or def.
func (t *Tag) IntAttribute(name string, def int) int {
	h, ok := t.live()
	if !ok {
		return def
	}
	return int(t.eng.GetIntAttribute(h, name, int32(def)))
}

// SetIntAttribute sets an integer attribute of the handle.
func (t *Tag) SetIntAttribute(name string, value int) error {
	h, ok := t.live()
	if !ok {
		return status.Err("set attribute", status.ErrNotFound)
	}
	return status.Err("set attribute", status.Status(t.eng.SetIntAttribute(h, name, int32(value))))
}
