package sim

import (
	"fmt"
	"sync"

	"taglink/engine"
	"taglink/logging"
	"taglink/status"
)

type event struct {
	cb     engine.Callback
	id     int32
	kind   int32
	status int32
}

// eventQueue delivers tag events in the order they were raised, on a
// goroutine of its own and outside every handle lock. The goroutine
// exits once the queue drains.
type eventQueue struct {
	mu      sync.Mutex
	queue   []event
	running bool
}

func (q *eventQueue) push(ev event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, ev)
	if !q.running {
		q.running = true
		go q.run()
	}
}

func (q *eventQueue) run() {
	for {
		q.mu.Lock()
		if len(q.queue) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		ev := q.queue[0]
		q.queue = q.queue[1:]
		q.mu.Unlock()
		ev.cb(ev.id, ev.kind, ev.status)
	}
}

// raise queues an event for the handle's callback, if any. Must hold h.mu.
func (h *handle) raise(kind int32, rc status.Status) {
	if h.cb == nil {
		return
	}
	h.events.push(event{cb: h.cb, id: h.id, kind: kind, status: int32(rc)})
}

// RegisterCallback sets the event callback of a handle.
func (e *Engine) RegisterCallback(id int32, cb engine.Callback) int32 {
	if cb == nil {
		return int32(status.ErrNullPtr)
	}
	h := e.lookup(id)
	if h == nil {
		return int32(status.ErrNotFound)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cb != nil {
		return int32(status.ErrDuplicate)
	}
	h.cb = cb
	return int32(status.OK)
}

// UnregisterCallback clears the event callback of a handle. Events
// already queued are still delivered.
func (e *Engine) UnregisterCallback(id int32) int32 {
	h := e.lookup(id)
	if h == nil {
		return int32(status.ErrNotFound)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cb == nil {
		return int32(status.ErrNotFound)
	}
	h.cb = nil
	return int32(status.OK)
}

// RegisterLogger sets the engine's log sink.
func (e *Engine) RegisterLogger(fn engine.Logger) int32 {
	if fn == nil {
		return int32(status.ErrNullPtr)
	}
	if !e.logger.CompareAndSwap(nil, &fn) {
		return int32(status.ErrDuplicate)
	}
	return int32(status.OK)
}

// UnregisterLogger clears the engine's log sink.
func (e *Engine) UnregisterLogger() int32 {
	if e.logger.Swap(nil) == nil {
		return int32(status.ErrNotFound)
	}
	return int32(status.OK)
}

// logf writes to the debug log and, when the level is enabled, to the
// registered logger.
func (e *Engine) logf(id, level int32, format string, args ...interface{}) {
	logging.DebugLog("sim", format, args...)
	fn := e.logger.Load()
	if fn == nil || level > e.debug.Load() {
		return
	}
	(*fn)(id, level, fmt.Sprintf(format, args...))
}
