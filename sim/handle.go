package sim

import (
	"sync"
	"time"

	"taglink/engine"
	"taglink/status"
)

type handle struct {
	id  int32
	def tagDef

	ext    chan struct{} // external lock, held across calls
	gone   chan struct{} // closed by Destroy
	events *eventQueue

	mu          sync.Mutex
	data        []byte
	status      status.Status
	op          *pending
	readCache   time.Duration
	cacheExpire time.Time
	destroyed   bool
	cb          engine.Callback
}

// pending is one in-flight operation on a handle.
type pending struct {
	kind  Op
	timer *time.Timer
	done  chan struct{}
}

func newHandle(id int32, s tagDef, events *eventQueue) *handle {
	return &handle{
		id:        id,
		def:       s,
		ext:       make(chan struct{}, 1),
		gone:      make(chan struct{}),
		events:    events,
		data:      make([]byte, s.size()),
		readCache: time.Duration(s.readCacheMS) * time.Millisecond,
	}
}

// Events raised when an operation starts and when it completes.
var opEvents = map[Op][2]int32{
	OpRead:  {engine.EventReadStarted, engine.EventReadCompleted},
	OpWrite: {engine.EventWriteStarted, engine.EventWriteCompleted},
}

// begin starts an operation that completes after latency.
// Must hold h.mu and h.op must be nil.
func (h *handle) begin(kind Op, latency time.Duration, complete func(*handle, *pending)) *pending {
	o := &pending{kind: kind, done: make(chan struct{})}
	h.op = o
	h.status = status.Pending
	if ev, ok := opEvents[kind]; ok {
		h.raise(ev[0], status.OK)
	}
	o.timer = time.AfterFunc(latency, func() { complete(h, o) })
	return o
}

// abort cancels the in-flight operation, if any, leaving the status OK
// and the buffer as it was. Must hold h.mu.
func (h *handle) abort() {
	if h.op == nil {
		return
	}
	h.op.timer.Stop()
	close(h.op.done)
	if _, ok := opEvents[h.op.kind]; ok {
		h.raise(engine.EventAborted, status.ErrAbort)
	}
	h.op = nil
	h.status = status.OK
	h.cacheExpire = time.Time{}
}

// wait reports whether the operation finished within timeoutMS.
func (o *pending) wait(timeoutMS int32) bool {
	t := time.NewTimer(time.Duration(timeoutMS) * time.Millisecond)
	defer t.Stop()
	select {
	case <-o.done:
		return true
	case <-t.C:
		return false
	}
}
