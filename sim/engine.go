// Package sim is an in-process tag engine.
//
// It follows the native engine's state machine closely enough to stand in
// for it in tests, demos and the gateway's "sim" mode: handles are never
// reused, reads and writes complete asynchronously after a configurable
// latency, a second operation while one is pending is refused with
// ERR_BUSY, timeouts abort the operation, and getters return sentinels
// instead of statuses. Tags address a simulated device memory shared by
// every handle that names the same gateway, path and tag name.
package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"taglink/engine"
	"taglink/logging"
	"taglink/status"
)

// Version reported through CheckLibVersion and the version attributes.
const (
	VersionMajor int32 = 2
	VersionMinor int32 = 2
	VersionPatch int32 = 0
)

// Op names an asynchronous operation for fault injection.
type Op string

const (
	OpCreate Op = "create"
	OpRead   Op = "read"
	OpWrite  Op = "write"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLatency sets how long reads and writes stay pending.
func WithLatency(d time.Duration) Option {
	return func(e *Engine) { e.latency = d }
}

// WithCreateLatency sets how long a newly created tag stays pending.
func WithCreateLatency(d time.Duration) Option {
	return func(e *Engine) { e.createLatency = d }
}

type faultKey struct {
	name string
	op   Op
}

// Engine is a simulated tag engine. It is safe for concurrent use.
type Engine struct {
	latency       time.Duration
	createLatency time.Duration

	// mu guards the counter and maps and is always taken before a
	// handle's mu.
	mu      sync.Mutex
	next    int32
	tags    map[int32]*handle
	devices map[deviceKey][]byte
	faults  map[faultKey]status.Status

	debug  atomic.Int32
	logger atomic.Pointer[engine.Logger]
	events eventQueue
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine. Without options operations complete after 5ms.
func New(opts ...Option) *Engine {
	e := &Engine{
		latency:       5 * time.Millisecond,
		createLatency: 5 * time.Millisecond,
		tags:          make(map[int32]*handle),
		devices:       make(map[deviceKey][]byte),
		faults:        make(map[faultKey]status.Status),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Seed sets the device memory addressed by an attribute string.
func (e *Engine) Seed(attributes string, data []byte) status.Status {
	s, rc := parseDef(attributes)
	if rc != status.OK {
		return rc
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices[s.key] = append([]byte(nil), data...)
	return status.OK
}

// Device returns a copy of the device memory addressed by an attribute
// string, or nil if nothing has been written or seeded there.
func (e *Engine) Device(attributes string) []byte {
	s, rc := parseDef(attributes)
	if rc != status.OK {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if mem, ok := e.devices[s.key]; ok {
		return append([]byte(nil), mem...)
	}
	return nil
}

// Fail makes the next op on any tag with the given name complete with
// code instead of succeeding.
func (e *Engine) Fail(name string, op Op, code status.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[faultKey{name, op}] = code
}

// Handles returns the number of live handles.
func (e *Engine) Handles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tags)
}

func (e *Engine) lookup(id int32) *handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tags[id]
}

// DecodeError returns the native name of a status code.
func (e *Engine) DecodeError(code int32) string {
	return status.Decode(int(code))
}

// CheckLibVersion accepts any version up to the simulated one within the
// same major version.
func (e *Engine) CheckLibVersion(major, minor, patch int32) int32 {
	if major != VersionMajor {
		return int32(status.ErrUnsupported)
	}
	if minor > VersionMinor || (minor == VersionMinor && patch > VersionPatch) {
		return int32(status.ErrUnsupported)
	}
	return int32(status.OK)
}

// SetDebugLevel sets the level used for logger output and buffer dumps.
func (e *Engine) SetDebugLevel(level int32) {
	e.debug.Store(level)
}

// Shutdown destroys every live handle.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	ids := make([]int32, 0, len(e.tags))
	for id := range e.tags {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.Destroy(id)
	}
}

// Create registers a handle for attributes. The tag stays PENDING for the
// create latency; a positive timeoutMS waits for it and leaves ERR_TIMEOUT
// as the status if it is not ready in time.
func (e *Engine) Create(attributes string, timeoutMS int32) int32 {
	s, rc := parseDef(attributes)
	if rc != status.OK {
		e.logf(0, engine.DebugWarn, "create %q: %s", attributes, rc)
		return int32(rc)
	}

	e.mu.Lock()
	if s.debug > 0 {
		e.debug.Store(int32(s.debug))
	}
	e.next++
	h := newHandle(e.next, s, &e.events)
	e.tags[h.id] = h
	h.mu.Lock()
	o := h.begin(OpCreate, e.createLatency, e.complete)
	h.mu.Unlock()
	e.mu.Unlock()

	e.logf(h.id, engine.DebugInfo, "create %d %s/%s/%s size %d", h.id, s.key.gateway, s.key.path, s.key.name, s.size())

	if timeoutMS > 0 && !o.wait(timeoutMS) {
		h.mu.Lock()
		if h.op == o {
			h.abort()
			h.status = status.ErrTimeout
		}
		h.mu.Unlock()
	}
	return h.id
}

// Destroy aborts any operation, releases waiters on the external lock and
// forgets the handle. Unknown handles are ignored.
func (e *Engine) Destroy(id int32) int32 {
	if id <= 0 {
		return int32(status.ErrNullPtr)
	}

	e.mu.Lock()
	h := e.tags[id]
	delete(e.tags, id)
	e.mu.Unlock()

	if h == nil {
		return int32(status.OK)
	}

	h.mu.Lock()
	h.abort()
	h.destroyed = true
	h.status = status.ErrNotFound
	close(h.gone)
	h.raise(engine.EventDestroyed, status.OK)
	h.cb = nil
	h.mu.Unlock()

	e.logf(id, engine.DebugInfo, "destroy %d", id)
	return int32(status.OK)
}

// Lock blocks until the handle's external mutex is free. It is not
// reentrant: locking twice from the same caller without an Unlock blocks.
func (e *Engine) Lock(id int32) int32 {
	h := e.lookup(id)
	if h == nil {
		return int32(status.ErrNotFound)
	}
	select {
	case h.ext <- struct{}{}:
		return int32(status.OK)
	case <-h.gone:
		return int32(status.ErrNotFound)
	}
}

// Unlock releases the external mutex. Unlocking a free mutex returns
// ERR_MUTEX_UNLOCK.
func (e *Engine) Unlock(id int32) int32 {
	h := e.lookup(id)
	if h == nil {
		return int32(status.ErrNotFound)
	}
	select {
	case <-h.ext:
		return int32(status.OK)
	default:
		return int32(status.ErrMutexUnlock)
	}
}

// Abort cancels the in-flight operation, if any.
func (e *Engine) Abort(id int32) int32 {
	h := e.lookup(id)
	if h == nil {
		return int32(status.ErrNotFound)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cacheExpire = time.Time{}
	h.abort()
	h.status = status.OK
	return int32(status.OK)
}

// Status returns the handle's last status without blocking.
func (e *Engine) Status(id int32) int32 {
	h := e.lookup(id)
	if h == nil {
		return int32(status.ErrNotFound)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return int32(h.status)
}

// Read copies device memory into the handle buffer after the latency.
func (e *Engine) Read(id int32, timeoutMS int32) int32 {
	return e.io(id, OpRead, timeoutMS)
}

// Write copies the handle buffer into device memory after the latency.
func (e *Engine) Write(id int32, timeoutMS int32) int32 {
	return e.io(id, OpWrite, timeoutMS)
}

func (e *Engine) io(id int32, kind Op, timeoutMS int32) int32 {
	h := e.lookup(id)
	if h == nil {
		return int32(status.ErrNotFound)
	}

	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return int32(status.ErrNotFound)
	}
	if h.op != nil {
		h.mu.Unlock()
		return int32(status.ErrBusy)
	}
	if kind == OpRead && h.readCache > 0 && time.Now().Before(h.cacheExpire) {
		h.mu.Unlock()
		return int32(status.OK)
	}
	o := h.begin(kind, e.latency, e.complete)
	if kind == OpRead {
		h.cacheExpire = time.Now().Add(h.readCache)
	}
	h.mu.Unlock()

	if timeoutMS <= 0 {
		return int32(status.Pending)
	}

	if !o.wait(timeoutMS) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.op == o {
			h.abort()
			return int32(status.ErrTimeout)
		}
		return int32(h.status)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return int32(h.status)
}

// complete finishes an operation unless it was aborted in the meantime.
func (e *Engine) complete(h *handle, o *pending) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.op != o {
		return
	}
	h.op = nil
	defer close(o.done)

	fk := faultKey{h.def.key.name, o.kind}
	if code, ok := e.faults[fk]; ok {
		delete(e.faults, fk)
		h.status = code
		h.cacheExpire = time.Time{}
		e.logf(h.id, engine.DebugWarn, "%s %d: injected %s", o.kind, h.id, code)
		if ev, ok := opEvents[o.kind]; ok {
			h.raise(ev[1], code)
		}
		return
	}

	switch o.kind {
	case OpCreate, OpRead:
		e.load(h)
		if e.debug.Load() >= engine.DebugDetail {
			logging.DebugBuffer("sim", "read "+h.def.key.name, h.data)
		}
	case OpWrite:
		e.store(h)
	}
	h.status = status.OK
	if ev, ok := opEvents[o.kind]; ok {
		h.raise(ev[1], status.OK)
	}
}

// load copies device memory into the handle buffer. Must hold e.mu and h.mu.
func (e *Engine) load(h *handle) {
	if h.def.protocol == "system" {
		switch h.def.key.name {
		case "version":
			copy(h.data, versionString())
		case "debug":
			h.def.layout.order.PutUint32(h.data, uint32(e.debug.Load()))
		}
		return
	}
	mem, ok := e.devices[h.def.key]
	if !ok {
		mem = make([]byte, len(h.data))
		e.devices[h.def.key] = mem
	}
	n := copy(h.data, mem)
	for i := n; i < len(h.data); i++ {
		h.data[i] = 0
	}
}

// store copies the handle buffer into device memory. Must hold e.mu and h.mu.
func (e *Engine) store(h *handle) {
	if h.def.protocol == "system" {
		if h.def.key.name == "debug" {
			e.debug.Store(int32(h.def.layout.order.Uint32(h.data)))
		}
		return
	}
	mem := e.devices[h.def.key]
	if len(mem) < len(h.data) {
		grown := make([]byte, len(h.data))
		copy(grown, mem)
		mem = grown
	}
	copy(mem, h.data)
	e.devices[h.def.key] = mem
}

// GetSize returns the buffer length in bytes.
func (e *Engine) GetSize(id int32) int32 {
	h := e.lookup(id)
	if h == nil {
		return int32(status.ErrNotFound)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return int32(len(h.data))
}

// GetIntAttribute serves the library attributes on handle 0 and the
// element size, count, buffer size and read cache on tags.
func (e *Engine) GetIntAttribute(id int32, name string, def int32) int32 {
	if id == 0 {
		switch name {
		case engine.AttrVersionMajor:
			return VersionMajor
		case engine.AttrVersionMinor:
			return VersionMinor
		case engine.AttrVersionPatch:
			return VersionPatch
		case engine.AttrDebug:
			return e.debug.Load()
		}
		return def
	}

	h := e.lookup(id)
	if h == nil {
		return def
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	switch name {
	case "elem_size":
		return int32(h.def.elemSize)
	case "elem_count":
		return int32(h.def.elemCount)
	case "size":
		return int32(len(h.data))
	case "read_cache_ms":
		return int32(h.readCache / time.Millisecond)
	}
	return def
}

// SetIntAttribute accepts debug on handle 0 and read_cache_ms on tags.
func (e *Engine) SetIntAttribute(id int32, name string, value int32) int32 {
	if id == 0 {
		if name == engine.AttrDebug {
			e.SetDebugLevel(value)
			return int32(status.OK)
		}
		return int32(status.ErrUnsupported)
	}

	h := e.lookup(id)
	if h == nil {
		return int32(status.ErrNotFound)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	switch name {
	case "read_cache_ms":
		if value < 0 {
			return int32(status.ErrOutOfBounds)
		}
		h.readCache = time.Duration(value) * time.Millisecond
		h.cacheExpire = time.Time{}
		return int32(status.OK)
	}
	return int32(status.ErrUnsupported)
}
