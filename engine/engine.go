// Package engine defines the function table of a tag engine.
//
// An Engine is the boundary with the library that implements the tag
// protocols. Every method maps one-to-one onto an exported native
// function and keeps its argument and return encoding: handles are
// int32, statuses are int32 codes from package status, timeouts are
// milliseconds and values are fixed-width integers or floats.
//
// Getters have no status channel, as in the native API. On failure they
// return the sentinel documented on each method and callers are expected
// to check bounds themselves.
package engine

// Engine is the immutable capability table of a loaded tag engine.
// Implementations must be safe for concurrent use.
type Engine interface {
	// Library level.
	DecodeError(code int32) string
	CheckLibVersion(major, minor, patch int32) int32
	SetDebugLevel(level int32)
	Shutdown()

	// Handle lifecycle. Create returns a positive handle or a negative status.
	Create(attributes string, timeoutMS int32) int32
	Destroy(handle int32) int32
	Lock(handle int32) int32
	Unlock(handle int32) int32
	Abort(handle int32) int32
	Status(handle int32) int32
	Read(handle int32, timeoutMS int32) int32
	Write(handle int32, timeoutMS int32) int32

	// Buffer and attributes.
	GetSize(handle int32) int32
	GetIntAttribute(handle int32, name string, def int32) int32
	SetIntAttribute(handle int32, name string, value int32) int32

	// GetBit returns 0/1, or a negative status.
	GetBit(handle int32, bitOffset int32) int32
	SetBit(handle int32, bitOffset int32, value int32) int32

	// Unsigned getters return the type's max value on failure,
	// signed getters the type's min value and float getters the
	// type's max value.
	GetUint8(handle int32, offset int32) uint8
	SetUint8(handle int32, offset int32, value uint8) int32
	GetInt8(handle int32, offset int32) int8
	SetInt8(handle int32, offset int32, value int8) int32
	GetUint16(handle int32, offset int32) uint16
	SetUint16(handle int32, offset int32, value uint16) int32
	GetInt16(handle int32, offset int32) int16
	SetInt16(handle int32, offset int32, value int16) int32
	GetUint32(handle int32, offset int32) uint32
	SetUint32(handle int32, offset int32, value uint32) int32
	GetInt32(handle int32, offset int32) int32
	SetInt32(handle int32, offset int32, value int32) int32
	GetUint64(handle int32, offset int32) uint64
	SetUint64(handle int32, offset int32, value uint64) int32
	GetInt64(handle int32, offset int32) int64
	SetInt64(handle int32, offset int32, value int64) int32
	GetFloat32(handle int32, offset int32) float32
	SetFloat32(handle int32, offset int32, value float32) int32
	GetFloat64(handle int32, offset int32) float64
	SetFloat64(handle int32, offset int32, value float64) int32

	// Strings. GetString fills buf with a zero terminated string and
	// returns a status.
	GetString(handle int32, offset int32, buf []byte) int32
	SetString(handle int32, offset int32, value string) int32
	GetStringLength(handle int32, offset int32) int32
	GetStringCapacity(handle int32, offset int32) int32
	GetStringTotalLength(handle int32, offset int32) int32

	// Raw block access to the buffer.
	GetRawBytes(handle int32, offset int32, buf []byte) int32
	SetRawBytes(handle int32, offset int32, buf []byte) int32

	// Callbacks. One callback per handle and one logger per engine;
	// registering a second returns ERR_DUPLICATE and unregistering
	// when none is set returns ERR_NOT_FOUND.
	RegisterCallback(handle int32, cb Callback) int32
	UnregisterCallback(handle int32) int32
	RegisterLogger(fn Logger) int32
	UnregisterLogger() int32
}

// Callback receives the events of one handle. It runs on an engine
// thread outside the handle's lock and must not block. After
// EventDestroyed no tag function may be called for the handle.
type Callback func(handle int32, event int32, status int32)

// Logger receives engine debug output at or below the current debug
// level. It may run while engine locks are held and must not call back
// into the engine.
type Logger func(handle int32, level int32, message string)

// Tag events passed to a Callback.
const (
	EventReadStarted    int32 = 1
	EventReadCompleted  int32 = 2
	EventWriteStarted   int32 = 3
	EventWriteCompleted int32 = 4
	EventAborted        int32 = 5
	EventDestroyed      int32 = 6
)

// EventName returns the display name of a tag event.
func EventName(event int32) string {
	switch event {
	case EventReadStarted:
		return "read started"
	case EventReadCompleted:
		return "read completed"
	case EventWriteStarted:
		return "write started"
	case EventWriteCompleted:
		return "write completed"
	case EventAborted:
		return "aborted"
	case EventDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Library attributes that apply to handle 0.
const (
	AttrVersionMajor = "version_major"
	AttrVersionMinor = "version_minor"
	AttrVersionPatch = "version_patch"
	AttrDebug        = "debug"
)

// Debug levels accepted by SetDebugLevel.
const (
	DebugNone   int32 = 0
	DebugError  int32 = 1
	DebugWarn   int32 = 2
	DebugInfo   int32 = 3
	DebugDetail int32 = 4
	DebugSpew   int32 = 5
)
