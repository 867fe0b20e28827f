// Package native loads the libplctag shared library at run time and
// exposes it as an engine.Engine.
//
// The library is located once, every exported function is bound into an
// immutable table, and a missing file or symbol fails the whole load.
// No cgo is involved: calls go through purego.
package native

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"

	"taglink/engine"
	"taglink/logging"
	"taglink/status"
)

// Library is a loaded native tag library.
// The function table is set during Load and never changes afterwards;
// only the callback registry behind cbMu is mutable.
type Library struct {
	path   string
	handle uintptr

	decodeError     func(int32) string
	checkLibVersion func(int32, int32, int32) int32
	setDebugLevel   func(int32)
	shutdown        func()

	create  func(string, int32) int32
	destroy func(int32) int32
	lock    func(int32) int32
	unlock  func(int32) int32
	abort   func(int32) int32
	status  func(int32) int32
	read    func(int32, int32) int32
	write   func(int32, int32) int32

	getSize         func(int32) int32
	getIntAttribute func(int32, string, int32) int32
	setIntAttribute func(int32, string, int32) int32

	getBit func(int32, int32) int32
	setBit func(int32, int32, int32) int32

	getUint8   func(int32, int32) uint8
	setUint8   func(int32, int32, uint8) int32
	getInt8    func(int32, int32) int8
	setInt8    func(int32, int32, int8) int32
	getUint16  func(int32, int32) uint16
	setUint16  func(int32, int32, uint16) int32
	getInt16   func(int32, int32) int16
	setInt16   func(int32, int32, int16) int32
	getUint32  func(int32, int32) uint32
	setUint32  func(int32, int32, uint32) int32
	getInt32   func(int32, int32) int32
	setInt32   func(int32, int32, int32) int32
	getUint64  func(int32, int32) uint64
	setUint64  func(int32, int32, uint64) int32
	getInt64   func(int32, int32) int64
	setInt64   func(int32, int32, int64) int32
	getFloat32 func(int32, int32) float32
	setFloat32 func(int32, int32, float32) int32
	getFloat64 func(int32, int32) float64
	setFloat64 func(int32, int32, float64) int32

	getString            func(int32, int32, *byte, int32) int32
	setString            func(int32, int32, string) int32
	getStringLength      func(int32, int32) int32
	getStringCapacity    func(int32, int32) int32
	getStringTotalLength func(int32, int32) int32

	// Optional: older releases name these get_block/set_block and very
	// old ones lack them.
	getRawBytes func(int32, int32, *byte, int32) int32
	setRawBytes func(int32, int32, *byte, int32) int32

	// Optional callback registration. eventFn and logFn are the C
	// entry points passed to it, zero when callbacks are unavailable.
	registerCallback   func(int32, uintptr) int32
	unregisterCallback func(int32) int32
	registerLogger     func(uintptr) int32
	unregisterLogger   func() int32
	eventFn            uintptr
	logFn              uintptr

	cbMu      sync.Mutex
	callbacks map[int32]engine.Callback
	logger    engine.Logger

	closeOnce sync.Once
}

var _ engine.Engine = (*Library)(nil)

// Load locates and binds the native library. With an empty path the
// locations from Candidates are tried in order.
func Load(path string) (*Library, error) {
	var tried []string
	var lastErr error

	for _, candidate := range Candidates(path) {
		tried = append(tried, candidate)
		handle, err := openLibrary(candidate)
		if err != nil {
			logging.DebugLog("native", "open %s: %v", candidate, err)
			lastErr = err
			continue
		}

		lib := &Library{path: candidate, handle: handle, callbacks: make(map[int32]engine.Callback)}
		if err := bind(lib); err != nil {
			closeLibrary(handle)
			return nil, fmt.Errorf("load %s: %w", candidate, err)
		}

		logging.DebugLog("native", "loaded %s", candidate)
		return lib, nil
	}

	if lastErr == nil {
		lastErr = errors.New("no candidate paths")
	}
	return nil, fmt.Errorf("%w (tried %s): %v", engine.ErrLibraryNotFound, strings.Join(tried, ", "), lastErr)
}

// Path returns the file the library was loaded from.
func (l *Library) Path() string {
	return l.path
}

// Close shuts the library down and unloads it. Every handle created
// through it becomes invalid.
func (l *Library) Close() error {
	var err error
	l.closeOnce.Do(func() {
		l.shutdown()
		err = closeLibrary(l.handle)
	})
	return err
}

// RequireVersion checks the loaded library against a minimum version.
func (l *Library) RequireVersion(major, minor, patch int32) error {
	return engine.RequireVersion(l, major, minor, patch)
}

func bytePtr(buf []byte) *byte {
	if len(buf) == 0 {
		return nil
	}
	return (*byte)(unsafe.Pointer(&buf[0]))
}

// DecodeError calls plc_tag_decode_error.
func (l *Library) DecodeError(code int32) string { return l.decodeError(code) }
// CheckLibVersion calls plc_tag_check_lib_version.
func (l *Library) CheckLibVersion(major, minor, patch int32) int32 { return l.checkLibVersion(major, minor, patch) }
// SetDebugLevel calls plc_tag_set_debug_level.
func (l *Library) SetDebugLevel(level int32) { l.setDebugLevel(level) }
// Shutdown calls plc_tag_shutdown.
func (l *Library) Shutdown() { l.shutdown() }

// Create calls plc_tag_create.
func (l *Library) Create(attributes string, timeoutMS int32) int32 {
	return l.create(attributes, timeoutMS)
}

// Destroy calls plc_tag_destroy.
func (l *Library) Destroy(h int32) int32 { return l.destroy(h) }
// Lock calls plc_tag_lock.
func (l *Library) Lock(h int32) int32 { return l.lock(h) }
// Unlock calls plc_tag_unlock.
func (l *Library) Unlock(h int32) int32 { return l.unlock(h) }
// Abort calls plc_tag_abort.
func (l *Library) Abort(h int32) int32 { return l.abort(h) }
// Status calls plc_tag_status.
func (l *Library) Status(h int32) int32 { return l.status(h) }
// Read calls plc_tag_read.
func (l *Library) Read(h int32, ms int32) int32 { return l.read(h, ms) }
// Write calls plc_tag_write.
func (l *Library) Write(h int32, ms int32) int32 { return l.write(h, ms) }
// GetSize calls plc_tag_get_size.
func (l *Library) GetSize(h int32) int32 { return l.getSize(h) }

// GetIntAttribute calls plc_tag_get_int_attribute.
func (l *Library) GetIntAttribute(h int32, name string, def int32) int32 {
	return l.getIntAttribute(h, name, def)
}

// SetIntAttribute calls plc_tag_set_int_attribute.
func (l *Library) SetIntAttribute(h int32, name string, value int32) int32 {
	return l.setIntAttribute(h, name, value)
}

// GetBit calls plc_tag_get_bit.
func (l *Library) GetBit(h, off int32) int32 { return l.getBit(h, off) }
// SetBit calls plc_tag_set_bit.
func (l *Library) SetBit(h, off, v int32) int32 { return l.setBit(h, off, v) }
// GetUint8 calls plc_tag_get_uint8.
func (l *Library) GetUint8(h, off int32) uint8 { return l.getUint8(h, off) }
// SetUint8 calls plc_tag_set_uint8.
func (l *Library) SetUint8(h, off int32, v uint8) int32 { return l.setUint8(h, off, v) }
// GetInt8 calls plc_tag_get_int8.
func (l *Library) GetInt8(h, off int32) int8 { return l.getInt8(h, off) }
// SetInt8 calls plc_tag_set_int8.
func (l *Library) SetInt8(h, off int32, v int8) int32 { return l.setInt8(h, off, v) }
// GetUint16 calls plc_tag_get_uint16.
func (l *Library) GetUint16(h, off int32) uint16 { return l.getUint16(h, off) }
// SetUint16 calls plc_tag_set_uint16.
func (l *Library) SetUint16(h, off int32, v uint16) int32 {
	return l.setUint16(h, off, v)
}
// GetInt16 calls plc_tag_get_int16.
func (l *Library) GetInt16(h, off int32) int16 { return l.getInt16(h, off) }
// SetInt16 calls plc_tag_set_int16.
func (l *Library) SetInt16(h, off int32, v int16) int32 { return l.setInt16(h, off, v) }
// GetUint32 calls plc_tag_get_uint32.
func (l *Library) GetUint32(h, off int32) uint32 { return l.getUint32(h, off) }
// SetUint32 calls plc_tag_set_uint32.
func (l *Library) SetUint32(h, off int32, v uint32) int32 { return l.setUint32(h, off, v) }
// GetInt32 calls plc_tag_get_int32.
func (l *Library) GetInt32(h, off int32) int32 { return l.getInt32(h, off) }
// SetInt32 calls plc_tag_set_int32.
func (l *Library) SetInt32(h, off int32, v int32) int32 { return l.setInt32(h, off, v) }
// GetUint64 calls plc_tag_get_uint64.
func (l *Library) GetUint64(h, off int32) uint64 { return l.getUint64(h, off) }
// SetUint64 calls plc_tag_set_uint64.
func (l *Library) SetUint64(h, off int32, v uint64) int32 { return l.setUint64(h, off, v) }
// GetInt64 calls plc_tag_get_int64.
func (l *Library) GetInt64(h, off int32) int64 { return l.getInt64(h, off) }
// SetInt64 calls plc_tag_set_int64.
func (l *Library) SetInt64(h, off int32, v int64) int32 { return l.setInt64(h, off, v) }
// GetFloat32 calls plc_tag_get_float32.
func (l *Library) GetFloat32(h, off int32) float32 { return l.getFloat32(h, off) }
// SetFloat32 calls plc_tag_set_float32.
func (l *Library) SetFloat32(h, off int32, v float32) int32 {
	return l.setFloat32(h, off, v)
}
// GetFloat64 calls plc_tag_get_float64.
func (l *Library) GetFloat64(h, off int32) float64 { return l.getFloat64(h, off) }
// SetFloat64 calls plc_tag_set_float64.
func (l *Library) SetFloat64(h, off int32, v float64) int32 {
	return l.setFloat64(h, off, v)
}

// GetString calls plc_tag_get_string with buf as the destination.
func (l *Library) GetString(h, off int32, buf []byte) int32 {
	return l.getString(h, off, bytePtr(buf), int32(len(buf)))
}

// SetString calls plc_tag_set_string.
func (l *Library) SetString(h, off int32, value string) int32 {
	return l.setString(h, off, value)
}

// GetStringLength calls plc_tag_get_string_length.
func (l *Library) GetStringLength(h, off int32) int32 { return l.getStringLength(h, off) }
// GetStringCapacity calls plc_tag_get_string_capacity.
func (l *Library) GetStringCapacity(h, off int32) int32 { return l.getStringCapacity(h, off) }
// GetStringTotalLength calls plc_tag_get_string_total_length.
func (l *Library) GetStringTotalLength(h, off int32) int32 { return l.getStringTotalLength(h, off) }

// GetRawBytes calls plc_tag_get_raw_bytes, or plc_tag_get_block on older
// releases. Without either it returns ERR_NOT_IMPLEMENTED.
func (l *Library) GetRawBytes(h, off int32, buf []byte) int32 {
	if l.getRawBytes == nil {
		return int32(status.ErrNotImplemented)
	}
	return l.getRawBytes(h, off, bytePtr(buf), int32(len(buf)))
}

// SetRawBytes calls plc_tag_set_raw_bytes, or plc_tag_set_block on older
// releases. Without either it returns ERR_NOT_IMPLEMENTED.
func (l *Library) SetRawBytes(h, off int32, buf []byte) int32 {
	if l.setRawBytes == nil {
		return int32(status.ErrNotImplemented)
	}
	return l.setRawBytes(h, off, bytePtr(buf), int32(len(buf)))
}
