//go:build darwin || freebsd || linux || netbsd || windows

package native

import (
	"fmt"

	"github.com/ebitengine/purego"

	"taglink/engine"
)

// register binds one symbol. purego panics on a missing symbol; the panic
// is turned into ErrSymbolMissing.
func register(fptr any, handle uintptr, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", engine.ErrSymbolMissing, name, r)
		}
	}()
	purego.RegisterLibFunc(fptr, handle, name)
	return nil
}

// registerAny binds the first symbol in names that exists.
func registerAny(fptr any, handle uintptr, names ...string) bool {
	for _, name := range names {
		if register(fptr, handle, name) == nil {
			return true
		}
	}
	return false
}

func bind(l *Library) error {
	h := l.handle
	required := []struct {
		fptr any
		name string
	}{
		{&l.decodeError, "plc_tag_decode_error"},
		{&l.checkLibVersion, "plc_tag_check_lib_version"},
		{&l.setDebugLevel, "plc_tag_set_debug_level"},
		{&l.shutdown, "plc_tag_shutdown"},
		{&l.create, "plc_tag_create"},
		{&l.destroy, "plc_tag_destroy"},
		{&l.lock, "plc_tag_lock"},
		{&l.unlock, "plc_tag_unlock"},
		{&l.abort, "plc_tag_abort"},
		{&l.status, "plc_tag_status"},
		{&l.read, "plc_tag_read"},
		{&l.write, "plc_tag_write"},
		{&l.getSize, "plc_tag_get_size"},
		{&l.getIntAttribute, "plc_tag_get_int_attribute"},
		{&l.setIntAttribute, "plc_tag_set_int_attribute"},
		{&l.getBit, "plc_tag_get_bit"},
		{&l.setBit, "plc_tag_set_bit"},
		{&l.getUint8, "plc_tag_get_uint8"},
		{&l.setUint8, "plc_tag_set_uint8"},
		{&l.getInt8, "plc_tag_get_int8"},
		{&l.setInt8, "plc_tag_set_int8"},
		{&l.getUint16, "plc_tag_get_uint16"},
		{&l.setUint16, "plc_tag_set_uint16"},
		{&l.getInt16, "plc_tag_get_int16"},
		{&l.setInt16, "plc_tag_set_int16"},
		{&l.getUint32, "plc_tag_get_uint32"},
		{&l.setUint32, "plc_tag_set_uint32"},
		{&l.getInt32, "plc_tag_get_int32"},
		{&l.setInt32, "plc_tag_set_int32"},
		{&l.getUint64, "plc_tag_get_uint64"},
		{&l.setUint64, "plc_tag_set_uint64"},
		{&l.getInt64, "plc_tag_get_int64"},
		{&l.setInt64, "plc_tag_set_int64"},
		{&l.getFloat32, "plc_tag_get_float32"},
		{&l.setFloat32, "plc_tag_set_float32"},
		{&l.getFloat64, "plc_tag_get_float64"},
		{&l.setFloat64, "plc_tag_set_float64"},
		{&l.getString, "plc_tag_get_string"},
		{&l.setString, "plc_tag_set_string"},
		{&l.getStringLength, "plc_tag_get_string_length"},
		{&l.getStringCapacity, "plc_tag_get_string_capacity"},
		{&l.getStringTotalLength, "plc_tag_get_string_total_length"},
	}

	for _, sym := range required {
		if err := register(sym.fptr, h, sym.name); err != nil {
			return err
		}
	}

	if !registerAny(&l.getRawBytes, h, "plc_tag_get_raw_bytes", "plc_tag_get_block") {
		l.getRawBytes = nil
	}
	if !registerAny(&l.setRawBytes, h, "plc_tag_set_raw_bytes", "plc_tag_set_block") {
		l.setRawBytes = nil
	}
	bindCallbacks(l)
	return nil
}

// bindCallbacks binds the optional callback calls. Either pair is
// dropped when one half is missing.
func bindCallbacks(l *Library) {
	h := l.handle
	if !registerAny(&l.registerCallback, h, "plc_tag_register_callback") ||
		!registerAny(&l.unregisterCallback, h, "plc_tag_unregister_callback") {
		l.registerCallback, l.unregisterCallback = nil, nil
	}
	if !registerAny(&l.registerLogger, h, "plc_tag_register_logger") ||
		!registerAny(&l.unregisterLogger, h, "plc_tag_unregister_logger") {
		l.registerLogger, l.unregisterLogger = nil, nil
	}
	if l.registerCallback != nil || l.registerLogger != nil {
		l.eventFn, l.logFn = newTrampolines(l)
	}
}
