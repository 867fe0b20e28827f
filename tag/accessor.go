package tag

import (
	"fmt"
	"math"

	"taglink/status"
)

// Scalar is the set of Go types the generic accessors move in and out of
// a tag buffer. bool addresses a single bit.
type Scalar interface {
	bool | int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// KindOf returns the Kind for a Scalar type parameter.
func KindOf[T Scalar]() Kind {
	var zero T
	switch any(zero).(type) {
	case bool:
		return Bit
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case float32:
		return Float32
	case float64:
		return Float64
	}
	return Invalid
}

// Get reads a value of type T at a byte offset (a bit offset for bool).
func Get[T Scalar](t *Tag, offset int) (T, error) {
	var zero T
	v, err := t.GetValue(KindOf[T](), offset)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Set stages a value of type T at a byte offset (a bit offset for bool).
// Nothing reaches the device until Write.
func Set[T Scalar](t *Tag, offset int, v T) error {
	return t.SetValue(KindOf[T](), offset, v)
}

// engineOffset narrows offset to the engine's int32 argument. Offsets
// that do not fit are ERR_OUT_OF_BOUNDS rather than wrapping.
func engineOffset(op string, offset int) (int32, error) {
	if offset < 0 || offset > math.MaxInt32 {
		return 0, status.Err(op, status.ErrOutOfBounds)
	}
	return int32(offset), nil
}

// checkBounds verifies that a value of kind fits at offset. The engine's
// getters cannot report this themselves.
func (t *Tag) checkBounds(h int32, kind Kind, offset int) error {
	size := t.eng.GetSize(h)
	if size < 0 {
		return status.Err("get "+kind.String(), status.Status(size))
	}
	end := offset + kind.Width()
	if kind == Bit {
		end = offset/8 + 1
	}
	if offset < 0 || end > int(size) {
		return status.Err("get "+kind.String(), status.ErrOutOfBounds)
	}
	return nil
}

// GetValue reads one value of kind at offset. The result's dynamic type
// is the Go type matching the kind (int16 for Int16, string for String,
// bool for Bit). Reading never changes the tag status.
func (t *Tag) GetValue(kind Kind, offset int) (any, error) {
	h, ok := t.live()
	if !ok {
		return nil, status.Err("get "+kind.String(), status.ErrNotFound)
	}
	if kind == String {
		return t.GetString(offset)
	}
	if kind.Width() == 0 && kind != Bit {
		return nil, fmt.Errorf("get: unknown type %s", kind)
	}
	if err := t.checkBounds(h, kind, offset); err != nil {
		return nil, err
	}
	off, err := engineOffset("get "+kind.String(), offset)
	if err != nil {
		return nil, err
	}
	switch kind {
	case Bit:
		rc := t.eng.GetBit(h, off)
		if rc < 0 {
			return nil, status.Err("get bit", status.Status(rc))
		}
		return rc == 1, nil
	case Int8:
		return t.eng.GetInt8(h, off), nil
	case Int16:
		return t.eng.GetInt16(h, off), nil
	case Int32:
		return t.eng.GetInt32(h, off), nil
	case Int64:
		return t.eng.GetInt64(h, off), nil
	case Uint8:
		return t.eng.GetUint8(h, off), nil
	case Uint16:
		return t.eng.GetUint16(h, off), nil
	case Uint32:
		return t.eng.GetUint32(h, off), nil
	case Uint64:
		return t.eng.GetUint64(h, off), nil
	case Float32:
		return t.eng.GetFloat32(h, off), nil
	default:
		return t.eng.GetFloat64(h, off), nil
	}
}

// SetValue converts v to kind (see Convert) and stages it at offset.
// The engine's status is returned as a *status.Error.
func (t *Tag) SetValue(kind Kind, offset int, v any) error {
	op := "set " + kind.String()
	h, ok := t.live()
	if !ok {
		return status.Err(op, status.ErrNotFound)
	}
	off, err := engineOffset(op, offset)
	if err != nil {
		return err
	}
	val, err := Convert(kind, v)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var rc int32
	switch x := val.(type) {
	case bool:
		var bit int32
		if x {
			bit = 1
		}
		rc = t.eng.SetBit(h, off, bit)
	case int8:
		rc = t.eng.SetInt8(h, off, x)
	case int16:
		rc = t.eng.SetInt16(h, off, x)
	case int32:
		rc = t.eng.SetInt32(h, off, x)
	case int64:
		rc = t.eng.SetInt64(h, off, x)
	case uint8:
		rc = t.eng.SetUint8(h, off, x)
	case uint16:
		rc = t.eng.SetUint16(h, off, x)
	case uint32:
		rc = t.eng.SetUint32(h, off, x)
	case uint64:
		rc = t.eng.SetUint64(h, off, x)
	case float32:
		rc = t.eng.SetFloat32(h, off, x)
	case float64:
		rc = t.eng.SetFloat64(h, off, x)
	case string:
		rc = t.eng.SetString(h, off, x)
	default:
		return fmt.Errorf("%s: unsupported value %T", op, val)
	}
	return status.Err(op, status.Status(rc))
}

// GetValues reads count consecutive values of kind starting at offset.
// stride is the distance between elements in bytes (bits for Bit); zero
// means the kind's width.
func (t *Tag) GetValues(kind Kind, offset, count, stride int) ([]any, error) {
	if stride == 0 {
		stride = kind.Width()
		if kind == Bit {
			stride = 1
		}
	}
	out := make([]any, 0, count)
	for i := 0; i < count; i++ {
		v, err := t.GetValue(kind, offset+i*stride)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetBytes copies n raw bytes from the buffer at offset.
func (t *Tag) GetBytes(offset, n int) ([]byte, error) {
	h, ok := t.live()
	if !ok {
		return nil, status.Err("get bytes", status.ErrNotFound)
	}
	off, err := engineOffset("get bytes", offset)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > math.MaxInt32 {
		return nil, status.Err("get bytes", status.ErrOutOfBounds)
	}
	buf := make([]byte, n)
	if err := status.Err("get bytes", status.Status(t.eng.GetRawBytes(h, off, buf))); err != nil {
		return nil, err
	}
	return buf, nil
}

// SetBytes stages raw bytes into the buffer at offset.
func (t *Tag) SetBytes(offset int, data []byte) error {
	h, ok := t.live()
	if !ok {
		return status.Err("set bytes", status.ErrNotFound)
	}
	off, err := engineOffset("set bytes", offset)
	if err != nil {
		return err
	}
	return status.Err("set bytes", status.Status(t.eng.SetRawBytes(h, off, data)))
}
