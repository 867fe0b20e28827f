package sim

import (
	"math"

	"taglink/status"
)

// view runs fn on the handle buffer when [off, off+width) lies inside it.
// It returns ERR_NOT_FOUND, ERR_NO_DATA or ERR_OUT_OF_BOUNDS otherwise.
func (e *Engine) view(id, off int32, width int, fn func(h *handle, b []byte)) status.Status {
	h := e.lookup(id)
	if h == nil {
		return status.ErrNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return status.ErrNotFound
	}
	if len(h.data) == 0 {
		return status.ErrNoData
	}
	if off < 0 || int(off)+width > len(h.data) {
		return status.ErrOutOfBounds
	}
	fn(h, h.data[off:int(off)+width])
	return status.OK
}

func (e *Engine) getU(id, off int32, width int) (uint64, bool) {
	var v uint64
	rc := e.view(id, off, width, func(h *handle, b []byte) {
		order := h.def.layout.order
		switch width {
		case 1:
			v = uint64(b[0])
		case 2:
			v = uint64(order.Uint16(b))
		case 4:
			v = uint64(order.Uint32(b))
		case 8:
			v = order.Uint64(b)
		}
	})
	return v, rc == status.OK
}

func (e *Engine) setU(id, off int32, width int, v uint64) int32 {
	return int32(e.view(id, off, width, func(h *handle, b []byte) {
		order := h.def.layout.order
		switch width {
		case 1:
			b[0] = byte(v)
		case 2:
			order.PutUint16(b, uint16(v))
		case 4:
			order.PutUint32(b, uint32(v))
		case 8:
			order.PutUint64(b, v)
		}
	}))
}

// GetBit returns 0 or 1, or a negative status for an out of range bit.
func (e *Engine) GetBit(id, bitOffset int32) int32 {
	if bitOffset < 0 {
		return int32(status.ErrOutOfBounds)
	}
	var bit int32
	rc := e.view(id, bitOffset/8, 1, func(h *handle, b []byte) {
		bit = int32(b[0]>>(uint(bitOffset)%8)) & 1
	})
	if rc != status.OK {
		return int32(rc)
	}
	return bit
}

// SetBit sets or clears one bit of the buffer.
func (e *Engine) SetBit(id, bitOffset, value int32) int32 {
	if bitOffset < 0 {
		return int32(status.ErrOutOfBounds)
	}
	return int32(e.view(id, bitOffset/8, 1, func(h *handle, b []byte) {
		mask := byte(1) << (uint(bitOffset) % 8)
		if value != 0 {
			b[0] |= mask
		} else {
			b[0] &^= mask
		}
	}))
}

// GetUint8 reads an 8 bit unsigned value.
func (e *Engine) GetUint8(id, off int32) uint8 {
	if v, ok := e.getU(id, off, 1); ok {
		return uint8(v)
	}
	return math.MaxUint8
}

// SetUint8 writes an 8 bit unsigned value.
func (e *Engine) SetUint8(id, off int32, v uint8) int32 { return e.setU(id, off, 1, uint64(v)) }

// GetInt8 reads an 8 bit signed value.
func (e *Engine) GetInt8(id, off int32) int8 {
	if v, ok := e.getU(id, off, 1); ok {
		return int8(v)
	}
	return math.MinInt8
}

// SetInt8 writes an 8 bit signed value.
func (e *Engine) SetInt8(id, off int32, v int8) int32 { return e.setU(id, off, 1, uint64(uint8(v))) }

// GetUint16 reads a 16 bit unsigned value in the tag's byte order.
func (e *Engine) GetUint16(id, off int32) uint16 {
	if v, ok := e.getU(id, off, 2); ok {
		return uint16(v)
	}
	return math.MaxUint16
}

// SetUint16 writes a 16 bit unsigned value in the tag's byte order.
func (e *Engine) SetUint16(id, off int32, v uint16) int32 { return e.setU(id, off, 2, uint64(v)) }

// GetInt16 reads a 16 bit signed value in the tag's byte order.
func (e *Engine) GetInt16(id, off int32) int16 {
	if v, ok := e.getU(id, off, 2); ok {
		return int16(v)
	}
	return math.MinInt16
}

// SetInt16 writes a 16 bit signed value in the tag's byte order.
func (e *Engine) SetInt16(id, off int32, v int16) int32 { return e.setU(id, off, 2, uint64(uint16(v))) }

// GetUint32 reads a 32 bit unsigned value in the tag's byte order.
func (e *Engine) GetUint32(id, off int32) uint32 {
	if v, ok := e.getU(id, off, 4); ok {
		return uint32(v)
	}
	return math.MaxUint32
}

// SetUint32 writes a 32 bit unsigned value in the tag's byte order.
func (e *Engine) SetUint32(id, off int32, v uint32) int32 { return e.setU(id, off, 4, uint64(v)) }

// GetInt32 reads a 32 bit signed value in the tag's byte order.
func (e *Engine) GetInt32(id, off int32) int32 {
	if v, ok := e.getU(id, off, 4); ok {
		return int32(v)
	}
	return math.MinInt32
}

// SetInt32 writes a 32 bit signed value in the tag's byte order.
func (e *Engine) SetInt32(id, off int32, v int32) int32 { return e.setU(id, off, 4, uint64(uint32(v))) }

// GetUint64 reads a 64 bit unsigned value in the tag's byte order.
func (e *Engine) GetUint64(id, off int32) uint64 {
	if v, ok := e.getU(id, off, 8); ok {
		return v
	}
	return math.MaxUint64
}

// SetUint64 writes a 64 bit unsigned value in the tag's byte order.
func (e *Engine) SetUint64(id, off int32, v uint64) int32 { return e.setU(id, off, 8, v) }

// GetInt64 reads a 64 bit signed value in the tag's byte order.
func (e *Engine) GetInt64(id, off int32) int64 {
	if v, ok := e.getU(id, off, 8); ok {
		return int64(v)
	}
	return math.MinInt64
}

// SetInt64 writes a 64 bit signed value in the tag's byte order.
func (e *Engine) SetInt64(id, off int32, v int64) int32 { return e.setU(id, off, 8, uint64(v)) }

// GetFloat32 reads a 32 bit float value in the tag's byte order.
func (e *Engine) GetFloat32(id, off int32) float32 {
	if v, ok := e.getU(id, off, 4); ok {
		return math.Float32frombits(uint32(v))
	}
	return math.MaxFloat32
}

// SetFloat32 writes a 32 bit float value in the tag's byte order.
func (e *Engine) SetFloat32(id, off int32, v float32) int32 {
	return e.setU(id, off, 4, uint64(math.Float32bits(v)))
}

// GetFloat64 reads a 64 bit float value in the tag's byte order.
func (e *Engine) GetFloat64(id, off int32) float64 {
	if v, ok := e.getU(id, off, 8); ok {
		return math.Float64frombits(v)
	}
	return math.MaxFloat64
}

// SetFloat64 writes a 64 bit float value in the tag's byte order.
func (e *Engine) SetFloat64(id, off int32, v float64) int32 {
	return e.setU(id, off, 8, math.Float64bits(v))
}

// whole runs fn on the full buffer of a live handle.
func (e *Engine) whole(id int32, fn func(h *handle) status.Status) status.Status {
	h := e.lookup(id)
	if h == nil {
		return status.ErrNotFound
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.destroyed {
		return status.ErrNotFound
	}
	return fn(h)
}

// GetString copies the string at off into buf with a zero terminator.
func (e *Engine) GetString(id, off int32, buf []byte) int32 {
	return int32(e.whole(id, func(h *handle) status.Status {
		s, rc := h.def.layout.readString(h.data, int(off))
		if rc != status.OK {
			return rc
		}
		if len(buf) < len(s)+1 {
			return status.ErrTooSmall
		}
		n := copy(buf, s)
		buf[n] = 0
		return status.OK
	}))
}

// SetString encodes value at off using the tag's string layout.
func (e *Engine) SetString(id, off int32, value string) int32 {
	return int32(e.whole(id, func(h *handle) status.Status {
		return h.def.layout.writeString(h.data, int(off), value)
	}))
}

// GetStringLength returns the length of the string at off.
func (e *Engine) GetStringLength(id, off int32) int32 {
	var n int
	rc := e.whole(id, func(h *handle) status.Status {
		var rc status.Status
		n, rc = h.def.layout.stringLength(h.data, int(off))
		return rc
	})
	if rc != status.OK {
		return int32(rc)
	}
	return int32(n)
}

// GetStringCapacity returns how many characters fit at off.
func (e *Engine) GetStringCapacity(id, off int32) int32 {
	var n int
	rc := e.whole(id, func(h *handle) status.Status {
		capacity, _, ok := h.def.layout.stringGeometry(int(off), len(h.data))
		if !ok {
			return status.ErrOutOfBounds
		}
		n = capacity
		return status.OK
	})
	if rc != status.OK {
		return int32(rc)
	}
	return int32(n)
}

// GetStringTotalLength returns the bytes the string at off occupies,
// count word and padding included.
func (e *Engine) GetStringTotalLength(id, off int32) int32 {
	var n int
	rc := e.whole(id, func(h *handle) status.Status {
		_, total, ok := h.def.layout.stringGeometry(int(off), len(h.data))
		if !ok {
			return status.ErrOutOfBounds
		}
		n = total
		return status.OK
	})
	if rc != status.OK {
		return int32(rc)
	}
	return int32(n)
}

// GetRawBytes copies len(buf) bytes from off.
func (e *Engine) GetRawBytes(id, off int32, buf []byte) int32 {
	return int32(e.view(id, off, len(buf), func(h *handle, b []byte) {
		copy(buf, b)
	}))
}

// SetRawBytes copies buf into the buffer at off.
func (e *Engine) SetRawBytes(id, off int32, buf []byte) int32 {
	return int32(e.view(id, off, len(buf), func(h *handle, b []byte) {
		copy(b, buf)
	}))
}
