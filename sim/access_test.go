package sim

import (
	"math"
	"testing"

	"taglink/status"
)

func newTag(t *testing.T, e *Engine, attrs string) int32 {
	t.Helper()
	id := e.Create(attrs, 1000)
	if id <= 0 {
		t.Fatalf("Create(%q) = %s", attrs, code(id))
	}
	if rc := code(e.Status(id)); rc != status.OK {
		t.Fatalf("status after create = %s", rc)
	}
	return id
}

func TestByteOrderByProtocol(t *testing.T) {
	tests := []struct {
		protocol string
		want     []uint16
	}{
		{"modbus_tcp", []uint16{1, 2}},
		{"ab_eip", []uint16{0x0100, 0x0200}},
	}
	for _, tt := range tests {
		t.Run(tt.protocol, func(t *testing.T) {
			e := New(WithCreateLatency(0), WithLatency(0))
			attrs := "protocol=" + tt.protocol + "&gateway=10.0.0.1&path=1&name=hr&elem_size=2&elem_count=2"
			e.Seed(attrs, []byte{0, 1, 0, 2})
			id := newTag(t, e, attrs)
			for i, want := range tt.want {
				if got := e.GetUint16(id, int32(i*2)); got != want {
					t.Errorf("data[%d] = %#x, want %#x", i, got, want)
				}
			}
		})
	}
}

func TestAccessorBounds(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := newTag(t, e, "protocol=ab_eip&name=buf&elem_size=1&elem_count=8")

	widths := []struct {
		name  string
		width int32
		set   func(off int32) int32
	}{
		{"uint8", 1, func(off int32) int32 { return e.SetUint8(id, off, 1) }},
		{"int16", 2, func(off int32) int32 { return e.SetInt16(id, off, 1) }},
		{"uint32", 4, func(off int32) int32 { return e.SetUint32(id, off, 1) }},
		{"float64", 8, func(off int32) int32 { return e.SetFloat64(id, off, 1) }},
	}
	for _, w := range widths {
		t.Run(w.name, func(t *testing.T) {
			if rc := code(w.set(8 - w.width)); rc != status.OK {
				t.Errorf("set at size-width = %s", rc)
			}
			if rc := code(w.set(8 - w.width + 1)); rc != status.ErrOutOfBounds {
				t.Errorf("set at size-width+1 = %s, want ERR_OUT_OF_BOUNDS", rc)
			}
			if rc := code(w.set(-1)); rc != status.ErrOutOfBounds {
				t.Errorf("set at -1 = %s", rc)
			}
		})
	}

	if got := e.GetUint32(id, 5); got != math.MaxUint32 {
		t.Errorf("out of bounds GetUint32 = %d, want sentinel", got)
	}
	if got := e.GetFloat32(id, 6); got != math.MaxFloat32 {
		t.Errorf("out of bounds GetFloat32 = %v, want sentinel", got)
	}
	if got := e.GetInt64(id, 1); got != math.MinInt64 {
		t.Errorf("out of bounds GetInt64 = %d, want sentinel", got)
	}
}

func TestAccessorsDoNotChangeStatus(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := newTag(t, e, dintTag)
	e.GetInt32(id, 100)
	e.SetInt32(id, 100, 1)
	if rc := code(e.Status(id)); rc != status.OK {
		t.Errorf("status = %s after accessor errors", rc)
	}
}

func TestFixedWidthValues(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := newTag(t, e, "protocol=ab_eip&name=buf&elem_size=8&elem_count=1")

	e.SetInt8(id, 0, -5)
	if got := e.GetInt8(id, 0); got != -5 {
		t.Errorf("int8 = %d", got)
	}
	e.SetUint16(id, 0, 0xBEEF)
	if got := e.GetUint16(id, 0); got != 0xBEEF {
		t.Errorf("uint16 = %#x", got)
	}
	e.SetInt16(id, 0, -1234)
	if got := e.GetInt16(id, 0); got != -1234 {
		t.Errorf("int16 = %d", got)
	}
	e.SetUint64(id, 0, math.MaxUint64-1)
	if got := e.GetUint64(id, 0); got != math.MaxUint64-1 {
		t.Errorf("uint64 = %d", got)
	}
	e.SetFloat32(id, 0, 3.5)
	if got := e.GetFloat32(id, 0); got != 3.5 {
		t.Errorf("float32 = %v", got)
	}
	e.SetFloat64(id, 0, -0.125)
	if got := e.GetFloat64(id, 0); got != -0.125 {
		t.Errorf("float64 = %v", got)
	}
}

func TestBits(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := newTag(t, e, "protocol=ab_eip&name=flags&elem_size=2&elem_count=1")

	if rc := code(e.SetBit(id, 9, 1)); rc != status.OK {
		t.Fatalf("SetBit = %s", rc)
	}
	if got := e.GetUint16(id, 0); got != 1<<9 {
		t.Errorf("word = %#x, want %#x", got, 1<<9)
	}
	if got := e.GetBit(id, 9); got != 1 {
		t.Errorf("bit 9 = %d", got)
	}
	if got := e.GetBit(id, 8); got != 0 {
		t.Errorf("bit 8 = %d", got)
	}
	e.SetBit(id, 9, 0)
	if got := e.GetBit(id, 9); got != 0 {
		t.Errorf("bit 9 after clear = %d", got)
	}
	if got := code(e.GetBit(id, 16)); got != status.ErrOutOfBounds {
		t.Errorf("bit 16 = %s", got)
	}
}

func TestLogixStrings(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := newTag(t, e, "protocol=ab_eip&name=Msg&elem_type=STRING&elem_count=2")

	if got := e.GetStringCapacity(id, 0); got != 82 {
		t.Errorf("capacity = %d", got)
	}
	if got := e.GetStringTotalLength(id, 88); got != 88 {
		t.Errorf("total length = %d", got)
	}
	if rc := code(e.SetString(id, 88, "hello")); rc != status.OK {
		t.Fatalf("SetString = %s", rc)
	}
	if got := e.GetUint32(id, 88); got != 5 {
		t.Errorf("count word = %d", got)
	}
	if got := e.GetStringLength(id, 88); got != 5 {
		t.Errorf("length = %d", got)
	}

	buf := make([]byte, 6)
	if rc := code(e.GetString(id, 88, buf)); rc != status.OK {
		t.Fatalf("GetString = %s", rc)
	}
	if string(buf[:5]) != "hello" || buf[5] != 0 {
		t.Errorf("GetString = %q", buf)
	}
	if rc := code(e.GetString(id, 88, make([]byte, 5))); rc != status.ErrTooSmall {
		t.Errorf("GetString into short buffer = %s", rc)
	}

	long := make([]byte, 83)
	for i := range long {
		long[i] = 'x'
	}
	if rc := code(e.SetString(id, 0, string(long))); rc != status.ErrTooLarge {
		t.Errorf("SetString over capacity = %s", rc)
	}
	if rc := code(e.SetString(id, 100, "x")); rc != status.ErrOutOfBounds {
		t.Errorf("SetString past last string = %s", rc)
	}
}

func TestZeroTerminatedStrings(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := newTag(t, e, "protocol=modbus_tcp&gateway=10.0.0.2&name=txt&elem_size=2&elem_count=8")

	if got := e.GetStringCapacity(id, 0); got != 15 {
		t.Errorf("capacity = %d", got)
	}
	if rc := code(e.SetString(id, 0, "pump-7")); rc != status.OK {
		t.Fatalf("SetString = %s", rc)
	}
	if got := e.GetStringLength(id, 0); got != 6 {
		t.Errorf("length = %d", got)
	}
	buf := make([]byte, 16)
	e.GetString(id, 0, buf)
	if string(buf[:6]) != "pump-7" || buf[6] != 0 {
		t.Errorf("GetString = %q", buf)
	}
}

func TestRawBytes(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := newTag(t, e, dintTag)

	if rc := code(e.SetRawBytes(id, 2, []byte{0xAA, 0xBB})); rc != status.OK {
		t.Fatalf("SetRawBytes = %s", rc)
	}
	buf := make([]byte, 4)
	if rc := code(e.GetRawBytes(id, 0, buf)); rc != status.OK {
		t.Fatalf("GetRawBytes = %s", rc)
	}
	if buf[2] != 0xAA || buf[3] != 0xBB {
		t.Errorf("raw = % x", buf)
	}
	if rc := code(e.GetRawBytes(id, 6, buf)); rc != status.ErrOutOfBounds {
		t.Errorf("GetRawBytes past end = %s", rc)
	}
}
