package sim

import (
	"sync"
	"testing"
	"time"

	"taglink/status"
)

const dintTag = "protocol=ab_eip&gateway=10.0.0.5&path=1,0&cpu=LGX&elem_size=4&elem_count=2&name=Counter"

func code(rc int32) status.Status { return status.Status(rc) }

func TestCreateValidation(t *testing.T) {
	e := New()

	tests := []struct {
		name  string
		attrs string
		want  status.Status
	}{
		{"empty", "", status.ErrBadConfig},
		{"no protocol", "gateway=1.2.3.4&name=X", status.ErrBadConfig},
		{"no equals", "protocol=ab_eip&name", status.ErrBadConfig},
		{"unknown protocol", "protocol=opcua&name=X", status.ErrBadParam},
		{"no name", "protocol=ab_eip&gateway=1.2.3.4", status.ErrBadConfig},
		{"bad elem_size", "protocol=ab_eip&name=X&elem_size=zero", status.ErrBadConfig},
		{"negative elem_count", "protocol=ab_eip&name=X&elem_count=-1", status.ErrBadConfig},
		{"unknown elem_type", "protocol=ab_eip&name=X&elem_type=QUUX", status.ErrBadConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := code(e.Create(tt.attrs, 100)); got != tt.want {
				t.Errorf("Create(%q) = %s, want %s", tt.attrs, got, tt.want)
			}
		})
	}

	if n := e.Handles(); n != 0 {
		t.Errorf("failed creates left %d handles", n)
	}
}

func TestCreateSizes(t *testing.T) {
	e := New(WithCreateLatency(0))

	tests := []struct {
		attrs string
		size  int32
	}{
		{"protocol=ab_eip&name=A", 1},
		{"protocol=ab-eip&name=A&elem_size=2&elem_count=10", 20},
		{"protocol=ab_eip&name=A&elem_type=DINT&elem_count=3", 12},
		{"protocol=modbus_tcp&gateway=10.0.0.9:502&path=0&name=hr0&elem_size=2&elem_count=4", 8},
		{"protocol=ab_eip&name=S&elem_type=STRING", 88},
	}
	for _, tt := range tests {
		id := e.Create(tt.attrs, 1000)
		if id <= 0 {
			t.Fatalf("Create(%q) = %d", tt.attrs, id)
		}
		if got := e.GetSize(id); got != tt.size {
			t.Errorf("GetSize for %q = %d, want %d", tt.attrs, got, tt.size)
		}
	}
}

func TestHandlesNeverReused(t *testing.T) {
	e := New(WithCreateLatency(0))
	seen := make(map[int32]bool)
	for i := 0; i < 50; i++ {
		id := e.Create(dintTag, 1000)
		if id <= 0 {
			t.Fatalf("Create returned %d", id)
		}
		if seen[id] {
			t.Fatalf("handle %d reused", id)
		}
		seen[id] = true
		if rc := code(e.Destroy(id)); rc != status.OK {
			t.Fatalf("Destroy = %s", rc)
		}
	}
}

func TestCreateAsyncThenStatus(t *testing.T) {
	e := New(WithCreateLatency(20 * time.Millisecond))
	id := e.Create(dintTag, 0)
	if id <= 0 {
		t.Fatalf("Create = %d", id)
	}
	if rc := code(e.Status(id)); rc != status.Pending {
		t.Fatalf("status right after async create = %s, want PENDING", rc)
	}

	deadline := time.Now().Add(time.Second)
	for code(e.Status(id)) == status.Pending {
		if time.Now().After(deadline) {
			t.Fatal("create never left PENDING")
		}
		time.Sleep(2 * time.Millisecond)
	}
	if rc := code(e.Status(id)); rc != status.OK {
		t.Errorf("final status = %s", rc)
	}
}

func TestCreateTimeout(t *testing.T) {
	e := New(WithCreateLatency(time.Second))
	id := e.Create(dintTag, 10)
	if id <= 0 {
		t.Fatalf("Create = %d", id)
	}
	if rc := code(e.Status(id)); rc != status.ErrTimeout {
		t.Errorf("status after create timeout = %s, want ERR_TIMEOUT", rc)
	}
}

func TestCreateFault(t *testing.T) {
	e := New(WithCreateLatency(0))
	e.Fail("Counter", OpCreate, status.ErrBadGateway)
	id := e.Create(dintTag, 1000)
	if rc := code(e.Status(id)); rc != status.ErrBadGateway {
		t.Errorf("status = %s, want ERR_BAD_GATEWAY", rc)
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	e := New(WithCreateLatency(0), WithLatency(time.Millisecond))
	if rc := e.Seed(dintTag, []byte{1, 0, 0, 0, 2, 0, 0, 0}); rc != status.OK {
		t.Fatalf("Seed = %s", rc)
	}

	id := e.Create(dintTag, 1000)
	if rc := code(e.Read(id, 1000)); rc != status.OK {
		t.Fatalf("Read = %s", rc)
	}
	if a, b := e.GetInt32(id, 0), e.GetInt32(id, 4); a != 1 || b != 2 {
		t.Fatalf("values = %d, %d, want 1, 2", a, b)
	}

	if rc := code(e.SetInt32(id, 4, -7)); rc != status.OK {
		t.Fatalf("SetInt32 = %s", rc)
	}
	if rc := code(e.Write(id, 1000)); rc != status.OK {
		t.Fatalf("Write = %s", rc)
	}

	// A second handle on the same tag sees the written value.
	other := e.Create(dintTag, 1000)
	if rc := code(e.Read(other, 1000)); rc != status.OK {
		t.Fatalf("Read other = %s", rc)
	}
	if got := e.GetInt32(other, 4); got != -7 {
		t.Errorf("other handle read %d, want -7", got)
	}
}

func TestAsyncReadPendingAndBusy(t *testing.T) {
	e := New(WithCreateLatency(0), WithLatency(50*time.Millisecond))
	id := e.Create(dintTag, 1000)

	if rc := code(e.Read(id, 0)); rc != status.Pending {
		t.Fatalf("Read(0) = %s, want PENDING", rc)
	}
	if rc := code(e.Status(id)); rc != status.Pending {
		t.Errorf("Status = %s, want PENDING", rc)
	}
	if rc := code(e.Write(id, 0)); rc != status.ErrBusy {
		t.Errorf("Write while pending = %s, want ERR_BUSY", rc)
	}
	if rc := code(e.Read(id, 0)); rc != status.ErrBusy {
		t.Errorf("Read while pending = %s, want ERR_BUSY", rc)
	}
}

func TestReadTimeoutAborts(t *testing.T) {
	e := New(WithCreateLatency(0), WithLatency(time.Second))
	id := e.Create(dintTag, 1000)

	if rc := code(e.Read(id, 10)); rc != status.ErrTimeout {
		t.Fatalf("Read = %s, want ERR_TIMEOUT", rc)
	}
	if rc := code(e.Status(id)); rc != status.OK {
		t.Errorf("status after timeout = %s, want OK", rc)
	}
	// The aborted operation no longer blocks new ones.
	if rc := code(e.Read(id, 0)); rc != status.Pending {
		t.Errorf("Read after timeout = %s, want PENDING", rc)
	}
}

func TestAbortDiscardsRead(t *testing.T) {
	e := New(WithCreateLatency(0), WithLatency(30*time.Millisecond))
	id := e.Create(dintTag, 1000)
	e.Seed(dintTag, []byte{9, 0, 0, 0})

	e.Read(id, 0)
	if rc := code(e.Abort(id)); rc != status.OK {
		t.Fatalf("Abort = %s", rc)
	}
	time.Sleep(60 * time.Millisecond)
	if got := e.GetInt32(id, 0); got != 0 {
		t.Errorf("aborted read delivered data: %d", got)
	}
	if rc := code(e.Status(id)); rc != status.OK {
		t.Errorf("status after abort = %s", rc)
	}
}

func TestReadFault(t *testing.T) {
	e := New(WithCreateLatency(0), WithLatency(0))
	id := e.Create(dintTag, 1000)

	e.Fail("Counter", OpRead, status.ErrBadConnection)
	if rc := code(e.Read(id, 1000)); rc != status.ErrBadConnection {
		t.Fatalf("Read = %s, want ERR_BAD_CONNECTION", rc)
	}
	// Faults are one-shot.
	if rc := code(e.Read(id, 1000)); rc != status.OK {
		t.Errorf("second Read = %s, want OK", rc)
	}
}

func TestReadCache(t *testing.T) {
	e := New(WithCreateLatency(0), WithLatency(20*time.Millisecond))
	id := e.Create(dintTag+"&read_cache_ms=500", 1000)

	if rc := code(e.Read(id, 1000)); rc != status.OK {
		t.Fatalf("first Read = %s", rc)
	}
	start := time.Now()
	if rc := code(e.Read(id, 0)); rc != status.OK {
		t.Errorf("cached Read(0) = %s, want OK", rc)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Error("cached read was not immediate")
	}
	if got := e.GetIntAttribute(id, "read_cache_ms", 0); got != 500 {
		t.Errorf("read_cache_ms = %d", got)
	}
}

func TestDestroyed(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := e.Create(dintTag, 1000)
	e.Destroy(id)

	if rc := code(e.Status(id)); rc != status.ErrNotFound {
		t.Errorf("Status = %s", rc)
	}
	if rc := code(e.Read(id, 100)); rc != status.ErrNotFound {
		t.Errorf("Read = %s", rc)
	}
	if rc := code(e.SetInt32(id, 0, 1)); rc != status.ErrNotFound {
		t.Errorf("SetInt32 = %s", rc)
	}
	if rc := code(e.Lock(id)); rc != status.ErrNotFound {
		t.Errorf("Lock = %s", rc)
	}
	if got := e.GetInt32(id, 0); got != -2147483648 {
		t.Errorf("GetInt32 sentinel = %d", got)
	}
	if got := e.GetUint16(id, 0); got != 0xFFFF {
		t.Errorf("GetUint16 sentinel = %d", got)
	}
	if rc := code(e.Destroy(0)); rc != status.ErrNullPtr {
		t.Errorf("Destroy(0) = %s", rc)
	}
	if rc := code(e.Destroy(id)); rc != status.OK {
		t.Errorf("second Destroy = %s", rc)
	}
}

func TestLockUnlock(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := e.Create(dintTag, 1000)

	if rc := code(e.Unlock(id)); rc != status.ErrMutexUnlock {
		t.Errorf("Unlock without Lock = %s", rc)
	}
	if rc := code(e.Lock(id)); rc != status.OK {
		t.Fatalf("Lock = %s", rc)
	}

	acquired := make(chan struct{})
	go func() {
		e.Lock(id)
		close(acquired)
		e.Unlock(id)
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock did not block")
	case <-time.After(20 * time.Millisecond):
	}

	e.Unlock(id)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired")
	}
}

func TestLockReleasedByDestroy(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := e.Create(dintTag, 1000)
	e.Lock(id)

	result := make(chan int32)
	go func() { result <- e.Lock(id) }()
	time.Sleep(10 * time.Millisecond)
	e.Destroy(id)

	select {
	case rc := <-result:
		if code(rc) != status.ErrNotFound {
			t.Errorf("blocked Lock returned %s", code(rc))
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Lock not released by Destroy")
	}
}

func TestConcurrentHandles(t *testing.T) {
	e := New(WithCreateLatency(0), WithLatency(time.Millisecond))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := e.Create(dintTag, 1000)
			for j := 0; j < 5; j++ {
				e.Lock(id)
				e.Read(id, 1000)
				e.GetInt32(id, 0)
				e.Unlock(id)
			}
			e.Destroy(id)
		}()
	}
	wg.Wait()
	if n := e.Handles(); n != 0 {
		t.Errorf("%d handles left", n)
	}
}

func TestLibraryAttributes(t *testing.T) {
	e := New()
	tests := []struct {
		major, minor, patch int32
		want                status.Status
	}{
		{2, 1, 0, status.OK},
		{2, 2, 0, status.OK},
		{2, 2, 1, status.ErrUnsupported},
		{2, 3, 0, status.ErrUnsupported},
		{3, 0, 0, status.ErrUnsupported},
	}
	for _, tt := range tests {
		if got := code(e.CheckLibVersion(tt.major, tt.minor, tt.patch)); got != tt.want {
			t.Errorf("CheckLibVersion(%d,%d,%d) = %s, want %s", tt.major, tt.minor, tt.patch, got, tt.want)
		}
	}

	if got := e.GetIntAttribute(0, "version_major", -1); got != VersionMajor {
		t.Errorf("version_major = %d", got)
	}
	if got := e.GetIntAttribute(0, "nope", 42); got != 42 {
		t.Errorf("unknown attribute = %d, want default", got)
	}
	e.SetDebugLevel(3)
	if got := e.GetIntAttribute(0, "debug", 0); got != 3 {
		t.Errorf("debug = %d", got)
	}
	if got := e.DecodeError(-32); got != "PLCTAG_ERR_TIMEOUT" {
		t.Errorf("DecodeError(-32) = %q", got)
	}
}

func TestSystemVersionTag(t *testing.T) {
	e := New(WithCreateLatency(0))
	id := e.Create("protocol=system&name=version", 1000)
	if rc := code(e.Status(id)); rc != status.OK {
		t.Fatalf("status = %s", rc)
	}
	buf := make([]byte, 16)
	if rc := code(e.GetRawBytes(id, 0, buf[:e.GetSize(id)])); rc != status.OK {
		t.Fatalf("GetRawBytes = %s", rc)
	}
	if got := string(buf[:5]); got != "2.2.0" {
		t.Errorf("version tag = %q", got)
	}
}

func TestShutdown(t *testing.T) {
	e := New(WithCreateLatency(0))
	for i := 0; i < 3; i++ {
		e.Create(dintTag, 1000)
	}
	e.Shutdown()
	if n := e.Handles(); n != 0 {
		t.Errorf("%d handles after Shutdown", n)
	}
}
