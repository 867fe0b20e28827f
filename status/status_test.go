package status

import (
	"errors"
	"fmt"
	"strconv"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{0, "PLCTAG_STATUS_OK"},
		{1, "PLCTAG_STATUS_PENDING"},
		{-1, "PLCTAG_ERR_ABORT"},
		{-2, "PLCTAG_ERR_BAD_CONFIG"},
		{-19, "PLCTAG_ERR_NOT_FOUND"},
		{-27, "PLCTAG_ERR_OUT_OF_BOUNDS"},
		{-32, "PLCTAG_ERR_TIMEOUT"},
		{-39, "PLCTAG_ERR_BUSY"},
		{-40, "Unknown error."},
		{2, "Unknown error."},
	}

	for _, tc := range tests {
		if got := Decode(tc.code); got != tc.expected {
			t.Errorf("Decode(%d) = %q, want %q", tc.code, got, tc.expected)
		}
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	if strconv.IntSize < 64 {
		t.Skip("int is 32 bits")
	}
	// Codes that would wrap onto a known int32 status decode as unknown.
	wide := 1
	wide <<= 32
	for _, code := range []int{wide, wide - 1, wide + 1, wide - 27, -wide} {
		if got := Decode(code); got != unknownText {
			t.Errorf("Decode(%d) = %q, want %q", code, got, unknownText)
		}
	}
}

func TestEveryErrorCodeHasAName(t *testing.T) {
	for code := -39; code <= 1; code++ {
		if !Status(code).Known() {
			t.Errorf("code %d missing from table", code)
		}
	}
}

func TestPredicates(t *testing.T) {
	if !OK.IsOK() || OK.IsPending() || OK.IsError() {
		t.Error("OK predicates wrong")
	}
	if !Pending.IsPending() || Pending.IsError() {
		t.Error("Pending predicates wrong")
	}
	if !ErrTimeout.IsError() || ErrTimeout.IsOK() {
		t.Error("ErrTimeout predicates wrong")
	}
}

func TestErr(t *testing.T) {
	t.Run("ok is nil", func(t *testing.T) {
		if err := Err("read", OK); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("pending is an error", func(t *testing.T) {
		err := Err("read", Pending)
		if err == nil {
			t.Fatal("expected error for pending")
		}
		if Of(err) != Pending {
			t.Errorf("Of = %v, want Pending", Of(err))
		}
	})

	t.Run("code is carried unmodified", func(t *testing.T) {
		err := Err("write", Status(-77))
		if Of(err) != Status(-77) {
			t.Errorf("Of = %d, want -77", Of(err))
		}
		if err.Error() != "write: Unknown error. (-77)" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("errors.Is through wrapping", func(t *testing.T) {
		err := fmt.Errorf("poll counter: %w", Err("read", ErrTimeout))
		if !errors.Is(err, ErrTimeout) {
			t.Error("errors.Is(err, ErrTimeout) should be true")
		}
		if errors.Is(err, ErrAbort) {
			t.Error("errors.Is(err, ErrAbort) should be false")
		}
		if Of(err) != ErrTimeout {
			t.Errorf("Of = %v, want ErrTimeout", Of(err))
		}
	})

	t.Run("foreign error", func(t *testing.T) {
		if Of(errors.New("boom")) != ErrBadStatus {
			t.Error("foreign errors map to ErrBadStatus")
		}
		if Of(nil) != OK {
			t.Error("nil maps to OK")
		}
	})
}

func TestClass(t *testing.T) {
	tests := []struct {
		status   Status
		expected Class
	}{
		{OK, ClassNone},
		{Pending, ClassPending},
		{ErrBadConfig, ClassConfig},
		{ErrNoMem, ClassResource},
		{ErrTimeout, ClassTimeout},
		{ErrBadConnection, ClassTransport},
		{ErrRemoteErr, ClassTransport},
		{ErrNotFound, ClassMisuse},
		{ErrOutOfBounds, ClassMisuse},
		{Status(-99), ClassTransport},
	}

	for _, tc := range tests {
		if got := tc.status.Class(); got != tc.expected {
			t.Errorf("%v.Class() = %v, want %v", tc.status, got, tc.expected)
		}
	}
}
