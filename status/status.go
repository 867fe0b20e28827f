// Package status defines the tag engine's status code space.
package status

import (
	"errors"
	"fmt"
	"math"
)

// Status is a status code returned by the tag engine.
// Zero is OK, one is PENDING and negative values are specific errors.
type Status int32

// Engine status codes. The numeric values are dictated by the native
// library and must not be changed.
const (
	Pending Status = 1
	OK      Status = 0

	ErrAbort          Status = -1
	ErrBadConfig      Status = -2
	ErrBadConnection  Status = -3
	ErrBadData        Status = -4
	ErrBadDevice      Status = -5
	ErrBadGateway     Status = -6
	ErrBadParam       Status = -7
	ErrBadReply       Status = -8
	ErrBadStatus      Status = -9
	ErrClose          Status = -10
	ErrCreate         Status = -11
	ErrDuplicate      Status = -12
	ErrEncode         Status = -13
	ErrMutexDestroy   Status = -14
	ErrMutexInit      Status = -15
	ErrMutexLock      Status = -16
	ErrMutexUnlock    Status = -17
	ErrNotAllowed     Status = -18
	ErrNotFound       Status = -19
	ErrNotImplemented Status = -20
	ErrNoData         Status = -21
	ErrNoMatch        Status = -22
	ErrNoMem          Status = -23
	ErrNoResources    Status = -24
	ErrNullPtr        Status = -25
	ErrOpen           Status = -26
	ErrOutOfBounds    Status = -27
	ErrRead           Status = -28
	ErrRemoteErr      Status = -29
	ErrThreadCreate   Status = -30
	ErrThreadJoin     Status = -31
	ErrTimeout        Status = -32
	ErrTooLarge       Status = -33
	ErrTooSmall       Status = -34
	ErrUnsupported    Status = -35
	ErrWinsock        Status = -36
	ErrWrite          Status = -37
	ErrPartial        Status = -38
	ErrBusy           Status = -39
)

// unknownText is what the engine returns for codes it does not know.
const unknownText = "Unknown error."

var names = map[Status]string{
	Pending:           "PLCTAG_STATUS_PENDING",
	OK:                "PLCTAG_STATUS_OK",
	ErrAbort:          "PLCTAG_ERR_ABORT",
	ErrBadConfig:      "PLCTAG_ERR_BAD_CONFIG",
	ErrBadConnection:  "PLCTAG_ERR_BAD_CONNECTION",
	ErrBadData:        "PLCTAG_ERR_BAD_DATA",
	ErrBadDevice:      "PLCTAG_ERR_BAD_DEVICE",
	ErrBadGateway:     "PLCTAG_ERR_BAD_GATEWAY",
	ErrBadParam:       "PLCTAG_ERR_BAD_PARAM",
	ErrBadReply:       "PLCTAG_ERR_BAD_REPLY",
	ErrBadStatus:      "PLCTAG_ERR_BAD_STATUS",
	ErrClose:          "PLCTAG_ERR_CLOSE",
	ErrCreate:         "PLCTAG_ERR_CREATE",
	ErrDuplicate:      "PLCTAG_ERR_DUPLICATE",
	ErrEncode:         "PLCTAG_ERR_ENCODE",
	ErrMutexDestroy:   "PLCTAG_ERR_MUTEX_DESTROY",
	ErrMutexInit:      "PLCTAG_ERR_MUTEX_INIT",
	ErrMutexLock:      "PLCTAG_ERR_MUTEX_LOCK",
	ErrMutexUnlock:    "PLCTAG_ERR_MUTEX_UNLOCK",
	ErrNotAllowed:     "PLCTAG_ERR_NOT_ALLOWED",
	ErrNotFound:       "PLCTAG_ERR_NOT_FOUND",
	ErrNotImplemented: "PLCTAG_ERR_NOT_IMPLEMENTED",
	ErrNoData:         "PLCTAG_ERR_NO_DATA",
	ErrNoMatch:        "PLCTAG_ERR_NO_MATCH",
	ErrNoMem:          "PLCTAG_ERR_NO_MEM",
	ErrNoResources:    "PLCTAG_ERR_NO_RESOURCES",
	ErrNullPtr:        "PLCTAG_ERR_NULL_PTR",
	ErrOpen:           "PLCTAG_ERR_OPEN",
	ErrOutOfBounds:    "PLCTAG_ERR_OUT_OF_BOUNDS",
	ErrRead:           "PLCTAG_ERR_READ",
	ErrRemoteErr:      "PLCTAG_ERR_REMOTE_ERR",
	ErrThreadCreate:   "PLCTAG_ERR_THREAD_CREATE",
	ErrThreadJoin:     "PLCTAG_ERR_THREAD_JOIN",
	ErrTimeout:        "PLCTAG_ERR_TIMEOUT",
	ErrTooLarge:       "PLCTAG_ERR_TOO_LARGE",
	ErrTooSmall:       "PLCTAG_ERR_TOO_SMALL",
	ErrUnsupported:    "PLCTAG_ERR_UNSUPPORTED",
	ErrWinsock:        "PLCTAG_ERR_WINSOCK",
	ErrWrite:          "PLCTAG_ERR_WRITE",
	ErrPartial:        "PLCTAG_ERR_PARTIAL",
	ErrBusy:           "PLCTAG_ERR_BUSY",
}

// Decode returns the symbolic name of a status code, matching the text
// produced by the engine's own decode function.
func Decode(code int) string {
	if code < math.MinInt32 || code > math.MaxInt32 {
		return unknownText
	}
	if name, ok := names[Status(code)]; ok {
		return name
	}
	return unknownText
}

// String returns the symbolic name of the status.
func (s Status) String() string {
	return Decode(int(s))
}

// IsOK reports whether the status is OK.
func (s Status) IsOK() bool { return s == OK }

// IsPending reports whether an operation is still in flight.
func (s Status) IsPending() bool { return s == Pending }

// IsError reports whether the status is an error code.
func (s Status) IsError() bool { return s < 0 }

// Known reports whether the code is part of the engine's table.
func (s Status) Known() bool {
	_, ok := names[s]
	return ok
}

// Error wraps a non-OK status returned by an operation.
// The status code is carried unmodified.
type Error struct {
	Op     string
	Status Status
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s (%d)", e.Status, int32(e.Status))
	}
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Status, int32(e.Status))
}

// Is makes errors.Is(err, status.ErrTimeout) work on wrapped errors.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Status:
		return e.Status == t
	case *Error:
		return e.Status == t.Status
	}
	return false
}

// Error lets a bare Status be used as an errors.Is target.
func (s Status) Error() string {
	return s.String()
}

// Err returns nil for OK and an *Error for anything else, including PENDING.
func Err(op string, s Status) error {
	if s == OK {
		return nil
	}
	return &Error{Op: op, Status: s}
}

// Of extracts the status code from an error returned by this module.
// It returns OK for nil and ErrBadStatus for foreign errors.
func Of(err error) Status {
	if err == nil {
		return OK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Status
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	return ErrBadStatus
}
