package status

// Class groups status codes into the error taxonomy callers act on.
type Class int

const (
	ClassNone Class = iota
	ClassPending
	ClassConfig
	ClassResource
	ClassTimeout
	ClassTransport
	ClassMisuse
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassPending:
		return "pending"
	case ClassConfig:
		return "configuration"
	case ClassResource:
		return "resource"
	case ClassTimeout:
		return "timeout"
	case ClassTransport:
		return "transport"
	case ClassMisuse:
		return "misuse"
	default:
		return "unknown"
	}
}

// Class returns the taxonomy class of a status.
// Unknown negative codes are treated as transport errors since they can
// only come from the engine.
func (s Status) Class() Class {
	switch s {
	case OK:
		return ClassNone
	case Pending:
		return ClassPending
	case ErrBadConfig, ErrBadParam, ErrUnsupported, ErrNotImplemented, ErrDuplicate:
		return ClassConfig
	case ErrNoMem, ErrNoResources, ErrCreate, ErrThreadCreate, ErrMutexInit, ErrTooLarge:
		return ClassResource
	case ErrTimeout:
		return ClassTimeout
	case ErrNotFound, ErrNullPtr, ErrOutOfBounds, ErrNoData, ErrNotAllowed, ErrBusy,
		ErrMutexLock, ErrMutexUnlock, ErrTooSmall:
		return ClassMisuse
	default:
		return ClassTransport
	}
}
