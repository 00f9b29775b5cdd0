package lifecycle

import "errors"

// ErrorKind classifies lifecycle failures. The set is closed.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindCapacityExceeded
	KindInvalidStateTransition
	KindInvalidArgument
)

func (k ErrorKind) String() string {
	switch k {
	case KindCapacityExceeded:
		return "capacity exceeded"
	case KindInvalidStateTransition:
		return "invalid state transition"
	case KindInvalidArgument:
		return "invalid argument"
	}
	return "unknown"
}

// Error is a lifecycle rule violation. Nothing has been mutated when one is returned.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrCapacityExceeded       = &Error{Kind: KindCapacityExceeded}
	ErrInvalidStateTransition = &Error{Kind: KindInvalidStateTransition}
	ErrInvalidArgument        = &Error{Kind: KindInvalidArgument}
)

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Kind
	}
	return KindUnknown
}
