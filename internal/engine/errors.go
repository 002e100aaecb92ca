package engine

import "fmt"

// ErrorKind tags a business-rule rejection so the caller layer can pick a
// transport status without string matching.
type ErrorKind int

const (
	// KindNotFound: the referenced job or proposal does not exist.
	KindNotFound ErrorKind = iota
	// KindForbidden: the actor lacks the relational permission.
	KindForbidden
	// KindInvalidState: the entity does not permit the requested transition.
	KindInvalidState
	// KindConflict: an optimistic status-guarded write lost a race.
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Error is a rejection from a guard or lifecycle service. Every rejection is
// a normal, expected outcome; services never downgrade or retry them.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbiddenf(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

func InvalidStatef(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}
