package media

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures reported to bridge callers.
type ErrorCode int

const (
	CodePermissionDenied ErrorCode = iota + 1
	CodeInvalidToken
	CodeNoSessionSelected
	CodeTransportError
	CodeInvalidArgument
)

// String returns the wire name of the code
func (c ErrorCode) String() string {
	switch c {
	case CodePermissionDenied:
		return "PERMISSION_DENIED"
	case CodeInvalidToken:
		return "INVALID_TOKEN"
	case CodeNoSessionSelected:
		return "NO_SESSION_SELECTED"
	case CodeTransportError:
		return "TRANSPORT_ERROR"
	case CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	default:
		return "UNKNOWN"
	}
}

// Error is a classified media error. errors.Is matches any two errors that
// share a code.
type Error struct {
	Code ErrorCode
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrPermissionDenied  = &Error{Code: CodePermissionDenied, Msg: "notification listener permission not granted"}
	ErrInvalidToken      = &Error{Code: CodeInvalidToken, Msg: "no active session with that token"}
	ErrNoSessionSelected = &Error{Code: CodeNoSessionSelected, Msg: "no media session selected"}
	ErrTransport         = &Error{Code: CodeTransportError, Msg: "media session call failed"}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument, Msg: "invalid argument"}

	errNotAttached = &Error{Code: CodeTransportError, Msg: "controller is not attached"}
)

// NewError creates a classified error wrapping err
func NewError(code ErrorCode, msg string, err error) *Error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me.Code, true
	}
	return 0, false
}
