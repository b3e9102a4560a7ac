package usbip

import (
	"errors"
	"fmt"
)

// ErrorCode is the high-level error category a usbip.Error carries,
// corresponding to the closed set of error kinds in spec.md section 7.
type ErrorCode string

const (
	// ErrCodeProtocol covers a malformed inbound frame, an unexpected
	// command, a payload overflow, or a duplicate reply. Fatal at
	// session scope.
	ErrCodeProtocol ErrorCode = "protocol error"

	// ErrCodeIO covers a socket read/write failure. Fatal at session
	// scope.
	ErrCodeIO ErrorCode = "I/O error"

	// ErrCodeInvalidParameter covers a malformed URB (bad iso offsets,
	// wrong endpoint type). Local to the URB; the session is unaffected.
	ErrCodeInvalidParameter ErrorCode = "invalid parameter"

	// ErrCodeNotSupported covers a URB function the core refuses to
	// translate onto the wire. Local to the URB.
	ErrCodeNotSupported ErrorCode = "not supported"

	// ErrCodeCanceled covers a URB terminated by the cancel path.
	ErrCodeCanceled ErrorCode = "canceled"

	// ErrCodeExhausted covers seqnum space exhaustion (spec.md:
	// "practically unreachable").
	ErrCodeExhausted ErrorCode = "sequence numbers exhausted"
)

// Error is a structured usbip error carrying the operation, the
// sequence number it concerns (if any), and its category, mirroring the
// teacher's Op/DevID/Queue/Code/Errno/Msg/Inner shape in errors.go
// generalized to this package's error kinds.
type Error struct {
	Op     string // operation that failed, e.g. "submit", "recv", "cancel"
	SeqNum uint32 // sequence number involved, 0 if not applicable
	Code   ErrorCode
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.SeqNum != 0 {
		return fmt.Sprintf("usbip: %s: %s (seq=%d)", e.Op, msg, e.SeqNum)
	}
	if e.Op != "" {
		return fmt.Sprintf("usbip: %s: %s", e.Op, msg)
	}
	return fmt.Sprintf("usbip: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is lets errors.Is match on Code alone, so callers can write
// errors.Is(err, &usbip.Error{Code: usbip.ErrCodeCanceled}).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError creates a structured error with no particular sequence number.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewRequestError creates a structured error scoped to a sequence number.
func NewRequestError(op string, seqNum uint32, code ErrorCode, msg string) *Error {
	return &Error{Op: op, SeqNum: seqNum, Code: code, Msg: msg}
}

// WrapError wraps an arbitrary error (typically a net.Error from a socket
// read/write) with session context, classifying it as an I/O error unless
// it is already a structured *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	var existing *Error
	if errors.As(inner, &existing) {
		return &Error{Op: op, SeqNum: existing.SeqNum, Code: existing.Code, Msg: existing.Msg, Inner: existing.Inner}
	}
	return &Error{Op: op, Code: ErrCodeIO, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error (possibly wrapped) of the given
// category.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Sentinel errors for the common cases callers compare against directly.
var (
	ErrExhausted        = &Error{Code: ErrCodeExhausted, Msg: string(ErrCodeExhausted)}
	ErrNotSupported     = &Error{Code: ErrCodeNotSupported, Msg: string(ErrCodeNotSupported)}
	ErrInvalidParameter = &Error{Code: ErrCodeInvalidParameter, Msg: string(ErrCodeInvalidParameter)}
	ErrCanceled         = &Error{Code: ErrCodeCanceled, Msg: string(ErrCodeCanceled)}
)
