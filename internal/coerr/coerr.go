// Package coerr provides the flat, stable error taxonomy shared by every
// commissioner component. Every error carries a Code drawn from a small,
// closed set plus a human-readable message, mirroring the way protocol
// adapters in this codebase map domain failures onto wire-level status codes.
package coerr

import "fmt"

// Code is a stable, closed error classification. Values are never renumbered;
// new codes are appended.
type Code int

const (
	None Code = iota
	Cancelled
	InvalidArgs
	InvalidCommand
	Timeout
	NotFound
	Security
	Unimplemented
	BadFormat
	Busy
	OutOfMemory
	IOError
	IOBusy
	AlreadyExists
	Aborted
	InvalidState
	Rejected
	CoapError
	RegistryError
	Unknown
)

func (c Code) String() string {
	switch c {
	case None:
		return "None"
	case Cancelled:
		return "Cancelled"
	case InvalidArgs:
		return "InvalidArgs"
	case InvalidCommand:
		return "InvalidCommand"
	case Timeout:
		return "Timeout"
	case NotFound:
		return "NotFound"
	case Security:
		return "Security"
	case Unimplemented:
		return "Unimplemented"
	case BadFormat:
		return "BadFormat"
	case Busy:
		return "Busy"
	case OutOfMemory:
		return "OutOfMemory"
	case IOError:
		return "IOError"
	case IOBusy:
		return "IOBusy"
	case AlreadyExists:
		return "AlreadyExists"
	case Aborted:
		return "Aborted"
	case InvalidState:
		return "InvalidState"
	case Rejected:
		return "Rejected"
	case CoapError:
		return "CoapError"
	case RegistryError:
		return "RegistryError"
	case Unknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error is the carrier type returned by every fallible operation in this
// module. It implements Unwrap so callers can still errors.Is() against a
// wrapped sentinel from a lower layer (DTLS library, net package, etc).
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error with the given code whose message is the wrapped
// error's own message, preserving it for errors.Is()/errors.As().
func Wrap(code Code, cause error) *Error {
	if cause == nil {
		return &Error{Code: code}
	}
	return &Error{Code: code, Message: cause.Error(), cause: cause}
}

// Wrapf creates an Error with the given code, a formatted message, and an
// underlying cause reachable via Unwrap.
func Wrapf(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Is reports whether err carries the given Code. It works on both *Error and
// anything wrapping one.
func Is(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code == code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
