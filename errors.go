package flashfat

import "errors"

// Result is a filesystem result code, implementing error. It mirrors the
// teacher's fileResult type: a small integer wire-friendly enum instead of
// a tree of wrapped error values, so callers can compare results with ==.
type Result int

const (
	ResultOK Result = iota
	ResultNotFound
	ResultExists
	ResultNotADirectory
	ResultIsADirectory
	ResultNotEmpty
	ResultOutOfSpace
	ResultTooManyOpen
	ResultBadDescriptor
	ResultNameTooLong
	ResultInvalidArgument
	ResultIoError
	ResultBusy
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNotFound:
		return "not found"
	case ResultExists:
		return "already exists"
	case ResultNotADirectory:
		return "not a directory"
	case ResultIsADirectory:
		return "is a directory"
	case ResultNotEmpty:
		return "directory not empty"
	case ResultOutOfSpace:
		return "out of space"
	case ResultTooManyOpen:
		return "too many open descriptors"
	case ResultBadDescriptor:
		return "bad descriptor"
	case ResultNameTooLong:
		return "name too long"
	case ResultInvalidArgument:
		return "invalid argument"
	case ResultIoError:
		return "i/o error"
	case ResultBusy:
		return "busy"
	default:
		return "unknown result"
	}
}

// Error implements the error interface. A Result of ResultOK is never
// returned as a non-nil error; callers get a plain nil instead.
func (r Result) Error() string { return r.String() }

// err converts a Result to an error, collapsing ResultOK to nil. Wherever
// a Result that may be ResultOK is handed back as an error it goes through
// this, so public methods never return a non-nil error wrapping ResultOK.
func (r Result) err() error {
	if r == ResultOK {
		return nil
	}
	return r
}

// Sentinel errors for input validation at the public API boundary, the way
// the teacher's exported.go declares errInvalidMode/errForbiddenMode instead
// of routing programmer errors through the on-disk result enum.
var (
	errNilBuffer     = errors.New("flashfat: nil buffer")
	errInvalidMode   = errors.New("flashfat: invalid open mode")
	errNotMounted    = errors.New("flashfat: filesystem not mounted")
	errAlreadyMount  = errors.New("flashfat: filesystem already mounted")
	errInvalidWhence = errors.New("flashfat: invalid seek whence")
)
