// Package errdef defines coded errors shared across the storage and search
// layers. Codes classify failures so callers can branch on errdef.Is without
// string matching.
package errdef

import (
	stderrors "errors"
	"fmt"
)

// Code identifies a failure class.
type Code string

const (
	CodeUnknown    Code = "unknown"
	CodeNotFound   Code = "not_found"
	CodeCapacity   Code = "capacity"
	CodeCorrupt    Code = "corrupt"
	CodeEncode     Code = "encode"
	CodeDecode     Code = "decode"
	CodeFilesystem Code = "filesystem"
	CodeRegex      Code = "regex"
	CodeTimeout    Code = "timeout"
	CodeValidate   Code = "validate"
)

// Error carries a code, an optional message and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with a formatted message.
func New(code Code, format string, args ...any) error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: ensureCode(code), Message: msg}
}

// Wrap annotates err with a code and optional message. Returns nil when err
// is nil so call sites can wrap unconditionally.
func Wrap(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := ""
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: ensureCode(code), Message: msg, Err: err}
}

// CodeOf extracts the code from err, or CodeUnknown when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if err == nil {
		return false
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func ensureCode(code Code) Code {
	if code == "" {
		return CodeUnknown
	}
	return code
}
