package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// CodeParse is returned for malformed manifest JSON.
	CodeParse = "PARSE"
	// CodeSchema is returned when a manifest is well-formed JSON but misses
	// required fields.
	CodeSchema = "SCHEMA"
	// CodeResolution is returned when no installable plan could be produced.
	CodeResolution = "RESOLUTION"
	// CodeConflict is returned when an install root already has an
	// in-progress or installed record.
	CodeConflict = "CONFLICT"
	// CodeExecution is returned for a non-zero exit from a plan step.
	CodeExecution = "EXECUTION"
	// CodeTimeout is returned when a plan step exceeded its bound. It halts
	// execution exactly like CodeExecution but is tagged distinctly for
	// diagnostics.
	CodeTimeout = "TIMEOUT"
)

// Error is a structured failure that can flow across the resolver, executor,
// stores, and the agent bridge without losing its machine-readable code.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	msg := strings.TrimSpace(e.Message)
	switch {
	case code == "" && msg == "":
		return "merlin: unknown error"
	case code == "":
		return msg
	case msg == "":
		return code
	default:
		return fmt.Sprintf("%s: %s", code, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError creates a structured error with the given code.
func NewError(code, message string, cause error) *Error {
	cleanMsg := strings.TrimSpace(message)
	if cleanMsg == "" && cause != nil {
		cleanMsg = cause.Error()
	}
	return &Error{
		Code:    strings.TrimSpace(code),
		Message: cleanMsg,
		Cause:   cause,
	}
}

// Errorf creates a structured error with a formatted message.
func Errorf(code, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...), nil)
}

// WithDetails attaches context to the error and returns it.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e == nil || len(details) == 0 {
		return e
	}
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// CodeOf returns the machine code carried by err, or "" when err carries none.
func CodeOf(err error) string {
	var me *Error
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsCode reports whether err carries the given machine code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
