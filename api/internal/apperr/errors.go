// Package apperr holds the typed failures returned by the plant flows and the reference catalog.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable, machine readable error kind.
type Code string

const (
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeModelInvocation Code = "MODEL_INVOCATION_FAILED"
	CodeModelOutput     Code = "MODEL_OUTPUT_INVALID"
	CodeNotFound        Code = "NOT_FOUND"
)

// Sentinels for errors.Is checks against an *Error of the same code.
var (
	ErrInvalidInput    = errors.New(string(CodeInvalidInput))
	ErrModelInvocation = errors.New(string(CodeModelInvocation))
	ErrModelOutput     = errors.New(string(CodeModelOutput))
	ErrNotFound        = errors.New(string(CodeNotFound))
)

// Error is the structured failure of a flow or lookup.
type Error struct {
	Code      Code     `json:"code"`
	Message   string   `json:"message"`
	Details   []string `json:"details,omitempty"`
	Retryable bool     `json:"retryable"`

	// Raw is the unparsed model response for MODEL_OUTPUT_INVALID.
	Raw string `json:"-"`
	Err error  `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Code == CodeInvalidInput
	case ErrModelInvocation:
		return e.Code == CodeModelInvocation
	case ErrModelOutput:
		return e.Code == CodeModelOutput
	case ErrNotFound:
		return e.Code == CodeNotFound
	}
	return false
}

// InvalidInput reports a request that failed input validation before any model call.
func InvalidInput(msg string, details ...string) *Error {
	return &Error{
		Code:    CodeInvalidInput,
		Message: msg,
		Details: details,
	}
}

// ModelInvocation wraps a transport or provider failure. Callers may retry with backoff.
func ModelInvocation(err error) *Error {
	return &Error{
		Code:      CodeModelInvocation,
		Message:   "model invocation failed",
		Retryable: true,
		Err:       err,
	}
}

// ModelOutput reports a call that succeeded but produced no conformant payload.
func ModelOutput(raw string, err error, details ...string) *Error {
	return &Error{
		Code:    CodeModelOutput,
		Message: "the model could not produce a conformant response",
		Details: details,
		Raw:     raw,
		Err:     err,
	}
}

// NotFound is a lookup miss in the reference data.
func NotFound(kind, key string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %q not found", kind, key),
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether err is marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
