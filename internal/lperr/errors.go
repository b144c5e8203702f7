package lperr

import (
	"errors"
	"fmt"
)

// Code classifies a failure so the chat layer can pick a reply and decide
// whether the user can retry.
type Code int

const (
	CodeInternal     Code = 1
	CodeValidation   Code = 2
	CodeUnavailable  Code = 3
	CodePrecondition Code = 4
	CodeExecution    Code = 5
)

func (c Code) String() string {
	switch c {
	case CodeValidation:
		return "validation"
	case CodeUnavailable:
		return "unavailable"
	case CodePrecondition:
		return "precondition"
	case CodeExecution:
		return "execution"
	default:
		return "internal"
	}
}

// Error carries a stable code and a message safe to show the user.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost typed error, or CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	if typed, ok := As(err); ok {
		return typed.Code
	}
	return CodeInternal
}

// Message returns the user-facing message of the outermost typed error.
func Message(err error) string {
	if typed, ok := As(err); ok {
		return typed.Message
	}
	return "internal error"
}

// Retryable reports whether repeating the same request may succeed.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeUnavailable, CodeExecution:
		return true
	default:
		return false
	}
}
