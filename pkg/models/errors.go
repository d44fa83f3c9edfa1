package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTask       = errors.New("invalid task")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidState      = errors.New("invalid state")
	ErrTimeout           = errors.New("task timeout")
	ErrExecutionFailure  = errors.New("execution failure")
	ErrTeardownFailure   = errors.New("teardown failure")
)

// Error carries one of the sentinel kinds above together with the
// operation that failed and, optionally, the underlying cause. Both the
// kind and the cause match errors.Is.
type Error struct {
	Kind error      `json:"-"`
	Op   string     `json:"op,omitempty"`
	Msg  string     `json:"message,omitempty"`
	Err  error      `json:"-"`
	Time *time.Time `json:"time,omitempty"`
}

func NewError(kind error, op, format string, args ...any) *Error {
	t := time.Now()
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...), Time: &t}
}

func WrapError(kind error, op string, err error) *Error {
	t := time.Now()
	return &Error{Kind: kind, Op: op, Err: err, Time: &t}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
