package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Standard library helpers, so callers need a single errors import.
var (
	Is     = stderrors.Is
	As     = stderrors.As
	Unwrap = stderrors.Unwrap
)

type appError struct {
	code    ErrorCode
	message string
	cause   error
	data    any
}

// Error renders "message[: data][: cause]", using the code's registered
// message when none was set.
func (e *appError) Error() string {
	parts := make([]string, 0, 3)

	if e.message != "" {
		parts = append(parts, e.message)
	} else {
		parts = append(parts, GetErrorMessage(e.code))
	}
	if e.data != nil {
		parts = append(parts, fmt.Sprint(e.data))
	}
	if e.cause != nil {
		parts = append(parts, e.cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *appError) Code() ErrorCode {
	return e.code
}

func (e *appError) GetData() any {
	return e.data
}

func (e *appError) Unwrap() error {
	return e.cause
}

func (e *appError) WithMessage(msg string) Error {
	c := *e
	c.message = msg

	return &c
}

func (e *appError) WithData(data any) Error {
	c := *e
	c.data = data

	return &c
}

type factory struct{}

// New returns the error Factory.
func New() Factory {
	return factory{}
}

func (factory) New(code ErrorCode) Error {
	return &appError{code: code}
}

func (factory) Wrap(code ErrorCode, err error) Error {
	return &appError{code: code, cause: err}
}

func (factory) WithMessage(code ErrorCode, msg string) Error {
	return &appError{code: code, message: msg}
}

func (factory) WithData(code ErrorCode, data any) Error {
	return &appError{code: code, data: data}
}

// HasCode reports whether any coded error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var coded Error
		if !As(err, &coded) {
			return false
		}
		if coded.Code() == code {
			return true
		}
		err = coded.Unwrap()
	}

	return false
}

// CodeOf returns the outermost code in err's chain, or ErrInternal for
// errors that carry none.
func CodeOf(err error) ErrorCode {
	var coded Error
	if As(err, &coded) {
		return coded.Code()
	}

	return ErrInternal
}
