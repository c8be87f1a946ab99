package errors

import (
	"errors"
	"fmt"
)

// classError is the error classification. Classes are created once with New or Wrap
// and compared by identity.
type classError struct {
	parent  error
	message string
}

// New creates new root error classification with provided 'message'.
func New(message string) error {
	return &classError{message: message}
}

// Wrap creates new error derived from 'err'. If 'err' is a classification the result is
// a sub-classification, otherwise it is an error instance annotated with the 'message'.
func Wrap(err error, message string) error {
	if _, ok := err.(*classError); ok {
		return &classError{parent: err, message: message}
	}
	return newDetailed(err, message)
}

// Wrapf creates new error instance derived from 'err' with the formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return newDetailed(err, fmt.Sprintf(format, args...))
}

// WrapDet creates new error instance derived from 'err' with given message and detail.
// The detail is not a part of the Error() message.
func WrapDet(err error, message, detail string) *DetailedError {
	d := newDetailed(err, message)
	d.Details = detail
	return d
}

// WrapDetf creates new error instance derived from 'err' with the formatted detail.
func WrapDetf(err error, format string, args ...interface{}) *DetailedError {
	d := newDetailed(err, "")
	d.Details = fmt.Sprintf(format, args...)
	return d
}

// Error implements error interface.
func (c *classError) Error() string {
	if c.parent == nil {
		return c.message
	}
	return c.parent.Error() + ": " + c.message
}

// Unwrap returns the parent classification.
func (c *classError) Unwrap() error {
	return c.parent
}

// IsClass checks if 'err' is an error classification, not an instance.
func IsClass(err error) bool {
	_, ok := err.(*classError)
	return ok
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
