package errors

import (
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/google/uuid"
)

// DetailedError is a single occurrence of some error classification.
// Each instance has it's own trackable ID and the operation where it was created.
type DetailedError struct {
	// ID is a unique error instance identification number.
	ID uuid.UUID
	// Details contains the detailed information.
	Details string
	// Message is a message used as a string for the golang error interface implementation.
	Message string
	// Operation is the operation name when the error occurred.
	Operation string

	class error
}

func newDetailed(class error, message string) *DetailedError {
	err := &DetailedError{
		ID:      uuid.New(),
		Message: message,
		class:   class,
	}
	pc, _, _, ok := runtime.Caller(2)
	details := runtime.FuncForPC(pc)
	if ok && details != nil {
		file, line := details.FileLine(pc)
		_, singleFile := filepath.Split(file)
		err.Operation = details.Name() + "#" + singleFile + ":" + strconv.Itoa(line)
	}
	return err
}

// Error implements error interface.
func (e *DetailedError) Error() string {
	switch {
	case e.class == nil:
		return e.Message
	case e.Message == "":
		return e.class.Error()
	default:
		return e.class.Error() + ": " + e.Message
	}
}

// Unwrap returns the error classification of given instance.
func (e *DetailedError) Unwrap() error {
	return e.class
}

// WithDetail sets the detail for given error and then returns the error.
func (e *DetailedError) WithDetail(detail string) *DetailedError {
	e.Details = detail
	return e
}
