package document

import (
	"strings"

	"github.com/neuronlabs/docorm/errors"
)

var (
	// ErrDocument is the major error classification for the document package.
	ErrDocument = errors.New("document")

	// ErrValidation is the error classification for the documents that didn't pass the validation.
	ErrValidation = errors.New("validation")
	// ErrRequiredField is the error when the required field is missing.
	ErrRequiredField = errors.Wrap(ErrValidation, "required field")
	// ErrExtraField is the error when the field is not defined in the schema and the extra fields are not allowed.
	ErrExtraField = errors.Wrap(ErrValidation, "extra field")
	// ErrFieldType is the error when the field value doesn't match the schema type.
	ErrFieldType = errors.Wrap(ErrValidation, "field type")
	// ErrValidatorFailed is the error when the custom or tag validator rejects the document.
	ErrValidatorFailed = errors.Wrap(ErrValidation, "validator failed")
	// ErrRelationType is the error when the relation field value is neither an object nor an array as expected.
	ErrRelationType = errors.Wrap(ErrValidation, "relation type")

	// ErrUnknownModel is the error when the document's model is not registered.
	ErrUnknownModel = errors.Wrap(ErrDocument, "unknown model")
	// ErrUnknownRelation is the error when the field is not bound to any relation.
	ErrUnknownRelation = errors.Wrap(ErrDocument, "unknown relation")
)

// ValidationError is the error that occurred on validating the document.
// It names the document and the path of the invalid field.
type ValidationError struct {
	// Document is the document that didn't pass the validation.
	Document *Document
	// Path is the dotted path to the invalid field. Empty for the whole document failures.
	Path string
	// Err is the error instance derived from one of the validation error classes.
	Err error
}

// Error implements error interface.
func (e *ValidationError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(e.Err.Error())
	if e.Document != nil {
		sb.WriteString(" - document: ")
		sb.WriteString(e.Document.String())
	}
	if e.Path != "" {
		sb.WriteString(" field: '")
		sb.WriteString(e.Path)
		sb.WriteRune('\'')
	}
	return sb.String()
}

// Unwrap returns the validation error instance.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

func validationErr(d *Document, path string, class error, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Document: d, Path: path, Err: errors.Wrapf(class, format, args...)}
}
