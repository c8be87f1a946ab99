// Package errors provides lightweight error handling and classification primitives.
//
// Classifications are package level sentinel errors created with New and derived
// with Wrap. An error occurrence is created with Wrapf, WrapDet or WrapDetf and
// matches every classification in its chain:
//
//	var ErrQuery = errors.New("query")
//	var ErrInvalidInput = errors.Wrap(ErrQuery, "invalid input")
//
//	err := errors.Wrapf(ErrInvalidInput, "field: '%s' is not known", name)
//	errors.Is(err, ErrQuery) // true
package errors
