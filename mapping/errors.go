package mapping

import (
	"github.com/neuronlabs/docorm/errors"
)

var (
	// ErrMapping is the major error classification for the mapping package.
	ErrMapping = errors.New("mapping")

	// ErrConstraint is the error classification for model definition constraints violations.
	// These errors are returned at the model definition time.
	ErrConstraint = errors.Wrap(ErrMapping, "constraint")
	// ErrReservedName is the error when the field name is reserved.
	ErrReservedName = errors.Wrap(ErrConstraint, "reserved name")
	// ErrDuplicateRelation is the error when the field is already bound to some relation.
	ErrDuplicateRelation = errors.Wrap(ErrConstraint, "duplicate relation")
	// ErrDuplicateModel is the error when the model or it's table is already registered.
	ErrDuplicateModel = errors.Wrap(ErrConstraint, "duplicate model")
	// ErrUnknownModel is the error when the model is not registered.
	ErrUnknownModel = errors.Wrap(ErrConstraint, "unknown model")
	// ErrInvalidRelationship is the error when the relationship definition is not valid.
	ErrInvalidRelationship = errors.Wrap(ErrConstraint, "invalid relationship")
	// ErrInvalidField is the error when the field definition is not valid.
	ErrInvalidField = errors.Wrap(ErrConstraint, "invalid field")
)
