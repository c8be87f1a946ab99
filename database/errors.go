package database

import (
	"github.com/neuronlabs/docorm/errors"
)

var (
	// ErrDatabase is the major error classification of the database package.
	ErrDatabase = errors.New("database")
	// ErrProgramming is the error classification of the invalid usage of the database,
	// i.e. replacing the saved document that has no primary key.
	ErrProgramming = errors.New("programming")
	// ErrNoPrimaryKey is the error when the operation requires the document primary key, which is not set.
	ErrNoPrimaryKey = errors.Wrap(ErrProgramming, "no primary key")
	// ErrForeignModel is the error when the document's model is not registered within the database.
	ErrForeignModel = errors.Wrap(ErrProgramming, "foreign model")
	// ErrClosed is the error when the database is already closed.
	ErrClosed = errors.Wrap(ErrDatabase, "closed")
)
