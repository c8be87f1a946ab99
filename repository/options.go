package repository

// Conflict defines the insert behavior when the row with the same primary key already exists.
type Conflict int

const (
	// ConflictError reports the duplicated primary key in the result.
	ConflictError Conflict = iota
	// ConflictReplace replaces the existing row.
	ConflictReplace
)

// InsertOptions are the options of the insert operation.
type InsertOptions struct {
	Conflict Conflict
}

// InsertOption is a function that changes the insert options.
type InsertOption func(o *InsertOptions)

// WithConflict sets the insert conflict behavior.
func WithConflict(c Conflict) InsertOption {
	return func(o *InsertOptions) {
		o.Conflict = c
	}
}

// NewInsertOptions creates the insert options from provided 'options'.
func NewInsertOptions(options ...InsertOption) *InsertOptions {
	o := &InsertOptions{}
	for _, option := range options {
		option(o)
	}
	return o
}
