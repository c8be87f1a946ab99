package mapping

import (
	"strings"

	"github.com/neuronlabs/docorm/errors"
)

// FieldType is the schema type of the field's value.
type FieldType int

// Enumerated field types.
const (
	TypeAny FieldType = iota
	TypeString
	TypeNumber
	TypeBoolean
	TypeDate
	TypePoint
	TypeObject
	TypeArray
	TypeBinary
)

var fieldTypeNames = map[FieldType]string{
	TypeAny:     "any",
	TypeString:  "string",
	TypeNumber:  "number",
	TypeBoolean: "boolean",
	TypeDate:    "date",
	TypePoint:   "point",
	TypeObject:  "object",
	TypeArray:   "array",
	TypeBinary:  "binary",
}

// String implements fmt.Stringer interface.
func (f FieldType) String() string {
	if name, ok := fieldTypeNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseFieldType parses the field type by its name. An empty name is TypeAny.
func ParseFieldType(name string) (FieldType, error) {
	if name == "" {
		return TypeAny, nil
	}
	name = strings.ToLower(name)
	for tp, tpName := range fieldTypeNames {
		if tpName == name {
			return tp, nil
		}
	}
	return TypeAny, errors.Wrapf(ErrInvalidField, "unknown field type: '%s'", name)
}

// Field is the schema definition of a single document field.
type Field struct {
	// Name is the field name within it's parent object.
	Name string
	// Type is the expected value type.
	Type FieldType
	// Required marks the field as required regardless of the enforcement policy.
	Required bool
	// Virtual fields are never saved.
	Virtual bool
	// Validate is the validator tag i.e. 'email,max=40' checked on the field value.
	Validate string
	// Default is the value or generator function used when the field is missing.
	Default interface{}
	// Fields are the nested object fields definitions.
	Fields map[string]*Field
	// Elem is the array element definition.
	Elem *Field
	// Enforce overwrites the enforcement policy for the nested object.
	Enforce *Enforce
}

// Nested gets the nested field definition by the 'name'.
func (f *Field) Nested(name string) (*Field, bool) {
	if f == nil || f.Fields == nil {
		return nil, false
	}
	nested, ok := f.Fields[name]
	return nested, ok
}

// IsVirtual checks if the field or its array element is virtual.
func (f *Field) IsVirtual() bool {
	if f == nil {
		return false
	}
	return f.Virtual || (f.Type == TypeArray && f.Elem != nil && f.Elem.Virtual)
}

// ExtraPolicy defines what happens with the fields not defined in the schema.
type ExtraPolicy int

const (
	// ExtraNone keeps the extra fields.
	ExtraNone ExtraPolicy = iota
	// ExtraRemove drops the extra fields from the saved value.
	ExtraRemove
	// ExtraStrict fails the validation on extra fields.
	ExtraStrict
)

// TypePolicy defines the strictness of the field type checks.
type TypePolicy int

const (
	// TypeCheckLoose accepts the value of the schema type or nil.
	TypeCheckLoose TypePolicy = iota
	// TypeCheckNone doesn't check the types.
	TypeCheckNone
	// TypeCheckStrict accepts only the values of the schema type.
	TypeCheckStrict
)

// Enforce is the schema enforcement policy.
type Enforce struct {
	Missing bool
	Extra   ExtraPolicy
	Type    TypePolicy
}

// DefaultEnforce is the default enforcement policy.
var DefaultEnforce = Enforce{Extra: ExtraNone, Type: TypeCheckLoose}

// ParseEnforce creates the enforcement policy from its textual values.
func ParseEnforce(missing bool, extra, tp string) (Enforce, error) {
	e := Enforce{Missing: missing}
	switch strings.ToLower(extra) {
	case "", "none":
		e.Extra = ExtraNone
	case "remove":
		e.Extra = ExtraRemove
	case "strict":
		e.Extra = ExtraStrict
	default:
		return e, errors.Wrapf(ErrInvalidField, "unknown extra fields policy: '%s'", extra)
	}
	switch strings.ToLower(tp) {
	case "", "loose":
		e.Type = TypeCheckLoose
	case "none":
		e.Type = TypeCheckNone
	case "strict":
		e.Type = TypeCheckStrict
	default:
		return e, errors.Wrapf(ErrInvalidField, "unknown type policy: '%s'", tp)
	}
	return e, nil
}
