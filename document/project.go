package document

import (
	"strconv"
	"strings"
	"time"

	"github.com/neuronlabs/docorm/mapping"
)

// Project gets the savable copy of the document: the plain value without relation fields,
// virtual fields and, depending on the enforcement policy, the fields not defined in the schema.
// The typed scalars (dates, points, numbers) are coerced to their native representation.
func Project(d *Document) map[string]interface{} {
	return d.model.Project(d.Fields())
}

// Project gets the savable copy of the model's document 'values'. The projection is idempotent.
func (m *Model) Project(values map[string]interface{}) map[string]interface{} {
	enforce := m.Enforce()
	result := make(map[string]interface{}, len(values))
	for name, value := range values {
		if m.IsLocalKey(name) {
			result[name] = projectValue(value, nil, enforce)
			continue
		}
		if m.IsRelation(name) {
			continue
		}
		field, ok := m.Field(name)
		if !ok {
			if name != m.PrimaryKey() && enforce.Extra == mapping.ExtraRemove {
				continue
			}
			result[name] = projectValue(value, nil, enforce)
			continue
		}
		if field.IsVirtual() {
			continue
		}
		result[name] = projectValue(value, field, enforce)
	}
	return result
}

func projectValue(value interface{}, field *mapping.Field, enforce mapping.Enforce) interface{} {
	if field != nil {
		if coerced, ok := coerce(value, field.Type); ok {
			return coerced
		}
	}
	switch v := value.(type) {
	case map[string]interface{}:
		return projectObject(v, field, enforce)
	case []interface{}:
		var elem *mapping.Field
		if field != nil {
			elem = field.Elem
		}
		result := make([]interface{}, len(v))
		for i, e := range v {
			result[i] = projectValue(e, elem, enforce)
		}
		return result
	case []byte:
		result := make([]byte, len(v))
		copy(result, v)
		return result
	case *Document:
		return Project(v)
	default:
		return v
	}
}

func projectObject(object map[string]interface{}, field *mapping.Field, enforce mapping.Enforce) map[string]interface{} {
	if field != nil && field.Enforce != nil {
		enforce = *field.Enforce
	}
	withSchema := field != nil && len(field.Fields) > 0
	result := make(map[string]interface{}, len(object))
	for name, value := range object {
		nested, ok := field.Nested(name)
		if !ok {
			if withSchema && enforce.Extra == mapping.ExtraRemove {
				continue
			}
			result[name] = projectValue(value, nil, enforce)
			continue
		}
		if nested.IsVirtual() {
			continue
		}
		result[name] = projectValue(value, nested, enforce)
	}
	return result
}

// coerce converts the value to the native representation of the field type.
// The 'ok' is true only if the value was converted or is already native.
func coerce(value interface{}, tp mapping.FieldType) (interface{}, bool) {
	switch tp {
	case mapping.TypeDate:
		return dateFrom(value)
	case mapping.TypePoint:
		return pointFrom(value)
	case mapping.TypeNumber:
		if s, ok := value.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, true
			}
		}
	}
	return value, false
}

func dateFrom(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return value, false
		}
		return *v, true
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t, true
		}
		if millis, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return time.UnixMilli(int64(millis)).UTC(), true
		}
		return value, false
	}
	if millis, ok := toFloat(value); ok {
		return time.UnixMilli(int64(millis)).UTC(), true
	}
	return value, false
}
