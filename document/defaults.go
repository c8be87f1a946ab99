package document

import (
	"github.com/neuronlabs/docorm/mapping"
)

// DefaultFunc is the field default value generator that depends on the document.
type DefaultFunc func(d *Document) interface{}

// ApplyDefaults sets the default values of the missing schema fields, including the fields
// of the nested objects already present in the document.
func ApplyDefaults(d *Document) {
	for _, field := range d.model.Fields() {
		if field.Virtual {
			continue
		}
		value, ok := d.Get(field.Name)
		if !ok {
			if field.Default == nil {
				continue
			}
			d.Set(field.Name, defaultValue(field, d))
			continue
		}
		if object, isObject := value.(map[string]interface{}); isObject && len(field.Fields) > 0 {
			object = deepCopy(object).(map[string]interface{})
			applyNestedDefaults(object, field, d)
			d.Set(field.Name, object)
		}
	}
}

// GenerateVirtual regenerates the virtual fields that define the default value.
// The generator functions are always executed, static values are set only when missing.
func GenerateVirtual(d *Document) {
	for _, field := range d.model.Fields() {
		if !field.Virtual || field.Default == nil {
			continue
		}
		switch field.Default.(type) {
		case DefaultFunc, func(*Document) interface{}, func() interface{}:
			d.Set(field.Name, defaultValue(field, d))
		default:
			if _, ok := d.Get(field.Name); !ok {
				d.Set(field.Name, defaultValue(field, d))
			}
		}
	}
}

func applyNestedDefaults(object map[string]interface{}, field *mapping.Field, d *Document) {
	for name, nested := range field.Fields {
		if nested.Virtual {
			continue
		}
		value, ok := object[name]
		if !ok {
			if nested.Default != nil {
				object[name] = defaultValue(nested, d)
			}
			continue
		}
		if inner, isObject := value.(map[string]interface{}); isObject && len(nested.Fields) > 0 {
			applyNestedDefaults(inner, nested, d)
		}
	}
}

func defaultValue(field *mapping.Field, d *Document) interface{} {
	switch fn := field.Default.(type) {
	case DefaultFunc:
		return fn(d)
	case func(*Document) interface{}:
		return fn(d)
	case func() interface{}:
		return fn()
	default:
		return deepCopy(fn)
	}
}

func deepCopy(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for k, e := range v {
			result[k] = deepCopy(e)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, e := range v {
			result[i] = deepCopy(e)
		}
		return result
	case []byte:
		result := make([]byte, len(v))
		copy(result, v)
		return result
	default:
		return v
	}
}
