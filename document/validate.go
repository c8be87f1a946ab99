package document

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"golang.org/x/sync/errgroup"
	"gopkg.in/go-playground/validator.v9"

	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/mapping"
)

// fieldValidator checks the field values with their 'Validate' tags.
var fieldValidator = validator.New()

// Cascade is the scope of the cascading operations. It maps the relation field name to the
// cascade scope of the related documents. A nil value stops the cascade at the related documents.
type Cascade map[string]Cascade

// Field gets the nested cascade of the relation 'field'. The 'ok' is true if the field is in the scope.
func (c Cascade) Field(field string) (Cascade, bool) {
	sub, ok := c[field]
	return sub, ok
}

// Validate validates the document and the related documents within the cascade scope.
// The relation field is validated if it is named in the 'targets' or 'all' is set and the related
// model's table was not validated yet within this call.
// If any of the validated models defines an asynchronous validator, these validators are executed
// concurrently after all the synchronous checks passed.
func Validate(ctx context.Context, d *Document, targets Cascade, all bool) error {
	v := &validation{ctx: ctx, visited: map[string]struct{}{}}
	if IsAsync(d, targets, all) {
		v.collectAsync = true
	}
	if err := v.validate(d, targets, all, ""); err != nil {
		return err
	}
	if !v.collectAsync {
		return nil
	}
	return v.runAsync()
}

// ValidateSchema validates only the document's fields with the model schema and the enforcement policy.
func ValidateSchema(d *Document) error {
	return validateSchema(d, "")
}

// IsAsync checks if the validation of the document within the cascade scope would
// execute any asynchronous validator.
func IsAsync(d *Document, targets Cascade, all bool) bool {
	return isAsync(d, targets, all, map[string]struct{}{}, map[*Document]struct{}{})
}

func isAsync(d *Document, targets Cascade, all bool, visited map[string]struct{}, docs map[*Document]struct{}) bool {
	if _, ok := docs[d]; ok {
		return false
	}
	docs[d] = struct{}{}
	if _, async := d.model.customValidators(); async != nil {
		return true
	}
	visited[d.model.Table()] = struct{}{}
	for _, rel := range d.model.Relations() {
		sub, ok := InScope(rel, targets, all, visited)
		if !ok {
			continue
		}
		for _, child := range d.relatedDocuments(rel) {
			if isAsync(child, sub, all, visited, docs) {
				return true
			}
		}
		if d.model.Related(rel).hasAsyncValidator() && d.hasPlainRelated(rel) {
			return true
		}
	}
	return false
}

func (m *Model) hasAsyncValidator() bool {
	_, async := m.customValidators()
	return async != nil
}

// hasPlainRelated checks if the relation field contains not promoted plain objects.
func (d *Document) hasPlainRelated(rel mapping.Relationship) bool {
	value, _ := d.Get(rel.Field())
	switch v := value.(type) {
	case map[string]interface{}:
		return true
	case []interface{}:
		for _, e := range v {
			if _, ok := e.(map[string]interface{}); ok {
				return true
			}
		}
	case []map[string]interface{}:
		return len(v) > 0
	}
	return false
}

// InScope checks if the relation should be processed within the cascade scope: it is named in the
// 'targets' or 'all' is set and the related table is not in the 'visited' set. Returns the
// nested cascade scope of the relation.
func InScope(rel mapping.Relationship, targets Cascade, all bool, visited map[string]struct{}) (Cascade, bool) {
	if sub, ok := targets.Field(rel.Field()); ok {
		return sub, true
	}
	if !all {
		return nil, false
	}
	_, done := visited[rel.Related().Table()]
	return nil, !done
}

type asyncJob struct {
	document  *Document
	validator AsyncValidator
}

type validation struct {
	ctx          context.Context
	visited      map[string]struct{}
	collectAsync bool
	async        []asyncJob
}

func (v *validation) validate(d *Document, targets Cascade, all bool, prefix string) error {
	model := d.model
	if err := model.RunHooks(v.ctx, PreValidate, d); err != nil {
		return err
	}
	custom, async := model.customValidators()
	if custom != nil && !custom(d) {
		logger.Debug2f("custom validator rejected: %s", d)
		return validationErr(d, trimPath(prefix), ErrValidatorFailed, "custom validator rejected the document")
	}
	if async != nil && v.collectAsync {
		v.async = append(v.async, asyncJob{document: d, validator: async})
	}
	if err := validateSchema(d, prefix); err != nil {
		return err
	}
	v.visited[model.Table()] = struct{}{}

	for _, rel := range model.Relations() {
		sub, ok := InScope(rel, targets, all, v.visited)
		if !ok {
			continue
		}
		path := prefix + rel.Field()
		switch rel.(type) {
		case *mapping.BelongsTo, *mapping.HasOne:
			child, err := d.One(rel.Field())
			if err != nil {
				return withPrefix(err, prefix)
			}
			if child == nil {
				continue
			}
			if err = v.validate(child, sub, all, path+"."); err != nil {
				return err
			}
		case *mapping.HasMany, *mapping.ManyToMany:
			elems, err := d.Many(rel.Field())
			if err != nil {
				return withPrefix(err, prefix)
			}
			for i, elem := range elems {
				child, isDoc := elem.(*Document)
				if !isDoc {
					continue
				}
				if err = v.validate(child, sub, all, fmt.Sprintf("%s[%d].", path, i)); err != nil {
					return err
				}
			}
		}
	}
	return model.RunHooks(v.ctx, PostValidate, d)
}

func (v *validation) runAsync() error {
	g, ctx := errgroup.WithContext(v.ctx)
	for _, job := range v.async {
		job := job
		g.Go(func() error {
			if err := job.validator(ctx, job.document); err != nil {
				var vErr *ValidationError
				if errors.As(err, &vErr) {
					return err
				}
				return &ValidationError{Document: job.document, Err: errors.Wrapf(ErrValidatorFailed, "%v", err)}
			}
			return nil
		})
	}
	return g.Wait()
}

func withPrefix(err error, prefix string) error {
	if vErr, ok := err.(*ValidationError); ok {
		vErr.Path = prefix + vErr.Path
	}
	return err
}

func trimPath(prefix string) string {
	if prefix != "" && prefix[len(prefix)-1] == '.' {
		return prefix[:len(prefix)-1]
	}
	return prefix
}

func validateSchema(d *Document, prefix string) error {
	model := d.model
	enforce := model.Enforce()
	values := d.Fields()
	for _, field := range model.Fields() {
		value, ok := values[field.Name]
		if err := validateField(d, prefix+field.Name, value, ok, field, enforce); err != nil {
			return err
		}
	}
	if enforce.Extra != mapping.ExtraStrict {
		return nil
	}
	for _, name := range sortedKeys(values) {
		if _, ok := model.Field(name); ok {
			continue
		}
		if name == model.PrimaryKey() || model.IsRelation(name) || model.IsLocalKey(name) {
			continue
		}
		return validationErr(d, prefix+name, ErrExtraField, "field is not defined in the schema")
	}
	return nil
}

func validateField(d *Document, path string, value interface{}, present bool, field *mapping.Field, enforce mapping.Enforce) error {
	if !present {
		if (field.Required || enforce.Missing) && !field.Virtual {
			return validationErr(d, path, ErrRequiredField, "value is missing")
		}
		return nil
	}
	if value == nil {
		if field.Required {
			return validationErr(d, path, ErrRequiredField, "value is nil")
		}
		if enforce.Type == mapping.TypeCheckStrict && field.Type != mapping.TypeAny {
			return validationErr(d, path, ErrFieldType, "expected %s, got nil", field.Type)
		}
		return nil
	}
	if enforce.Type != mapping.TypeCheckNone && !typeMatches(value, field.Type) {
		return validationErr(d, path, ErrFieldType, "expected %s, got %T", field.Type, value)
	}
	if field.Validate != "" {
		if err := fieldValidator.Var(value, field.Validate); err != nil {
			return validationErr(d, path, ErrValidatorFailed, "%v", err)
		}
	}

	switch v := value.(type) {
	case map[string]interface{}:
		if len(field.Fields) == 0 {
			return nil
		}
		nestedEnforce := enforce
		if field.Enforce != nil {
			nestedEnforce = *field.Enforce
		}
		for _, name := range sortedFieldNames(field.Fields) {
			nestedValue, ok := v[name]
			if err := validateField(d, path+"."+name, nestedValue, ok, field.Fields[name], nestedEnforce); err != nil {
				return err
			}
		}
		if nestedEnforce.Extra == mapping.ExtraStrict {
			for _, name := range sortedKeys(v) {
				if _, ok := field.Fields[name]; !ok {
					return validationErr(d, path+"."+name, ErrExtraField, "field is not defined in the schema")
				}
			}
		}
	case []interface{}:
		if field.Elem == nil {
			return nil
		}
		for i, elem := range v {
			if err := validateField(d, fmt.Sprintf("%s[%d]", path, i), elem, true, field.Elem, enforce); err != nil {
				return err
			}
		}
	}
	return nil
}

func typeMatches(value interface{}, tp mapping.FieldType) bool {
	switch tp {
	case mapping.TypeAny:
		return true
	case mapping.TypeString:
		_, ok := value.(string)
		return ok
	case mapping.TypeNumber:
		if _, ok := toFloat(value); ok {
			return true
		}
		_, ok := coerce(value, tp)
		return ok
	case mapping.TypeBoolean:
		_, ok := value.(bool)
		return ok
	case mapping.TypeDate:
		_, ok := dateFrom(value)
		return ok
	case mapping.TypePoint:
		_, ok := pointFrom(value)
		return ok
	case mapping.TypeObject:
		switch value.(type) {
		case map[string]interface{}, *Document:
			return true
		}
		return false
	case mapping.TypeArray:
		rv := reflect.ValueOf(value)
		return rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8
	case mapping.TypeBinary:
		_, ok := value.([]byte)
		return ok
	}
	return false
}

func sortedKeys(values map[string]interface{}) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFieldNames(fields map[string]*mapping.Field) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
