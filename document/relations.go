package document

import (
	"reflect"

	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/mapping"
)

// One gets the single related document stored in the relation 'field'. The plain object values
// are promoted to the documents of the related model and stored back in the field.
// The result is nil if the field is not set.
func (d *Document) One(field string) (*Document, error) {
	rel, ok := d.model.Relation(field)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRelation, "model: '%s' field: '%s'", d.model.Name(), field)
	}
	related := d.model.Related(rel)

	d.mu.Lock()
	defer d.mu.Unlock()
	value := d.fields[field]
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *Document:
		return v, nil
	case map[string]interface{}:
		child := related.New(v)
		d.fields[field] = child
		return child, nil
	default:
		return nil, validationErr(d, field, ErrRelationType, "expected object for the relation: '%s', got: %T", field, value)
	}
}

// Many gets the related values stored in the relation 'field'. The plain object values
// are promoted to the documents of the related model and stored back in the field.
// Many to many relation values might contain bare foreign keys.
func (d *Document) Many(field string) ([]interface{}, error) {
	rel, ok := d.model.Relation(field)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownRelation, "model: '%s' field: '%s'", d.model.Name(), field)
	}
	related := d.model.Related(rel)

	d.mu.Lock()
	defer d.mu.Unlock()
	value := d.fields[field]
	if value == nil {
		return nil, nil
	}
	var elems []interface{}
	switch v := value.(type) {
	case []interface{}:
		elems = v
	case []*Document:
		elems = make([]interface{}, len(v))
		for i, child := range v {
			elems[i] = child
		}
	case []map[string]interface{}:
		elems = make([]interface{}, len(v))
		for i, child := range v {
			elems[i] = child
		}
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, validationErr(d, field, ErrRelationType, "expected array for the relation: '%s', got: %T", field, value)
		}
		elems = make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elems[i] = rv.Index(i).Interface()
		}
	}

	result := make([]interface{}, len(elems))
	for i, elem := range elems {
		switch e := elem.(type) {
		case *Document:
			result[i] = e
		case map[string]interface{}:
			result[i] = related.New(e)
		case nil:
			return nil, validationErr(d, field, ErrRelationType, "nil element at index: %d", i)
		default:
			if rel.Kind() != mapping.RelMany2Many {
				return nil, validationErr(d, field, ErrRelationType, "expected object at index: %d, got: %T", i, elem)
			}
			result[i] = e
		}
	}
	d.fields[field] = result
	stored := make([]interface{}, len(result))
	copy(stored, result)
	return stored, nil
}

// Remove removes the 'child' document from the relation 'field' value. Arrays are spliced,
// single values are cleared.
func (d *Document) Remove(field string, child *Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch v := d.fields[field].(type) {
	case *Document:
		if v == child {
			d.fields[field] = nil
		}
	case []interface{}:
		kept := make([]interface{}, 0, len(v))
		for _, elem := range v {
			if doc, ok := elem.(*Document); ok && doc == child {
				continue
			}
			kept = append(kept, elem)
		}
		d.fields[field] = kept
	}
}

// relatedDocuments gets the documents attached in the relation field without promoting
// the plain values.
func (d *Document) relatedDocuments(rel mapping.Relationship) []*Document {
	value, _ := d.Get(rel.Field())
	switch v := value.(type) {
	case *Document:
		return []*Document{v}
	case []interface{}:
		docs := make([]*Document, 0, len(v))
		for _, elem := range v {
			if doc, ok := elem.(*Document); ok {
				docs = append(docs, doc)
			}
		}
		return docs
	case []*Document:
		return v
	}
	return nil
}

// BelongsToFlag checks if the 'belongs to' relation 'field' was attached on last save.
func (d *Document) BelongsToFlag(field string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.meta.belongsTo[field]
}

// SetBelongsToFlag marks or unmarks the 'belongs to' relation 'field' as attached.
func (d *Document) SetBelongsToFlag(field string, attached bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !attached {
		delete(d.meta.belongsTo, field)
		return
	}
	if d.meta.belongsTo == nil {
		d.meta.belongsTo = make(map[string]bool)
	}
	d.meta.belongsTo[field] = true
}

// AttachedOne gets the 'has one' document attached on last save.
func (d *Document) AttachedOne(field string) *Link {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.meta.hasOne[field]
}

// SetAttachedOne sets the 'has one' document attached in the 'field'. Nil link clears the field entry.
func (d *Document) SetAttachedOne(field string, link *Link) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if link == nil {
		delete(d.meta.hasOne, field)
		return
	}
	if d.meta.hasOne == nil {
		d.meta.hasOne = make(map[string]*Link)
	}
	d.meta.hasOne[field] = link
}

// AttachedMany gets the copy of the 'has many' documents attached on last save, keyed by their primary key string.
func (d *Document) AttachedMany(field string) map[string]*Link {
	d.mu.RLock()
	defer d.mu.RUnlock()
	links := make(map[string]*Link, len(d.meta.hasMany[field]))
	for k, v := range d.meta.hasMany[field] {
		links[k] = v
	}
	return links
}

// SetAttachedMany sets the 'has many' documents attached in the 'field'.
func (d *Document) SetAttachedMany(field string, links map[string]*Link) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(links) == 0 {
		delete(d.meta.hasMany, field)
		return
	}
	if d.meta.hasMany == nil {
		d.meta.hasMany = make(map[string]map[string]*Link)
	}
	d.meta.hasMany[field] = links
}

// LinkKeys gets the copy of the many to many keys linked on last save, keyed by their string form.
func (d *Document) LinkKeys(field string) map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	keys := make(map[string]interface{}, len(d.meta.links[field]))
	for k, v := range d.meta.links[field] {
		keys[k] = v
	}
	return keys
}

// SetLinkKeys sets the many to many keys linked in the 'field'.
func (d *Document) SetLinkKeys(field string, keys map[string]interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(keys) == 0 {
		delete(d.meta.links, field)
		return
	}
	if d.meta.links == nil {
		d.meta.links = make(map[string]map[string]interface{})
	}
	d.meta.links[field] = keys
}
