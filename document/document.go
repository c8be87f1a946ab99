package document

import (
	"strings"
	"sync"

	"github.com/neuronlabs/docorm/mapping"
)

// Document is the live document of some model. It contains the user facing field values
// and the private metadata used by the save and delete operations.
// All the methods are safe for concurrent use. The lock is never held while calling
// other documents methods.
type Document struct {
	model *Model

	mu        sync.RWMutex
	fields    map[string]interface{}
	meta      meta
	listeners []Listener
}

type meta struct {
	saved    bool
	oldValue map[string]interface{}

	// belongsTo marks the 'belongs to' fields that were attached on last save.
	belongsTo map[string]bool
	hasOne    map[string]*Link
	hasMany   map[string]map[string]*Link
	// links contains the linked many to many keys per field.
	links   map[string]map[string]interface{}
	parents backRefs
}

// Link is the attached relation document along with the key value copied into it.
type Link struct {
	Document *Document
	Key      interface{}
}

// Model gets the document's model.
func (d *Document) Model() *Model {
	return d.model
}

// Get gets the field value.
func (d *Document) Get(field string) (interface{}, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.fields[field]
	return v, ok
}

// Set sets the field value.
func (d *Document) Set(field string, value interface{}) {
	d.mu.Lock()
	d.fields[field] = value
	d.mu.Unlock()
}

// Unset removes the field from the document.
func (d *Document) Unset(field string) {
	d.mu.Lock()
	delete(d.fields, field)
	d.mu.Unlock()
}

// Fields gets the shallow copy of the document fields.
func (d *Document) Fields() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	fields := make(map[string]interface{}, len(d.fields))
	for k, v := range d.fields {
		fields[k] = v
	}
	return fields
}

// PrimaryKey gets the document primary key value. The 'ok' is false if the key is not set.
func (d *Document) PrimaryKey() (interface{}, bool) {
	v, ok := d.Get(d.model.PrimaryKey())
	return v, ok && v != nil
}

// IsSaved checks if the document was written and not deleted since.
func (d *Document) IsSaved() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.meta.saved
}

// OldValue gets the last known persisted value of the document.
func (d *Document) OldValue() map[string]interface{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.meta.oldValue
}

// Merge sets all provided 'values' within the document.
func (d *Document) Merge(values map[string]interface{}) *Document {
	d.mu.Lock()
	for k, v := range values {
		d.fields[k] = v
	}
	d.mu.Unlock()
	return d
}

// SetSaved marks the document as saved. If 'cascade' is true, all the documents
// attached through the relation fields are marked as saved too.
func (d *Document) SetSaved(cascade bool) {
	d.setSaved(cascade, map[*Document]struct{}{})
}

func (d *Document) setSaved(cascade bool, visited map[*Document]struct{}) {
	visited[d] = struct{}{}
	d.mu.Lock()
	d.meta.saved = true
	d.mu.Unlock()
	if !cascade {
		return
	}
	for _, rel := range d.model.Relations() {
		for _, child := range d.relatedDocuments(rel) {
			if _, ok := visited[child]; !ok {
				child.setSaved(true, visited)
			}
		}
	}
}

// MarkSaved merges the 'newValue' returned by the database into the document, snapshots
// the 'oldValue' and marks the document as saved.
func (d *Document) MarkSaved(newValue, oldValue map[string]interface{}) {
	d.mu.Lock()
	for k, v := range newValue {
		d.fields[k] = v
	}
	d.meta.oldValue = oldValue
	d.meta.saved = true
	d.mu.Unlock()
}

// MarkUnsaved marks the document as not saved.
func (d *Document) MarkUnsaved() {
	d.mu.Lock()
	d.meta.saved = false
	d.mu.Unlock()
}

// String implements fmt.Stringer interface.
func (d *Document) String() string {
	sb := strings.Builder{}
	sb.WriteString(d.model.Name())
	sb.WriteRune('[')
	if pk, ok := d.PrimaryKey(); ok {
		sb.WriteString(mapping.KeyString(pk))
	} else {
		sb.WriteString("unsaved")
	}
	sb.WriteRune(']')
	return sb.String()
}
