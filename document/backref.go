package document

import (
	"sort"

	"github.com/neuronlabs/docorm/mapping"
)

// BackRef is the record of the parent document pointing at the document through its relation field.
type BackRef struct {
	// Document is the parent document.
	Document *Document
	// Field is the parent's relation field name.
	Field string
	// ForeignKey is the key value that binds both documents.
	ForeignKey interface{}
}

// ParentRef is the back reference along with the relation kind and the parent table.
type ParentRef struct {
	BackRef
	Kind  mapping.RelationshipKind
	Table string
}

// backRefs is the back reference index keyed by the relationship kind and the parent table name.
type backRefs map[mapping.RelationshipKind]map[string][]BackRef

// AddParent records the parent document that points at the document through its relation field.
// The 'kind' is the relationship kind as defined on the parent. A parent is recorded at most once per field.
func (d *Document) AddParent(kind mapping.RelationshipKind, ref BackRef) {
	table := ref.Document.model.Table()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.meta.parents == nil {
		d.meta.parents = make(backRefs)
	}
	tables, ok := d.meta.parents[kind]
	if !ok {
		tables = make(map[string][]BackRef)
		d.meta.parents[kind] = tables
	}
	refs := tables[table]
	for i := range refs {
		if refs[i].Document == ref.Document && refs[i].Field == ref.Field {
			refs[i].ForeignKey = ref.ForeignKey
			return
		}
	}
	tables[table] = append(refs, ref)
	logger.Debug3f("back reference added: %s.%s (%s)", table, ref.Field, kind)
}

// RemoveParent removes the back reference of the 'parent' document's relation 'field'.
// Returns true if the reference existed.
func (d *Document) RemoveParent(kind mapping.RelationshipKind, parent *Document, field string) bool {
	table := parent.model.Table()

	d.mu.Lock()
	defer d.mu.Unlock()
	refs := d.meta.parents[kind][table]
	for i := range refs {
		if refs[i].Document == parent && refs[i].Field == field {
			refs = append(refs[:i:i], refs[i+1:]...)
			if len(refs) == 0 {
				delete(d.meta.parents[kind], table)
				if len(d.meta.parents[kind]) == 0 {
					delete(d.meta.parents, kind)
				}
			} else {
				d.meta.parents[kind][table] = refs
			}
			return true
		}
	}
	return false
}

// ParentsOf gets the copy of the back references of the relationship 'kind' from the parents of the 'table'.
func (d *Document) ParentsOf(kind mapping.RelationshipKind, table string) []BackRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	refs := d.meta.parents[kind][table]
	result := make([]BackRef, len(refs))
	copy(result, refs)
	return result
}

// Parents gets all the back references ordered by the kind and the table name.
func (d *Document) Parents() []ParentRef {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []ParentRef
	for kind, tables := range d.meta.parents {
		for table, refs := range tables {
			for _, ref := range refs {
				result = append(result, ParentRef{BackRef: ref, Kind: kind, Table: table})
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Kind != result[j].Kind {
			return result[i].Kind < result[j].Kind
		}
		return result[i].Table < result[j].Table
	})
	return result
}

// ClearParents removes all the back references of the document.
func (d *Document) ClearParents() {
	d.mu.Lock()
	d.meta.parents = nil
	d.mu.Unlock()
}
