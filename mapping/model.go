package mapping

import (
	"sort"
)

// DefaultPrimaryKey is the default primary key field name.
const DefaultPrimaryKey = "id"

// ModelStruct is the model definition: its table, primary key, schema and relations.
// The model struct should not be changed after all the relationships are defined.
type ModelStruct struct {
	name       string
	table      string
	primaryKey string
	fields     map[string]*Field
	enforce    Enforce

	relations map[string]Relationship
	// relationsOrder keeps the relation fields in the definition order.
	relationsOrder []string
	reverse        []Relationship
	localKeys      map[string]Relationship
}

// Name gets the model name.
func (m *ModelStruct) Name() string {
	return m.name
}

// Table gets the model's table name.
func (m *ModelStruct) Table() string {
	return m.table
}

// PrimaryKey gets the primary key field name.
func (m *ModelStruct) PrimaryKey() string {
	return m.primaryKey
}

// Enforce gets the model's schema enforcement policy.
func (m *ModelStruct) Enforce() Enforce {
	return m.enforce
}

// Field gets the schema field definition.
func (m *ModelStruct) Field(name string) (*Field, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// Fields gets the schema fields sorted by name.
func (m *ModelStruct) Fields() []*Field {
	fields := make([]*Field, 0, len(m.fields))
	for _, f := range m.fields {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Name < fields[j].Name
	})
	return fields
}

// Schema gets the model schema as a single object field definition.
func (m *ModelStruct) Schema() *Field {
	enforce := m.enforce
	return &Field{Name: m.name, Type: TypeObject, Fields: m.fields, Enforce: &enforce}
}

// Relation gets the relationship bound to the 'field'.
func (m *ModelStruct) Relation(field string) (Relationship, bool) {
	r, ok := m.relations[field]
	return r, ok
}

// Relations gets the model relationships in their definition order.
func (m *ModelStruct) Relations() []Relationship {
	relations := make([]Relationship, len(m.relationsOrder))
	for i, field := range m.relationsOrder {
		relations[i] = m.relations[field]
	}
	return relations
}

// IsRelation checks if the 'field' is bound to a relationship.
func (m *ModelStruct) IsRelation(field string) bool {
	_, ok := m.relations[field]
	return ok
}

// IsLocalKey checks if the field stores the foreign key of some 'belongs to' relationship.
func (m *ModelStruct) IsLocalKey(field string) bool {
	_, ok := m.localKeys[field]
	return ok
}

// ReverseRelations gets the relationships defined by the other models that target this model.
func (m *ModelStruct) ReverseRelations() []Relationship {
	relations := make([]Relationship, len(m.reverse))
	copy(relations, m.reverse)
	return relations
}

// String implements fmt.Stringer interface.
func (m *ModelStruct) String() string {
	return m.name
}
