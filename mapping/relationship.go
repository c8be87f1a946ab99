package mapping

// RelationshipKind is the relation field's relationship kind enum.
type RelationshipKind int

const (
	// RelUnknown unknown relationship kind.
	RelUnknown RelationshipKind = iota

	// RelBelongsTo 'belongs to' relationship kind.
	RelBelongsTo

	// RelHasOne 'has one' relationship kind.
	RelHasOne

	// RelHasMany 'has many' relationship kind.
	RelHasMany

	// RelMany2Many 'many 2 many' relationship kind.
	RelMany2Many
)

// String implements fmt.Stringer interface.
func (r RelationshipKind) String() string {
	switch r {
	case RelUnknown:
	case RelBelongsTo:
		return "BelongsTo"
	case RelHasOne:
		return "HasOne"
	case RelHasMany:
		return "HasMany"
	case RelMany2Many:
		return "Many2Many"
	}
	return "Unknown"
}

// IsToMany checks if the relationship kind relates to many documents.
func (r RelationshipKind) IsToMany() bool {
	return r == RelHasMany || r == RelMany2Many
}

// Relationship is the relation descriptor bound to a single model field.
// The implementations are: *BelongsTo, *HasOne, *HasMany and *ManyToMany.
type Relationship interface {
	// Kind returns relationship kind.
	Kind() RelationshipKind
	// Field is the relation field name within the owning model.
	Field() string
	// Model is the model that defines the relationship.
	Model() *ModelStruct
	// Related is the target model of the relationship.
	Related() *ModelStruct
	// LocalKey is the key stored within the owning model's documents.
	LocalKey() string
	// ForeignKey is the key stored within the related model's documents.
	ForeignKey() string

	isRelationship()
}

type relation struct {
	field      string
	model      *ModelStruct
	related    *ModelStruct
	localKey   string
	foreignKey string
}

// Field implements Relationship interface.
func (r *relation) Field() string {
	return r.field
}

// Model implements Relationship interface.
func (r *relation) Model() *ModelStruct {
	return r.model
}

// Related implements Relationship interface.
func (r *relation) Related() *ModelStruct {
	return r.related
}

// LocalKey implements Relationship interface.
func (r *relation) LocalKey() string {
	return r.localKey
}

// ForeignKey implements Relationship interface.
func (r *relation) ForeignKey() string {
	return r.foreignKey
}

func (r *relation) isRelationship() {}

// BelongsTo is the relationship where the owning model stores the foreign key in it's LocalKey
// field referencing the related model's ForeignKey (usually primary key).
type BelongsTo struct {
	relation
}

// Kind implements Relationship interface.
func (b *BelongsTo) Kind() RelationshipKind {
	return RelBelongsTo
}

// HasOne is the relationship where the related model stores the owning model's LocalKey value
// in it's ForeignKey field. A single related document is expected.
type HasOne struct {
	relation
}

// Kind implements Relationship interface.
func (h *HasOne) Kind() RelationshipKind {
	return RelHasOne
}

// HasMany is the relationship where the related model documents store the owning model's
// LocalKey value in their ForeignKey field.
type HasMany struct {
	relation
}

// Kind implements Relationship interface.
func (h *HasMany) Kind() RelationshipKind {
	return RelHasMany
}

// ManyToMany is the relationship mediated by the link table rows that store both
// owning model LocalKey and related model ForeignKey values.
type ManyToMany struct {
	relation
	link *LinkTable
}

// Kind implements Relationship interface.
func (m *ManyToMany) Kind() RelationshipKind {
	return RelMany2Many
}

// Link gets the link table of the relationship.
func (m *ManyToMany) Link() *LinkTable {
	return m.link
}

// LinkColumns gets the link table column names for the owning and related model keys.
func (m *ManyToMany) LinkColumns() (local, foreign string) {
	if m.link.self {
		return m.link.left.column, m.link.right.column
	}
	if m.link.left.table == m.model.table {
		return m.link.left.column, m.link.right.column
	}
	return m.link.right.column, m.link.left.column
}

// LinkID gets the link row identifier for the pair of the owning model 'local' key value
// and the related model 'foreign' key value.
func (m *ManyToMany) LinkID(local, foreign interface{}) string {
	return m.link.ID(m.model.table, local, m.related.table, foreign)
}

// LinkRow builds the link table row for provided pair of key values.
func (m *ManyToMany) LinkRow(local, foreign interface{}) map[string]interface{} {
	return m.link.Row(m.model.table, local, m.related.table, foreign)
}
