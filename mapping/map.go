package mapping

import (
	"sort"
	"strings"

	"github.com/neuronlabs/docorm/config"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/log"
	"github.com/neuronlabs/docorm/namer"
)

// ReservedPrefix is the field name prefix reserved for the internal usage.
const ReservedPrefix = "$"

// ModelMap contains the models definitions mapped by their names and tables.
type ModelMap struct {
	models map[string]*ModelStruct
	tables map[string]*ModelStruct
	links  map[string]*LinkTable

	// NamerFunc is used to create table names and default foreign key names.
	NamerFunc namer.Namer
	// DefaultEnforce is the enforcement policy of the models without their own.
	DefaultEnforce Enforce
}

// NewModelMap creates new model map with the 'namerFunc' naming convention.
func NewModelMap(namerFunc namer.Namer) *ModelMap {
	if namerFunc == nil {
		namerFunc = namer.NamingSnake
	}
	return &ModelMap{
		models:         make(map[string]*ModelStruct),
		tables:         make(map[string]*ModelStruct),
		links:          make(map[string]*LinkTable),
		NamerFunc:      namerFunc,
		DefaultEnforce: DefaultEnforce,
	}
}

// ModelOption is an option used while registering the model.
type ModelOption func(m *ModelStruct)

// WithTable sets the model's table name.
func WithTable(table string) ModelOption {
	return func(m *ModelStruct) {
		m.table = table
	}
}

// WithPrimaryKey sets the model's primary key field name.
func WithPrimaryKey(pk string) ModelOption {
	return func(m *ModelStruct) {
		m.primaryKey = pk
	}
}

// WithEnforce sets the model's schema enforcement policy.
func WithEnforce(e Enforce) ModelOption {
	return func(m *ModelStruct) {
		m.enforce = e
	}
}

// RegisterModel registers new model with provided 'name' and schema 'fields'.
func (m *ModelMap) RegisterModel(name string, fields map[string]*Field, options ...ModelOption) (*ModelStruct, error) {
	if name == "" {
		return nil, errors.WrapDet(ErrInvalidField, "empty model name", "model name is required")
	}
	if _, ok := m.models[name]; ok {
		return nil, errors.Wrapf(ErrDuplicateModel, "model: '%s' already registered", name)
	}
	mStruct := &ModelStruct{
		name:       name,
		table:      namer.TableName(name, m.NamerFunc),
		primaryKey: DefaultPrimaryKey,
		fields:     make(map[string]*Field, len(fields)),
		enforce:    m.DefaultEnforce,
		relations:  make(map[string]Relationship),
		localKeys:  make(map[string]Relationship),
	}
	for _, option := range options {
		option(mStruct)
	}
	if _, ok := m.tables[mStruct.table]; ok {
		return nil, errors.Wrapf(ErrDuplicateModel, "table: '%s' is already used by other model", mStruct.table)
	}
	for fieldName, field := range fields {
		if err := checkFieldName(fieldName); err != nil {
			return nil, err
		}
		if field == nil {
			field = &Field{}
		}
		field.Name = fieldName
		if err := checkNested(field); err != nil {
			return nil, err
		}
		mStruct.fields[fieldName] = field
	}
	m.models[name] = mStruct
	m.tables[mStruct.table] = mStruct
	log.Debug2f("Registered model: '%s' with table: '%s'", name, mStruct.table)
	return mStruct, nil
}

// Get gets the model by its name.
func (m *ModelMap) Get(name string) (*ModelStruct, bool) {
	mStruct, ok := m.models[name]
	return mStruct, ok
}

// GetByTable gets the model by its table name.
func (m *ModelMap) GetByTable(table string) (*ModelStruct, bool) {
	mStruct, ok := m.tables[table]
	return mStruct, ok
}

// Models gets all registered models sorted by their names.
func (m *ModelMap) Models() []*ModelStruct {
	models := make([]*ModelStruct, 0, len(m.models))
	for _, model := range m.models {
		models = append(models, model)
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].name < models[j].name
	})
	return models
}

// Links gets all link tables sorted by their names.
func (m *ModelMap) Links() []*LinkTable {
	links := make([]*LinkTable, 0, len(m.links))
	for _, link := range m.links {
		links = append(links, link)
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].name < links[j].name
	})
	return links
}

// BelongsTo defines the relationship where the 'model' documents store the 'related' model
// 'foreignKey' value within their 'localKey' field.
// Empty 'localKey' defaults to '<field>_<related primary key>', empty 'foreignKey' to the related primary key.
func (m *ModelMap) BelongsTo(model, field, related, localKey, foreignKey string) (*BelongsTo, error) {
	rel, err := m.newRelation(model, field, related)
	if err != nil {
		return nil, err
	}
	if foreignKey == "" {
		foreignKey = rel.related.primaryKey
	}
	if localKey == "" {
		localKey = m.NamerFunc(field + "_" + foreignKey)
	}
	rel.localKey, rel.foreignKey = localKey, foreignKey
	if rel.model.IsRelation(localKey) {
		return nil, errors.Wrapf(ErrInvalidRelationship, "model: '%s' local key: '%s' is a relation field", model, localKey)
	}
	b := &BelongsTo{relation: *rel}
	if err = m.bind(b); err != nil {
		return nil, err
	}
	rel.model.localKeys[localKey] = b
	return b, nil
}

// HasOne defines the relationship where a single 'related' model document stores the 'model'
// 'localKey' value within its 'foreignKey' field.
// Empty 'localKey' defaults to the model's primary key, empty 'foreignKey' to '<model>_<local key>'.
func (m *ModelMap) HasOne(model, field, related, localKey, foreignKey string) (*HasOne, error) {
	rel, err := m.newRelation(model, field, related)
	if err != nil {
		return nil, err
	}
	m.ownedKeys(rel, localKey, foreignKey)
	h := &HasOne{relation: *rel}
	if err = m.bind(h); err != nil {
		return nil, err
	}
	return h, nil
}

// HasMany defines the relationship where the 'related' model documents store the 'model'
// 'localKey' value within their 'foreignKey' field.
// Empty 'localKey' defaults to the model's primary key, empty 'foreignKey' to '<model>_<local key>'.
func (m *ModelMap) HasMany(model, field, related, localKey, foreignKey string) (*HasMany, error) {
	rel, err := m.newRelation(model, field, related)
	if err != nil {
		return nil, err
	}
	m.ownedKeys(rel, localKey, foreignKey)
	h := &HasMany{relation: *rel}
	if err = m.bind(h); err != nil {
		return nil, err
	}
	return h, nil
}

// ManyToMany defines the relationship mediated by the link table rows. The link table is shared
// with the relationship defined on the other side. Empty keys default to the primary keys,
// empty 'linkTable' to both tables names sorted and joined with '_'.
func (m *ModelMap) ManyToMany(model, field, related, localKey, foreignKey, linkTable string) (*ManyToMany, error) {
	rel, err := m.newRelation(model, field, related)
	if err != nil {
		return nil, err
	}
	if localKey == "" {
		localKey = rel.model.primaryKey
	}
	if foreignKey == "" {
		foreignKey = rel.related.primaryKey
	}
	rel.localKey, rel.foreignKey = localKey, foreignKey
	if linkTable == "" {
		linkTable = namer.LinkTableName(rel.model.table, rel.related.table)
	}
	if _, ok := m.tables[linkTable]; ok {
		return nil, errors.Wrapf(ErrInvalidRelationship, "link table: '%s' is a model table", linkTable)
	}
	link, ok := m.links[linkTable]
	if !ok {
		link = newLinkTable(linkTable, rel.model.table, localKey, rel.related.table, foreignKey)
	} else if !link.matches(rel.model.table, localKey, rel.related.table, foreignKey) {
		return nil, errors.Wrapf(ErrInvalidRelationship, "link table: '%s' is already defined with different keys", linkTable)
	}
	mtm := &ManyToMany{relation: *rel, link: link}
	if err = m.bind(mtm); err != nil {
		return nil, err
	}
	m.links[linkTable] = link
	return mtm, nil
}

// RegisterConfig registers the models defined in the config. The models are registered
// first, then their relationships.
func (m *ModelMap) RegisterConfig(models map[string]*config.ModelConfig) error {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := models[name]
		var options []ModelOption
		if cfg.Table != "" {
			options = append(options, WithTable(cfg.Table))
		}
		if cfg.PrimaryKey != "" {
			options = append(options, WithPrimaryKey(cfg.PrimaryKey))
		}
		if cfg.Enforce != nil {
			e, err := ParseEnforce(cfg.Enforce.Missing, cfg.Enforce.Extra, cfg.Enforce.Type)
			if err != nil {
				return err
			}
			options = append(options, WithEnforce(e))
		}
		fields, err := fieldsFromConfig(cfg.Fields)
		if err != nil {
			return err
		}
		if _, err = m.RegisterModel(name, fields, options...); err != nil {
			return err
		}
	}

	for _, name := range names {
		cfg := models[name]
		fieldNames := make([]string, 0, len(cfg.Relations))
		for field := range cfg.Relations {
			fieldNames = append(fieldNames, field)
		}
		sort.Strings(fieldNames)
		for _, field := range fieldNames {
			rel := cfg.Relations[field]
			var err error
			switch strings.ToLower(rel.Kind) {
			case "belongs_to":
				_, err = m.BelongsTo(name, field, rel.Model, rel.LocalKey, rel.ForeignKey)
			case "has_one":
				_, err = m.HasOne(name, field, rel.Model, rel.LocalKey, rel.ForeignKey)
			case "has_many":
				_, err = m.HasMany(name, field, rel.Model, rel.LocalKey, rel.ForeignKey)
			case "many_to_many":
				_, err = m.ManyToMany(name, field, rel.Model, rel.LocalKey, rel.ForeignKey, rel.LinkTable)
			default:
				err = errors.Wrapf(ErrInvalidRelationship, "model: '%s' field: '%s' unknown relation kind: '%s'", name, field, rel.Kind)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *ModelMap) newRelation(model, field, related string) (*relation, error) {
	mStruct, ok := m.models[model]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownModel, "model: '%s'", model)
	}
	relStruct, ok := m.models[related]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownModel, "related model: '%s' of the relation: '%s.%s'", related, model, field)
	}
	if err := checkFieldName(field); err != nil {
		return nil, err
	}
	if _, ok = mStruct.relations[field]; ok {
		return nil, errors.Wrapf(ErrDuplicateRelation, "model: '%s' field: '%s' is already bound to a relation", model, field)
	}
	return &relation{field: field, model: mStruct, related: relStruct}, nil
}

func (m *ModelMap) ownedKeys(rel *relation, localKey, foreignKey string) {
	if localKey == "" {
		localKey = rel.model.primaryKey
	}
	if foreignKey == "" {
		foreignKey = m.NamerFunc(rel.model.name + "_" + localKey)
	}
	rel.localKey, rel.foreignKey = localKey, foreignKey
}

func (m *ModelMap) bind(r Relationship) error {
	model := r.Model()
	if _, ok := model.relations[r.Field()]; ok {
		return errors.Wrapf(ErrDuplicateRelation, "model: '%s' field: '%s' is already bound to a relation", model.name, r.Field())
	}
	if model.IsLocalKey(r.Field()) {
		return errors.Wrapf(ErrInvalidRelationship, "model: '%s' field: '%s' is a local key of other relation", model.name, r.Field())
	}
	model.relations[r.Field()] = r
	model.relationsOrder = append(model.relationsOrder, r.Field())
	r.Related().reverse = append(r.Related().reverse, r)
	log.Debug2f("Model: '%s' relation: '%s' %s '%s' [%s -> %s]", model.name, r.Field(), r.Kind(), r.Related().name, r.LocalKey(), r.ForeignKey())
	return nil
}

func checkFieldName(name string) error {
	if name == "" {
		return errors.WrapDet(ErrInvalidField, "empty field name", "field name is required")
	}
	if strings.HasPrefix(name, ReservedPrefix) {
		return errors.Wrapf(ErrReservedName, "field: '%s' uses reserved prefix: '%s'", name, ReservedPrefix)
	}
	return nil
}

func checkNested(field *Field) error {
	for name, nested := range field.Fields {
		if err := checkFieldName(name); err != nil {
			return err
		}
		if nested == nil {
			nested = &Field{}
			field.Fields[name] = nested
		}
		nested.Name = name
		if err := checkNested(nested); err != nil {
			return err
		}
	}
	if field.Elem != nil {
		return checkNested(field.Elem)
	}
	return nil
}

func fieldsFromConfig(fields map[string]*config.Field) (map[string]*Field, error) {
	if fields == nil {
		return nil, nil
	}
	result := make(map[string]*Field, len(fields))
	for name, cfg := range fields {
		f, err := fieldFromConfig(name, cfg)
		if err != nil {
			return nil, err
		}
		result[name] = f
	}
	return result, nil
}

func fieldFromConfig(name string, cfg *config.Field) (*Field, error) {
	if cfg == nil {
		return &Field{Name: name}, nil
	}
	tp, err := ParseFieldType(cfg.Type)
	if err != nil {
		return nil, err
	}
	f := &Field{
		Name:     name,
		Type:     tp,
		Required: cfg.Required,
		Virtual:  cfg.Virtual,
		Validate: cfg.Validate,
		Default:  cfg.Default,
	}
	if f.Fields, err = fieldsFromConfig(cfg.Fields); err != nil {
		return nil, err
	}
	if cfg.Elem != nil {
		if f.Elem, err = fieldFromConfig("", cfg.Elem); err != nil {
			return nil, err
		}
	}
	return f, nil
}
