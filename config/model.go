package config

// ModelConfig defines single model configurations.
type ModelConfig struct {
	// Table is the model's table name. If empty the plural form of the model name is used.
	Table string `mapstructure:"table"`

	// PrimaryKey is the name of the primary key field. Defaults to 'id'.
	PrimaryKey string `mapstructure:"primary_key"`

	// Enforce overwrites the default schema enforcement policy.
	Enforce *Enforce `mapstructure:"enforce"`

	// Fields contains the model fields configuration.
	Fields map[string]*Field `mapstructure:"fields" validate:"dive"`

	// Relations contains the model relations keyed by the relation field name.
	Relations map[string]*Relation `mapstructure:"relations" validate:"dive"`
}

// Field is the model's field configuration.
type Field struct {
	Type     string            `mapstructure:"type" validate:"isdefault|oneof=any string number boolean date point object array binary"`
	Required bool              `mapstructure:"required"`
	Virtual  bool              `mapstructure:"virtual"`
	Validate string            `mapstructure:"validate"`
	Default  interface{}       `mapstructure:"default"`
	Fields   map[string]*Field `mapstructure:"fields"`
	Elem     *Field            `mapstructure:"elem"`
}

// Relation is the relation field configuration.
type Relation struct {
	// Kind is the relation kind.
	Kind string `mapstructure:"kind" validate:"oneof=belongs_to has_one has_many many_to_many"`
	// Model is the related model name.
	Model string `mapstructure:"model" validate:"required"`
	// LocalKey is the key stored in the model's table.
	LocalKey string `mapstructure:"local_key"`
	// ForeignKey is the key stored in the related model's table.
	ForeignKey string `mapstructure:"foreign_key"`
	// LinkTable is the many-to-many link table name.
	LinkTable string `mapstructure:"link_table"`
}
