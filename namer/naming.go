package namer

import (
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/jinzhu/inflection"

	"github.com/neuronlabs/docorm/errors"
)

// ErrUnknownConvention is the error returned when the naming convention is not known.
var ErrUnknownConvention = errors.New("unknown naming convention")

// Namer is the function that change the name with some prepared formatting.
type Namer func(string) string

// NamingSnake is a Namer function that converts the 'raw' into the 'snake_case_model'.
func NamingSnake(raw string) string {
	return strcase.ToSnake(raw)
}

// NamingKebab is a Namer function that converts the 'raw' into the 'kebab-case-model'.
func NamingKebab(raw string) string {
	return strcase.ToKebab(raw)
}

// NamingCamel is a Namer function that converts the 'raw' into the 'CamelCaseModel'.
func NamingCamel(raw string) string {
	return strcase.ToCamel(raw)
}

// NamingLowerCamel is a Namer function that converts the 'raw' into the 'camelCaseModel'.
func NamingLowerCamel(raw string) string {
	return strcase.ToLowerCamel(raw)
}

// Convention gets the Namer for provided naming 'convention' name.
func Convention(convention string) (Namer, error) {
	switch strings.ToLower(convention) {
	case "", "snake":
		return NamingSnake, nil
	case "kebab":
		return NamingKebab, nil
	case "camel":
		return NamingCamel, nil
	case "lowercamel":
		return NamingLowerCamel, nil
	default:
		return nil, errors.Wrapf(ErrUnknownConvention, "'%s'", convention)
	}
}

// TableName gets the plural table name for the model 'name' i.e. 'BlogPost' -> 'blog_posts'.
func TableName(name string, n Namer) string {
	if n == nil {
		n = NamingSnake
	}
	return n(inflection.Plural(name))
}

// LinkTableName gets the many-to-many link table name for provided tables.
// The name doesn't depend on the order of the tables.
func LinkTableName(first, second string) string {
	tables := []string{first, second}
	sort.Strings(tables)
	return tables[0] + "_" + tables[1]
}

// LinkFieldName is the link row column name that stores the 'key' value of the 'table'.
func LinkFieldName(table, key string) string {
	return table + "_" + key
}
