package mapping

import (
	"fmt"

	"github.com/neuronlabs/docorm/namer"
)

// LinkIDField is the primary key field name of the link table rows.
const LinkIDField = "id"

// selfColumnSuffix is appended to the second link column of the self relationships
// when both keys would have the same column name.
const selfColumnSuffix = "_2"

type linkSide struct {
	table  string
	key    string
	column string
}

// LinkTable is the many-to-many link table definition. A single link table is shared
// by both sides of the relationship. The sides are ordered by the table name.
type LinkTable struct {
	name  string
	left  linkSide
	right linkSide
	self  bool
}

func newLinkTable(name, table, key, relatedTable, relatedKey string) *LinkTable {
	l := &LinkTable{name: name}
	first := linkSide{table: table, key: key, column: namer.LinkFieldName(table, key)}
	second := linkSide{table: relatedTable, key: relatedKey, column: namer.LinkFieldName(relatedTable, relatedKey)}
	if table == relatedTable {
		l.self = true
		if second.column == first.column {
			second.column += selfColumnSuffix
		}
	} else if relatedTable < table {
		first, second = second, first
	}
	l.left, l.right = first, second
	return l
}

// Name gets the link table name.
func (l *LinkTable) Name() string {
	return l.name
}

// IsSelf checks if the link table relates the documents of a single table.
func (l *LinkTable) IsSelf() bool {
	return l.self
}

// Columns gets both link table key columns ordered by the table name.
func (l *LinkTable) Columns() []string {
	return []string{l.left.column, l.right.column}
}

// ColumnsFor gets the link columns that store the key values of the 'table'.
// Self link tables return both columns.
func (l *LinkTable) ColumnsFor(table string) []string {
	switch {
	case l.self:
		return l.Columns()
	case l.left.table == table:
		return []string{l.left.column}
	case l.right.table == table:
		return []string{l.right.column}
	}
	return nil
}

func (l *LinkTable) matches(table, key, relatedTable, relatedKey string) bool {
	if l.self {
		return table == l.left.table && relatedTable == l.right.table &&
			((key == l.left.key && relatedKey == l.right.key) || (key == l.right.key && relatedKey == l.left.key))
	}
	if table == l.left.table {
		return key == l.left.key && relatedTable == l.right.table && relatedKey == l.right.key
	}
	return table == l.right.table && key == l.right.key && relatedTable == l.left.table && relatedKey == l.left.key
}

// ID gets the deterministic link row identifier for the value 'a' of the 'tableA' and the
// value 'b' of the 'tableB'. The values are ordered by their table names, so that the result
// doesn't depend on the side that creates the link. Self links order the values by their
// string representation.
func (l *LinkTable) ID(tableA string, a interface{}, tableB string, b interface{}) string {
	first, second := l.order(tableA, a, tableB, b)
	return KeyString(first) + "_" + KeyString(second)
}

// Row builds the link table row for the pair of values.
func (l *LinkTable) Row(tableA string, a interface{}, tableB string, b interface{}) map[string]interface{} {
	first, second := l.order(tableA, a, tableB, b)
	return map[string]interface{}{
		LinkIDField:    KeyString(first) + "_" + KeyString(second),
		l.left.column:  first,
		l.right.column: second,
	}
}

func (l *LinkTable) order(tableA string, a interface{}, tableB string, b interface{}) (interface{}, interface{}) {
	if l.self || tableA == tableB {
		if KeyString(b) < KeyString(a) {
			return b, a
		}
		return a, b
	}
	if tableB < tableA {
		return b, a
	}
	return a, b
}

// KeyString gets the string representation of the key value.
func KeyString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
