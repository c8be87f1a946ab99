package database

import (
	"context"

	"github.com/neuronlabs/docorm/mapping"
)

// Ready creates the tables of all the models and link tables, along with the secondary indexes
// on the relation keys, and waits until the indexes are ready.
func (db *Database) Ready(ctx context.Context) error {
	if err := db.checkClosed(); err != nil {
		return err
	}
	ctx, cancelFunc := withTimeout(ctx, db.options.ReadyTimeout)
	defer cancelFunc()

	modelMap := db.registry.ModelMap()
	for _, m := range modelMap.Models() {
		if err := db.repo.TableCreate(ctx, m.Table(), m.PrimaryKey()); err != nil {
			return err
		}
	}
	for _, link := range modelMap.Links() {
		if err := db.repo.TableCreate(ctx, link.Name(), mapping.LinkIDField); err != nil {
			return err
		}
	}

	indexes := map[string][]string{}
	addIndex := func(table, field string) {
		for _, index := range indexes[table] {
			if index == field {
				return
			}
		}
		indexes[table] = append(indexes[table], field)
	}
	var tables []string
	for _, m := range modelMap.Models() {
		tables = append(tables, m.Table())
		for _, rel := range m.Relations() {
			switch rel := rel.(type) {
			case *mapping.BelongsTo:
				addIndex(m.Table(), rel.LocalKey())
			case *mapping.HasOne, *mapping.HasMany:
				addIndex(rel.Related().Table(), rel.ForeignKey())
			}
		}
	}
	for _, link := range modelMap.Links() {
		tables = append(tables, link.Name())
		for _, column := range link.Columns() {
			addIndex(link.Name(), column)
		}
	}

	for _, table := range tables {
		for _, index := range indexes[table] {
			if err := db.repo.IndexCreate(ctx, table, index); err != nil {
				return err
			}
		}
	}
	for _, table := range tables {
		if len(indexes[table]) == 0 {
			continue
		}
		if err := db.repo.IndexWait(ctx, table, indexes[table]...); err != nil {
			return err
		}
	}
	logger.Debugf("database ready with: %d tables", len(tables))
	return nil
}
