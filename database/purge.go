package database

import (
	"context"

	"github.com/neuronlabs/docorm/document"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/mapping"
	"github.com/neuronlabs/docorm/repository"
)

// Purge removes all the references to the document stored in the database, including the rows not
// loaded in memory, and deletes the document. The foreign keys pointing at the document are removed from
// all the referencing rows and all its link rows are deleted. The required secondary indexes are created by Ready.
func (db *Database) Purge(ctx context.Context, d *document.Document) error {
	if err := db.checkModel(d); err != nil {
		return err
	}
	m := d.Model()
	if _, ok := d.PrimaryKey(); !ok {
		if d.IsSaved() {
			return errors.Wrapf(ErrNoPrimaryKey, "purging saved document: %s", d)
		}
		logger.Debug2f("purging not saved document: %s", d)
		return db.Delete(ctx, d)
	}

	var jobs []job
	// planned keeps the table indexes already scheduled.
	planned := map[string]struct{}{}
	once := func(table, index string, key interface{}) bool {
		id := table + "/" + index
		if _, ok := planned[id]; ok || key == nil {
			return false
		}
		planned[id] = struct{}{}
		return true
	}
	strip := func(table, index string, key interface{}) {
		if !once(table, index, key) {
			return
		}
		jobs = append(jobs, func(ctx context.Context) error {
			result, err := db.repo.ReplaceByIndex(ctx, table, index, key, repository.Without(index))
			if err != nil {
				return err
			}
			return result.Err(table, "replace")
		})
	}
	unlink := func(link *mapping.LinkTable, column string, key interface{}) {
		if !once(link.Name(), column, key) {
			return
		}
		jobs = append(jobs, func(ctx context.Context) error {
			result, err := db.repo.DeleteByIndex(ctx, link.Name(), column, key)
			if err != nil {
				return err
			}
			return result.Err(link.Name(), "delete")
		})
	}

	for _, rel := range m.Relations() {
		key, _ := d.Get(rel.LocalKey())
		switch rel := rel.(type) {
		case *mapping.HasOne, *mapping.HasMany:
			strip(rel.Related().Table(), rel.ForeignKey(), key)
		case *mapping.ManyToMany:
			for _, column := range rel.Link().ColumnsFor(m.Table()) {
				unlink(rel.Link(), column, key)
			}
		}
	}
	for _, rel := range m.ReverseRelations() {
		key, _ := d.Get(rel.ForeignKey())
		switch rel := rel.(type) {
		case *mapping.BelongsTo:
			strip(rel.Model().Table(), rel.LocalKey(), key)
		case *mapping.ManyToMany:
			for _, column := range rel.Link().ColumnsFor(m.Table()) {
				unlink(rel.Link(), column, key)
			}
		}
	}
	logger.Debug2f("purging: %s with: %d bulk operations", d, len(jobs))
	if err := db.fanOut(ctx, jobs); err != nil {
		return err
	}
	return db.Delete(ctx, d)
}
