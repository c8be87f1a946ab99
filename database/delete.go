package database

import (
	"context"
	"sync"

	"github.com/neuronlabs/docorm/document"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/mapping"
)

// Delete deletes the document without cascading. The attached 'has one' and 'has many' documents are
// detached: their foreign keys are cleared and saved. Deleting not saved document doesn't write anything.
func (db *Database) Delete(ctx context.Context, d *document.Document) error {
	return db.delete(ctx, d, nil, false)
}

// DeleteAll deletes the document along with its related documents. With no 'cascade' provided all the
// relations are deleted, but each related table at most once per call. Otherwise only the relations
// named in the cascade tree are deleted. The related documents out of the scope are detached.
func (db *Database) DeleteAll(ctx context.Context, d *document.Document, cascade ...Cascade) error {
	targets, all := scope(cascade)
	return db.delete(ctx, d, targets, all)
}

func (db *Database) delete(ctx context.Context, d *document.Document, targets Cascade, all bool) error {
	if err := db.checkModel(d); err != nil {
		return err
	}
	c := &deleteCall{db: db, visited: make(map[*document.Document]struct{})}
	return c.delete(ctx, d, targets, all, tableSet{})
}

// deleteCall is the state of a single top level delete call.
type deleteCall struct {
	db *Database

	mu      sync.Mutex
	visited map[*document.Document]struct{}
}

// visit marks the document as visited. Returns false if it was already visited.
func (c *deleteCall) visit(d *document.Document) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.visited[d]; ok {
		return false
	}
	c.visited[d] = struct{}{}
	return true
}

func (c *deleteCall) isVisited(d *document.Document) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.visited[d]
	return ok
}

func (c *deleteCall) delete(ctx context.Context, d *document.Document, targets Cascade, all bool, deleted tableSet) error {
	if !c.visit(d) {
		return nil
	}
	m := d.Model()
	deleted = deleted.with(m.Table())

	relations := map[string]Cascade{}
	var tables []string
	for _, rel := range m.Relations() {
		if sub, ok := document.InScope(rel, targets, all, deleted); ok {
			relations[rel.Field()] = sub
			tables = append(tables, rel.Related().Table())
		}
	}
	// The related tables in scope are marked for the nested deletes.
	deleted = deleted.with(tables...)
	logger.Debug2f("deleting: %s with: %d relations in scope", d, len(relations))

	if err := m.RunHooks(ctx, document.PreDelete, d); err != nil {
		return err
	}

	var (
		jobs  []job
		after []func()
	)
	deleteJob := func(child *document.Document, sub Cascade) job {
		return func(ctx context.Context) error {
			return c.delete(ctx, child, sub, all, deleted)
		}
	}
	for _, rel := range m.Relations() {
		value, present := d.Get(rel.Field())
		if !present || value == nil {
			continue
		}
		sub, cascade := relations[rel.Field()]
		field := rel.Field()

		switch rel := rel.(type) {
		case *mapping.BelongsTo:
			parent, err := d.One(field)
			if err != nil {
				return err
			}
			parent.RemoveParent(mapping.RelBelongsTo, d, field)
			if cascade {
				jobs = append(jobs, deleteJob(parent, sub))
			}
		case *mapping.HasOne:
			child, err := d.One(field)
			if err != nil {
				return err
			}
			if cascade {
				jobs = append(jobs, deleteJob(child, sub))
			} else {
				jobs = append(jobs, c.detachJob(d, rel, child))
			}
			after = append(after, func() {
				d.SetAttachedOne(field, nil)
			})
		case *mapping.HasMany:
			elems, err := d.Many(field)
			if err != nil {
				return err
			}
			for _, elem := range elems {
				child := elem.(*document.Document)
				if cascade {
					jobs = append(jobs, deleteJob(child, sub))
				} else {
					jobs = append(jobs, c.detachJob(d, rel, child))
				}
			}
			after = append(after, func() {
				d.SetAttachedMany(field, nil)
			})
		case *mapping.ManyToMany:
			elems, err := d.Many(field)
			if err != nil {
				return err
			}
			for _, elem := range elems {
				child, ok := elem.(*document.Document)
				if !ok {
					continue
				}
				child.RemoveParent(mapping.RelMany2Many, d, field)
				if cascade {
					jobs = append(jobs, deleteJob(child, sub))
				}
			}
			if j := c.unlinkJob(d, rel); j != nil {
				jobs = append(jobs, j)
			}
			after = append(after, func() {
				d.SetLinkKeys(field, nil)
			})
		}
	}
	if err := c.db.fanOut(ctx, jobs); err != nil {
		return err
	}
	for _, fn := range after {
		fn()
	}

	if err := c.detachParents(ctx, d); err != nil {
		return err
	}

	if d.IsSaved() {
		pk, ok := d.PrimaryKey()
		if !ok {
			return errors.Wrapf(ErrNoPrimaryKey, "deleting saved document: %s", d)
		}
		result, err := c.db.repo.Delete(ctx, m.Table(), pk)
		if err != nil {
			logger.Debugf("delete of: %s failed: %v", d, err)
			return err
		}
		if err = result.Err(m.Table(), "delete"); err != nil {
			return err
		}
		d.MarkUnsaved()
		logger.Debugf("deleted: %s", d)
		d.Emit(document.EventDeleted, nil)
	}
	return m.RunHooks(ctx, document.PostDelete, d)
}

// detachJob clears the foreign key of the 'child' that points at the document 'd' and saves the child.
func (c *deleteCall) detachJob(d *document.Document, rel mapping.Relationship, child *document.Document) job {
	return func(ctx context.Context) error {
		child.RemoveParent(rel.Kind(), d, rel.Field())
		if c.isVisited(child) {
			return nil
		}
		key, _ := d.Get(rel.LocalKey())
		fk, ok := child.Get(rel.ForeignKey())
		if !ok || mapping.KeyString(fk) != mapping.KeyString(key) {
			return nil
		}
		child.Unset(rel.ForeignKey())
		if !child.IsSaved() {
			return nil
		}
		logger.Debug3f("detaching: %s from deleted: %s.%s", child, d, rel.Field())
		return c.db.Save(ctx, child)
	}
}

// unlinkJob deletes all the link rows of the document's 'many to many' relation with a single call.
func (c *deleteCall) unlinkJob(d *document.Document, rel *mapping.ManyToMany) job {
	local, _ := d.Get(rel.LocalKey())
	keys := d.LinkKeys(rel.Field())
	if local == nil || len(keys) == 0 {
		return nil
	}
	ids := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, rel.LinkID(local, key))
	}
	table := rel.Link().Name()
	return func(ctx context.Context) error {
		result, err := c.db.repo.DeleteAll(ctx, table, ids...)
		if err != nil {
			return err
		}
		return result.Err(table, "delete")
	}
}

// detachParents removes the document from all the parents that point at it. The parents that belong to
// the document have their local key cleared and are saved.
func (c *deleteCall) detachParents(ctx context.Context, d *document.Document) error {
	var jobs []job
	for _, ref := range d.Parents() {
		parent := ref.Document
		rel, ok := parent.Model().Relation(ref.Field)
		if !ok {
			continue
		}
		field := ref.Field
		parent.Remove(field, d)
		logger.Debug3f("removing: %s from: %s.%s", d, parent, field)

		switch ref.Kind {
		case mapping.RelBelongsTo:
			key, _ := d.Get(rel.ForeignKey())
			if fk, ok := parent.Get(rel.LocalKey()); ok && mapping.KeyString(fk) == mapping.KeyString(key) {
				parent.Unset(rel.LocalKey())
			}
			parent.SetBelongsToFlag(field, false)
			if c.isVisited(parent) || !parent.IsSaved() {
				continue
			}
			jobs = append(jobs, func(ctx context.Context) error {
				return c.db.Save(ctx, parent)
			})
		case mapping.RelHasOne:
			if link := parent.AttachedOne(field); link != nil && link.Document == d {
				parent.SetAttachedOne(field, nil)
			}
		case mapping.RelHasMany:
			attached := parent.AttachedMany(field)
			for k, link := range attached {
				if link.Document == d {
					delete(attached, k)
				}
			}
			parent.SetAttachedMany(field, attached)
		case mapping.RelMany2Many:
			mtm := rel.(*mapping.ManyToMany)
			key, _ := d.Get(mtm.ForeignKey())
			keys := parent.LinkKeys(field)
			if _, linked := keys[mapping.KeyString(key)]; !linked {
				continue
			}
			delete(keys, mapping.KeyString(key))
			parent.SetLinkKeys(field, keys)
			local, _ := parent.Get(mtm.LocalKey())
			table, id := mtm.Link().Name(), mtm.LinkID(local, key)
			jobs = append(jobs, func(ctx context.Context) error {
				result, err := c.db.repo.Delete(ctx, table, id)
				if err != nil {
					return err
				}
				return result.Err(table, "delete")
			})
		}
	}
	d.ClearParents()
	return c.db.fanOut(ctx, jobs)
}
