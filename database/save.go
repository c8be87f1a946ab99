package database

import (
	"context"
	"sync"

	"github.com/neuronlabs/docorm/document"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/mapping"
	"github.com/neuronlabs/docorm/repository"
)

// Save saves the document without cascading over its relations. The relation fields are not
// reconciled either, thus clearing a 'has one' or 'has many' field detaches the related documents
// only when saved with SaveAll.
func (db *Database) Save(ctx context.Context, d *document.Document) error {
	return db.save(ctx, d, nil, false)
}

// SaveAll saves the document along with its related documents. With no 'cascade' provided all the
// relations are saved, but each related table at most once per call. Otherwise only the relations
// named in the cascade tree are saved.
func (db *Database) SaveAll(ctx context.Context, d *document.Document, cascade ...Cascade) error {
	targets, all := scope(cascade)
	return db.save(ctx, d, targets, all)
}

// SaveBatch validates all the documents and saves them without cascading. If any document is not valid
// none of them is written.
func (db *Database) SaveBatch(ctx context.Context, docs ...*document.Document) error {
	c := newSaveCall(db)
	for i, d := range docs {
		if err := db.checkModel(d); err != nil {
			return err
		}
		document.ApplyDefaults(d)
		document.GenerateVirtual(d)
		if err := document.Validate(ctx, d, nil, false); err != nil {
			logger.Debug2f("batch document[%d] validation failed: %v", i, err)
			return err
		}
		c.validated[d] = struct{}{}
	}
	jobs := make([]job, len(docs))
	for i, d := range docs {
		d := d
		jobs[i] = func(ctx context.Context) error {
			return c.save(ctx, d, nil, false, tableSet{}, nil)
		}
	}
	return db.fanOut(ctx, jobs)
}

func (db *Database) save(ctx context.Context, d *document.Document, targets Cascade, all bool) error {
	if err := db.checkModel(d); err != nil {
		return err
	}
	return newSaveCall(db).save(ctx, d, targets, all, tableSet{}, nil)
}

// saveCall is the state of a single top level save call shared by all its cascade branches.
type saveCall struct {
	db *Database

	mu        sync.Mutex
	visits    map[*document.Document]*visit
	validated map[*document.Document]struct{}
}

func newSaveCall(db *Database) *saveCall {
	return &saveCall{
		db:        db,
		visits:    make(map[*document.Document]*visit),
		validated: make(map[*document.Document]struct{}),
	}
}

// visit is the document visited within the save call. The 'written' channel is closed when the document
// is written or its save is finished.
type visit struct {
	written chan struct{}
	once    sync.Once

	// The fields below are guarded by the saveCall mutex.
	isWritten bool
	returned  bool
	waits     map[*visit]waitKind
}

// waitKind is the state of other visited document the save waits for.
type waitKind int

const (
	// waitWritten is set when the save waits on the document written by other branch.
	waitWritten waitKind = iota
	// waitReturned is set when the save waits on the nested save of the document to return.
	waitReturned
)

func (v *visit) blocks(kind waitKind) bool {
	if kind == waitReturned {
		return !v.returned
	}
	return !v.isWritten
}

func (c *saveCall) markWritten(v *visit) {
	v.once.Do(func() {
		c.mu.Lock()
		v.isWritten = true
		c.mu.Unlock()
		close(v.written)
	})
}

func (c *saveCall) markReturned(v *visit) {
	c.markWritten(v)
	c.mu.Lock()
	v.returned = true
	v.waits = nil
	c.mu.Unlock()
}

// addWait records that the save of the 'waiter' document waits on 'v'. Must be called with the mutex held.
func (c *saveCall) addWait(waiter, v *visit, kind waitKind) {
	if waiter == nil || waiter.returned {
		return
	}
	if waiter.waits == nil {
		waiter.waits = map[*visit]waitKind{}
	}
	waiter.waits[v] = kind
}

// reaches checks if the save of 'from' document waits, directly or not, on the 'to' document.
// Must be called with the mutex held.
func (c *saveCall) reaches(from, to *visit) bool {
	if to == nil {
		return false
	}
	seen := map[*visit]struct{}{}
	stack := []*visit{from}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if v == to {
			return true
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		for next, kind := range v.waits {
			if next.blocks(kind) {
				stack = append(stack, next)
			}
		}
	}
	return false
}

// path is the chain of the documents being saved, from the document up to the top level one.
type path struct {
	doc    *document.Document
	parent *path
}

func (p *path) contains(d *document.Document) bool {
	for ; p != nil; p = p.parent {
		if p.doc == d {
			return true
		}
	}
	return false
}

// scoped is the relation within the cascade scope along with its nested scope.
type scoped struct {
	rel mapping.Relationship
	sub Cascade
}

// begin marks the document as visited. If the document was already visited the 'skip' is true.
// A document visited by other branch is awaited until it is written, so that its keys are known.
// It is not awaited when its save waits on the caller, as it happens for the documents belonging
// to each other and saved by sibling branches.
func (c *saveCall) begin(ctx context.Context, d *document.Document, p *path) (v *visit, skip bool, err error) {
	c.mu.Lock()
	var waiter *visit
	if p != nil {
		waiter = c.visits[p.doc]
	}
	v, ok := c.visits[d]
	if !ok {
		v = &visit{written: make(chan struct{})}
		c.visits[d] = v
		c.addWait(waiter, v, waitReturned)
		c.mu.Unlock()
		return v, false, nil
	}
	if v.isWritten {
		c.mu.Unlock()
		return nil, true, nil
	}
	if p.contains(d) || c.reaches(v, waiter) {
		c.mu.Unlock()
		logger.Debug3f("document: %s is already being saved", d)
		return nil, true, nil
	}
	c.addWait(waiter, v, waitWritten)
	c.mu.Unlock()

	select {
	case <-v.written:
		return nil, true, nil
	case <-ctx.Done():
		return nil, true, ctx.Err()
	}
}

func (c *saveCall) isValidated(d *document.Document) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.validated[d]
	return ok
}

func (c *saveCall) save(ctx context.Context, d *document.Document, targets Cascade, all bool, saved tableSet, p *path) error {
	v, skip, err := c.begin(ctx, d, p)
	if skip || err != nil {
		return err
	}
	defer c.markReturned(v)

	m := d.Model()
	p = &path{doc: d, parent: p}
	saved = saved.with(m.Table())

	var relations []scoped
	for _, rel := range m.Relations() {
		if sub, ok := document.InScope(rel, targets, all, saved); ok {
			relations = append(relations, scoped{rel: rel, sub: sub})
		}
	}
	// The related tables in scope are marked for the nested saves.
	childSaved := saved
	for _, s := range relations {
		childSaved = childSaved.with(s.rel.Related().Table())
	}
	logger.Debug2f("saving: %s with: %d relations in scope", d, len(relations))

	d.Emit(document.EventSaving, nil)
	if err = m.RunHooks(ctx, document.PreSave, d); err != nil {
		return err
	}
	if err = c.saveBelongsTo(ctx, d, relations, all, childSaved, p); err != nil {
		return err
	}
	if err = c.write(ctx, d); err != nil {
		return err
	}
	c.markWritten(v)

	if err = c.saveChildren(ctx, d, relations, all, childSaved, p); err != nil {
		return err
	}
	if err = c.saveLinks(ctx, d, relations); err != nil {
		return err
	}
	if err = m.RunHooks(ctx, document.PostSave, d); err != nil {
		return err
	}
	logger.Debug2f("saved: %s", d)
	return nil
}

// saveBelongsTo saves the 'belongs to' parents in scope and copies their keys into the document.
func (c *saveCall) saveBelongsTo(ctx context.Context, d *document.Document, relations []scoped, all bool, saved tableSet, p *path) error {
	var (
		jobs    []job
		parents = map[string]*document.Document{}
		handled []*mapping.BelongsTo
	)
	for _, s := range relations {
		rel, ok := s.rel.(*mapping.BelongsTo)
		if !ok {
			continue
		}
		if _, present := d.Get(rel.Field()); !present {
			continue
		}
		parent, err := d.One(rel.Field())
		if err != nil {
			return err
		}
		handled = append(handled, rel)
		if parent == nil {
			continue
		}
		parents[rel.Field()] = parent
		sub := s.sub
		jobs = append(jobs, func(ctx context.Context) error {
			return c.save(ctx, parent, sub, all, saved, p)
		})
	}
	if err := c.db.fanOut(ctx, jobs); err != nil {
		return err
	}

	for _, rel := range handled {
		parent, ok := parents[rel.Field()]
		if !ok {
			if d.BelongsToFlag(rel.Field()) {
				// The reference was cleared since last save.
				d.Unset(rel.LocalKey())
				d.SetBelongsToFlag(rel.Field(), false)
			}
			continue
		}
		key, _ := parent.Get(rel.ForeignKey())
		if key == nil {
			d.Unset(rel.LocalKey())
		} else {
			d.Set(rel.LocalKey(), key)
		}
		d.SetBelongsToFlag(rel.Field(), true)
		parent.AddParent(mapping.RelBelongsTo, document.BackRef{Document: d, Field: rel.Field(), ForeignKey: key})
		logger.Debug3f("%s.%s = %v", d, rel.LocalKey(), key)
	}
	return nil
}

// write inserts the not saved document or replaces the saved one.
func (c *saveCall) write(ctx context.Context, d *document.Document) (err error) {
	m := d.Model()
	document.ApplyDefaults(d)
	document.GenerateVirtual(d)
	if !c.isValidated(d) {
		if err = document.Validate(ctx, d, nil, false); err != nil {
			return err
		}
	}

	value := document.Project(d)
	var (
		result    *repository.Result
		operation string
	)
	if !d.IsSaved() {
		operation = "insert"
		result, err = c.db.repo.Insert(ctx, m.Table(), value)
	} else {
		operation = "replace"
		pk, ok := d.PrimaryKey()
		if !ok {
			return errors.Wrapf(ErrNoPrimaryKey, "replacing saved document: %s", d)
		}
		result, err = c.db.repo.Replace(ctx, m.Table(), pk, value)
	}
	if err != nil {
		logger.Debugf("%s of: %s failed: %v", operation, d, err)
		return err
	}
	if err = result.Err(m.Table(), operation); err != nil {
		logger.Debugf("%s of: %s failed: %v", operation, d, err)
		return err
	}
	if result == nil {
		result = &repository.Result{}
	}

	newValue, oldValue := value, value
	if len(result.Changes) > 0 {
		newValue, oldValue = result.Changes[0].NewValue, result.Changes[0].OldValue
	} else if operation == "insert" {
		oldValue = nil
		if _, ok := newValue[m.PrimaryKey()]; !ok && len(result.GeneratedKeys) > 0 {
			newValue[m.PrimaryKey()] = result.GeneratedKeys[0]
		}
	}
	d.MarkSaved(newValue, oldValue)
	logger.Debugf("%s of: %s done", operation, d)
	d.Emit(document.EventSaved, nil)

	document.GenerateVirtual(d)
	return document.ValidateSchema(d)
}

// saveChildren saves the 'has one', 'has many' and 'many to many' documents in scope.
// The detached 'has one' and 'has many' documents have their foreign key cleared and are saved too.
func (c *saveCall) saveChildren(ctx context.Context, d *document.Document, relations []scoped, all bool, saved tableSet, p *path) error {
	var (
		jobs  []job
		after []func()
	)
	saveJob := func(child *document.Document, sub Cascade) job {
		return func(ctx context.Context) error {
			return c.save(ctx, child, sub, all, saved, p)
		}
	}
	detachJob := func(rel mapping.Relationship, child *document.Document, key interface{}) job {
		return func(ctx context.Context) error {
			child.RemoveParent(rel.Kind(), d, rel.Field())
			fk, _ := child.Get(rel.ForeignKey())
			if mapping.KeyString(fk) != mapping.KeyString(key) {
				// Attached to other document.
				return nil
			}
			child.Unset(rel.ForeignKey())
			if !child.IsSaved() {
				return nil
			}
			logger.Debug3f("detaching: %s from: %s.%s", child, d, rel.Field())
			return c.save(ctx, child, nil, false, saved, p)
		}
	}

	for _, s := range relations {
		rel := s.rel
		value, present := d.Get(rel.Field())
		if !present {
			continue
		}
		key, _ := d.Get(rel.LocalKey())

		switch rel := rel.(type) {
		case *mapping.HasOne:
			child, err := d.One(rel.Field())
			if err != nil {
				return err
			}
			if prev := d.AttachedOne(rel.Field()); prev != nil && prev.Document != child {
				jobs = append(jobs, detachJob(rel, prev.Document, prev.Key))
			}
			if child == nil {
				d.SetAttachedOne(rel.Field(), nil)
				continue
			}
			child.Set(rel.ForeignKey(), key)
			child.AddParent(mapping.RelHasOne, document.BackRef{Document: d, Field: rel.Field(), ForeignKey: key})
			d.SetAttachedOne(rel.Field(), &document.Link{Document: child, Key: key})
			jobs = append(jobs, saveJob(child, s.sub))
		case *mapping.HasMany:
			var children []*document.Document
			if value != nil {
				elems, err := d.Many(rel.Field())
				if err != nil {
					return err
				}
				for _, elem := range elems {
					children = append(children, elem.(*document.Document))
				}
			}
			current := make(map[*document.Document]struct{}, len(children))
			for _, child := range children {
				current[child] = struct{}{}
			}
			for _, link := range d.AttachedMany(rel.Field()) {
				if _, ok := current[link.Document]; !ok {
					jobs = append(jobs, detachJob(rel, link.Document, link.Key))
				}
			}
			for _, child := range children {
				child.Set(rel.ForeignKey(), key)
				child.AddParent(mapping.RelHasMany, document.BackRef{Document: d, Field: rel.Field(), ForeignKey: key})
				jobs = append(jobs, saveJob(child, s.sub))
			}
			field := rel.Field()
			after = append(after, func() {
				attached := make(map[string]*document.Link, len(children))
				for _, child := range children {
					if pk, ok := child.PrimaryKey(); ok {
						attached[mapping.KeyString(pk)] = &document.Link{Document: child, Key: key}
					}
				}
				d.SetAttachedMany(field, attached)
			})
		case *mapping.ManyToMany:
			if value == nil {
				continue
			}
			elems, err := d.Many(rel.Field())
			if err != nil {
				return err
			}
			for _, elem := range elems {
				child, ok := elem.(*document.Document)
				if !ok {
					continue
				}
				child.AddParent(mapping.RelMany2Many, document.BackRef{Document: d, Field: rel.Field(), ForeignKey: key})
				jobs = append(jobs, saveJob(child, s.sub))
			}
		}
	}
	if err := c.db.fanOut(ctx, jobs); err != nil {
		return err
	}
	for _, fn := range after {
		fn()
	}
	return nil
}

// saveLinks reconciles the link table rows of the 'many to many' relations in scope. The new links are
// upserted, the links that are no longer present are deleted by their identifiers.
func (c *saveCall) saveLinks(ctx context.Context, d *document.Document, relations []scoped) error {
	var (
		jobs  []job
		after []func()
	)
	for _, s := range relations {
		rel, ok := s.rel.(*mapping.ManyToMany)
		if !ok {
			continue
		}
		value, present := d.Get(rel.Field())
		if !present {
			continue
		}
		local, _ := d.Get(rel.LocalKey())
		if local == nil {
			return errors.Wrapf(ErrNoPrimaryKey, "linking: %s.%s requires the key: '%s'", d, rel.Field(), rel.LocalKey())
		}

		current := map[string]interface{}{}
		if value != nil {
			elems, err := d.Many(rel.Field())
			if err != nil {
				return err
			}
			for _, elem := range elems {
				key := elem
				if child, isDoc := elem.(*document.Document); isDoc {
					if key, _ = child.Get(rel.ForeignKey()); key == nil {
						logger.Debug3f("skipping link of not written document: %s", child)
						continue
					}
				}
				current[mapping.KeyString(key)] = key
			}
		}
		previous := d.LinkKeys(rel.Field())
		table := rel.Link().Name()
		for ks, key := range current {
			if _, ok := previous[ks]; ok {
				continue
			}
			row := rel.LinkRow(local, key)
			jobs = append(jobs, func(ctx context.Context) error {
				result, err := c.db.repo.Insert(ctx, table, row, repository.WithConflict(repository.ConflictReplace))
				if err != nil {
					return err
				}
				return result.Err(table, "insert")
			})
		}
		for ks, key := range previous {
			if _, ok := current[ks]; ok {
				continue
			}
			id := rel.LinkID(local, key)
			jobs = append(jobs, func(ctx context.Context) error {
				result, err := c.db.repo.Delete(ctx, table, id)
				if err != nil {
					return err
				}
				return result.Err(table, "delete")
			})
		}
		logger.Debug3f("%s.%s links: %d, previous: %d", d, rel.Field(), len(current), len(previous))
		field := rel.Field()
		after = append(after, func() {
			d.SetLinkKeys(field, current)
		})
	}
	if err := c.db.fanOut(ctx, jobs); err != nil {
		return err
	}
	for _, fn := range after {
		fn()
	}
	return nil
}
