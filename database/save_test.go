package database

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuronlabs/docorm/document"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/mapping"
	"github.com/neuronlabs/docorm/repository"
	"github.com/neuronlabs/docorm/repository/memory"
	"github.com/neuronlabs/docorm/repository/mockrepo"
)

func newDoc(t *testing.T, db *Database, model string, fields map[string]interface{}) *document.Document {
	t.Helper()
	d, err := db.NewDocument(model, fields)
	require.NoError(t, err)
	return d
}

func TestSave(t *testing.T) {
	ctx := context.Background()

	t.Run("Insert", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"name": "john"})

		var events []document.Event
		user.Listen(func(_ *document.Document, e document.Event, _ error) {
			events = append(events, e)
		})
		require.NoError(t, db.Save(ctx, user))
		assert.True(t, user.IsSaved())
		assert.Equal(t, []document.Event{document.EventSaving, document.EventSaved}, events)
		assert.Nil(t, user.OldValue())

		row, err := repo.Base.Get(ctx, "users", mustPK(t, user))
		require.NoError(t, err)
		assert.Equal(t, "john", row["name"])
		assert.Len(t, repo.Calls(mockrepo.OpInsert), 1)
	})

	t.Run("Replace", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"id": "u1", "name": "john"})
		require.NoError(t, db.Save(ctx, user))

		user.Set("name", "jane")
		require.NoError(t, db.Save(ctx, user))
		assert.Len(t, repo.Calls(mockrepo.OpInsert), 1)
		assert.Len(t, repo.Calls(mockrepo.OpReplace), 1)
		assert.Equal(t, "john", user.OldValue()["name"])

		row, err := repo.Base.Get(ctx, "users", "u1")
		require.NoError(t, err)
		assert.Equal(t, "jane", row["name"])
	})

	t.Run("Duplicate", func(t *testing.T) {
		db, _ := testingDB(t)
		require.NoError(t, db.Save(ctx, newDoc(t, db, "User", map[string]interface{}{"id": "u1"})))

		user := newDoc(t, db, "User", map[string]interface{}{"id": "u1"})
		err := db.Save(ctx, user)
		require.Error(t, err)
		assert.True(t, errors.Is(err, repository.ErrPersistence))
		assert.False(t, user.IsSaved())
	})

	t.Run("NoPrimaryKey", func(t *testing.T) {
		db, _ := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"id": "u1"})
		require.NoError(t, db.Save(ctx, user))

		user.Unset("id")
		assert.True(t, errors.Is(db.Save(ctx, user), ErrNoPrimaryKey))
	})

	t.Run("Invalid", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"name": "very long user name"})
		err := db.Save(ctx, user)
		require.Error(t, err)
		assert.True(t, errors.Is(err, document.ErrValidatorFailed))
		assert.Empty(t, repo.Calls(mockrepo.OpInsert))
		assert.False(t, user.IsSaved())
	})

	t.Run("Hooks", func(t *testing.T) {
		db, repo := testingDB(t)
		m, err := db.Model("User")
		require.NoError(t, err)

		hookErr := errors.New("hook")
		m.AddHook(document.PreSave, func(_ context.Context, d *document.Document) error {
			if name, _ := d.Get("name"); name == "blocked" {
				return hookErr
			}
			return nil
		})
		var saved int32
		m.AddHook(document.PostSave, func(context.Context, *document.Document) error {
			atomic.AddInt32(&saved, 1)
			return nil
		})

		assert.True(t, errors.Is(db.Save(ctx, m.New(map[string]interface{}{"name": "blocked"})), hookErr))
		assert.Empty(t, repo.Calls(mockrepo.OpInsert))
		require.NoError(t, db.Save(ctx, m.New(map[string]interface{}{"name": "john"})))
		assert.Equal(t, int32(1), atomic.LoadInt32(&saved))
	})
}

func TestSaveAll(t *testing.T) {
	ctx := context.Background()

	t.Run("HasMany", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"name": "john"})
		first := newDoc(t, db, "Post", map[string]interface{}{"title": "first"})
		second := newDoc(t, db, "Post", map[string]interface{}{"title": "second"})
		user.Set("posts", []interface{}{first, second})

		require.NoError(t, db.SaveAll(ctx, user))
		pk := mustPK(t, user)
		for _, post := range []*document.Document{first, second} {
			assert.True(t, post.IsSaved())
			fk, _ := post.Get("user_id")
			assert.Equal(t, pk, fk)

			row, err := repo.Base.Get(ctx, "posts", mustPK(t, post))
			require.NoError(t, err)
			assert.Equal(t, pk, row["user_id"])
			assert.NotContains(t, row, "author")

			refs := post.ParentsOf(mapping.RelHasMany, "users")
			require.Len(t, refs, 1)
			assert.Same(t, user, refs[0].Document)
			assert.Equal(t, "posts", refs[0].Field)
		}
		assert.Len(t, user.AttachedMany("posts"), 2)

		row, err := repo.Base.Get(ctx, "users", pk)
		require.NoError(t, err)
		assert.NotContains(t, row, "posts")
	})

	t.Run("PlainObjects", func(t *testing.T) {
		db, _ := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{
			"name":  "john",
			"posts": []interface{}{map[string]interface{}{"title": "first"}},
		})
		require.NoError(t, db.SaveAll(ctx, user))

		posts, err := user.Many("posts")
		require.NoError(t, err)
		require.Len(t, posts, 1)
		post, ok := posts[0].(*document.Document)
		require.True(t, ok)
		assert.True(t, post.IsSaved())
	})

	t.Run("BelongsTo", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"name": "john"})
		post := newDoc(t, db, "Post", map[string]interface{}{"title": "first", "author": user})

		require.NoError(t, db.SaveAll(ctx, post))
		require.True(t, user.IsSaved())
		fk, _ := post.Get("user_id")
		assert.Equal(t, mustPK(t, user), fk)

		refs := user.ParentsOf(mapping.RelBelongsTo, "posts")
		require.Len(t, refs, 1)
		assert.Same(t, post, refs[0].Document)

		// The parent is written before the child.
		inserts := repo.Calls(mockrepo.OpInsert)
		require.Len(t, inserts, 2)
		assert.Equal(t, "users", inserts[0].Table)
		assert.Equal(t, "posts", inserts[1].Table)

		// Clearing the reference clears the local key.
		post.Set("author", nil)
		require.NoError(t, db.SaveAll(ctx, post))
		_, ok := post.Get("user_id")
		assert.False(t, ok)
		row, err := repo.Base.Get(ctx, "posts", mustPK(t, post))
		require.NoError(t, err)
		assert.NotContains(t, row, "user_id")
	})

	t.Run("HasOne", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"id": "u1", "name": "john"})
		post := newDoc(t, db, "Post", map[string]interface{}{"title": "pinned"})
		user.Set("pinned", post)

		require.NoError(t, db.SaveAll(ctx, user))
		fk, _ := post.Get("pinned_by")
		assert.Equal(t, "u1", fk)
		link := user.AttachedOne("pinned")
		require.NotNil(t, link)
		assert.Same(t, post, link.Document)
		refs := post.ParentsOf(mapping.RelHasOne, "users")
		require.Len(t, refs, 1)
		assert.Same(t, user, refs[0].Document)

		// Replacing the document detaches the previous one.
		other := newDoc(t, db, "Post", map[string]interface{}{"title": "other"})
		user.Set("pinned", other)
		require.NoError(t, db.SaveAll(ctx, user))

		_, ok := post.Get("pinned_by")
		assert.False(t, ok)
		assert.Empty(t, post.ParentsOf(mapping.RelHasOne, "users"))
		row, err := repo.Base.Get(ctx, "posts", mustPK(t, post))
		require.NoError(t, err)
		assert.NotContains(t, row, "pinned_by")

		row, err = repo.Base.Get(ctx, "posts", mustPK(t, other))
		require.NoError(t, err)
		assert.Equal(t, "u1", row["pinned_by"])

		// Clearing the field detaches the document only when the relations are saved.
		user.Set("pinned", nil)
		require.NoError(t, db.Save(ctx, user))
		row, err = repo.Base.Get(ctx, "posts", mustPK(t, other))
		require.NoError(t, err)
		assert.Equal(t, "u1", row["pinned_by"])
		assert.NotNil(t, user.AttachedOne("pinned"))

		require.NoError(t, db.SaveAll(ctx, user))
		_, ok = other.Get("pinned_by")
		assert.False(t, ok)
		assert.Empty(t, other.ParentsOf(mapping.RelHasOne, "users"))
		assert.Nil(t, user.AttachedOne("pinned"))
	})

	t.Run("DetachHasMany", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"id": "u1"})
		first := newDoc(t, db, "Post", map[string]interface{}{"id": "p1", "title": "first"})
		second := newDoc(t, db, "Post", map[string]interface{}{"id": "p2", "title": "second"})
		user.Set("posts", []interface{}{first, second})
		require.NoError(t, db.SaveAll(ctx, user))

		user.Set("posts", []interface{}{first})
		require.NoError(t, db.SaveAll(ctx, user))

		row, err := repo.Base.Get(ctx, "posts", "p2")
		require.NoError(t, err)
		assert.NotContains(t, row, "user_id")
		_, ok := second.Get("user_id")
		assert.False(t, ok)

		row, err = repo.Base.Get(ctx, "posts", "p1")
		require.NoError(t, err)
		assert.Equal(t, "u1", row["user_id"])

		attached := user.AttachedMany("posts")
		assert.Len(t, attached, 1)
		assert.Contains(t, attached, "p1")
	})

	t.Run("CascadeOnce", func(t *testing.T) {
		db, _ := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"name": "john"})
		other := newDoc(t, db, "User", map[string]interface{}{"name": "jane"})
		post := newDoc(t, db, "Post", map[string]interface{}{"title": "first", "author": other})
		user.Set("posts", []interface{}{post})

		require.NoError(t, db.SaveAll(ctx, user))
		assert.True(t, post.IsSaved())
		// The users table was already saved within the call.
		assert.False(t, other.IsSaved())
		fk, _ := post.Get("user_id")
		assert.Equal(t, mustPK(t, user), fk)
	})

	t.Run("Cycle", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"name": "john"})
		post := newDoc(t, db, "Post", map[string]interface{}{"title": "first", "author": user})
		user.Set("posts", []interface{}{post})

		require.NoError(t, db.SaveAll(ctx, user, Cascade{"posts": Cascade{"author": nil}}))
		assert.True(t, post.IsSaved())
		assert.Len(t, repo.Calls(mockrepo.OpInsert), 2)
	})

	t.Run("NoCascade", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"name": "john"})
		user.Set("posts", []interface{}{newDoc(t, db, "Post", map[string]interface{}{"title": "first"})})

		require.NoError(t, db.Save(ctx, user))
		assert.Len(t, repo.Calls(mockrepo.OpInsert), 1)
		assert.Empty(t, user.AttachedMany("posts"))
	})

	t.Run("Concurrency", func(t *testing.T) {
		db, repo := testingDB(t, WithMaxConcurrency(1))
		user := newDoc(t, db, "User", map[string]interface{}{"name": "john"})
		posts := make([]interface{}, 10)
		for i := range posts {
			post := newDoc(t, db, "Post", map[string]interface{}{"title": fmt.Sprintf("post %d", i)})
			post.Set("tags", []interface{}{newDoc(t, db, "Tag", map[string]interface{}{"name": fmt.Sprintf("tag %d", i)})})
			posts[i] = post
		}
		user.Set("posts", posts)

		require.NoError(t, db.SaveAll(ctx, user, Cascade{"posts": Cascade{"tags": nil}}))
		assert.Len(t, repo.Calls(mockrepo.OpInsert), 31)
	})

	t.Run("MutualBelongsTo", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			db, repo := chainDB(t)
			first := newDoc(t, db, "Node", map[string]interface{}{"id": "n1"})
			second := newDoc(t, db, "Node", map[string]interface{}{"id": "n2"})
			first.Set("next", second)
			second.Set("next", first)
			root := newDoc(t, db, "Root", map[string]interface{}{"id": "r1", "nodes": []interface{}{first, second}})

			saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := db.SaveAll(saveCtx, root, Cascade{"nodes": Cascade{"next": Cascade{"next": nil}}})
			cancel()
			require.NoError(t, err, "iteration: %d", i)

			assert.Len(t, repo.Calls(mockrepo.OpInsert), 3)
			for id, next := range map[string]string{"n1": "n2", "n2": "n1"} {
				row, err := repo.Base.Get(ctx, "nodes", id)
				require.NoError(t, err)
				assert.Equal(t, next, row["next_id"], id)
				assert.Equal(t, "r1", row["root_id"], id)
			}
			assert.True(t, first.IsSaved())
			assert.True(t, second.IsSaved())
		}
	})
}

// chainDB creates the database with the 'Root' documents having many 'Node' documents,
// where each node belongs to the next one. The node saves are slowed down, so that
// the sibling branches interleave.
func chainDB(t *testing.T) (*Database, *mockrepo.Repository) {
	t.Helper()
	m := mapping.NewModelMap(nil)
	_, err := m.RegisterModel("Root", map[string]*mapping.Field{"id": {Type: mapping.TypeString}})
	require.NoError(t, err)
	_, err = m.RegisterModel("Node", map[string]*mapping.Field{"id": {Type: mapping.TypeString}})
	require.NoError(t, err)
	_, err = m.HasMany("Root", "nodes", "Node", "", "")
	require.NoError(t, err)
	_, err = m.BelongsTo("Node", "next", "Node", "", "")
	require.NoError(t, err)

	repo := mockrepo.New(memory.New())
	db, err := New(repo, m)
	require.NoError(t, err)
	require.NoError(t, db.Ready(context.Background()))
	t.Cleanup(func() {
		_ = db.Close(context.Background())
	})

	node, err := db.Model("Node")
	require.NoError(t, err)
	node.AddHook(document.PreSave, func(context.Context, *document.Document) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	return db, repo
}

func TestSaveLinks(t *testing.T) {
	ctx := context.Background()
	db, repo := testingDB(t)

	post := newDoc(t, db, "Post", map[string]interface{}{"id": "p1", "title": "first"})
	first := newDoc(t, db, "Tag", map[string]interface{}{"id": "t1"})
	second := newDoc(t, db, "Tag", map[string]interface{}{"id": "t2"})
	post.Set("tags", []interface{}{first, second, "t3"})
	require.NoError(t, db.SaveAll(ctx, post))

	postModel, err := db.Model("Post")
	require.NoError(t, err)
	tagModel, err := db.Model("Tag")
	require.NoError(t, err)
	postTags, _ := postModel.Relation("tags")
	tagPosts, _ := tagModel.Relation("posts")
	rel := postTags.(*mapping.ManyToMany)
	reverse := tagPosts.(*mapping.ManyToMany)

	// Both sides share the link table and the link identifiers.
	assert.Same(t, rel.Link(), reverse.Link())
	assert.Equal(t, rel.LinkID("p1", "t1"), reverse.LinkID("t1", "p1"))

	for _, tag := range []string{"t1", "t2", "t3"} {
		row, err := repo.Base.Get(ctx, "posts_tags", rel.LinkID("p1", tag))
		require.NoError(t, err, tag)
		assert.Equal(t, "p1", row["posts_id"])
		assert.Equal(t, tag, row["tags_id"])
	}
	assert.True(t, first.IsSaved())
	assert.Len(t, post.LinkKeys("tags"), 3)
	refs := first.ParentsOf(mapping.RelMany2Many, "posts")
	require.Len(t, refs, 1)
	assert.Same(t, post, refs[0].Document)

	// Linking from the other side upserts the same row.
	first.Set("posts", []interface{}{post})
	require.NoError(t, db.SaveAll(ctx, first, Cascade{"posts": nil}))
	_, err = repo.Base.Get(ctx, "posts_tags", rel.LinkID("p1", "t1"))
	require.NoError(t, err)

	post.Set("tags", []interface{}{first})
	require.NoError(t, db.SaveAll(ctx, post, Cascade{"tags": nil}))
	for _, tag := range []string{"t2", "t3"} {
		_, err = repo.Base.Get(ctx, "posts_tags", rel.LinkID("p1", tag))
		assert.True(t, errors.Is(err, repository.ErrNotFound), tag)
	}
	assert.Len(t, post.LinkKeys("tags"), 1)
}

func TestSaveBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid", func(t *testing.T) {
		db, repo := testingDB(t)
		users := make([]*document.Document, 5)
		for i := range users {
			users[i] = newDoc(t, db, "User", map[string]interface{}{"name": fmt.Sprintf("user %d", i)})
		}
		require.NoError(t, db.SaveBatch(ctx, users...))
		assert.Len(t, repo.Calls(mockrepo.OpInsert), 5)
		for _, user := range users {
			assert.True(t, user.IsSaved())
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		db, repo := testingDB(t)
		valid := newDoc(t, db, "User", map[string]interface{}{"id": "x"})
		invalid := newDoc(t, db, "User", map[string]interface{}{"id": 4})

		err := db.SaveBatch(ctx, valid, invalid)
		require.Error(t, err)
		assert.True(t, errors.Is(err, document.ErrFieldType))
		var vErr *document.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Same(t, invalid, vErr.Document)
		assert.Equal(t, "id", vErr.Path)

		assert.Empty(t, repo.Calls(mockrepo.OpInsert))
		assert.False(t, valid.IsSaved())
	})
}

func TestSaveFailure(t *testing.T) {
	ctx := context.Background()
	db, repo := testingDB(t)

	repo.OnInsert(func(context.Context, string, map[string]interface{}, ...repository.InsertOption) (*repository.Result, error) {
		result := &repository.Result{}
		result.AddError("write failed")
		return result, nil
	}, mockrepo.Table("posts"))

	user := newDoc(t, db, "User", map[string]interface{}{"name": "john"})
	post := newDoc(t, db, "Post", map[string]interface{}{"title": "first"})
	user.Set("posts", []interface{}{post})

	err := db.SaveAll(ctx, user)
	require.Error(t, err)
	assert.True(t, errors.Is(err, repository.ErrPersistence))
	var pErr *repository.PersistenceError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "posts", pErr.Table)
	assert.Equal(t, "write failed", pErr.FirstError)

	// The written documents are not rolled back.
	assert.True(t, user.IsSaved())
	assert.False(t, post.IsSaved())

	repo.OnReplace(func(context.Context, string, interface{}, map[string]interface{}) (*repository.Result, error) {
		return nil, errors.New("connection lost")
	}, mockrepo.Table("users"))
	user.Set("posts", nil)
	assert.Error(t, db.Save(ctx, user))
}

func TestSaveFailureSiblings(t *testing.T) {
	ctx := context.Background()
	db, repo := testingDB(t)

	repo.OnInsert(func(context.Context, string, map[string]interface{}, ...repository.InsertOption) (*repository.Result, error) {
		return nil, errors.New("connection lost")
	}, mockrepo.Table("posts"))

	user := newDoc(t, db, "User", map[string]interface{}{"id": "u1"})
	first := newDoc(t, db, "Post", map[string]interface{}{"id": "p1", "title": "first"})
	second := newDoc(t, db, "Post", map[string]interface{}{"id": "p2", "title": "second"})
	user.Set("posts", []interface{}{first, second})

	require.Error(t, db.SaveAll(ctx, user))

	// The error is returned after both siblings settled, the successful one is kept.
	var posts int
	for _, call := range repo.Calls(mockrepo.OpInsert) {
		if call.Table == "posts" {
			posts++
		}
	}
	assert.Equal(t, 2, posts)
	assert.NotEqual(t, first.IsSaved(), second.IsSaved())
}
