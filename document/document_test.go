package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/mapping"
)

func testingRegistry(t *testing.T) *Registry {
	t.Helper()
	m := mapping.NewModelMap(nil)

	_, err := m.RegisterModel("User", map[string]*mapping.Field{
		"id":    {Type: mapping.TypeString},
		"name":  {Type: mapping.TypeString, Validate: "max=10"},
		"email": {Type: mapping.TypeString, Validate: "omitempty,email"},
		"label": {Type: mapping.TypeString, Virtual: true, Default: DefaultFunc(func(d *Document) interface{} {
			name, _ := d.Get("name")
			return "user: " + mapping.KeyString(name)
		})},
	})
	require.NoError(t, err)

	_, err = m.RegisterModel("Post", map[string]*mapping.Field{
		"id":         {Type: mapping.TypeString},
		"title":      {Type: mapping.TypeString, Required: true},
		"views":      {Type: mapping.TypeNumber, Default: 0},
		"created_at": {Type: mapping.TypeDate},
		"location":   {Type: mapping.TypePoint},
		"meta": {Type: mapping.TypeObject, Fields: map[string]*mapping.Field{
			"source": {Type: mapping.TypeString, Default: "web"},
			"cache":  {Type: mapping.TypeString, Virtual: true},
		}},
		"scores": {Type: mapping.TypeArray, Elem: &mapping.Field{Type: mapping.TypeNumber}},
	})
	require.NoError(t, err)

	_, err = m.RegisterModel("Tag", map[string]*mapping.Field{
		"id":   {Type: mapping.TypeString},
		"name": {Type: mapping.TypeString},
	})
	require.NoError(t, err)

	_, err = m.HasMany("User", "posts", "Post", "id", "user_id")
	require.NoError(t, err)
	_, err = m.HasOne("User", "pinned", "Post", "id", "pinned_by")
	require.NoError(t, err)
	_, err = m.BelongsTo("Post", "author", "User", "user_id", "id")
	require.NoError(t, err)
	_, err = m.ManyToMany("Post", "tags", "Tag", "id", "id", "")
	require.NoError(t, err)
	_, err = m.ManyToMany("Tag", "posts", "Post", "id", "id", "")
	require.NoError(t, err)

	return NewRegistry(m)
}

func TestDocumentFields(t *testing.T) {
	r := testingRegistry(t)
	user := r.MustModel("User").New(map[string]interface{}{"name": "a"})

	name, ok := user.Get("name")
	require.True(t, ok)
	assert.Equal(t, "a", name)

	_, ok = user.PrimaryKey()
	assert.False(t, ok)
	assert.Equal(t, "User[unsaved]", user.String())

	user.Set("id", "u1")
	pk, ok := user.PrimaryKey()
	require.True(t, ok)
	assert.Equal(t, "u1", pk)
	assert.Equal(t, "User[u1]", user.String())

	user.Merge(map[string]interface{}{"name": "b", "email": "b@example.com"})
	fields := user.Fields()
	assert.Equal(t, "b", fields["name"])
	assert.Equal(t, "b@example.com", fields["email"])

	user.Unset("email")
	_, ok = user.Get("email")
	assert.False(t, ok)

	_, err := r.Model("Comment")
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestSavedState(t *testing.T) {
	r := testingRegistry(t)
	user := r.MustModel("User").New(map[string]interface{}{"name": "a"})
	post := r.MustModel("Post").New(map[string]interface{}{"title": "t1"})
	user.Set("posts", []interface{}{post})

	assert.False(t, user.IsSaved())
	user.MarkSaved(map[string]interface{}{"id": "u1"}, nil)
	assert.True(t, user.IsSaved())
	id, _ := user.Get("id")
	assert.Equal(t, "u1", id)
	assert.False(t, post.IsSaved())

	user.MarkUnsaved()
	user.SetSaved(true)
	assert.True(t, user.IsSaved())
	assert.True(t, post.IsSaved())
}

func TestPromotion(t *testing.T) {
	r := testingRegistry(t)

	t.Run("One", func(t *testing.T) {
		post := r.MustModel("Post").New(map[string]interface{}{"author": map[string]interface{}{"name": "a"}})
		author, err := post.One("author")
		require.NoError(t, err)
		require.NotNil(t, author)
		assert.Equal(t, "User", author.Model().Name())

		again, err := post.One("author")
		require.NoError(t, err)
		assert.Same(t, author, again)
	})

	t.Run("Many", func(t *testing.T) {
		user := r.MustModel("User").New(map[string]interface{}{
			"posts": []map[string]interface{}{{"title": "t1"}, {"title": "t2"}},
		})
		posts, err := user.Many("posts")
		require.NoError(t, err)
		require.Len(t, posts, 2)
		first, ok := posts[0].(*Document)
		require.True(t, ok)
		title, _ := first.Get("title")
		assert.Equal(t, "t1", title)

		again, err := user.Many("posts")
		require.NoError(t, err)
		assert.Same(t, first, again[0])
	})

	t.Run("BareKeys", func(t *testing.T) {
		post := r.MustModel("Post").New(map[string]interface{}{"tags": []interface{}{"t1", map[string]interface{}{"name": "go"}}})
		tags, err := post.Many("tags")
		require.NoError(t, err)
		assert.Equal(t, "t1", tags[0])
		_, ok := tags[1].(*Document)
		assert.True(t, ok)

		user := r.MustModel("User").New(map[string]interface{}{"posts": []interface{}{"p1"}})
		_, err = user.Many("posts")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRelationType))
	})

	t.Run("InvalidType", func(t *testing.T) {
		post := r.MustModel("Post").New(map[string]interface{}{"author": "u1"})
		_, err := post.One("author")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))

		user := r.MustModel("User").New(map[string]interface{}{"posts": map[string]interface{}{}})
		_, err = user.Many("posts")
		assert.True(t, errors.Is(err, ErrRelationType))

		_, err = user.Many("name")
		assert.True(t, errors.Is(err, ErrUnknownRelation))
	})

	t.Run("Remove", func(t *testing.T) {
		post1 := r.MustModel("Post").New(nil)
		post2 := r.MustModel("Post").New(nil)
		user := r.MustModel("User").New(map[string]interface{}{"posts": []interface{}{post1, post2}, "pinned": post1})

		user.Remove("posts", post1)
		user.Remove("pinned", post1)
		posts, _ := user.Get("posts")
		assert.Equal(t, []interface{}{post2}, posts)
		pinned, _ := user.Get("pinned")
		assert.Nil(t, pinned)
	})
}

func TestBackReferences(t *testing.T) {
	r := testingRegistry(t)
	user := r.MustModel("User").New(map[string]interface{}{"id": "u1"})
	post := r.MustModel("Post").New(map[string]interface{}{"id": "p1"})

	post.AddParent(mapping.RelHasOne, BackRef{Document: user, Field: "pinned", ForeignKey: "u1"})
	post.AddParent(mapping.RelHasOne, BackRef{Document: user, Field: "pinned", ForeignKey: "u1"})
	post.AddParent(mapping.RelHasMany, BackRef{Document: user, Field: "posts", ForeignKey: "u1"})

	refs := post.ParentsOf(mapping.RelHasOne, "users")
	require.Len(t, refs, 1)
	assert.Same(t, user, refs[0].Document)
	assert.Equal(t, "pinned", refs[0].Field)

	parents := post.Parents()
	require.Len(t, parents, 2)
	assert.Equal(t, mapping.RelHasOne, parents[0].Kind)
	assert.Equal(t, mapping.RelHasMany, parents[1].Kind)
	assert.Equal(t, "users", parents[1].Table)

	assert.True(t, post.RemoveParent(mapping.RelHasOne, user, "pinned"))
	assert.False(t, post.RemoveParent(mapping.RelHasOne, user, "pinned"))
	assert.Empty(t, post.ParentsOf(mapping.RelHasOne, "users"))
	assert.Len(t, post.Parents(), 1)

	post.ClearParents()
	assert.Empty(t, post.Parents())
}

func TestRelationMeta(t *testing.T) {
	r := testingRegistry(t)
	user := r.MustModel("User").New(map[string]interface{}{"id": "u1"})
	post := r.MustModel("Post").New(map[string]interface{}{"id": "p1"})

	post.SetBelongsToFlag("author", true)
	assert.True(t, post.BelongsToFlag("author"))
	post.SetBelongsToFlag("author", false)
	assert.False(t, post.BelongsToFlag("author"))

	user.SetAttachedOne("pinned", &Link{Document: post, Key: "u1"})
	assert.Same(t, post, user.AttachedOne("pinned").Document)
	user.SetAttachedOne("pinned", nil)
	assert.Nil(t, user.AttachedOne("pinned"))

	user.SetAttachedMany("posts", map[string]*Link{"p1": {Document: post, Key: "u1"}})
	attached := user.AttachedMany("posts")
	require.Len(t, attached, 1)
	delete(attached, "p1")
	assert.Len(t, user.AttachedMany("posts"), 1, "attached map is a copy")

	post.SetLinkKeys("tags", map[string]interface{}{"t1": "t1"})
	assert.Equal(t, map[string]interface{}{"t1": "t1"}, post.LinkKeys("tags"))
	post.SetLinkKeys("tags", nil)
	assert.Empty(t, post.LinkKeys("tags"))
}

func TestEvents(t *testing.T) {
	r := testingRegistry(t)
	model := r.MustModel("User")

	var modelEvents, docEvents []Event
	model.Listen(func(d *Document, e Event, err error) {
		modelEvents = append(modelEvents, e)
	})
	user := model.New(nil)
	user.Listen(func(d *Document, e Event, err error) {
		docEvents = append(docEvents, e)
	})
	user.Emit(EventSaving, nil)
	user.Emit(EventSaved, nil)

	assert.Equal(t, []Event{EventSaving, EventSaved}, modelEvents)
	assert.Equal(t, []Event{EventSaving, EventSaved}, docEvents)
	assert.Equal(t, "saved", EventSaved.String())
}
