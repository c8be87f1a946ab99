package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/repository"
	"github.com/neuronlabs/docorm/repository/mockrepo"
)

func TestPurge(t *testing.T) {
	ctx := context.Background()

	t.Run("User", func(t *testing.T) {
		db, repo := testingDB(t)
		savedUser(t, db)
		pinned := newDoc(t, db, "Post", map[string]interface{}{"id": "p3", "title": "pinned", "pinned_by": "u1"})
		require.NoError(t, db.Save(ctx, pinned))

		// The document loaded without its relations.
		user, err := db.Get(ctx, "User", "u1")
		require.NoError(t, err)
		require.NoError(t, db.Purge(ctx, user))

		_, err = repo.Base.Get(ctx, "users", "u1")
		assert.True(t, errors.Is(err, repository.ErrNotFound))
		for _, id := range []string{"p1", "p2", "p3"} {
			row, err := repo.Base.Get(ctx, "posts", id)
			require.NoError(t, err, id)
			assert.NotContains(t, row, "user_id", id)
			assert.NotContains(t, row, "pinned_by", id)
		}
		// Each table index is cleared once.
		assert.Len(t, repo.Calls(mockrepo.OpReplaceByIndex), 2)
		assert.False(t, user.IsSaved())
	})

	t.Run("Post", func(t *testing.T) {
		db, repo := testingDB(t)
		savedUser(t, db)

		post, err := db.Get(ctx, "Post", "p1")
		require.NoError(t, err)
		require.NoError(t, db.Purge(ctx, post))

		_, err = repo.Base.Get(ctx, "posts_tags", "p1_t1")
		assert.True(t, errors.Is(err, repository.ErrNotFound))
		_, err = repo.Base.Get(ctx, "tags", "t1")
		assert.NoError(t, err)
		_, err = repo.Base.Get(ctx, "posts", "p1")
		assert.True(t, errors.Is(err, repository.ErrNotFound))

		calls := repo.Calls(mockrepo.OpDeleteByIndex)
		require.Len(t, calls, 1)
		assert.Equal(t, "posts_tags", calls[0].Table)
		assert.Equal(t, "p1", calls[0].Key)
	})

	t.Run("NotSaved", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"name": "john"})
		require.NoError(t, db.Purge(ctx, user))
		assert.Empty(t, repo.Calls(mockrepo.OpReplaceByIndex))
		assert.Empty(t, repo.Calls(mockrepo.OpDelete))
	})

	t.Run("Failure", func(t *testing.T) {
		db, repo := testingDB(t)
		savedUser(t, db)
		repo.OnReplaceByIndex(func(context.Context, string, string, interface{}) (*repository.Result, error) {
			result := &repository.Result{}
			result.AddError("index failed")
			return result, nil
		}, mockrepo.Permanent())

		user, err := db.Get(ctx, "User", "u1")
		require.NoError(t, err)
		err = db.Purge(ctx, user)
		assert.True(t, errors.Is(err, repository.ErrPersistence))

		// The document is not deleted when the references were not removed.
		_, err = repo.Base.Get(ctx, "users", "u1")
		assert.NoError(t, err)
	})
}
