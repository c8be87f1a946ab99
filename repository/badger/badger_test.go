package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuronlabs/docorm/config"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/repository"
)

func testingRepository(t *testing.T) repository.Repository {
	t.Helper()
	r, err := repository.New(&config.Repository{Driver: DriverName, InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close(context.Background())
	})

	ctx := context.Background()
	require.NoError(t, r.TableCreate(ctx, "users", "id"))
	require.NoError(t, r.TableCreate(ctx, "posts", "id"))
	require.NoError(t, r.IndexCreate(ctx, "posts", "user_id"))
	require.NoError(t, r.IndexWait(ctx, "posts", "user_id"))
	return r
}

func TestInsertGet(t *testing.T) {
	ctx := context.Background()
	r := testingRepository(t)

	res, err := r.Insert(ctx, "users", map[string]interface{}{"name": "Ann", "age": 30, "tags": []interface{}{"a", "b"}})
	require.NoError(t, err)
	require.Len(t, res.GeneratedKeys, 1)
	assert.Equal(t, 1, res.Inserted)

	row, err := r.Get(ctx, "users", res.GeneratedKeys[0])
	require.NoError(t, err)
	assert.Equal(t, "Ann", row["name"])
	assert.EqualValues(t, 30, row["age"])
	assert.Equal(t, []interface{}{"a", "b"}, row["tags"])

	res, err = r.Insert(ctx, "users", map[string]interface{}{"id": res.GeneratedKeys[0]})
	require.NoError(t, err)
	assert.True(t, errors.Is(res.Err("users", "insert"), repository.ErrPersistence))

	_, err = r.Get(ctx, "users", "missing")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	_, err = r.Get(ctx, "unknown", "missing")
	assert.True(t, errors.Is(err, repository.ErrNoTable))
}

func TestReplace(t *testing.T) {
	ctx := context.Background()
	r := testingRepository(t)

	res, err := r.Replace(ctx, "users", "u1", map[string]interface{}{"name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	res, err = r.Replace(ctx, "users", "u1", map[string]interface{}{"id": "u1", "name": "Ann"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)

	res, err = r.Replace(ctx, "users", "u1", map[string]interface{}{"name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Replaced)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, "Ann", res.Changes[0].OldValue["name"])
	assert.Equal(t, "Bob", res.Changes[0].NewValue["name"])
}

func TestIndexOperations(t *testing.T) {
	ctx := context.Background()
	r := testingRepository(t)

	for _, row := range []map[string]interface{}{
		{"id": "p1", "user_id": "u1"},
		{"id": "p2", "user_id": "u1"},
		{"id": "p3", "user_id": "u2"},
	} {
		_, err := r.Insert(ctx, "posts", row)
		require.NoError(t, err)
	}

	res, err := r.ReplaceByIndex(ctx, "posts", "user_id", "u1", repository.Without("user_id"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Replaced)

	row, err := r.Get(ctx, "posts", "p2")
	require.NoError(t, err)
	assert.NotContains(t, row, "user_id")

	res, err = r.DeleteByIndex(ctx, "posts", "user_id", "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)

	res, err = r.DeleteAll(ctx, "posts", "p1", "p2", "p3")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)

	_, err = r.ReplaceByIndex(ctx, "posts", "title", "x", repository.Without("title"))
	assert.True(t, errors.Is(err, repository.ErrNoIndex))
}

func TestChanges(t *testing.T) {
	ctx := context.Background()
	r := testingRepository(t)

	_, err := r.Insert(ctx, "users", map[string]interface{}{"id": "u1", "name": "Ann"})
	require.NoError(t, err)

	feed, err := r.Changes(ctx, "users", "u1")
	require.NoError(t, err)
	defer feed.Close()

	_, err = r.Replace(ctx, "users", "u1", map[string]interface{}{"name": "Bob"})
	require.NoError(t, err)
	_, err = r.Delete(ctx, "users", "u1")
	require.NoError(t, err)

	nextCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	change, err := feed.Next(nextCtx)
	require.NoError(t, err)
	assert.Equal(t, "Ann", change.OldValue["name"])
	assert.Equal(t, "Bob", change.NewValue["name"])

	change, err = feed.Next(nextCtx)
	require.NoError(t, err)
	assert.Equal(t, "Bob", change.OldValue["name"])
	assert.Nil(t, change.NewValue)
}

func TestHealthCheck(t *testing.T) {
	ctx := context.Background()
	r := testingRepository(t)

	checker, ok := r.(repository.HealthChecker)
	require.True(t, ok)
	h, err := checker.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusPass, h.Status)

	require.NoError(t, r.Close(ctx))
	h, err = checker.HealthCheck(ctx)
	require.NoError(t, err)
	assert.Equal(t, repository.StatusFail, h.Status)
}
