package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/neuronlabs/docorm/document"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/repository"
	"github.com/neuronlabs/docorm/repository/mocks"
)

func waitEvent(t *testing.T, events <-chan document.Event, expected document.Event) {
	t.Helper()
	select {
	case e := <-events:
		require.Equal(t, expected, e)
	case <-time.After(time.Second * 5):
		require.FailNow(t, "timeout waiting for the event", expected.String())
	}
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("Changes", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"id": "u1", "name": "john"})
		require.NoError(t, db.Save(ctx, user))

		events := make(chan document.Event, 10)
		user.Listen(func(_ *document.Document, e document.Event, _ error) {
			if e == document.EventChange || e == document.EventError {
				events <- e
			}
		})
		sub, err := db.Subscribe(ctx, user)
		require.NoError(t, err)
		defer sub.Close()

		_, err = repo.Base.Replace(ctx, "users", "u1", map[string]interface{}{"id": "u1", "name": "jane", "extra": true})
		require.NoError(t, err)
		waitEvent(t, events, document.EventChange)

		name, _ := user.Get("name")
		assert.Equal(t, "jane", name)
		extra, _ := user.Get("extra")
		assert.Equal(t, true, extra)
		assert.Equal(t, "john", user.OldValue()["name"])
		assert.True(t, user.IsSaved())

		_, err = repo.Base.Delete(ctx, "users", "u1")
		require.NoError(t, err)
		waitEvent(t, events, document.EventChange)
		assert.False(t, user.IsSaved())
		assert.Empty(t, user.Fields())
	})

	t.Run("Close", func(t *testing.T) {
		db, repo := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"id": "u1", "name": "john"})
		require.NoError(t, db.Save(ctx, user))

		sub, err := db.Subscribe(ctx, user)
		require.NoError(t, err)
		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())

		select {
		case <-sub.Done():
		default:
			t.Fatal("subscription should be done")
		}
		_, err = repo.Base.Replace(ctx, "users", "u1", map[string]interface{}{"id": "u1", "name": "jane"})
		require.NoError(t, err)
		name, _ := user.Get("name")
		assert.Equal(t, "john", name)
	})

	t.Run("ContextDone", func(t *testing.T) {
		db, _ := testingDB(t)
		user := newDoc(t, db, "User", map[string]interface{}{"id": "u1"})
		require.NoError(t, db.Save(ctx, user))

		subCtx, cancel := context.WithCancel(ctx)
		sub, err := db.Subscribe(subCtx, user)
		require.NoError(t, err)
		cancel()

		select {
		case <-sub.Done():
		case <-time.After(time.Second * 5):
			t.Fatal("subscription should end with the context")
		}
	})

	t.Run("FeedFailure", func(t *testing.T) {
		repo := &mocks.Repository{}
		db, err := New(repo, testingModelMap(t))
		require.NoError(t, err)

		failure := errors.New("connection reset")
		feed := repository.NewQueueFeed(nil)
		feed.Fail(failure)
		repo.On("Changes", mock.Anything, "users", "u1").Return(feed, nil).Once()
		repo.On("Close", mock.Anything).Return(nil).Once()

		user := newDoc(t, db, "User", map[string]interface{}{"id": "u1", "name": "john"})
		before := user.Fields()
		errs := make(chan error, 1)
		user.Listen(func(_ *document.Document, e document.Event, err error) {
			if e == document.EventError {
				errs <- err
			}
		})

		sub, err := db.Subscribe(ctx, user)
		require.NoError(t, err)

		select {
		case err := <-errs:
			assert.True(t, errors.Is(err, failure))
		case <-time.After(time.Second * 5):
			t.Fatal("timeout waiting for the error event")
		}
		select {
		case <-sub.Done():
		case <-time.After(time.Second * 5):
			t.Fatal("subscription should end on the feed failure")
		}
		assert.Equal(t, before, user.Fields())
		require.NoError(t, sub.Close())

		require.NoError(t, db.Close(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("NoPrimaryKey", func(t *testing.T) {
		db, _ := testingDB(t)
		user := newDoc(t, db, "User", nil)
		_, err := db.Subscribe(ctx, user)
		assert.True(t, errors.Is(err, ErrNoPrimaryKey))
	})
}
