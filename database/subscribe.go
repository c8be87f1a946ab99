package database

import (
	"context"
	"sync"

	"github.com/neuronlabs/docorm/document"
	"github.com/neuronlabs/docorm/errors"
	"github.com/neuronlabs/docorm/repository"
)

// Subscription keeps the document in sync with the changes of its stored row.
type Subscription struct {
	doc    *document.Document
	feed   repository.Feed
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe starts listening for the changes of the document's row. Each change is applied on the
// document and the EventChange is emitted. Deleting the row clears the document and marks it as not saved.
// A feed failure is emitted as the EventError and ends the subscription.
func (db *Database) Subscribe(ctx context.Context, d *document.Document) (*Subscription, error) {
	if err := db.checkModel(d); err != nil {
		return nil, err
	}
	pk, ok := d.PrimaryKey()
	if !ok {
		return nil, errors.Wrapf(ErrNoPrimaryKey, "subscribing for: %s", d)
	}
	ctx, cancel := context.WithCancel(ctx)
	feed, err := db.repo.Changes(ctx, d.Model().Table(), pk)
	if err != nil {
		cancel()
		return nil, err
	}
	s := &Subscription{doc: d, feed: feed, cancel: cancel, done: make(chan struct{})}
	go s.listen(ctx)
	logger.Debug2f("subscribed for the changes of: %s", d)
	return s, nil
}

func (s *Subscription) listen(ctx context.Context) {
	defer close(s.done)
	for {
		change, err := s.feed.Next(ctx)
		if err != nil {
			if errors.Is(err, repository.ErrClosed) || ctx.Err() != nil {
				logger.Debug3f("subscription for: %s ended", s.doc)
				return
			}
			logger.Errorf("change feed of: %s failed: %v", s.doc, err)
			s.doc.Emit(document.EventError, err)
			return
		}
		document.ApplyChange(s.doc, change.NewValue)
	}
}

// Done gets the channel closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops the subscription and waits until its listener is finished.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.feed.Close()
	})
	<-s.done
	return err
}
