package repository

import (
	"context"
	"sync"

	"github.com/neuronlabs/docorm/errors"
)

// QueueFeed is the Feed implementation with an unbounded queue of changes.
// The producers never block on Push.
type QueueFeed struct {
	mu      sync.Mutex
	queue   []*Change
	err     error
	closed  bool
	notify  chan struct{}
	onClose func()
}

// NewQueueFeed creates new feed. The 'onClose' function is called once, when the feed is closed.
func NewQueueFeed(onClose func()) *QueueFeed {
	return &QueueFeed{notify: make(chan struct{}, 1), onClose: onClose}
}

// Push adds the change to the feed. The changes pushed after the feed is closed are dropped.
func (f *QueueFeed) Push(c *Change) {
	f.mu.Lock()
	if f.closed || f.err != nil {
		f.mu.Unlock()
		return
	}
	f.queue = append(f.queue, c)
	f.mu.Unlock()
	f.signal()
}

// Fail ends the feed with the 'err'. The queued changes are still delivered before the error.
func (f *QueueFeed) Fail(err error) {
	f.mu.Lock()
	if f.err == nil && !f.closed {
		f.err = err
	}
	f.mu.Unlock()
	f.signal()
}

// Next implements Feed interface.
func (f *QueueFeed) Next(ctx context.Context) (*Change, error) {
	for {
		f.mu.Lock()
		switch {
		case f.closed:
			f.mu.Unlock()
			return nil, errors.WrapDet(ErrClosed, "feed is closed", "")
		case len(f.queue) > 0:
			c := f.queue[0]
			f.queue[0] = nil
			f.queue = f.queue[1:]
			f.mu.Unlock()
			return c, nil
		case f.err != nil:
			err := f.err
			f.mu.Unlock()
			return nil, err
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.notify:
		}
	}
}

// Close implements Feed interface.
func (f *QueueFeed) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.queue = nil
	onClose := f.onClose
	f.mu.Unlock()
	f.signal()
	if onClose != nil {
		onClose()
	}
	return nil
}

func (f *QueueFeed) signal() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}
