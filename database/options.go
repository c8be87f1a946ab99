package database

import (
	"time"
)

// DefaultMaxConcurrency is the default limit of the concurrent operations within a single cascade step.
const DefaultMaxConcurrency = 8

// Options are the database settings.
type Options struct {
	// MaxConcurrency limits the number of the concurrent operations within a single cascade step.
	// Non positive value means no limit.
	MaxConcurrency int
	// ReadyTimeout is the timeout of the Ready call if the context has no deadline.
	ReadyTimeout time.Duration
	// CloseTimeout is the timeout of the Close call if the context has no deadline.
	CloseTimeout time.Duration
}

// Option is an option function for the database settings.
type Option func(o *Options)

// WithMaxConcurrency sets the concurrency limit of a single cascade step.
func WithMaxConcurrency(limit int) Option {
	return func(o *Options) {
		o.MaxConcurrency = limit
	}
}

// WithReadyTimeout sets the default timeout of the Ready call.
func WithReadyTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.ReadyTimeout = timeout
	}
}

// WithCloseTimeout sets the default timeout of the Close call.
func WithCloseTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.CloseTimeout = timeout
	}
}

func defaultOptions() *Options {
	return &Options{
		MaxConcurrency: DefaultMaxConcurrency,
		ReadyTimeout:   time.Second * 30,
		CloseTimeout:   time.Second * 30,
	}
}
