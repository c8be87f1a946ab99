package database

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type job func(ctx context.Context) error

// fanOut runs the jobs concurrently, limited by the MaxConcurrency option. It waits until all
// the jobs are finished and returns the first error, so it doesn't return before the failed
// siblings settle. The jobs started before the failure are not cancelled.
func (db *Database) fanOut(ctx context.Context, jobs []job) error {
	switch len(jobs) {
	case 0:
		return nil
	case 1:
		return jobs[0](ctx)
	}
	g := &errgroup.Group{}
	if db.options.MaxConcurrency > 0 {
		g.SetLimit(db.options.MaxConcurrency)
	}
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			return j(ctx)
		})
	}
	return g.Wait()
}

// tableSet is the set of the tables visited within a cascade branch.
type tableSet map[string]struct{}

func (t tableSet) with(tables ...string) tableSet {
	result := make(tableSet, len(t)+len(tables))
	for table := range t {
		result[table] = struct{}{}
	}
	for _, table := range tables {
		result[table] = struct{}{}
	}
	return result
}
