package explore

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Scheduler bounds parallelism with one pool per remaining depth and a
// separate pool for provider requests.
//
// A task with remaining depth d runs its children in pool d. Children have
// a strictly smaller depth and only ever wait on pools below d, so a task
// blocked on its children never holds up the pool it waits for.
type Scheduler struct {
	levels []*semaphore.Weighted
	fetch  *semaphore.Weighted
	width  int
}

// NewScheduler creates pools for depths 0..maxDepth, each width wide.
func NewScheduler(maxDepth, width int) *Scheduler {
	if width < 1 {
		width = 1
	}
	s := &Scheduler{
		levels: make([]*semaphore.Weighted, maxDepth+1),
		fetch:  semaphore.NewWeighted(int64(width)),
		width:  width,
	}
	for i := range s.levels {
		s.levels[i] = semaphore.NewWeighted(int64(width))
	}
	return s
}

// Width returns the size of every pool.
func (s *Scheduler) Width() int { return s.width }

// Levels returns the number of depth pools.
func (s *Scheduler) Levels() int { return len(s.levels) }

// Go waits for a slot in pool level and runs fn in g on it.
func (s *Scheduler) Go(ctx context.Context, g *errgroup.Group, level int, fn func() error) error {
	if level < 0 || level >= len(s.levels) {
		return fmt.Errorf("no pool for depth %d", level)
	}
	sem := s.levels[level]
	if err := sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.Go(func() error {
		defer sem.Release(1)
		return fn()
	})
	return nil
}

// Fetch runs fn on the request pool and waits for it.
func (s *Scheduler) Fetch(ctx context.Context, fn func()) error {
	if err := s.fetch.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.fetch.Release(1)
	fn()
	return nil
}
