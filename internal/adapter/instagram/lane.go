// internal/adapter/instagram/lane.go

package instagram

import (
	"context"
	"errors"
	"sync"
)

// ErrLaneClosed is returned by Do after Close
var ErrLaneClosed = errors.New("instagram lane closed")

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context)
	done chan struct{}
}

// Lane runs jobs one at a time on a single worker goroutine. Callers that
// arrive while a job is running wait their turn.
type Lane struct {
	jobs      chan job
	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewLane starts the worker
func NewLane() *Lane {
	l := &Lane{
		jobs: make(chan job),
		quit: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.run()

	return l
}

func (l *Lane) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.quit:
			return
		case j := <-l.jobs:
			// The caller may have given up while queued
			if j.ctx.Err() == nil {
				j.fn(j.ctx)
			}
			close(j.done)
		}
	}
}

// Do runs fn on the lane and waits for it to finish. If ctx ends first,
// Do returns ctx.Err() and the caller must not read anything fn writes.
func (l *Lane) Do(ctx context.Context, fn func(ctx context.Context)) error {
	j := job{ctx: ctx, fn: fn, done: make(chan struct{})}

	select {
	case l.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrLaneClosed
	}

	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker after the running job, if any, completes
func (l *Lane) Close() {
	l.closeOnce.Do(func() {
		close(l.quit)
	})
	l.wg.Wait()
}
