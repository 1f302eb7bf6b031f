package finance

import (
	"context"
	"sync"

	appErrors "github.com/hamdibenjarrar/DinarWise/customErrors"
)

var errStoreClosed = appErrors.ErrorResponse{
	Code:    appErrors.ErrInternal,
	Message: "transaction store is closed",
}

// mutationQueue runs submitted operations one at a time, in the order they were
// handed over, on a single goroutine.
type mutationQueue struct {
	ops       chan func()
	stopped   chan struct{}
	closeOnce sync.Once
}

func newMutationQueue() *mutationQueue {
	q := &mutationQueue{
		ops:     make(chan func()),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *mutationQueue) run() {
	for {
		select {
		case op := <-q.ops:
			op()
		case <-q.stopped:
			return
		}
	}
}

// do blocks until fn has run on the queue goroutine and returns its error.
// A caller whose ctx ends before fn is dequeued gets ctx.Err() and fn never runs.
func (q *mutationQueue) do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	op := func() { done <- fn() }

	select {
	case <-q.stopped:
		return errStoreClosed
	default:
	}

	select {
	case q.ops <- op:
	case <-q.stopped:
		return errStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-done
}

func (q *mutationQueue) close() {
	q.closeOnce.Do(func() { close(q.stopped) })
}
