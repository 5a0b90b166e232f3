package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chmouel/lazystatus/internal/log"
)

// Op identifies a submitted job independently of its result type.
type Op interface {
	ID() uint64
	IsDone() bool
}

// Handle tracks one submitted job.
type Handle[T any] struct {
	id     uint64
	name   string
	done   chan struct{}
	result T
	ok     bool
	err    error
}

// ID returns the unique job id.
func (h *Handle[T]) ID() uint64 { return h.id }

// Name returns the label given at submission.
func (h *Handle[T]) Name() string { return h.name }

// IsDone reports whether the job has finished, successfully or not.
func (h *Handle[T]) IsDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done is closed when the job finishes.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Result returns the job's value. ok is false when the job failed or is
// still running.
func (h *Handle[T]) Result() (T, bool) {
	if !h.IsDone() {
		var zero T
		return zero, false
	}
	return h.result, h.ok
}

// Err returns the failure of a finished job.
func (h *Handle[T]) Err() error {
	if !h.IsDone() {
		return nil
	}
	return h.err
}

// Queue spawns job goroutines and routes their completions to an ActionQueue.
type Queue struct {
	ctx      context.Context
	actions  *ActionQueue
	nextID   atomic.Uint64
	inflight atomic.Int64
	wg       sync.WaitGroup
}

// NewQueue creates a queue whose jobs receive ctx and whose completion
// callbacks are enqueued on actions.
func NewQueue(ctx context.Context, actions *ActionQueue) *Queue {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Queue{ctx: ctx, actions: actions}
}

// Actions returns the completion queue.
func (q *Queue) Actions() *ActionQueue { return q.actions }

// InFlight returns the number of jobs not yet finished.
func (q *Queue) InFlight() int64 { return q.inflight.Load() }

// Wait blocks until every submitted job has finished. Completion callbacks
// may still be pending on the ActionQueue.
func (q *Queue) Wait() { q.wg.Wait() }

// Submit runs work on a new goroutine. onComplete, when non-nil, is enqueued
// on the ActionQueue after the handle is done, so it runs on the consumer.
func Submit[T any](q *Queue, name string, work func(ctx context.Context) (T, error), onComplete func(*Handle[T]) error) *Handle[T] {
	return SubmitLocked(q, nil, name, work, onComplete)
}

// SubmitLocked is Submit with the job holding lock for the duration of work.
// Jobs sharing a lock never run concurrently.
func SubmitLocked[T any](q *Queue, lock *Lock, name string, work func(ctx context.Context) (T, error), onComplete func(*Handle[T]) error) *Handle[T] {
	h := &Handle[T]{
		id:   q.nextID.Add(1),
		name: name,
		done: make(chan struct{}),
	}
	q.inflight.Add(1)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		runJob(q.ctx, h, lock, work)
		q.inflight.Add(-1)
		close(h.done)
		if onComplete != nil {
			q.actions.Enqueue(func() error { return onComplete(h) })
		}
	}()
	return h
}

func runJob[T any](ctx context.Context, h *Handle[T], lock *Lock, work func(ctx context.Context) (T, error)) {
	defer func() {
		if r := recover(); r != nil {
			h.err = fmt.Errorf("job %s#%d panicked: %v", h.name, h.id, r)
			h.ok = false
			log.Errorf("%v", h.err)
		}
	}()

	if lock != nil {
		if err := lock.Acquire(ctx); err != nil {
			h.err = fmt.Errorf("job %s#%d: waiting for %s lock: %w", h.name, h.id, lock.Name(), err)
			log.Debugf("%v", h.err)
			return
		}
		defer lock.Release()
	}

	res, err := work(ctx)
	if err != nil {
		h.err = err
		log.Warnf("job %s#%d failed: %v", h.name, h.id, err)
		return
	}
	h.result = res
	h.ok = true
}
