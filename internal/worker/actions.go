package worker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chmouel/lazystatus/internal/log"
)

// ActionQueue carries callbacks from worker goroutines to the single
// consumer goroutine. Enqueue is safe from anywhere; DrainOnce must only be
// called by the consumer.
type ActionQueue struct {
	mu      sync.Mutex
	pending []func() error
	onDrain func(n int)
}

// NewActionQueue returns an empty queue.
func NewActionQueue() *ActionQueue {
	return &ActionQueue{}
}

// OnDrain registers a hook that receives the size of every drained batch.
func (q *ActionQueue) OnDrain(fn func(n int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDrain = fn
}

// Enqueue appends an action for the next drain.
func (q *ActionQueue) Enqueue(action func() error) {
	if action == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, action)
	q.mu.Unlock()
}

// Len returns the number of pending actions.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// DrainOnce runs exactly the actions pending at entry, in FIFO order.
// Actions enqueued while draining wait for the next call. A failing or
// panicking action is logged and does not stop the rest of the batch; all
// failures are joined into the returned error.
func (q *ActionQueue) DrainOnce() error {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	onDrain := q.onDrain
	q.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if onDrain != nil {
		onDrain(len(batch))
	}

	var errs []error
	for _, action := range batch {
		if err := runAction(action); err != nil {
			log.Errorf("action failed: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func runAction(action func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()
	return action()
}
