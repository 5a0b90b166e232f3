// Package worker runs blocking work off the consumer goroutine and hands
// results back through an ActionQueue.
package worker

import "context"

// Lock is a named token held by at most one running job at a time.
type Lock struct {
	name string
	ch   chan struct{}
}

// NewLock creates an unheld lock.
func NewLock(name string) *Lock {
	return &Lock{name: name, ch: make(chan struct{}, 1)}
}

// Name identifies the lock in logs and metrics.
func (l *Lock) Name() string { return l.name }

// Acquire blocks until the token is free or ctx is done.
func (l *Lock) Acquire(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns the token. Releasing an unheld lock is a no-op.
func (l *Lock) Release() {
	select {
	case <-l.ch:
	default:
	}
}

// Held reports whether a job currently owns the token.
func (l *Lock) Held() bool {
	return len(l.ch) == 1
}
