package engine

import (
	"sync"

	"github.com/chmouel/lazystatus/internal/git"
	"github.com/chmouel/lazystatus/internal/status"
	"github.com/chmouel/lazystatus/internal/worker"
)

// Subscribers are always invoked on the consumer goroutine, from Tick or
// from the synchronous calls that trigger them.
type subscribers struct {
	mu                sync.RWMutex
	updateStarting    []func(paths []string)
	updateFinished    []func()
	snapshotPublished []func(snap *status.Snapshot, paths []string)
	repositoryLoaded  []func(repo git.Repository)
	stageDoneFns      []func(op worker.Op, err error)
}

// OnUpdateStarting registers fn for the start of every update. paths is nil
// for a full update.
func (e *Engine) OnUpdateStarting(fn func(paths []string)) {
	e.events.mu.Lock()
	defer e.events.mu.Unlock()
	e.events.updateStarting = append(e.events.updateStarting, fn)
}

// OnUpdateFinished registers fn for the end of every update, successful or not.
func (e *Engine) OnUpdateFinished(fn func()) {
	e.events.mu.Lock()
	defer e.events.mu.Unlock()
	e.events.updateFinished = append(e.events.updateFinished, fn)
}

// OnSnapshotPublished registers fn for every newly published view.
func (e *Engine) OnSnapshotPublished(fn func(snap *status.Snapshot, paths []string)) {
	e.events.mu.Lock()
	defer e.events.mu.Unlock()
	e.events.snapshotPublished = append(e.events.snapshotPublished, fn)
}

// OnRepositoryLoaded registers fn for every (re)opened repository handle.
func (e *Engine) OnRepositoryLoaded(fn func(repo git.Repository)) {
	e.events.mu.Lock()
	defer e.events.mu.Unlock()
	e.events.repositoryLoaded = append(e.events.repositoryLoaded, fn)
}

// OnStageDone registers fn for completed asynchronous stage operations.
func (e *Engine) OnStageDone(fn func(op worker.Op, err error)) {
	e.events.mu.Lock()
	defer e.events.mu.Unlock()
	e.events.stageDoneFns = append(e.events.stageDoneFns, fn)
}

func (s *subscribers) starting(paths []string) {
	s.mu.RLock()
	fns := s.updateStarting
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(paths)
	}
}

func (s *subscribers) finished() {
	s.mu.RLock()
	fns := s.updateFinished
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *subscribers) published(snap *status.Snapshot, paths []string) {
	s.mu.RLock()
	fns := s.snapshotPublished
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(snap, paths)
	}
}

func (s *subscribers) loaded(repo git.Repository) {
	s.mu.RLock()
	fns := s.repositoryLoaded
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(repo)
	}
}

func (s *subscribers) stageDone(op worker.Op, err error) {
	s.mu.RLock()
	fns := s.stageDoneFns
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(op, err)
	}
}
