package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chmouel/lazystatus/internal/log"
	"github.com/chmouel/lazystatus/internal/metrics"
	"github.com/chmouel/lazystatus/internal/utils"
	"github.com/chmouel/lazystatus/internal/worker"
)

// ErrStageFailure wraps failures of stage and unstage operations.
var ErrStageFailure = errors.New("stage operation failed")

// Stage operation kinds.
const (
	OpStage   = "stage"
	OpUnstage = "unstage"
)

type stageEntry struct {
	op    worker.Op
	kind  string
	paths map[string]struct{}
}

// StageRegistry tracks asynchronous stage operations that have been queued
// but whose completion has not yet been applied.
type StageRegistry struct {
	mu      sync.RWMutex
	entries []*stageEntry
}

// NewStageRegistry returns an empty registry.
func NewStageRegistry() *StageRegistry {
	return &StageRegistry{}
}

// Add registers op as covering paths.
func (r *StageRegistry) Add(op worker.Op, kind string, paths []string) {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[utils.NormalizePath(p)] = struct{}{}
	}
	r.mu.Lock()
	r.entries = append(r.entries, &stageEntry{op: op, kind: kind, paths: set})
	r.mu.Unlock()
}

// Remove drops the registration of op.
func (r *StageRegistry) Remove(op worker.Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.op.ID() == op.ID() {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// Contains reports whether any registered op claims path.
func (r *StageRegistry) Contains(path string) bool {
	path = utils.NormalizePath(path)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if _, ok := e.paths[path]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of registered ops.
func (r *StageRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// StageAsync queues a stage of paths. The paths report IsPathStaging until
// the completion runs on the consumer.
func (e *Engine) StageAsync(paths []string) (worker.Op, error) {
	return e.stageAsync(OpStage, paths)
}

// UnstageAsync queues an unstage of paths.
func (e *Engine) UnstageAsync(paths []string) (worker.Op, error) {
	return e.stageAsync(OpUnstage, paths)
}

func (e *Engine) stageAsync(kind string, paths []string) (worker.Op, error) {
	repo := e.repo
	if repo == nil {
		return nil, fmt.Errorf("%w: %s: repository not loaded", ErrStageFailure, kind)
	}
	paths = normalizePaths(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s: no paths", ErrStageFailure, kind)
	}

	h := worker.SubmitLocked(e.workers, e.repoLock, kind, func(ctx context.Context) (struct{}, error) {
		if kind == OpUnstage {
			return struct{}{}, repo.Unstage(ctx, paths)
		}
		return struct{}{}, repo.Stage(ctx, paths)
	}, func(h *worker.Handle[struct{}]) error {
		e.stages.Remove(h)
		metrics.SetStagesInFlight(e.stages.Len())
		e.MarkDirty(paths...)
		var err error
		if _, ok := h.Result(); !ok {
			err = fmt.Errorf("%w: %s %v: %w", ErrStageFailure, kind, paths, h.Err())
			log.Errorf("%v", err)
		}
		metrics.RecordStage(kind, true, err == nil)
		e.events.stageDone(h, err)
		return nil
	})
	e.stages.Add(h, kind, paths)
	metrics.SetStagesInFlight(e.stages.Len())
	log.Debugf("queued %s #%d for %d paths", kind, h.ID(), len(paths))
	return h, nil
}

// StageSync stages paths on the calling goroutine and marks them dirty.
func (e *Engine) StageSync(paths []string) error {
	return e.stageSync(OpStage, paths)
}

// UnstageSync unstages paths on the calling goroutine and marks them dirty.
func (e *Engine) UnstageSync(paths []string) error {
	return e.stageSync(OpUnstage, paths)
}

func (e *Engine) stageSync(kind string, paths []string) error {
	if e.repo == nil {
		return fmt.Errorf("%w: %s: repository not loaded", ErrStageFailure, kind)
	}
	paths = normalizePaths(paths)
	if len(paths) == 0 {
		return nil
	}
	if e.repoLock.Held() {
		log.Debugf("%s waits for the %s lock", kind, e.repoLock.Name())
	}
	if err := e.repoLock.Acquire(e.ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStageFailure, kind, err)
	}
	var err error
	if kind == OpUnstage {
		err = e.repo.Unstage(e.ctx, paths)
	} else {
		err = e.repo.Stage(e.ctx, paths)
	}
	e.repoLock.Release()
	e.MarkDirty(paths...)
	metrics.RecordStage(kind, false, err == nil)
	if err != nil {
		return fmt.Errorf("%w: %s %v: %w", ErrStageFailure, kind, paths, err)
	}
	return nil
}

// AutoStage stages paths in the background when stage threading is enabled,
// synchronously otherwise.
func (e *Engine) AutoStage(paths []string) error {
	if e.Threading().Has(ThreadingStage) {
		_, err := e.StageAsync(paths)
		return err
	}
	return e.StageSync(paths)
}

// AutoUnstage is AutoStage for unstaging.
func (e *Engine) AutoUnstage(paths []string) error {
	if e.Threading().Has(ThreadingUnstage) {
		_, err := e.UnstageAsync(paths)
		return err
	}
	return e.UnstageSync(paths)
}

// IsPathStaging reports whether a queued stage operation covers path.
func (e *Engine) IsPathStaging(path string) bool {
	return e.stages.Contains(path)
}

// IsAsyncStaging reports whether any stage operation is pending. The gate
// stays busy meanwhile so a reload never disposes a handle a job still uses.
func (e *Engine) IsAsyncStaging() bool {
	return e.stages.Len() > 0
}

func normalizePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		p = utils.NormalizePath(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
