// Package engine keeps a live status view of a git working tree. Expensive
// scans run on worker goroutines; their results are applied by Tick on the
// single consumer goroutine that owns the repository handle and the view.
package engine

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chmouel/lazystatus/internal/git"
	"github.com/chmouel/lazystatus/internal/log"
	"github.com/chmouel/lazystatus/internal/metrics"
	"github.com/chmouel/lazystatus/internal/models"
	"github.com/chmouel/lazystatus/internal/status"
	"github.com/chmouel/lazystatus/internal/utils"
	"github.com/chmouel/lazystatus/internal/worker"
)

// Options configures an Engine.
type Options struct {
	RepoPath string
	// Backend is passed to git.Open.
	Backend   string
	Threading Threading
	Affectors []ThreadingAffector

	OverlayDepth        int
	ShowEmptyFolderMeta bool
	DetectRenames       models.RenameDetection

	Host HostSignals

	// Opener and IsValidRepo default to git.Open and git.IsValidRepo.
	Opener      func(path, backend string) (git.Repository, error)
	IsValidRepo func(path string) bool
}

// View is the published, immutable pairing of a snapshot and its tree.
type View struct {
	Snapshot *status.Snapshot
	Tree     *status.Tree
	Version  uint64
	Branch   string
	// Paths is the scope of the update that produced the view, nil when full.
	Paths []string
}

type scanOutcome struct {
	result *status.Result
	branch string
}

// Engine orchestrates dirty tracking, rescans and staging.
type Engine struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	view    atomic.Pointer[View]
	version uint64

	// consumer-owned
	repo            git.Repository
	openFailed      bool
	repositoryDirty atomic.Bool
	reloadDirty     atomic.Bool
	closed          atomic.Bool

	dirty *status.DirtyTracker

	retainMu   sync.Mutex
	retained   map[string]struct{}
	retainFull bool

	updating      atomic.Bool
	updatingMu    sync.RWMutex
	updatingPaths map[string]struct{}

	gate atomic.Int32

	actions  *worker.ActionQueue
	workers  *worker.Queue
	repoLock *worker.Lock
	treeLock *worker.Lock

	stages *StageRegistry
	events subscribers
}

// New creates an engine. Nothing is scanned until the first Tick.
func New(opts Options) *Engine {
	if opts.Host == nil {
		opts.Host = NoHost{}
	}
	if opts.Opener == nil {
		opts.Opener = git.Open
	}
	if opts.IsValidRepo == nil {
		opts.IsValidRepo = git.IsValidRepo
	}
	ctx, cancel := context.WithCancel(context.Background())
	actions := worker.NewActionQueue()
	actions.OnDrain(metrics.RecordActionsDrained)
	e := &Engine{
		opts:          opts,
		ctx:           ctx,
		cancel:        cancel,
		dirty:         status.NewDirtyTracker(),
		retained:      make(map[string]struct{}),
		updatingPaths: make(map[string]struct{}),
		actions:       actions,
		workers:       worker.NewQueue(ctx, actions),
		repoLock:      worker.NewLock("repository"),
		treeLock:      worker.NewLock("tree"),
		stages:        NewStageRegistry(),
	}
	e.repositoryDirty.Store(true)
	return e
}

// Threading returns the configured mask after every affector has run.
func (e *Engine) Threading() Threading {
	t := e.opts.Threading
	for _, affect := range e.opts.Affectors {
		t = affect(t)
	}
	return t
}

// RepoPath returns the configured working tree path.
func (e *Engine) RepoPath() string { return e.opts.RepoPath }

// Repository returns the current handle, nil until loaded. Consumer only.
func (e *Engine) Repository() git.Repository { return e.repo }

// MarkDirty queues paths for a scoped rescan. Paths retained from a failed
// update are folded back in. Safe from any goroutine.
func (e *Engine) MarkDirty(paths ...string) {
	if len(paths) == 0 {
		return
	}
	e.dirty.Mark(paths...)

	e.retainMu.Lock()
	defer e.retainMu.Unlock()
	if len(e.retained) > 0 {
		folded := make([]string, 0, len(e.retained))
		for p := range e.retained {
			folded = append(folded, p)
		}
		e.dirty.Mark(folded...)
		e.retained = make(map[string]struct{})
	}
	if e.retainFull {
		e.retainFull = false
		e.repositoryDirty.Store(true)
	}
}

// MarkReload requests a full rescan on the next ready tick, reopening the
// repository handle first when reload is set.
func (e *Engine) MarkReload(reload bool) {
	e.repositoryDirty.Store(true)
	if reload {
		e.reloadDirty.Store(true)
	}
}

// Tick advances the engine by one frame: it evaluates the gate, starts an
// update when allowed and runs the actions delivered since the last tick.
// It must only be called from the consumer goroutine.
func (e *Engine) Tick() error {
	if e.closed.Load() {
		return nil
	}
	busy := e.updating.Load() || e.IsAsyncStaging()
	gate := computeGate(e.opts.IsValidRepo(e.opts.RepoPath), e.opts.Host, busy)
	e.gate.Store(int32(gate))
	metrics.SetGate(int(gate))

	if gate == GateReady {
		switch {
		case (e.repo == nil && !e.openFailed) || e.repositoryDirty.Load():
			reload := e.reloadDirty.Swap(false)
			e.repositoryDirty.Store(false)
			// a full rescan covers every pending path
			e.dirty.Drain()
			e.update(reload, nil)
		case e.repo != nil && e.dirty.Len() > 0:
			e.update(e.reloadDirty.Swap(false), e.dirty.Drain())
		}
	}
	metrics.SetDirtyPaths(e.dirty.Len())

	return e.actions.DrainOnce()
}

func (e *Engine) update(reload bool, paths []string) {
	if v := e.view.Load(); v == nil {
		paths = nil
	} else {
		paths = withKnownChildren(v.Snapshot, paths)
	}
	full := len(paths) == 0
	e.startUpdating(paths)

	if e.repo == nil || reload {
		if e.repo != nil {
			if err := e.repo.Close(); err != nil {
				log.Warnf("closing repository: %v", err)
			}
			e.repo = nil
		}
		repo, err := e.opts.Opener(e.opts.RepoPath, e.opts.Backend)
		if err != nil {
			log.Errorf("opening repository %s: %v", e.opts.RepoPath, err)
			e.openFailed = true
			// a new handle always starts with a full rescan
			e.retain(nil)
			e.finishUpdating()
			return
		}
		e.openFailed = false
		e.repo = repo
		log.Infof("repository loaded: %s", repo.Path())
		e.events.loaded(repo)
	}

	if e.Threading().Has(ThreadingStatus) {
		e.scanAsync(paths, full)
	} else {
		e.scanSync(paths, full)
	}
}

// withKnownChildren adds the snapshot entries below each dirty path, so a
// removed or renamed directory refreshes the files it used to hold.
func withKnownChildren(snap *status.Snapshot, paths []string) []string {
	below := snap.Below(paths)
	if len(below) == 0 {
		return paths
	}
	out := append(append(make([]string, 0, len(paths)+len(below)), paths...), below...)
	sort.Strings(out)
	return slices.Compact(out)
}

func (e *Engine) scanOptions() models.ScanOptions {
	return models.ScanOptions{DetectRenames: e.opts.DetectRenames}
}

func (e *Engine) runScan(ctx context.Context, repo git.Repository, paths []string, full bool) (scanOutcome, error) {
	res, err := status.Scan(ctx, repo, paths, full, e.scanOptions())
	if err != nil {
		return scanOutcome{}, err
	}
	branch, err := repo.Branch(ctx)
	if err != nil {
		log.Debugf("resolving branch: %v", err)
	}
	return scanOutcome{result: res, branch: branch}, nil
}

func (e *Engine) scanSync(paths []string, full bool) {
	if err := e.repoLock.Acquire(e.ctx); err != nil {
		e.scanFailed(paths, full, err)
		return
	}
	out, err := e.runScan(e.ctx, e.repo, paths, full)
	e.repoLock.Release()
	if err != nil {
		e.scanFailed(paths, full, err)
		return
	}
	e.applyOutcome(out, paths)
}

func (e *Engine) scanAsync(paths []string, full bool) {
	repo := e.repo
	worker.SubmitLocked(e.workers, e.repoLock, "status", func(ctx context.Context) (scanOutcome, error) {
		return e.runScan(ctx, repo, paths, full)
	}, func(h *worker.Handle[scanOutcome]) error {
		if e.closed.Load() {
			return nil
		}
		out, ok := h.Result()
		if !ok {
			e.scanFailed(paths, full, h.Err())
			return nil
		}
		e.applyOutcome(out, paths)
		return nil
	})
}

func scanKind(full bool) string {
	if full {
		return "full"
	}
	return "scoped"
}

func (e *Engine) scanFailed(paths []string, full bool, err error) {
	metrics.RecordRescan(scanKind(full), 0, false)
	if errors.Is(err, status.ErrInterruptedScan) || errors.Is(err, context.Canceled) {
		log.Infof("%s rescan interrupted: %v", scanKind(full), err)
	} else {
		log.Errorf("could not retrieve git status: %v", err)
	}
	if full {
		e.retain(nil)
	} else {
		e.retain(paths)
	}
	e.finishUpdating()
}

// retain keeps the scope of a failed update until the next external mark.
// nil means the failed update was a full one.
func (e *Engine) retain(paths []string) {
	e.retainMu.Lock()
	defer e.retainMu.Unlock()
	if len(paths) == 0 {
		e.retainFull = true
		return
	}
	for _, p := range paths {
		e.retained[p] = struct{}{}
	}
}

func (e *Engine) treeOptions() status.TreeOptions {
	root := e.opts.RepoPath
	return status.TreeOptions{
		OverlayDepth:        e.opts.OverlayDepth,
		ShowEmptyFolderMeta: e.opts.ShowEmptyFolderMeta,
		IsEmptyFolderMeta: func(p string) bool {
			return utils.IsEmptyFolderMeta(root, p)
		},
	}
}

func (e *Engine) applyOutcome(out scanOutcome, paths []string) {
	res := out.result
	metrics.RecordRescan(scanKind(res.Full), res.Duration, true)

	var current *status.Snapshot
	if v := e.view.Load(); v != nil {
		current = v.Snapshot
	}
	snap := res.Apply(current)
	topts := e.treeOptions()

	if !e.Threading().Has(ThreadingTree) {
		e.publish(snap, status.BuildTree(snap, topts), out.branch, paths)
		e.finishUpdating()
		return
	}
	worker.SubmitLocked(e.workers, e.treeLock, "tree", func(context.Context) (*status.Tree, error) {
		return status.BuildTree(snap, topts), nil
	}, func(h *worker.Handle[*status.Tree]) error {
		if e.closed.Load() {
			return nil
		}
		tree, ok := h.Result()
		if !ok {
			log.Errorf("building status tree: %v", h.Err())
			e.finishUpdating()
			return nil
		}
		e.publish(snap, tree, out.branch, paths)
		e.finishUpdating()
		return nil
	})
}

func (e *Engine) publish(snap *status.Snapshot, tree *status.Tree, branch string, paths []string) {
	e.version++
	v := &View{Snapshot: snap, Tree: tree, Version: e.version, Branch: branch, Paths: paths}
	e.view.Store(v)
	metrics.SetSnapshot(snap.Len(), v.Version)
	log.Debugf("published view v%d with %d entries", v.Version, snap.Len())
	e.events.published(snap, paths)
}

func (e *Engine) startUpdating(paths []string) {
	e.updating.Store(true)
	e.updatingMu.Lock()
	e.updatingPaths = make(map[string]struct{}, len(paths))
	for _, p := range paths {
		e.updatingPaths[p] = struct{}{}
	}
	e.updatingMu.Unlock()
	e.events.starting(paths)
}

func (e *Engine) finishUpdating() {
	e.updating.Store(false)
	e.updatingMu.Lock()
	e.updatingPaths = make(map[string]struct{})
	e.updatingMu.Unlock()
	e.events.finished()
}

// View returns the current published view, nil before the first scan.
func (e *Engine) View() *View { return e.view.Load() }

// Snapshot returns the published snapshot.
func (e *Engine) Snapshot() *status.Snapshot {
	if v := e.view.Load(); v != nil {
		return v.Snapshot
	}
	return nil
}

// Tree returns the published status tree.
func (e *Engine) Tree() *status.Tree {
	if v := e.view.Load(); v != nil {
		return v.Tree
	}
	return nil
}

// Resolve looks path up in the published tree.
func (e *Engine) Resolve(path string) *status.TreeEntry {
	return e.Tree().Resolve(path)
}

// Gate returns the gate computed by the last Tick.
func (e *Engine) Gate() Gate { return Gate(e.gate.Load()) }

// IsUpdating reports whether an update is in flight.
func (e *Engine) IsUpdating() bool { return e.updating.Load() }

// IsPathDirty reports whether path waits for a rescan, including paths
// retained after a failed update.
func (e *Engine) IsPathDirty(path string) bool {
	if e.dirty.Contains(path) {
		return true
	}
	e.retainMu.Lock()
	defer e.retainMu.Unlock()
	_, ok := e.retained[utils.NormalizePath(path)]
	return ok
}

// IsPathUpdating reports whether path is part of the update in flight.
// Every path is updating during a full update.
func (e *Engine) IsPathUpdating(path string) bool {
	if !e.updating.Load() {
		return false
	}
	e.updatingMu.RLock()
	defer e.updatingMu.RUnlock()
	if len(e.updatingPaths) == 0 {
		return true
	}
	_, ok := e.updatingPaths[utils.NormalizePath(path)]
	return ok
}

func (e *Engine) pendingCount() int {
	e.retainMu.Lock()
	n := len(e.retained)
	e.retainMu.Unlock()
	return n + e.dirty.Len()
}

// Settle ticks every interval until a view is published and no work is
// pending, or ctx is done.
func (e *Engine) Settle(ctx context.Context, interval time.Duration) (*View, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := e.Tick(); err != nil {
			log.Warnf("tick: %v", err)
		}
		if e.idle() {
			if v := e.View(); v != nil {
				return v, nil
			}
			if e.openFailed {
				return nil, git.ErrInvalidRepository
			}
		}
		if e.Gate() == GateInvalidRepo {
			return nil, git.ErrInvalidRepository
		}
		select {
		case <-ctx.Done():
			return e.View(), ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) idle() bool {
	return !e.updating.Load() &&
		!e.repositoryDirty.Load() &&
		e.dirty.Len() == 0 &&
		e.stages.Len() == 0 &&
		e.actions.Len() == 0 &&
		e.workers.InFlight() == 0
}

// Close stops accepting work, waits for running jobs and releases the
// repository handle. Results of cancelled jobs are discarded.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.cancel()
	e.workers.Wait()
	if e.repo == nil {
		return nil
	}
	err := e.repo.Close()
	e.repo = nil
	return err
}
