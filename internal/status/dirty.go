package status

import (
	"sort"
	"sync"

	"github.com/chmouel/lazystatus/internal/utils"
)

// DirtyTracker collects paths that need their status recomputed.
// Marking is safe from any goroutine; duplicates collapse.
type DirtyTracker struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewDirtyTracker returns an empty tracker.
func NewDirtyTracker() *DirtyTracker {
	return &DirtyTracker{paths: make(map[string]struct{})}
}

// Mark adds paths to the dirty set.
func (d *DirtyTracker) Mark(paths ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range paths {
		p = utils.NormalizePath(p)
		if p == "" {
			continue
		}
		d.paths[p] = struct{}{}
	}
}

// Drain returns the dirty paths sorted and clears the set.
func (d *DirtyTracker) Drain() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(d.paths))
	for p := range d.paths {
		out = append(out, p)
	}
	d.paths = make(map[string]struct{})
	sort.Strings(out)
	return out
}

// Contains reports whether path is currently dirty.
func (d *DirtyTracker) Contains(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.paths[utils.NormalizePath(path)]
	return ok
}

// Len returns the number of distinct dirty paths.
func (d *DirtyTracker) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.paths)
}
