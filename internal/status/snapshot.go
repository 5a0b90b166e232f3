// Package status holds the repository status snapshot, the scans that
// produce it, the aggregated status tree and dirty-path tracking.
package status

import (
	"sort"
	"strings"

	"github.com/chmouel/lazystatus/internal/models"
	"github.com/chmouel/lazystatus/internal/utils"
)

// Snapshot is an immutable path to status mapping. Updates always produce a
// new Snapshot; readers can hold on to one without locking.
type Snapshot struct {
	entries map[string]models.StatusEntry
}

// NewSnapshot builds a snapshot from scan entries. Later duplicates win.
func NewSnapshot(entries []models.StatusEntry) *Snapshot {
	s := &Snapshot{entries: make(map[string]models.StatusEntry, len(entries))}
	for _, e := range entries {
		e.Path = utils.NormalizePath(e.Path)
		if e.Path == "" {
			continue
		}
		s.entries[e.Path] = e
	}
	return s
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Get looks up the entry for a path.
func (s *Snapshot) Get(path string) (models.StatusEntry, bool) {
	if s == nil {
		return models.StatusEntry{}, false
	}
	e, ok := s.entries[utils.NormalizePath(path)]
	return e, ok
}

// Status returns the flags of a path, Unaltered when absent.
func (s *Snapshot) Status(path string) models.StatusFlags {
	e, _ := s.Get(path)
	return e.Status
}

// Entries returns all entries sorted by path.
func (s *Snapshot) Entries() []models.StatusEntry {
	if s == nil {
		return nil
	}
	out := make([]models.StatusEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Merge returns a copy of s with updates applied. Entries of s that are not
// part of updates are carried over unchanged; an Unaltered update is stored
// as-is so the path stays known. s is never modified.
func (s *Snapshot) Merge(updates []models.StatusEntry) *Snapshot {
	size := s.Len() + len(updates)
	out := &Snapshot{entries: make(map[string]models.StatusEntry, size)}
	if s != nil {
		for k, v := range s.entries {
			out.entries[k] = v
		}
	}
	for _, e := range updates {
		e.Path = utils.NormalizePath(e.Path)
		if e.Path == "" {
			continue
		}
		out.entries[e.Path] = e
	}
	return out
}

// Below returns the known paths strictly under any of dirs, sorted.
func (s *Snapshot) Below(dirs []string) []string {
	if s.Len() == 0 || len(dirs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(dirs))
	for _, d := range dirs {
		if d = utils.NormalizePath(d); d != "" {
			set[d] = struct{}{}
		}
	}
	var out []string
	for p := range s.entries {
		for i := strings.LastIndexByte(p, '/'); i > 0; i = strings.LastIndexByte(p[:i], '/') {
			if _, ok := set[p[:i]]; ok {
				out = append(out, p)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Counts tallies entries by broad category for headers and metrics.
type Counts struct {
	Total      int
	Staged     int
	Unstaged   int
	Untracked  int
	Conflicted int
	Ignored    int
}

// Counts computes category totals. A path can count in more than one bucket.
func (s *Snapshot) Counts() Counts {
	var c Counts
	if s == nil {
		return c
	}
	for _, e := range s.entries {
		if e.Status.IsUnaltered() {
			continue
		}
		c.Total++
		if e.Status.CanUnstage() {
			c.Staged++
		}
		if e.Status.Has(models.StatusNewInWorkdir) {
			c.Untracked++
		} else if e.Status.CanStage() {
			c.Unstaged++
		}
		if e.Status.Has(models.StatusConflicted) {
			c.Conflicted++
		}
		if e.Status.Has(models.StatusIgnored) {
			c.Ignored++
		}
	}
	return c
}
