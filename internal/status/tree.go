package status

import (
	"sort"
	"strings"

	"github.com/chmouel/lazystatus/internal/models"
	"github.com/chmouel/lazystatus/internal/utils"
)

// TreeOptions controls how a Tree is derived from a Snapshot.
type TreeOptions struct {
	// OverlayDepth is how many levels above a leaf still get ForceStatus.
	OverlayDepth int
	// ShowEmptyFolderMeta keeps the real flags of empty-folder sidecars.
	// When false they are reported as Ignored.
	ShowEmptyFolderMeta bool
	// IsEmptyFolderMeta reports whether a path is the sidecar of an empty
	// folder. Nil means never.
	IsEmptyFolderMeta func(path string) bool
}

// TreeEntry is a node of the aggregated status tree. Entries are never
// modified after BuildTree returns.
type TreeEntry struct {
	depth       int
	status      models.StatusFlags
	forceStatus bool
	children    map[string]*TreeEntry
}

// Depth is the zero-based segment index of the node. The root is -1.
func (e *TreeEntry) Depth() int { return e.depth }

// Status is the OR of every entry at or below this node.
func (e *TreeEntry) Status() models.StatusFlags { return e.status }

// ForceStatus reports whether a client should overlay the status on this node.
func (e *TreeEntry) ForceStatus() bool { return e.forceStatus }

// IsLeaf reports whether the node has no children.
func (e *TreeEntry) IsLeaf() bool { return len(e.children) == 0 }

// Child returns the named child or nil.
func (e *TreeEntry) Child(name string) *TreeEntry {
	if e == nil {
		return nil
	}
	return e.children[name]
}

// Children returns the child names in sorted order.
func (e *TreeEntry) Children() []string {
	if e == nil || len(e.children) == 0 {
		return nil
	}
	names := make([]string, 0, len(e.children))
	for name := range e.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tree is the hierarchical aggregation of a Snapshot.
type Tree struct {
	root *TreeEntry
}

// Root returns the sentinel root node.
func (t *Tree) Root() *TreeEntry {
	if t == nil {
		return nil
	}
	return t.root
}

func newEntry(depth int) *TreeEntry {
	return &TreeEntry{depth: depth, children: make(map[string]*TreeEntry)}
}

func treeSegment(seg string) string {
	return strings.TrimSuffix(seg, utils.MetaExt)
}

func splitSegments(path string) []string {
	path = utils.NormalizePath(path)
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BuildTree aggregates snap into a tree. Each segment drops a trailing
// ".meta" so an asset and its sidecar share one node. A node is flagged
// ForceStatus when len(segments)-depth < OverlayDepth+1.
func BuildTree(snap *Snapshot, opts TreeOptions) *Tree {
	root := newEntry(-1)
	for _, entry := range snap.Entries() {
		segs := splitSegments(entry.Path)
		if len(segs) == 0 {
			continue
		}
		flags := entry.Status
		if !opts.ShowEmptyFolderMeta && opts.IsEmptyFolderMeta != nil && opts.IsEmptyFolderMeta(entry.Path) {
			flags = models.StatusIgnored
		}
		root.status |= flags

		node := root
		for depth, seg := range segs {
			name := treeSegment(seg)
			child, ok := node.children[name]
			if !ok {
				child = newEntry(depth)
				node.children[name] = child
			}
			child.status |= flags
			if len(segs)-depth < opts.OverlayDepth+1 {
				child.forceStatus = true
			}
			node = child
		}
	}
	return &Tree{root: root}
}

// Resolve walks the tree along path, applying the same ".meta" folding as
// BuildTree. It returns nil when no node exists.
func (t *Tree) Resolve(path string) *TreeEntry {
	if t == nil {
		return nil
	}
	segs := splitSegments(path)
	if len(segs) == 0 {
		return nil
	}
	node := t.root
	for _, seg := range segs {
		node = node.Child(treeSegment(seg))
		if node == nil {
			return nil
		}
	}
	return node
}
