package services

import (
	"path"
	"sort"
	"strings"

	"github.com/chmouel/lazystatus/internal/models"
	"github.com/chmouel/lazystatus/internal/status"
	"github.com/chmouel/lazystatus/internal/utils"
)

// StatusRow is one visible line of the flattened status tree.
type StatusRow struct {
	Path        string // Full path (e.g., "internal/app" or "internal/app/app.go")
	Label       string // Display name, including compressed parents (e.g., "a/b")
	Depth       int
	Status      models.StatusFlags
	ForceStatus bool
	IsDir       bool
	Compression int // Number of compressed path segments (e.g., "a/b" = 1)
}

// Name returns the last segment of the row path.
func (r *StatusRow) Name() string {
	return path.Base(r.Path)
}

// FlattenOptions tunes FlattenTree.
type FlattenOptions struct {
	Collapsed map[string]bool
	// ShowClean keeps nodes whose aggregate status is Unaltered.
	ShowClean bool
}

type flattenItem struct {
	name  string
	entry *status.TreeEntry
	path  string
	depth int
}

// FlattenTree returns the visible rows of tree, directories first then
// alphabetically. Single-child directory chains are compressed into one row.
func FlattenTree(tree *status.Tree, opts FlattenOptions) []*StatusRow {
	root := tree.Root()
	if root == nil {
		return nil
	}

	rows := make([]*StatusRow, 0)
	stack := childItems(root, "", 0)
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !opts.ShowClean && item.entry.Status().IsUnaltered() {
			continue
		}

		label := item.name
		entry, p := item.entry, item.path
		compression := 0
		for !entry.IsLeaf() {
			names := entry.Children()
			if len(names) != 1 {
				break
			}
			only := entry.Child(names[0])
			if only.IsLeaf() || opts.Collapsed[p] {
				break
			}
			entry = only
			p = p + "/" + names[0]
			label = label + "/" + names[0]
			compression++
		}

		row := &StatusRow{
			Path:        p,
			Label:       label,
			Depth:       item.depth,
			Status:      entry.Status(),
			ForceStatus: entry.ForceStatus(),
			IsDir:       !entry.IsLeaf(),
			Compression: compression,
		}
		rows = append(rows, row)

		if row.IsDir && !opts.Collapsed[p] {
			stack = append(stack, childItems(entry, p, item.depth+1)...)
		}
	}
	return rows
}

// childItems returns the children of entry in reverse display order, ready
// to be pushed on the flatten stack.
func childItems(entry *status.TreeEntry, parent string, depth int) []flattenItem {
	names := entry.Children()
	items := make([]flattenItem, 0, len(names))
	for _, name := range names {
		p := name
		if parent != "" {
			p = parent + "/" + name
		}
		items = append(items, flattenItem{name: name, entry: entry.Child(name), path: p, depth: depth})
	}
	sort.SliceStable(items, func(i, j int) bool {
		iIsDir := !items[i].entry.IsLeaf()
		jIsDir := !items[j].entry.IsLeaf()
		if iIsDir != jIsDir {
			return iIsDir // directories first
		}
		return items[i].name < items[j].name
	})
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items
}

// StatusView manages the flattened tree, collapse state and selection shown
// by the client.
type StatusView struct {
	Tree          *status.Tree
	Rows          []*StatusRow
	CollapsedDirs map[string]bool
	ShowClean     bool
	Index         int
}

// NewStatusView creates an empty StatusView.
func NewStatusView() *StatusView {
	return &StatusView{
		CollapsedDirs: make(map[string]bool),
	}
}

// Options returns the flatten options matching the view state. The map is
// copied so a background flatten does not race with ToggleCollapse.
func (s *StatusView) Options() FlattenOptions {
	collapsed := make(map[string]bool, len(s.CollapsedDirs))
	for k, v := range s.CollapsedDirs {
		collapsed[k] = v
	}
	return FlattenOptions{Collapsed: collapsed, ShowClean: s.ShowClean}
}

// SetTree replaces the tree and rebuilds the rows, keeping the selection on
// the same path when it still exists.
func (s *StatusView) SetTree(tree *status.Tree) {
	s.SetRows(tree, FlattenTree(tree, s.Options()))
}

// SetRows installs rows flattened elsewhere for tree.
func (s *StatusView) SetRows(tree *status.Tree, rows []*StatusRow) {
	selected := s.SelectedPath()
	s.Tree = tree
	s.Rows = rows
	s.RestoreSelection(selected)
	s.ClampIndex()
}

// RebuildFlat rebuilds the rows from the current tree.
func (s *StatusView) RebuildFlat() {
	if s.CollapsedDirs == nil {
		s.CollapsedDirs = make(map[string]bool)
	}
	s.SetTree(s.Tree)
}

// ToggleCollapse toggles a directory collapse state and rebuilds the rows.
func (s *StatusView) ToggleCollapse(path string) {
	if path == "" {
		return
	}
	if s.CollapsedDirs == nil {
		s.CollapsedDirs = make(map[string]bool)
	}
	s.CollapsedDirs[path] = !s.CollapsedDirs[path]
	s.RebuildFlat()
}

// Move shifts the selection by delta rows.
func (s *StatusView) Move(delta int) {
	s.Index += delta
	s.ClampIndex()
}

// SelectedRow returns the selected row or nil.
func (s *StatusView) SelectedRow() *StatusRow {
	if s.Index >= 0 && s.Index < len(s.Rows) {
		return s.Rows[s.Index]
	}
	return nil
}

// SelectedPath returns the path of the currently selected row.
func (s *StatusView) SelectedPath() string {
	if row := s.SelectedRow(); row != nil {
		return row.Path
	}
	return ""
}

// SelectedFiles returns the snapshot paths under the selected row: the row
// itself for a file, every changed entry below it for a directory.
func (s *StatusView) SelectedFiles(snap *status.Snapshot) []string {
	row := s.SelectedRow()
	if row == nil {
		return nil
	}
	var files []string
	prefix := row.Path + "/"
	for _, e := range snap.Entries() {
		if e.Status.IsUnaltered() {
			continue
		}
		if utils.AssetPathFromMeta(e.Path) == row.Path || strings.HasPrefix(e.Path, prefix) {
			files = append(files, e.Path)
		}
	}
	if len(files) == 0 && !row.IsDir {
		files = []string{row.Path}
	}
	return files
}

// RestoreSelection sets Index based on the provided path if it exists.
func (s *StatusView) RestoreSelection(path string) {
	if path == "" {
		return
	}
	for i, row := range s.Rows {
		if row.Path == path {
			s.Index = i
			return
		}
	}
}

// ClampIndex ensures Index is within the valid range for the rows.
func (s *StatusView) ClampIndex() {
	if s.Index < 0 {
		s.Index = 0
	}
	if len(s.Rows) > 0 && s.Index >= len(s.Rows) {
		s.Index = len(s.Rows) - 1
	}
	if len(s.Rows) == 0 {
		s.Index = 0
	}
}
