package git

import (
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/chmouel/lazystatus/internal/utils"
)

// IgnoreMatcher evaluates the .gitignore files of a working tree. It does not
// need a repository handle, so watchers may use it from their own goroutine.
// Patterns are read lazily and cached until Reset.
type IgnoreMatcher struct {
	fs    billy.Filesystem
	extra []gitignore.Pattern

	mu      sync.Mutex
	matcher gitignore.Matcher
}

// NewIgnoreMatcher returns a matcher for the working tree at root.
func NewIgnoreMatcher(root string) *IgnoreMatcher {
	return newIgnoreMatcher(osfs.New(root), nil)
}

func newIgnoreMatcher(fs billy.Filesystem, extra []gitignore.Pattern) *IgnoreMatcher {
	return &IgnoreMatcher{fs: fs, extra: extra}
}

// Reset drops the cached patterns; the next Match rereads them.
func (m *IgnoreMatcher) Reset() {
	m.mu.Lock()
	m.matcher = nil
	m.mu.Unlock()
}

// Match reports whether the slash separated path, relative to the working
// tree, is ignored.
func (m *IgnoreMatcher) Match(path string) bool {
	path = utils.NormalizePath(path)
	if path == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.matcher == nil {
		patterns, err := gitignore.ReadPatterns(m.fs, nil)
		if err != nil {
			patterns = nil
		}
		patterns = append(patterns, m.extra...)
		m.matcher = gitignore.NewMatcher(patterns)
	}
	isDir := false
	if info, err := m.fs.Lstat(path); err == nil {
		isDir = info.IsDir()
	}
	return m.matcher.Match(strings.Split(path, "/"), isDir)
}
