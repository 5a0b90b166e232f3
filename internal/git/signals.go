package git

import (
	"os"
	"path/filepath"
)

// LockFileSignals derives host activity from files other tools leave in the
// repository while they work.
type LockFileSignals struct {
	RepoPath string
	// BuildMarkers are glob patterns, relative to RepoPath, whose presence
	// means an external build is running.
	BuildMarkers []string
}

func (s LockFileSignals) gitDir() string {
	return filepath.Join(s.RepoPath, ".git")
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SwitchingContext is true while HEAD is being rewritten or a rebase is in
// progress.
func (s LockFileSignals) SwitchingContext() bool {
	if s.RepoPath == "" {
		return false
	}
	dir := s.gitDir()
	return exists(filepath.Join(dir, "HEAD.lock")) ||
		exists(filepath.Join(dir, "rebase-merge")) ||
		exists(filepath.Join(dir, "rebase-apply"))
}

// Indexing is true while another process holds the index lock.
func (s LockFileSignals) Indexing() bool {
	if s.RepoPath == "" {
		return false
	}
	return exists(filepath.Join(s.gitDir(), "index.lock"))
}

// Compiling is true when any build marker matches.
func (s LockFileSignals) Compiling() bool {
	for _, pattern := range s.BuildMarkers {
		matches, err := filepath.Glob(filepath.Join(s.RepoPath, pattern))
		if err == nil && len(matches) > 0 {
			return true
		}
	}
	return false
}
