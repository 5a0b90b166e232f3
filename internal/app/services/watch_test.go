package services

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dirtyRecorder struct {
	mu    sync.Mutex
	paths map[string]int
}

func newDirtyRecorder() *dirtyRecorder {
	return &dirtyRecorder{paths: make(map[string]int)}
}

func (r *dirtyRecorder) record(paths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range paths {
		r.paths[p]++
	}
}

func (r *dirtyRecorder) has(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.paths[path]
	return ok
}

func (r *dirtyRecorder) snapshot() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.paths))
	for k, v := range r.paths {
		out[k] = v
	}
	return out
}

func startWatcher(t *testing.T, root string, ignored ...string) (*FileWatchService, *dirtyRecorder) {
	t.Helper()
	rec := newDirtyRecorder()
	w := NewFileWatchService(root, rec.record, nil)
	w.Debounce = 20 * time.Millisecond
	w.IsIgnored = func(rel string) bool { return slices.Contains(ignored, rel) }
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return w, rec
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFileWatchServiceWatchedDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build", "out"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "pkg"), 0o750))

	w, _ := startWatcher(t, root, "build")

	assert.Equal(t, []string{"", "src", "src/pkg"}, w.WatchedDirs())
}

func TestFileWatchServiceMarksChangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "main.go"), "package main\n")

	_, rec := startWatcher(t, root)

	writeFile(t, filepath.Join(root, "src", "main.go"), "package main\n\nfunc main() {}\n")
	writeFile(t, filepath.Join(root, "README.md"), "hello\n")

	require.Eventually(t, func() bool {
		return rec.has("src/main.go") && rec.has("README.md")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFileWatchServiceRenameMarksBothPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old.txt"), "x\n")

	_, rec := startWatcher(t, root)

	require.NoError(t, os.Rename(filepath.Join(root, "old.txt"), filepath.Join(root, "new.txt")))

	require.Eventually(t, func() bool {
		return rec.has("old.txt") && rec.has("new.txt")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFileWatchServiceNewDirectory(t *testing.T) {
	root := t.TempDir()
	w, rec := startWatcher(t, root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0o750))
	require.Eventually(t, func() bool {
		return slices.Contains(w.WatchedDirs(), "assets")
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(root, "assets", "logo.png"), "png")
	require.Eventually(t, func() bool {
		return rec.has("assets/logo.png")
	}, 5*time.Second, 10*time.Millisecond)

	assert.False(t, rec.has("assets"), "directory events are not reported")
}

func TestFileWatchServiceDirectoryMovedOut(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "assets", "logo.png"), "png")
	w, rec := startWatcher(t, root)
	require.Contains(t, w.WatchedDirs(), "assets")

	require.NoError(t, os.Rename(filepath.Join(root, "assets"), filepath.Join(t.TempDir(), "assets")))

	require.Eventually(t, func() bool {
		return rec.has("assets")
	}, 5*time.Second, 10*time.Millisecond)
	assert.NotContains(t, w.WatchedDirs(), "assets")
}

func TestFileWatchServiceDirectoryRenamed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "old", "a.txt"), "a")
	w, rec := startWatcher(t, root)

	require.NoError(t, os.Rename(filepath.Join(root, "old"), filepath.Join(root, "new")))

	require.Eventually(t, func() bool {
		return rec.has("old") && rec.has("new/a.txt")
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return slices.Contains(w.WatchedDirs(), "new") && !slices.Contains(w.WatchedDirs(), "old")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFileWatchServiceSkipsGitAndIgnored(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o750))

	_, rec := startWatcher(t, root, "build")

	writeFile(t, filepath.Join(root, ".git", "index"), "idx")
	writeFile(t, filepath.Join(root, "build", "app.bin"), "bin")
	writeFile(t, filepath.Join(root, "tracked.txt"), "x")

	require.Eventually(t, func() bool {
		return rec.has("tracked.txt")
	}, 5*time.Second, 10*time.Millisecond)

	got := rec.snapshot()
	assert.NotContains(t, got, ".git/index")
	assert.NotContains(t, got, "build/app.bin")
}

func TestFileWatchServiceSkipPath(t *testing.T) {
	w := NewFileWatchService(t.TempDir(), nil, nil)
	w.IsIgnored = func(rel string) bool { return rel == "node_modules" }

	tests := []struct {
		rel  string
		skip bool
	}{
		{".git", true},
		{".git/HEAD", true},
		{".hidden/file", true},
		{".gitignore", false},
		{"node_modules/x/index.js", true},
		{"src/main.go", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.skip, w.skipPath(tt.rel), tt.rel)
	}
}

func TestFileWatchServiceStopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	w := NewFileWatchService(root, func([]string) {}, nil)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestFileWatchServiceStopsOnContext(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	w := NewFileWatchService(root, func([]string) {}, nil)
	require.NoError(t, w.Start(ctx))

	cancel()
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return !w.started
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFileWatchServiceStartErrors(t *testing.T) {
	w := NewFileWatchService(filepath.Join(t.TempDir(), "missing"), nil, nil)
	require.Error(t, w.Start(context.Background()))

	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "x")
	w = NewFileWatchService(file, nil, nil)
	require.Error(t, w.Start(context.Background()))
}
