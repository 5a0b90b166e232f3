package services

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/chmouel/lazystatus/internal/utils"
)

// FileWatchDebounce is the default debounce window for watcher events.
const FileWatchDebounce = 150 * time.Millisecond

// FileWatchService turns file system events under a working tree into dirty
// paths. New directories are added to the watch and the files already inside
// them reported; a removed or renamed directory is reported by its own path.
type FileWatchService struct {
	Root     string
	Debounce time.Duration
	// IsIgnored reports whether a relative path is ignored by the repository.
	// Ignored directories are never watched.
	IsIgnored func(rel string) bool

	onDirty func(paths []string)
	logf    func(string, ...any)

	mu      sync.Mutex
	started bool
	watcher *fsnotify.Watcher
	watched map[string]struct{}
	pending map[string]struct{}
	timer   *time.Timer
	done    chan struct{}
	stopped chan struct{}
}

// NewFileWatchService creates a watcher for root. onDirty receives batches
// of slash separated paths relative to root, from the watcher goroutine.
func NewFileWatchService(root string, onDirty func(paths []string), logf func(string, ...any)) *FileWatchService {
	return &FileWatchService{
		Root:     filepath.Clean(root),
		Debounce: FileWatchDebounce,
		onDirty:  onDirty,
		logf:     logf,
	}
}

// Start adds the working tree to the watch and starts the event goroutine.
// It stops when ctx is done or Stop is called.
func (w *FileWatchService) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	info, err := os.Stat(w.Root)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if !info.IsDir() {
		w.mu.Unlock()
		return errors.New("watch root is not a directory: " + w.Root)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.started = true
	w.watcher = watcher
	w.watched = make(map[string]struct{})
	w.pending = make(map[string]struct{})
	w.done = make(chan struct{})
	w.stopped = make(chan struct{})
	w.mu.Unlock()

	w.addWatchTree(w.Root)
	go w.run(ctx)
	return nil
}

// Stop closes the watcher and drops undelivered events.
func (w *FileWatchService) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	close(w.done)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = make(map[string]struct{})
	watcher, stopped := w.watcher, w.stopped
	w.mu.Unlock()

	_ = watcher.Close()
	<-stopped
}

// WatchedDirs returns the watched directories relative to Root.
func (w *FileWatchService) WatchedDirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	dirs := make([]string, 0, len(w.watched))
	for dir := range w.watched {
		if rel, ok := utils.RelativeTo(w.Root, dir); ok {
			dirs = append(dirs, rel)
		}
	}
	sort.Strings(dirs)
	return dirs
}

func (w *FileWatchService) run(ctx context.Context) {
	defer close(w.stopped)
	for {
		select {
		case <-ctx.Done():
			go w.Stop()
			<-w.done
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.debugf("file watcher error: %v", err)
		}
	}
}

func (w *FileWatchService) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	rel, ok := utils.RelativeTo(w.Root, event.Name)
	if !ok || rel == "" || w.skipPath(rel) {
		return
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.forgetDir(event.Name) {
		w.mark(rel)
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mark(w.addWatchTree(event.Name)...)
			return
		}
	}

	// a rename reports the old name here and the new name as a Create
	w.mark(rel)
}

// skipPath filters paths inside .git and, for directories, hidden or ignored
// ones.
func (w *FileWatchService) skipPath(rel string) bool {
	segs := strings.Split(rel, "/")
	if segs[0] == ".git" {
		return true
	}
	for i, seg := range segs[:len(segs)-1] {
		if strings.HasPrefix(seg, ".") {
			return true
		}
		if w.IsIgnored != nil && w.IsIgnored(strings.Join(segs[:i+1], "/")) {
			return true
		}
	}
	return false
}

func (w *FileWatchService) skipDir(rel string) bool {
	if rel == "" {
		return false
	}
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return true
	}
	return w.IsIgnored != nil && w.IsIgnored(rel)
}

func (w *FileWatchService) forgetDir(abs string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watched[abs]; !ok {
		return false
	}
	for dir := range w.watched {
		if dir == abs || strings.HasPrefix(dir, abs+string(filepath.Separator)) {
			delete(w.watched, dir)
		}
	}
	return true
}

// addWatchTree watches root and its eligible subdirectories and returns the
// files found in them.
func (w *FileWatchService) addWatchTree(root string) []string {
	var files []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, ok := utils.RelativeTo(w.Root, path)
		if !ok {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			if path != root {
				files = append(files, rel)
			}
			return nil
		}
		if w.skipDir(rel) {
			return filepath.SkipDir
		}
		w.addWatchDir(path)
		return nil
	})
	return files
}

func (w *FileWatchService) addWatchDir(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if _, ok := w.watched[path]; ok {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.debugf("file watcher add failed for %s: %v", path, err)
		return
	}
	w.watched[path] = struct{}{}
}

func (w *FileWatchService) mark(paths ...string) {
	if len(paths) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	for _, p := range paths {
		w.pending[p] = struct{}{}
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.Debounce, w.flush)
		return
	}
	w.timer.Reset(w.Debounce)
}

func (w *FileWatchService) flush() {
	w.mu.Lock()
	if !w.started || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(paths)
	w.debugf("file watcher: %d dirty paths", len(paths))
	if w.onDirty != nil {
		w.onDirty(paths)
	}
}

func (w *FileWatchService) debugf(format string, args ...any) {
	if w.logf == nil {
		return
	}
	w.logf(format, args...)
}
