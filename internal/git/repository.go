// Package git provides repository accessors used by the status engine.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chmouel/lazystatus/internal/models"
	"github.com/chmouel/lazystatus/internal/utils"
)

// Backend names accepted by Open.
const (
	BackendGoGit = "gogit"
	BackendCLI   = "cli"
)

// ErrInvalidRepository is returned when a path is not a git working tree.
var ErrInvalidRepository = errors.New("not a valid git repository")

// Repository is a handle to one working tree. Implementations are not safe
// for concurrent use; callers serialize access with a lock token.
type Repository interface {
	// Path returns the absolute working tree root.
	Path() string
	// Branch returns the short name of HEAD, or "HEAD" when detached.
	Branch(ctx context.Context) (string, error)
	ScanStatus(ctx context.Context, opts models.ScanOptions) ([]models.StatusEntry, error)
	// ScanPaths reports each path and every changed path below it from a
	// single status pass.
	ScanPaths(ctx context.Context, paths []string) ([]models.StatusEntry, error)
	Stage(ctx context.Context, paths []string) error
	Unstage(ctx context.Context, paths []string) error
	IsIgnored(path string) bool
	Close() error
}

// IsValidRepo reports whether path contains a .git directory or file.
func IsValidRepo(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// FindRoot walks up from path to the closest working tree root.
func FindRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for dir := abs; ; {
		if IsValidRepo(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: %s", ErrInvalidRepository, abs)
		}
		dir = parent
	}
}

// Open returns a Repository for path using the named backend.
// An empty backend selects go-git.
func Open(path, backend string) (Repository, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRepository, path, err)
	}
	if !IsValidRepo(abs) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRepository, abs)
	}
	switch backend {
	case "", BackendGoGit:
		return openGoGit(abs)
	case BackendCLI:
		return openCLI(abs)
	default:
		return nil, fmt.Errorf("unknown git backend %q", backend)
	}
}

// scopeEntries keeps the changed entries that are one of paths or sit below
// one. A path that matched nothing is reported through clean.
func scopeEntries(paths []string, changed []models.StatusEntry, clean func(path string) models.StatusEntry) []models.StatusEntry {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p = utils.NormalizePath(p); p != "" {
			want[p] = false
		}
	}
	out := make([]models.StatusEntry, 0, len(want))
	for _, e := range changed {
		matched := false
		for p := e.Path; p != ""; p = parentPath(p) {
			if _, ok := want[p]; ok {
				want[p] = true
				matched = true
			}
		}
		if matched {
			out = append(out, e)
		}
	}
	for p, found := range want {
		if !found {
			out = append(out, clean(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func parentPath(p string) string {
	if i := strings.LastIndexByte(p, '/'); i > 0 {
		return p[:i]
	}
	return ""
}

// flagsFromCodes maps a porcelain XY pair (also used by go-git's
// StatusCode) to status flags.
func flagsFromCodes(x, y byte) models.StatusFlags {
	if isUnmerged(x, y) {
		return models.StatusConflicted
	}
	if x == '?' || y == '?' {
		return models.StatusNewInWorkdir
	}
	if x == '!' || y == '!' {
		return models.StatusIgnored
	}

	var flags models.StatusFlags
	switch x {
	case 'A', 'C':
		flags |= models.StatusNewInIndex
	case 'M':
		flags |= models.StatusModifiedInIndex
	case 'D':
		flags |= models.StatusDeletedFromIndex
	case 'R':
		flags |= models.StatusRenamedInIndex
	case 'T':
		flags |= models.StatusTypeChangeInIndex
	}
	switch y {
	case 'A':
		flags |= models.StatusNewInWorkdir
	case 'M':
		flags |= models.StatusModifiedInWorkdir
	case 'D':
		flags |= models.StatusDeletedFromWorkdir
	case 'R':
		flags |= models.StatusRenamedInWorkdir
	case 'T':
		flags |= models.StatusTypeChangeInWorkdir
	}
	return flags
}

func isUnmerged(x, y byte) bool {
	if x == 'U' || y == 'U' {
		return true
	}
	return (x == 'A' && y == 'A') || (x == 'D' && y == 'D')
}
