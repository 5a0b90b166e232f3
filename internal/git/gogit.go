package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/chmouel/lazystatus/internal/models"
	"github.com/chmouel/lazystatus/internal/utils"
)

// goGitRepository implements Repository on top of go-git. Rename detection
// is not available in go-git's worktree status, so ScanOptions renames are
// reported as a delete plus an add.
type goGitRepository struct {
	root     string
	repo     *gogit.Repository
	worktree *gogit.Worktree

	ignore *IgnoreMatcher
}

func openGoGit(root string) (*goGitRepository, error) {
	repo, err := gogit.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRepository, root, err)
	}
	return newGoGitRepository(root, repo)
}

// NewGoGitRepository wraps an already opened go-git repository, which may be
// backed by in-memory storage.
func NewGoGitRepository(root string, repo *gogit.Repository) (Repository, error) {
	return newGoGitRepository(root, repo)
}

func newGoGitRepository(root string, repo *gogit.Repository) (*goGitRepository, error) {
	w, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRepository, root, err)
	}
	return &goGitRepository{
		root:     root,
		repo:     repo,
		worktree: w,
		ignore:   newIgnoreMatcher(w.Filesystem, w.Excludes),
	}, nil
}

func (r *goGitRepository) Path() string { return r.root }

func (r *goGitRepository) Branch(_ context.Context) (string, error) {
	head, err := r.repo.Head()
	if err == nil {
		if head.Name().IsBranch() {
			return head.Name().Short(), nil
		}
		return "HEAD", nil
	}
	// Unborn branch: HEAD still points at the branch name.
	ref, refErr := r.repo.Storer.Reference(plumbing.HEAD)
	if refErr != nil {
		return "", err
	}
	if ref.Type() == plumbing.SymbolicReference {
		return ref.Target().Short(), nil
	}
	return "HEAD", nil
}

func (r *goGitRepository) status(ctx context.Context) (gogit.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := r.worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("go-git status: %w", err)
	}
	return st, nil
}

func (r *goGitRepository) ScanStatus(ctx context.Context, _ models.ScanOptions) ([]models.StatusEntry, error) {
	st, err := r.status(ctx)
	if err != nil {
		return nil, err
	}
	r.ignore.Reset()
	entries := make([]models.StatusEntry, 0, len(st))
	for path, fs := range st {
		flags := flagsFromCodes(byte(fs.Staging), byte(fs.Worktree))
		if flags.IsUnaltered() {
			continue
		}
		entries = append(entries, models.StatusEntry{Path: utils.NormalizePath(path), Status: flags})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (r *goGitRepository) ScanPaths(ctx context.Context, paths []string) ([]models.StatusEntry, error) {
	st, err := r.status(ctx)
	if err != nil {
		return nil, err
	}
	// Walking the map directly; Status.File would report missing paths as untracked.
	changed := make([]models.StatusEntry, 0, len(st))
	for path, fs := range st {
		changed = append(changed, models.StatusEntry{
			Path:   utils.NormalizePath(path),
			Status: flagsFromCodes(byte(fs.Staging), byte(fs.Worktree)),
		})
	}
	return scopeEntries(paths, changed, func(path string) models.StatusEntry {
		if r.exists(path) && r.IsIgnored(path) {
			return models.StatusEntry{Path: path, Status: models.StatusIgnored}
		}
		return models.StatusEntry{Path: path, Status: models.StatusUnaltered}
	}), nil
}

func (r *goGitRepository) exists(path string) bool {
	_, err := r.worktree.Filesystem.Lstat(path)
	return err == nil
}

func (r *goGitRepository) Stage(ctx context.Context, paths []string) error {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		p = utils.NormalizePath(p)
		if _, err := r.worktree.Filesystem.Lstat(p); err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("stat %s: %w", p, err)
			}
			_, err := r.worktree.Remove(p)
			if errors.Is(err, index.ErrEntryNotFound) {
				// a removed directory leaves entries below it
				err = r.removeIndexDir(p)
			}
			if err != nil {
				return fmt.Errorf("stage removal of %s: %w", p, err)
			}
			continue
		}
		if _, err := r.worktree.Add(p); err != nil {
			return fmt.Errorf("stage %s: %w", p, err)
		}
	}
	return nil
}

func (r *goGitRepository) removeIndexDir(dir string) error {
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return err
	}
	prefix := dir + "/"
	entries := idx.Entries[:0]
	for _, e := range idx.Entries {
		if !strings.HasPrefix(e.Name, prefix) {
			entries = append(entries, e)
		}
	}
	if len(entries) == len(idx.Entries) {
		return nil
	}
	idx.Entries = entries
	return r.repo.Storer.SetIndex(idx)
}

// Unstage resets index entries to their HEAD version, removing entries
// that HEAD does not know about. A directory path covers every entry below
// it.
func (r *goGitRepository) Unstage(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	idx, err := r.repo.Storer.Index()
	if err != nil {
		return fmt.Errorf("read index: %w", err)
	}

	targets := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		if p = utils.NormalizePath(p); p != "" {
			targets[p] = struct{}{}
		}
	}
	covered := func(name string) bool {
		for p := name; p != ""; p = parentPath(p) {
			if _, ok := targets[p]; ok {
				return true
			}
		}
		return false
	}

	head := make(map[string]*object.File)
	headRef, err := r.repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
	case err != nil:
		return fmt.Errorf("resolve HEAD: %w", err)
	default:
		if head, err = r.headFiles(headRef.Hash(), targets); err != nil {
			return err
		}
	}

	entries := idx.Entries[:0]
	for _, e := range idx.Entries {
		if !covered(e.Name) {
			entries = append(entries, e)
			continue
		}
		file, ok := head[e.Name]
		if !ok {
			continue
		}
		e.Hash = file.Hash
		e.Mode = file.Mode
		e.Size = uint32(file.Size) //nolint:gosec
		delete(head, e.Name)
		entries = append(entries, e)
	}
	for name, file := range head {
		entries = append(entries, &index.Entry{Name: name, Hash: file.Hash, Mode: file.Mode})
	}
	idx.Entries = entries
	sort.Slice(idx.Entries, func(i, j int) bool { return idx.Entries[i].Name < idx.Entries[j].Name })
	if err := r.repo.Storer.SetIndex(idx); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// headFiles collects the HEAD blobs for targets, expanding directories.
func (r *goGitRepository) headFiles(hash plumbing.Hash, targets map[string]struct{}) (map[string]*object.File, error) {
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("read HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("read HEAD tree: %w", err)
	}
	files := make(map[string]*object.File)
	for p := range targets {
		if file, err := tree.File(p); err == nil {
			files[p] = file
			continue
		}
		sub, err := tree.Tree(p)
		if err != nil {
			// not in HEAD
			continue
		}
		err = sub.Files().ForEach(func(f *object.File) error {
			files[p+"/"+f.Name] = f
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read HEAD tree %s: %w", p, err)
		}
	}
	return files, nil
}

// IsIgnored matches path against .gitignore files in the worktree and the
// repository excludes.
func (r *goGitRepository) IsIgnored(path string) bool {
	return r.ignore.Match(path)
}

func (r *goGitRepository) Close() error {
	if c, ok := r.repo.Storer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
