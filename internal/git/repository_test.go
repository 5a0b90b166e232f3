package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmouel/lazystatus/internal/models"
)

var testSignature = &object.Signature{Name: "Tester", Email: "tester@example.com", When: time.Unix(1700000000, 0)}

func initDiskRepo(t *testing.T) (string, *gogit.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)

	writeFile(t, dir, "tracked.txt", "one\n")
	writeFile(t, dir, ".gitignore", "*.log\n")
	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add("tracked.txt")
	require.NoError(t, err)
	_, err = w.Add(".gitignore")
	require.NoError(t, err)
	_, err = w.Commit("initial", &gogit.CommitOptions{Author: testSignature})
	require.NoError(t, err)
	return dir, repo
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// scanPath scans one file path through the batched scan.
func scanPath(ctx context.Context, repo Repository, path string) (models.StatusEntry, error) {
	entries, err := repo.ScanPaths(ctx, []string{path})
	if err != nil {
		return models.StatusEntry{}, err
	}
	for _, e := range entries {
		if e.Path == path {
			return e, nil
		}
	}
	return models.StatusEntry{}, fmt.Errorf("%s not reported", path)
}

// commitFiles writes and commits files in an existing repository.
func commitFiles(t *testing.T, dir string, repo *gogit.Repository, files ...string) {
	t.Helper()
	w, err := repo.Worktree()
	require.NoError(t, err)
	for _, f := range files {
		writeFile(t, dir, f, f+"\n")
		_, err = w.Add(f)
		require.NoError(t, err)
	}
	_, err = w.Commit("add files", &gogit.CommitOptions{Author: testSignature})
	require.NoError(t, err)
}

func TestScopeEntries(t *testing.T) {
	changed := []models.StatusEntry{
		{Path: "assets/a.png", Status: models.StatusDeletedFromWorkdir},
		{Path: "assets/sub/b.png", Status: models.StatusDeletedFromWorkdir},
		{Path: "assetsX/c.png", Status: models.StatusNewInWorkdir},
		{Path: "new.txt", Status: models.StatusNewInWorkdir},
	}
	clean := func(p string) models.StatusEntry {
		return models.StatusEntry{Path: p, Status: models.StatusUnaltered}
	}

	got := scopeEntries([]string{"assets", "./new.txt", "gone.txt"}, changed, clean)
	assert.Equal(t, []models.StatusEntry{
		{Path: "assets/a.png", Status: models.StatusDeletedFromWorkdir},
		{Path: "assets/sub/b.png", Status: models.StatusDeletedFromWorkdir},
		{Path: "gone.txt", Status: models.StatusUnaltered},
		{Path: "new.txt", Status: models.StatusNewInWorkdir},
	}, got)

	assert.Empty(t, scopeEntries(nil, changed, clean))
}

func TestIsValidRepo(t *testing.T) {
	dir, _ := initDiskRepo(t)
	assert.True(t, IsValidRepo(dir))
	assert.False(t, IsValidRepo(t.TempDir()))
	assert.False(t, IsValidRepo(""))
}

func TestFindRoot(t *testing.T) {
	dir, _ := initDiskRepo(t)
	writeFile(t, dir, "src/pkg/file.go", "package pkg\n")

	root, err := FindRoot(filepath.Join(dir, "src", "pkg"))
	require.NoError(t, err)
	assert.Equal(t, dir, root)

	root, err = FindRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, root)

	_, err = FindRoot(t.TempDir())
	assert.ErrorIs(t, err, ErrInvalidRepository)
}

func TestOpenRejectsInvalidRepository(t *testing.T) {
	_, err := Open(t.TempDir(), BackendGoGit)
	assert.ErrorIs(t, err, ErrInvalidRepository)

	dir, _ := initDiskRepo(t)
	_, err = Open(dir, "svn")
	assert.Error(t, err)
}

func TestGoGitScanAndStageCycle(t *testing.T) {
	dir, _ := initDiskRepo(t)
	repo, err := Open(dir, BackendGoGit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	ctx := context.Background()

	writeFile(t, dir, "tracked.txt", "two\n")
	writeFile(t, dir, "new.txt", "fresh\n")
	writeFile(t, dir, "debug.log", "noise\n")

	entries, err := repo.ScanStatus(ctx, models.ScanOptions{})
	require.NoError(t, err)
	assert.Equal(t, []models.StatusEntry{
		{Path: "new.txt", Status: models.StatusNewInWorkdir},
		{Path: "tracked.txt", Status: models.StatusModifiedInWorkdir},
	}, entries)

	ignored, err := scanPath(ctx, repo, "debug.log")
	require.NoError(t, err)
	assert.Equal(t, models.StatusIgnored, ignored.Status)
	assert.True(t, repo.IsIgnored("debug.log"))
	assert.False(t, repo.IsIgnored("new.txt"))

	clean, err := scanPath(ctx, repo, ".gitignore")
	require.NoError(t, err)
	assert.True(t, clean.Status.IsUnaltered())

	require.NoError(t, repo.Stage(ctx, []string{"new.txt", "tracked.txt"}))
	e, err := scanPath(ctx, repo, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNewInIndex, e.Status)
	e, err = scanPath(ctx, repo, "tracked.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusModifiedInIndex, e.Status)

	require.NoError(t, repo.Unstage(ctx, []string{"new.txt", "tracked.txt"}))
	e, err = scanPath(ctx, repo, "new.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNewInWorkdir, e.Status)
	e, err = scanPath(ctx, repo, "tracked.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusModifiedInWorkdir, e.Status)

	branch, err := repo.Branch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestGoGitStageDeletion(t *testing.T) {
	dir, _ := initDiskRepo(t)
	repo, err := Open(dir, "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, os.Remove(filepath.Join(dir, "tracked.txt")))
	e, err := scanPath(ctx, repo, "tracked.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeletedFromWorkdir, e.Status)

	require.NoError(t, repo.Stage(ctx, []string{"tracked.txt"}))
	e, err = scanPath(ctx, repo, "tracked.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeletedFromIndex, e.Status)
}

func TestGoGitInMemoryRepository(t *testing.T) {
	fs := memfs.New()
	r, err := gogit.Init(memory.NewStorage(), fs)
	require.NoError(t, err)
	require.NoError(t, util.WriteFile(fs, "a.txt", []byte("a"), 0o644))

	repo, err := NewGoGitRepository("/mem", r)
	require.NoError(t, err)
	ctx := context.Background()

	branch, err := repo.Branch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)

	e, err := scanPath(ctx, repo, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNewInWorkdir, e.Status)

	require.NoError(t, repo.Stage(ctx, []string{"a.txt"}))
	e, err = scanPath(ctx, repo, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNewInIndex, e.Status)

	// No HEAD yet: unstaging drops the index entry.
	require.NoError(t, repo.Unstage(ctx, []string{"a.txt"}))
	e, err = scanPath(ctx, repo, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNewInWorkdir, e.Status)
}

func TestGoGitScanPathsBatchesDirectoryMoves(t *testing.T) {
	dir, raw := initDiskRepo(t)
	commitFiles(t, dir, raw, "assets/a.png", "assets/sub/b.png")
	repo, err := Open(dir, BackendGoGit)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, os.Rename(filepath.Join(dir, "assets"), filepath.Join(t.TempDir(), "assets")))
	writeFile(t, dir, "new.txt", "fresh\n")
	writeFile(t, dir, "debug.log", "noise\n")

	entries, err := repo.ScanPaths(ctx, []string{"assets", "new.txt", "tracked.txt", "debug.log"})
	require.NoError(t, err)
	assert.Equal(t, []models.StatusEntry{
		{Path: "assets/a.png", Status: models.StatusDeletedFromWorkdir},
		{Path: "assets/sub/b.png", Status: models.StatusDeletedFromWorkdir},
		{Path: "debug.log", Status: models.StatusIgnored},
		{Path: "new.txt", Status: models.StatusNewInWorkdir},
		{Path: "tracked.txt", Status: models.StatusUnaltered},
	}, entries)

	require.NoError(t, repo.Stage(ctx, []string{"assets"}))
	entries, err = repo.ScanPaths(ctx, []string{"assets"})
	require.NoError(t, err)
	assert.Equal(t, []models.StatusEntry{
		{Path: "assets/a.png", Status: models.StatusDeletedFromIndex},
		{Path: "assets/sub/b.png", Status: models.StatusDeletedFromIndex},
	}, entries)
}

func TestGoGitUnstageDirectory(t *testing.T) {
	dir, raw := initDiskRepo(t)
	commitFiles(t, dir, raw, "src/main.go")
	repo, err := Open(dir, BackendGoGit)
	require.NoError(t, err)
	ctx := context.Background()

	writeFile(t, dir, "src/main.go", "package main\n\nfunc main() {}\n")
	writeFile(t, dir, "src/pkg/util.go", "package pkg\n")
	require.NoError(t, repo.Stage(ctx, []string{"src"}))
	e, err := scanPath(ctx, repo, "src/pkg/util.go")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNewInIndex, e.Status)

	require.NoError(t, repo.Unstage(ctx, []string{"src"}))
	entries, err := repo.ScanPaths(ctx, []string{"src"})
	require.NoError(t, err)
	assert.Equal(t, []models.StatusEntry{
		{Path: "src/main.go", Status: models.StatusModifiedInWorkdir},
		{Path: "src/pkg/util.go", Status: models.StatusNewInWorkdir},
	}, entries)

	e, err = scanPath(ctx, repo, "tracked.txt")
	require.NoError(t, err)
	assert.True(t, e.Status.IsUnaltered(), "entries outside the directory are untouched")
}

func TestGoGitScanCancelled(t *testing.T) {
	dir, _ := initDiskRepo(t)
	repo, err := Open(dir, BackendGoGit)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = repo.ScanStatus(ctx, models.ScanOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFlagsFromCodes(t *testing.T) {
	tests := []struct {
		xy   string
		want models.StatusFlags
	}{
		{xy: " M", want: models.StatusModifiedInWorkdir},
		{xy: "M ", want: models.StatusModifiedInIndex},
		{xy: "MM", want: models.StatusModifiedInIndex | models.StatusModifiedInWorkdir},
		{xy: "A ", want: models.StatusNewInIndex},
		{xy: "AM", want: models.StatusNewInIndex | models.StatusModifiedInWorkdir},
		{xy: "D ", want: models.StatusDeletedFromIndex},
		{xy: " D", want: models.StatusDeletedFromWorkdir},
		{xy: "R ", want: models.StatusRenamedInIndex},
		{xy: " T", want: models.StatusTypeChangeInWorkdir},
		{xy: "??", want: models.StatusNewInWorkdir},
		{xy: "!!", want: models.StatusIgnored},
		{xy: "UU", want: models.StatusConflicted},
		{xy: "AA", want: models.StatusConflicted},
		{xy: "DD", want: models.StatusConflicted},
		{xy: "  ", want: models.StatusUnaltered},
	}
	for _, tt := range tests {
		t.Run(tt.xy, func(t *testing.T) {
			assert.Equal(t, tt.want, flagsFromCodes(tt.xy[0], tt.xy[1]))
		})
	}
}

func TestParsePorcelainZ(t *testing.T) {
	out := []byte(" M src/a.go\x00R  new.go\x00old.go\x00?? notes.md\x00UU conflict.txt\x00")

	all := parsePorcelainZ(out, models.ScanOptions{DetectRenames: models.RenameAll})
	assert.Equal(t, []models.StatusEntry{
		{Path: "src/a.go", Status: models.StatusModifiedInWorkdir},
		{Path: "new.go", Status: models.StatusRenamedInIndex},
		{Path: "notes.md", Status: models.StatusNewInWorkdir},
		{Path: "conflict.txt", Status: models.StatusConflicted},
	}, all)

	none := parsePorcelainZ(out, models.ScanOptions{DetectRenames: models.RenameInWorkdir})
	assert.Equal(t, models.StatusNewInIndex, none[1].Status)
}

func TestCLIBackendScan(t *testing.T) {
	if _, err := LookupPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	dir, _ := initDiskRepo(t)
	repo, err := Open(dir, BackendCLI)
	require.NoError(t, err)
	ctx := context.Background()

	writeFile(t, dir, "tracked.txt", "changed\n")
	writeFile(t, dir, "debug.log", "noise\n")
	entries, err := repo.ScanStatus(ctx, models.ScanOptions{DetectRenames: models.RenameAll})
	require.NoError(t, err)
	assert.Equal(t, []models.StatusEntry{{Path: "tracked.txt", Status: models.StatusModifiedInWorkdir}}, entries)

	e, err := scanPath(ctx, repo, "debug.log")
	require.NoError(t, err)
	assert.Equal(t, models.StatusIgnored, e.Status)
	assert.True(t, repo.IsIgnored("debug.log"))

	require.NoError(t, repo.Stage(ctx, []string{"tracked.txt"}))
	e, err = scanPath(ctx, repo, "tracked.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusModifiedInIndex, e.Status)

	require.NoError(t, repo.Unstage(ctx, []string{"tracked.txt"}))
	e, err = scanPath(ctx, repo, "tracked.txt")
	require.NoError(t, err)
	assert.Equal(t, models.StatusModifiedInWorkdir, e.Status)

	writeFile(t, dir, "docs/a.md", "a\n")
	writeFile(t, dir, "docs/b.md", "b\n")
	entries, err = repo.ScanPaths(ctx, []string{"docs", "tracked.txt", "missing.txt"})
	require.NoError(t, err)
	assert.Equal(t, []models.StatusEntry{
		{Path: "docs/a.md", Status: models.StatusNewInWorkdir},
		{Path: "docs/b.md", Status: models.StatusNewInWorkdir},
		{Path: "missing.txt", Status: models.StatusUnaltered},
		{Path: "tracked.txt", Status: models.StatusModifiedInWorkdir},
	}, entries)
}

func TestLockFileSignals(t *testing.T) {
	dir, _ := initDiskRepo(t)
	s := LockFileSignals{RepoPath: dir, BuildMarkers: []string{"build/*.lock"}}
	assert.False(t, s.SwitchingContext())
	assert.False(t, s.Indexing())
	assert.False(t, s.Compiling())

	writeFile(t, dir, ".git/index.lock", "")
	assert.True(t, s.Indexing())

	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git", "rebase-merge"), 0o755))
	assert.True(t, s.SwitchingContext())

	writeFile(t, dir, "build/compile.lock", "")
	assert.True(t, s.Compiling())

	assert.False(t, LockFileSignals{}.Indexing())
}
