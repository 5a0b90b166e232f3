package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"slices"
	"sort"
	"strings"

	"github.com/chmouel/lazystatus/internal/log"
	"github.com/chmouel/lazystatus/internal/models"
	"github.com/chmouel/lazystatus/internal/utils"
)

// LookupPath is used to find executables in PATH. It's exposed as a package variable
// so tests can mock it and avoid depending on system binaries being installed.
var LookupPath = exec.LookPath

// cliRepository shells out to the git binary.
type cliRepository struct {
	root      string
	gitPath   string
	semaphore chan struct{}
}

func openCLI(root string) (*cliRepository, error) {
	gitPath, err := LookupPath("git")
	if err != nil {
		return nil, fmt.Errorf("git executable not found: %w", err)
	}
	limit := runtime.NumCPU() * 2
	if limit < 4 {
		limit = 4
	}
	return &cliRepository{root: root, gitPath: gitPath, semaphore: make(chan struct{}, limit)}, nil
}

func (r *cliRepository) debugf(format string, args ...any) {
	log.Debugf("git: "+format, args...)
}

// runGit executes git in the repository root. Exit codes listed in okCodes
// are not treated as failures; the exit code is returned alongside stdout.
func (r *cliRepository) runGit(ctx context.Context, args []string, okCodes ...int) ([]byte, int, error) {
	r.semaphore <- struct{}{}
	defer func() { <-r.semaphore }()

	command := strings.Join(args, " ")
	r.debugf("run: git %s (cwd=%s)", command, r.root)

	cmd := exec.CommandContext(ctx, r.gitPath, args...) //nolint:gosec
	cmd.Dir = r.root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, -1, ctx.Err()
		}
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			code := exitError.ExitCode()
			if slices.Contains(okCodes, code) {
				r.debugf("ok: git %s (exit %d)", command, code)
				return output, code, nil
			}
			detail := strings.TrimSpace(stderr.String())
			if detail == "" {
				detail = fmt.Sprintf("exit %d", code)
			}
			r.debugf("error: git %s: %s", command, detail)
			return nil, code, fmt.Errorf("git %s: %s", command, detail)
		}
		return nil, -1, fmt.Errorf("git %s: %w", command, err)
	}
	r.debugf("ok: git %s", command)
	return output, 0, nil
}

func (r *cliRepository) Path() string { return r.root }

func (r *cliRepository) Branch(ctx context.Context) (string, error) {
	out, _, err := r.runGit(ctx, []string{"symbolic-ref", "--short", "-q", "HEAD"}, 1)
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(out))
	if name == "" {
		return "HEAD", nil
	}
	return name, nil
}

func statusArgs(opts models.ScanOptions, ignored bool, paths ...string) []string {
	args := []string{"status", "--porcelain=v1", "-z", "--untracked-files=all"}
	if opts.DetectRenames != models.RenameNone {
		args = append(args, "--find-renames")
	} else {
		args = append(args, "--no-renames")
	}
	if ignored {
		args = append(args, "--ignored=matching")
	}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	return args
}

func (r *cliRepository) ScanStatus(ctx context.Context, opts models.ScanOptions) ([]models.StatusEntry, error) {
	out, _, err := r.runGit(ctx, statusArgs(opts, false))
	if err != nil {
		return nil, err
	}
	entries := parsePorcelainZ(out, opts)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (r *cliRepository) ScanPaths(ctx context.Context, paths []string) ([]models.StatusEntry, error) {
	norm := normalizeAll(paths)
	if len(norm) == 0 {
		return nil, nil
	}
	out, _, err := r.runGit(ctx, statusArgs(models.ScanOptions{}, true, norm...))
	if err != nil {
		return nil, err
	}
	return scopeEntries(norm, parsePorcelainZ(out, models.ScanOptions{}), func(path string) models.StatusEntry {
		return models.StatusEntry{Path: path, Status: models.StatusUnaltered}
	}), nil
}

// parsePorcelainZ parses `git status --porcelain=v1 -z` output. Rename and
// copy records carry the original path as an extra NUL-separated field.
// Renames only keep their rename bit when the matching side is requested.
func parsePorcelainZ(out []byte, opts models.ScanOptions) []models.StatusEntry {
	fields := strings.Split(string(out), "\x00")
	entries := make([]models.StatusEntry, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		rec := fields[i]
		if len(rec) < 4 {
			continue
		}
		x, y := rec[0], rec[1]
		path := utils.NormalizePath(rec[3:])
		if x == 'R' || x == 'C' || y == 'R' || y == 'C' {
			// skip the source path
			i++
		}
		flags := flagsFromCodes(x, y)
		if !opts.DetectRenamesInIndex() && flags.Has(models.StatusRenamedInIndex) {
			flags = flags.Clear(models.StatusRenamedInIndex).Set(models.StatusNewInIndex)
		}
		if !opts.DetectRenamesInWorkdir() && flags.Has(models.StatusRenamedInWorkdir) {
			flags = flags.Clear(models.StatusRenamedInWorkdir).Set(models.StatusNewInWorkdir)
		}
		entries = append(entries, models.StatusEntry{Path: path, Status: flags})
	}
	return entries
}

func (r *cliRepository) Stage(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "-A", "--"}, normalizeAll(paths)...)
	_, _, err := r.runGit(ctx, args)
	return err
}

func (r *cliRepository) Unstage(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	norm := normalizeAll(paths)
	if _, code, _ := r.runGit(ctx, []string{"rev-parse", "-q", "--verify", "HEAD"}, 1); code != 0 {
		args := append([]string{"rm", "--cached", "-r", "-q", "--ignore-unmatch", "--"}, norm...)
		_, _, err := r.runGit(ctx, args)
		return err
	}
	args := append([]string{"reset", "-q", "HEAD", "--"}, norm...)
	_, _, err := r.runGit(ctx, args, 1)
	return err
}

func (r *cliRepository) IsIgnored(path string) bool {
	path = utils.NormalizePath(path)
	if path == "" {
		return false
	}
	_, code, err := r.runGit(context.Background(), []string{"check-ignore", "-q", "--", path}, 1)
	return err == nil && code == 0
}

func (r *cliRepository) Close() error { return nil }

func normalizeAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p = utils.NormalizePath(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
