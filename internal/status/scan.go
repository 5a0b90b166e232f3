package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chmouel/lazystatus/internal/models"
	"github.com/chmouel/lazystatus/internal/utils"
)

var (
	// ErrScanFailure is returned when the repository cannot produce a status.
	ErrScanFailure = errors.New("status scan failed")
	// ErrInterruptedScan is returned when a scan observes cancellation.
	// It matches ErrScanFailure with errors.Is.
	ErrInterruptedScan = fmt.Errorf("%w: interrupted", ErrScanFailure)
)

// Scanner computes status from a repository.
type Scanner interface {
	// ScanStatus returns the status of every non-clean path in the working tree.
	ScanStatus(ctx context.Context, opts models.ScanOptions) ([]models.StatusEntry, error)
	// ScanPaths returns the status of each path and of every changed path
	// below it in one pass. A path with nothing to report comes back
	// Unaltered.
	ScanPaths(ctx context.Context, paths []string) ([]models.StatusEntry, error)
}

// Result is the output of a scan, ready to be applied on the consumer.
type Result struct {
	Full     bool
	Paths    []string
	Entries  []models.StatusEntry
	Duration time.Duration
}

// Apply produces the next snapshot. A full result replaces current; a scoped
// result is merged into a copy of current.
func (r *Result) Apply(current *Snapshot) *Snapshot {
	if r.Full || current == nil {
		return NewSnapshot(r.Entries)
	}
	return current.Merge(r.Entries)
}

// Scan runs a full scan when full is set or paths is empty, otherwise a
// single batched scan of paths. Nothing partial is returned on error.
func Scan(ctx context.Context, scanner Scanner, paths []string, full bool, opts models.ScanOptions) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInterruptedScan, err)
	}

	if full || len(paths) == 0 {
		entries, err := scanner.ScanStatus(ctx, opts)
		if err != nil {
			return nil, wrapScanErr(ctx, "full scan", err)
		}
		return &Result{Full: true, Entries: entries, Duration: time.Since(start)}, nil
	}

	scoped := make([]string, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		p = utils.NormalizePath(p)
		if _, ok := seen[p]; ok || p == "" {
			continue
		}
		seen[p] = struct{}{}
		scoped = append(scoped, p)
	}
	if len(scoped) == 0 {
		return &Result{Duration: time.Since(start)}, nil
	}

	entries, err := scanner.ScanPaths(ctx, scoped)
	if err != nil {
		return nil, wrapScanErr(ctx, fmt.Sprintf("%d paths", len(scoped)), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInterruptedScan, err)
	}
	return &Result{Paths: scoped, Entries: entries, Duration: time.Since(start)}, nil
}

// Rescan is the synchronous form of Scan followed by Apply on previous.
// An empty paths list or a nil previous snapshot forces a full scan.
func Rescan(ctx context.Context, scanner Scanner, previous *Snapshot, paths []string, opts models.ScanOptions) (*Snapshot, error) {
	res, err := Scan(ctx, scanner, paths, previous == nil, opts)
	if err != nil {
		return nil, err
	}
	return res.Apply(previous), nil
}

func wrapScanErr(ctx context.Context, what string, err error) error {
	if errors.Is(err, ErrScanFailure) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrInterruptedScan, what, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrScanFailure, what, err)
}
