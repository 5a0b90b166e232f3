// Package models defines the data objects shared across lazystatus packages.
package models

import "strings"

// StatusFlags is a bitset describing the state of a path relative to HEAD,
// the index and the working directory. Bit values follow libgit2.
type StatusFlags uint32

// Status flag values. Unaltered is the empty set.
const (
	StatusUnaltered StatusFlags = 0

	StatusNewInIndex        StatusFlags = 1 << 0
	StatusModifiedInIndex   StatusFlags = 1 << 1
	StatusDeletedFromIndex  StatusFlags = 1 << 2
	StatusRenamedInIndex    StatusFlags = 1 << 3
	StatusTypeChangeInIndex StatusFlags = 1 << 4

	StatusNewInWorkdir        StatusFlags = 1 << 7
	StatusModifiedInWorkdir   StatusFlags = 1 << 8
	StatusDeletedFromWorkdir  StatusFlags = 1 << 9
	StatusTypeChangeInWorkdir StatusFlags = 1 << 10
	StatusRenamedInWorkdir    StatusFlags = 1 << 11
	StatusUnreadable          StatusFlags = 1 << 12

	StatusIgnored    StatusFlags = 1 << 14
	StatusConflicted StatusFlags = 1 << 15
)

// Convenience groups.
const (
	StatusTypeChanged = StatusTypeChangeInIndex | StatusTypeChangeInWorkdir

	// StatusIndexChanges are the flags that can be unstaged.
	StatusIndexChanges = StatusNewInIndex | StatusModifiedInIndex | StatusDeletedFromIndex |
		StatusRenamedInIndex | StatusTypeChangeInIndex

	// StatusWorkdirChanges are the flags that can be staged.
	StatusWorkdirChanges = StatusNewInWorkdir | StatusModifiedInWorkdir | StatusDeletedFromWorkdir |
		StatusRenamedInWorkdir | StatusTypeChangeInWorkdir
)

var flagNames = []struct {
	flag StatusFlags
	name string
}{
	{StatusNewInIndex, "NewInIndex"},
	{StatusModifiedInIndex, "ModifiedInIndex"},
	{StatusDeletedFromIndex, "DeletedFromIndex"},
	{StatusRenamedInIndex, "RenamedInIndex"},
	{StatusTypeChangeInIndex, "TypeChangeInIndex"},
	{StatusNewInWorkdir, "NewInWorkdir"},
	{StatusModifiedInWorkdir, "ModifiedInWorkdir"},
	{StatusDeletedFromWorkdir, "DeletedFromWorkdir"},
	{StatusTypeChangeInWorkdir, "TypeChangeInWorkdir"},
	{StatusRenamedInWorkdir, "RenamedInWorkdir"},
	{StatusUnreadable, "Unreadable"},
	{StatusIgnored, "Ignored"},
	{StatusConflicted, "Conflicted"},
}

// Has reports whether any of the bits in flags are set.
func (s StatusFlags) Has(flags StatusFlags) bool {
	return s&flags != 0
}

// HasNone reports whether none of the given flags are set.
func (s StatusFlags) HasNone(flags ...StatusFlags) bool {
	for _, f := range flags {
		if s.Has(f) {
			return false
		}
	}
	return true
}

// Set returns s with flags turned on.
func (s StatusFlags) Set(flags StatusFlags) StatusFlags {
	return s | flags
}

// Clear returns s with flags turned off.
func (s StatusFlags) Clear(flags StatusFlags) StatusFlags {
	return s &^ flags
}

// IsUnaltered reports whether no status bits are set.
func (s StatusFlags) IsUnaltered() bool {
	return s == StatusUnaltered
}

// CanStage reports whether the path carries working directory changes.
func (s StatusFlags) CanStage() bool {
	return s.Has(StatusWorkdirChanges)
}

// CanUnstage reports whether the path carries index changes.
func (s StatusFlags) CanUnstage() bool {
	return s.Has(StatusIndexChanges)
}

// String renders the set flags joined by "|".
func (s StatusFlags) String() string {
	if s == StatusUnaltered {
		return "Unaltered"
	}
	parts := make([]string, 0, 2)
	for _, fn := range flagNames {
		if s.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	if len(parts) == 0 {
		return "Unknown"
	}
	return strings.Join(parts, "|")
}

// StatusEntry is the status of a single path as produced by a scan.
type StatusEntry struct {
	Path   string
	Status StatusFlags
}

// RenameDetection selects where a full scan looks for renames.
type RenameDetection int

// Rename detection modes.
const (
	RenameNone      RenameDetection = 0
	RenameInIndex   RenameDetection = 1 << 0
	RenameInWorkdir RenameDetection = 1 << 1
	RenameAll                       = RenameInIndex | RenameInWorkdir
)

// ParseRenameDetection maps a config value to a RenameDetection.
func ParseRenameDetection(value string) (RenameDetection, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none", "off", "false":
		return RenameNone, true
	case "index":
		return RenameInIndex, true
	case "workdir", "worktree":
		return RenameInWorkdir, true
	case "all", "true", "on":
		return RenameAll, true
	}
	return RenameNone, false
}

// ScanOptions tunes a full status scan.
type ScanOptions struct {
	DetectRenames RenameDetection
}

// DetectRenamesInIndex reports whether index renames are requested.
func (o ScanOptions) DetectRenamesInIndex() bool {
	return o.DetectRenames&RenameInIndex != 0
}

// DetectRenamesInWorkdir reports whether working directory renames are requested.
func (o ScanOptions) DetectRenamesInWorkdir() bool {
	return o.DetectRenames&RenameInWorkdir != 0
}
