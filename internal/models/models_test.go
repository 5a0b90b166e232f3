package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFlagsStageability(t *testing.T) {
	tests := []struct {
		name       string
		flags      StatusFlags
		canStage   bool
		canUnstage bool
	}{
		{name: "unaltered", flags: StatusUnaltered},
		{name: "modified in workdir", flags: StatusModifiedInWorkdir, canStage: true},
		{name: "untracked", flags: StatusNewInWorkdir, canStage: true},
		{name: "staged new", flags: StatusNewInIndex, canUnstage: true},
		{name: "partially staged", flags: StatusModifiedInIndex | StatusModifiedInWorkdir, canStage: true, canUnstage: true},
		{name: "ignored", flags: StatusIgnored},
		{name: "conflicted", flags: StatusConflicted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.canStage, tt.flags.CanStage())
			assert.Equal(t, tt.canUnstage, tt.flags.CanUnstage())
		})
	}
}

func TestStatusFlagsSetClear(t *testing.T) {
	s := StatusUnaltered.Set(StatusModifiedInWorkdir | StatusIgnored)
	assert.True(t, s.Has(StatusIgnored))
	s = s.Clear(StatusIgnored)
	assert.False(t, s.Has(StatusIgnored))
	assert.True(t, s.HasNone(StatusConflicted, StatusIgnored))
	assert.False(t, s.IsUnaltered())
	assert.True(t, StatusTypeChanged.Has(StatusTypeChangeInWorkdir))
}

func TestStatusFlagsString(t *testing.T) {
	assert.Equal(t, "Unaltered", StatusUnaltered.String())
	assert.Equal(t, "ModifiedInIndex|NewInWorkdir", (StatusModifiedInIndex | StatusNewInWorkdir).String())
	assert.Equal(t, "Unknown", StatusFlags(1<<20).String())
}

func TestParseRenameDetection(t *testing.T) {
	mode, ok := ParseRenameDetection("All")
	assert.True(t, ok)
	assert.Equal(t, RenameAll, mode)
	opts := ScanOptions{DetectRenames: mode}
	assert.True(t, opts.DetectRenamesInIndex())
	assert.True(t, opts.DetectRenamesInWorkdir())

	mode, ok = ParseRenameDetection("index")
	assert.True(t, ok)
	assert.False(t, ScanOptions{DetectRenames: mode}.DetectRenamesInWorkdir())

	_, ok = ParseRenameDetection("sideways")
	assert.False(t, ok)
}
