package app

import (
	"os"
	"time"

	devicons "github.com/epilande/go-devicons"

	"github.com/chmouel/lazystatus/internal/models"
)

type iconFileInfo struct {
	name  string
	isDir bool
}

func (i iconFileInfo) Name() string { return i.name }

func (i iconFileInfo) Size() int64 { return 0 }

func (i iconFileInfo) Mode() os.FileMode {
	if i.isDir {
		return os.ModeDir | 0o755
	}
	return 0
}

func (i iconFileInfo) ModTime() time.Time { return time.Time{} }

func (i iconFileInfo) IsDir() bool { return i.isDir }

func (i iconFileInfo) Sys() any { return nil }

// Nerd Font glyphs.
const (
	iconBranch   = "\ue0a0"
	iconClean    = "\uf00c"
	iconStaging  = "\uf021"
	iconBlocked  = "\uf05e"
	iconDirOpen  = "\uf07c"
	iconDirClose = "\uf07b"
)

func deviconForName(name string, isDir bool) string {
	if name == "" {
		return ""
	}
	style := devicons.IconForInfo(iconFileInfo{name: name, isDir: isDir})
	return style.Icon
}

func iconWithSpace(icon string) string {
	if icon == "" {
		return ""
	}
	return icon + " "
}

// StatusGlyph returns the two column porcelain style code for flags: index
// state then working tree state.
func StatusGlyph(flags models.StatusFlags) string {
	switch {
	case flags.Has(models.StatusConflicted):
		return "UU"
	case flags.Has(models.StatusIgnored):
		return "!!"
	case flags.Has(models.StatusNewInWorkdir) && !flags.CanUnstage():
		return "??"
	}
	return string(indexCode(flags)) + string(workdirCode(flags))
}

func indexCode(flags models.StatusFlags) byte {
	switch {
	case flags.Has(models.StatusNewInIndex):
		return 'A'
	case flags.Has(models.StatusRenamedInIndex):
		return 'R'
	case flags.Has(models.StatusDeletedFromIndex):
		return 'D'
	case flags.Has(models.StatusTypeChangeInIndex):
		return 'T'
	case flags.Has(models.StatusModifiedInIndex):
		return 'M'
	}
	return ' '
}

func workdirCode(flags models.StatusFlags) byte {
	switch {
	case flags.Has(models.StatusNewInWorkdir):
		return '?'
	case flags.Has(models.StatusRenamedInWorkdir):
		return 'R'
	case flags.Has(models.StatusDeletedFromWorkdir):
		return 'D'
	case flags.Has(models.StatusTypeChangeInWorkdir):
		return 'T'
	case flags.Has(models.StatusModifiedInWorkdir):
		return 'M'
	}
	return ' '
}
