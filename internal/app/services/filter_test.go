package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chmouel/lazystatus/internal/models"
)

func TestFindMatchIndex(t *testing.T) {
	even := func(i int) bool { return i%2 == 0 }

	tests := []struct {
		name    string
		count   int
		start   int
		forward bool
		want    int
	}{
		{"empty", 0, 0, true, -1},
		{"forward from start", 5, 0, true, 0},
		{"forward skips odd", 5, 1, true, 2},
		{"forward wraps", 5, 5, true, 0},
		{"backward", 5, 3, false, 2},
		{"negative backward starts at end", 5, -1, false, 4},
		{"negative forward starts at zero", 5, -1, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findMatchIndex(tt.count, tt.start, tt.forward, even))
		})
	}
}

func TestStatusViewSearch(t *testing.T) {
	_, tree := buildTree(
		models.StatusEntry{Path: "src/main.go", Status: models.StatusModifiedInWorkdir},
		models.StatusEntry{Path: "src/Makefile", Status: models.StatusModifiedInWorkdir},
		models.StatusEntry{Path: "README.md", Status: models.StatusNewInWorkdir},
	)
	v := NewStatusView()
	v.SetTree(tree)
	// rows: src, src/Makefile, src/main.go, README.md

	assert.Equal(t, -1, v.FindMatch("  ", 0, true))
	assert.Equal(t, -1, v.FindMatch("nope", 0, true))

	assert.True(t, v.SearchFrom("MA"))
	assert.Equal(t, "src/Makefile", v.SelectedPath())

	assert.True(t, v.SearchNext("ma", true))
	assert.Equal(t, "src/main.go", v.SelectedPath())

	assert.True(t, v.SearchNext("ma", true))
	assert.Equal(t, "src/Makefile", v.SelectedPath(), "search wraps around")

	assert.True(t, v.SearchNext("readme", false))
	assert.Equal(t, "README.md", v.SelectedPath())

	assert.False(t, v.SearchNext("zzz", true))
	assert.Equal(t, "README.md", v.SelectedPath())
}
