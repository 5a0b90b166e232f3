package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Assets/a.png", want: "Assets/a.png"},
		{in: "Assets\\Sub\\a.png", want: "Assets/Sub/a.png"},
		{in: "./Assets/", want: "Assets"},
		{in: ".", want: ""},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestRelativeTo(t *testing.T) {
	root := filepath.Join(string(os.PathSeparator), "repo")

	rel, ok := RelativeTo(root, filepath.Join(root, "Assets", "a.png"))
	require.True(t, ok)
	assert.Equal(t, "Assets/a.png", rel)

	_, ok = RelativeTo(root, filepath.Join(string(os.PathSeparator), "elsewhere", "a.png"))
	assert.False(t, ok)
}

func TestPathWithMeta(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "asset with extension", in: "Assets/a.png", want: []string{"Assets/a.png", "Assets/a.png.meta"}},
		{name: "sidecar", in: "Assets/a.png.meta", want: []string{"Assets/a.png.meta", "Assets/a.png"}},
		{name: "folder", in: "Assets/Sub", want: []string{"Assets/Sub.meta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PathWithMeta(tt.in))
		})
	}
}

func TestPathsWithMetaDeduplicates(t *testing.T) {
	got := PathsWithMeta([]string{"a.txt", "a.txt.meta", "b.txt"})
	assert.Equal(t, []string{"a.txt", "a.txt.meta", "b.txt", "b.txt.meta"}, got)
}

func TestIsEmptyFolderMeta(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Empty"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Full"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Full", "x.txt"), []byte("x"), 0o600))

	assert.True(t, IsEmptyFolderMeta(root, "Empty.meta"))
	assert.False(t, IsEmptyFolderMeta(root, "Full.meta"))
	assert.False(t, IsEmptyFolderMeta(root, "Missing.meta"))
	assert.False(t, IsEmptyFolderMeta(root, "Empty"))
}
