// Package utils holds path helpers shared by the engine, watcher and CLI.
package utils

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MetaExt is the suffix of sidecar metadata files that travel with an asset.
const MetaExt = ".meta"

// NormalizePath turns a path into the repository-relative key used for
// dirty tracking and snapshot lookups: forward slashes, no leading "./",
// no trailing slash.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.TrimRight(p, "/")
	if p == "." {
		return ""
	}
	return p
}

// RelativeTo converts an absolute path into a normalized path relative to root.
// ok is false when abs lies outside root.
func RelativeTo(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", false
	}
	return NormalizePath(filepath.ToSlash(rel)), true
}

// IsMetaPath reports whether p names a sidecar file.
func IsMetaPath(p string) bool {
	return strings.HasSuffix(p, MetaExt)
}

// AssetPathFromMeta strips the sidecar suffix.
func AssetPathFromMeta(p string) string {
	if !IsMetaPath(p) {
		return p
	}
	return p[:len(p)-len(MetaExt)]
}

// MetaPathFromAsset returns the sidecar path for an asset.
func MetaPathFromAsset(p string) string {
	return p + MetaExt
}

// PathWithMeta returns p together with its sidecar pairing. A sidecar yields
// itself and its asset. An asset yields itself when it has an extension and
// always yields its sidecar; extension-less paths are treated as folders
// whose only tracked file is the sidecar.
func PathWithMeta(p string) []string {
	p = NormalizePath(p)
	if IsMetaPath(p) {
		return []string{p, AssetPathFromMeta(p)}
	}
	out := make([]string, 0, 2)
	if path.Ext(p) != "" {
		out = append(out, p)
	}
	return append(out, MetaPathFromAsset(p))
}

// PathsWithMeta expands every path with PathWithMeta and drops duplicates,
// keeping first-seen order.
func PathsWithMeta(paths []string) []string {
	seen := make(map[string]struct{}, len(paths)*2)
	out := make([]string, 0, len(paths)*2)
	for _, p := range paths {
		for _, q := range PathWithMeta(p) {
			if _, ok := seen[q]; ok {
				continue
			}
			seen[q] = struct{}{}
			out = append(out, q)
		}
	}
	return out
}

// IsEmptyFolder reports whether dir exists, is a directory and has no entries.
func IsEmptyFolder(dir string) bool {
	f, err := os.Open(dir) //nolint:gosec
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil || !info.IsDir() {
		return false
	}
	names, err := f.Readdirnames(1)
	return err != nil && len(names) == 0
}

// IsEmptyFolderMeta reports whether rel (relative to root) is the sidecar of
// an empty folder.
func IsEmptyFolderMeta(root, rel string) bool {
	if !IsMetaPath(rel) {
		return false
	}
	return IsEmptyFolder(filepath.Join(root, filepath.FromSlash(AssetPathFromMeta(rel))))
}
