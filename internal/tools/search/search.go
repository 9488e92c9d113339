// Package search provides the workspace search tools: glob file matching
// and regex grep. Both walk the tree directly and skip version control and
// dependency directories.
package search

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// walk visits every regular file under root, reporting workdir-relative
// slash paths.
func walk(root string, visit func(rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped, not fatal
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if p != root && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		return visit(filepath.ToSlash(rel), d)
	})
}

// matchPath matches a slash-separated relative path against a glob pattern
// where "**" spans any number of segments.
func matchPath(pattern, rel string) bool {
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

func matchSegments(pat, parts []string) bool {
	if len(pat) == 0 {
		return len(parts) == 0
	}
	if pat[0] == "**" {
		if matchSegments(pat[1:], parts) {
			return true
		}
		if len(parts) > 0 {
			return matchSegments(pat, parts[1:])
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pat[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pat[1:], parts[1:])
}

// resolveDir anchors an optional dir argument at the working directory.
func resolveDir(workdir, dir string) string {
	dir = strings.TrimSpace(dir)
	if dir == "" || dir == "." {
		return workdir
	}
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(workdir, dir)
}
