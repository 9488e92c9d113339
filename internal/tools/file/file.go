// Package file provides the filesystem tool definitions: read, write, edit
// and mkdir. Write paths are atomic (temp file + rename) and overwrites
// leave a .backup sidecar.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolve cleans the path and anchors relative paths at the execution
// working directory.
func resolve(workdir, path string) (string, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(clean) {
		return filepath.Clean(clean), nil
	}
	return filepath.Join(workdir, clean), nil
}

// writeAtomic replaces path's contents via a temp file in the same
// directory, so readers never observe a partial write.
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".ggcode-write-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// backup copies the current contents of path to path.backup before a
// destructive change.
func backup(path string) error {
	old, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read for backup: %w", err)
	}
	if err := os.WriteFile(path+".backup", old, 0o644); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// countLines counts logical lines, treating a trailing newline as a line
// terminator rather than an extra line.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
