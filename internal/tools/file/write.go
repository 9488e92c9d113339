package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ggcode-ai/ggcode/internal/tools"
)

// Write returns the file write tool. Existing files are backed up to
// <path>.backup before being replaced.
func Write() tools.Definition {
	return tools.Definition{
		Name:        "write",
		Description: "Write content to a file, creating parent directories as needed. Overwriting keeps a .backup copy of the previous contents.",
		Category:    tools.CategoryFile,
		Permission:  tools.PermissionLocalModify,
		Params: []tools.ParamSpec{
			{Name: "filePath", Type: "string", Description: "Destination path.", Required: true},
			{Name: "content", Type: "string", Description: "Full file contents to write.", Required: true},
		},
		Handler: writeHandler,
	}
}

func writeHandler(ctx context.Context, exec *tools.Execution) (string, error) {
	path, err := resolve(exec.WorkDir, exec.String("filePath"))
	if err != nil {
		return "", err
	}
	content := exec.String("content")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create parent directory: %w", err)
	}

	deletions := 0
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", path)
		}
		old, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read existing file: %w", err)
		}
		deletions = countLines(string(old))
		if err := backup(path); err != nil {
			return "", err
		}
	}

	if err := writeAtomic(path, content); err != nil {
		return "", err
	}

	additions := countLines(content)
	exec.Meta("file", path)
	exec.Meta("additions", additions)
	exec.Meta("deletions", deletions)
	return fmt.Sprintf("Wrote %d bytes (%d lines) to %s", len(content), additions, path), nil
}
