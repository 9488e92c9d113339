package file

import (
	"context"
	"fmt"
	"os"

	"github.com/ggcode-ai/ggcode/internal/tools"
)

// Mkdir returns the directory creation tool. Creation is recursive and
// idempotent.
func Mkdir() tools.Definition {
	return tools.Definition{
		Name:        "mkdir",
		Description: "Create a directory, including any missing parents. Succeeds if the directory already exists.",
		Category:    tools.CategoryFile,
		Permission:  tools.PermissionLocalModify,
		Params: []tools.ParamSpec{
			{Name: "path", Type: "string", Description: "Directory path to create.", Required: true},
		},
		Handler: mkdirHandler,
	}
}

func mkdirHandler(ctx context.Context, exec *tools.Execution) (string, error) {
	path, err := resolve(exec.WorkDir, exec.String("path"))
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return "", fmt.Errorf("%s exists and is not a directory", path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	return fmt.Sprintf("Created directory %s", path), nil
}
