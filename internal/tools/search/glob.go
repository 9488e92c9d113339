package search

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/ggcode-ai/ggcode/internal/tools"
)

const maxGlobResults = 500

// Glob returns the file pattern matching tool.
func Glob() tools.Definition {
	return tools.Definition{
		Name:        "glob",
		Description: "Find files whose relative path matches a glob pattern. \"**\" matches any number of directories, e.g. \"**/*.go\".",
		Category:    tools.CategorySearch,
		Permission:  tools.PermissionSafe,
		Params: []tools.ParamSpec{
			{Name: "pattern", Type: "string", Description: "Glob pattern matched against workdir-relative paths.", Required: true},
			{Name: "dir", Type: "string", Description: "Directory to search under (default: working directory)."},
		},
		Handler: globHandler,
	}
}

func globHandler(ctx context.Context, exec *tools.Execution) (string, error) {
	pattern := strings.TrimSpace(exec.String("pattern"))
	if pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	root := resolveDir(exec.WorkDir, exec.String("dir"))

	var matches []string
	total := 0
	err := walk(root, func(rel string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !matchPath(pattern, rel) {
			return nil
		}
		total++
		if len(matches) < maxGlobResults {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No files matched pattern %q", pattern), nil
	}
	sort.Strings(matches)
	out := strings.Join(matches, "\n")
	if total > len(matches) {
		out += fmt.Sprintf("\n(%d of %d matches shown)", len(matches), total)
	}
	return out, nil
}
