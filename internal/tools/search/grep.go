package search

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ggcode-ai/ggcode/internal/tools"
)

const (
	maxGrepFileBytes = 1024 * 1024
	maxGrepLineChars = 256
)

// Grep returns the content search tool.
func Grep() tools.Definition {
	return tools.Definition{
		Name:        "grep",
		Description: "Search file contents with a regular expression. Results are path:line:text, binary files are skipped.",
		Category:    tools.CategorySearch,
		Permission:  tools.PermissionSafe,
		Params: []tools.ParamSpec{
			{Name: "pattern", Type: "string", Description: "Regular expression (Go syntax).", Required: true},
			{Name: "dir", Type: "string", Description: "Directory to search under (default: working directory)."},
			{Name: "filePattern", Type: "string", Description: "Glob filter on file names, e.g. \"*.go\"."},
			{Name: "ignoreCase", Type: "boolean", Description: "Case-insensitive matching.", Default: false},
			{Name: "maxResults", Type: "integer", Description: "Stop after this many matching lines.", Default: 100},
		},
		Handler: grepHandler,
	}
}

var errGrepDone = fmt.Errorf("grep: result cap reached")

func grepHandler(ctx context.Context, exec *tools.Execution) (string, error) {
	expr := exec.String("pattern")
	if strings.TrimSpace(expr) == "" {
		return "", fmt.Errorf("pattern is required")
	}
	if exec.Bool("ignoreCase", false) {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	root := resolveDir(exec.WorkDir, exec.String("dir"))
	filePattern := strings.TrimSpace(exec.String("filePattern"))
	maxResults := exec.Int("maxResults", 100)
	if maxResults <= 0 {
		maxResults = 100
	}

	var lines []string
	capped := false
	err = walk(root, func(rel string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if filePattern != "" {
			ok, _ := path.Match(filePattern, path.Base(rel))
			if !ok {
				return nil
			}
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxGrepFileBytes {
			return nil
		}
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil
		}
		if bytes.IndexByte(data, 0) >= 0 {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if !re.MatchString(line) {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s:%d:%s", rel, i+1, clipLine(line)))
			if len(lines) >= maxResults {
				capped = true
				return errGrepDone
			}
		}
		return nil
	})
	if err != nil && err != errGrepDone {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}

	if len(lines) == 0 {
		return "No matches found", nil
	}
	out := strings.Join(lines, "\n")
	if capped {
		out += fmt.Sprintf("\n(stopped at %d matches)", maxResults)
	}
	return out, nil
}

func clipLine(line string) string {
	line = strings.TrimRight(line, "\r")
	runes := []rune(line)
	if len(runes) <= maxGrepLineChars {
		return line
	}
	return string(runes[:maxGrepLineChars-3]) + "..."
}
