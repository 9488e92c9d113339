package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ggcode-ai/ggcode/internal/tools"
)

// maxWholeFileBytes guards unbounded reads; larger files require a line
// range.
const maxWholeFileBytes = 5 * 1024 * 1024

// Read returns the file read tool: line-numbered output with an optional
// 1-based inclusive line range.
func Read() tools.Definition {
	return tools.Definition{
		Name:        "read",
		Description: "Read a file, returning line-numbered content. Use startLine/endLine to read a slice of a large file.",
		Category:    tools.CategoryFile,
		Permission:  tools.PermissionSafe,
		Params: []tools.ParamSpec{
			{Name: "filePath", Type: "string", Description: "Path to the file (relative to the working directory or absolute).", Required: true},
			{Name: "startLine", Type: "integer", Description: "First line to include, 1-based."},
			{Name: "endLine", Type: "integer", Description: "Last line to include, 1-based inclusive."},
		},
		Handler: readHandler,
	}
}

func readHandler(ctx context.Context, exec *tools.Execution) (string, error) {
	path, err := resolve(exec.WorkDir, exec.String("filePath"))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}

	start := exec.Int("startLine", 0)
	end := exec.Int("endLine", 0)
	ranged := start > 0 || end > 0

	if !ranged && info.Size() > maxWholeFileBytes {
		return "", fmt.Errorf("file is %d bytes; pass startLine/endLine to read a slice", info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if start < 1 {
		start = 1
	}

	var b strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo < start {
			continue
		}
		if end > 0 && lineNo > end {
			break
		}
		fmt.Fprintf(&b, "%6d\t%s\n", lineNo, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if lineNo == 0 {
		return "(empty file)", nil
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("startLine %d is beyond the end of the file (%d lines)", start, lineNo)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}
