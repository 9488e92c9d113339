package file

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ggcode-ai/ggcode/internal/tools"
)

// Edit returns the exact-string edit tool. By default only the first
// occurrence is replaced; replaceAll switches to a global replace.
func Edit() tools.Definition {
	return tools.Definition{
		Name:        "edit",
		Description: "Replace an exact string in a file. Fails when oldString is not found. Set replaceAll to change every occurrence.",
		Category:    tools.CategoryFile,
		Permission:  tools.PermissionLocalModify,
		Params: []tools.ParamSpec{
			{Name: "filePath", Type: "string", Description: "File to edit.", Required: true},
			{Name: "oldString", Type: "string", Description: "Exact text to find.", Required: true},
			{Name: "newString", Type: "string", Description: "Replacement text.", Required: true},
			{Name: "replaceAll", Type: "boolean", Description: "Replace every occurrence instead of the first.", Default: false},
		},
		Handler: editHandler,
	}
}

func editHandler(ctx context.Context, exec *tools.Execution) (string, error) {
	path, err := resolve(exec.WorkDir, exec.String("filePath"))
	if err != nil {
		return "", err
	}
	oldStr := exec.String("oldString")
	newStr := exec.String("newString")
	if oldStr == "" {
		return "", fmt.Errorf("oldString is required")
	}
	if oldStr == newStr {
		return "", fmt.Errorf("oldString and newString are identical")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	content := string(raw)

	occurrences := strings.Count(content, oldStr)
	if occurrences == 0 {
		return "", fmt.Errorf("oldString not found in %s", path)
	}

	replaced := 1
	var updated string
	if exec.Bool("replaceAll", false) {
		updated = strings.ReplaceAll(content, oldStr, newStr)
		replaced = occurrences
	} else {
		updated = strings.Replace(content, oldStr, newStr, 1)
	}

	if err := backup(path); err != nil {
		return "", err
	}
	if err := writeAtomic(path, updated); err != nil {
		return "", err
	}

	exec.Meta("file", path)
	exec.Meta("additions", countLines(newStr)*replaced)
	exec.Meta("deletions", countLines(oldStr)*replaced)
	return fmt.Sprintf("Replaced %d occurrence(s) in %s", replaced, path), nil
}
