package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ggcode-ai/ggcode/internal/tools"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir fixture: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func run(t *testing.T, h tools.HandlerFunc, workdir string, args map[string]any) (string, error) {
	t.Helper()
	return h(context.Background(), &tools.Execution{Args: args, WorkDir: workdir})
}

func TestRead_NumberedOutput(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "poem.txt", "roses\nviolets\nsugar\n")

	out, err := run(t, readHandler, dir, map[string]any{"filePath": "poem.txt"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "     1\troses\n     2\tviolets\n     3\tsugar"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestRead_LineRange(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, strings.Repeat("x", i))
	}
	writeFixture(t, dir, "ten.txt", strings.Join(lines, "\n")+"\n")

	tests := []struct {
		name      string
		args      map[string]any
		wantFirst string
		wantLast  string
		wantCount int
	}{
		{"middle slice", map[string]any{"filePath": "ten.txt", "startLine": 3, "endLine": 5}, "     3\txxx", "     5\txxxxx", 3},
		{"open end", map[string]any{"filePath": "ten.txt", "startLine": 9}, "     9\t" + strings.Repeat("x", 9), "    10\t" + strings.Repeat("x", 10), 2},
		{"clamped start", map[string]any{"filePath": "ten.txt", "startLine": -4, "endLine": 2}, "     1\tx", "     2\txx", 2},
		{"end beyond eof", map[string]any{"filePath": "ten.txt", "startLine": 10, "endLine": 99}, "    10\t" + strings.Repeat("x", 10), "    10\t" + strings.Repeat("x", 10), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, readHandler, dir, tt.args)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			got := strings.Split(out, "\n")
			if len(got) != tt.wantCount {
				t.Fatalf("line count = %d, want %d (%q)", len(got), tt.wantCount, out)
			}
			if got[0] != tt.wantFirst {
				t.Errorf("first = %q, want %q", got[0], tt.wantFirst)
			}
			if got[len(got)-1] != tt.wantLast {
				t.Errorf("last = %q, want %q", got[len(got)-1], tt.wantLast)
			}
		})
	}
}

func TestRead_Missing(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, readHandler, dir, map[string]any{"filePath": "ghost.txt"})
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Errorf("err = %v, want file not found", err)
	}
}

func TestRead_StartBeyondEOF(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "small.txt", "one\ntwo\n")
	_, err := run(t, readHandler, dir, map[string]any{"filePath": "small.txt", "startLine": 50})
	if err == nil || !strings.Contains(err.Error(), "beyond the end") {
		t.Errorf("err = %v, want beyond-eof error", err)
	}
}

func TestWrite_CreatesWithParents(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, writeHandler, dir, map[string]any{
		"filePath": "deep/nested/new.txt",
		"content":  "hello\nworld\n",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(out, "2 lines") {
		t.Errorf("output = %q, want line count", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "deep/nested/new.txt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "hello\nworld\n" {
		t.Errorf("contents = %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "deep/nested/new.txt.backup")); !os.IsNotExist(err) {
		t.Error("backup created for a fresh file")
	}
}

func TestWrite_OverwriteKeepsBackup(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "config.txt", "old contents\n")

	if _, err := run(t, writeHandler, dir, map[string]any{
		"filePath": "config.txt",
		"content":  "new contents\n",
	}); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "new contents\n" {
		t.Errorf("contents = %q", data)
	}
	bak, err := os.ReadFile(path + ".backup")
	if err != nil {
		t.Fatalf("backup missing: %v", err)
	}
	if string(bak) != "old contents\n" {
		t.Errorf("backup = %q, want old contents", bak)
	}
}

func TestEdit_FirstOccurrence(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "main.go", "foo bar foo\n")

	out, err := run(t, editHandler, dir, map[string]any{
		"filePath":  "main.go",
		"oldString": "foo",
		"newString": "qux",
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !strings.Contains(out, "1 occurrence") {
		t.Errorf("output = %q", out)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "qux bar foo\n" {
		t.Errorf("contents = %q, want first occurrence replaced", data)
	}
}

func TestEdit_ReplaceAll(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "main.go", "foo bar foo baz foo\n")

	out, err := run(t, editHandler, dir, map[string]any{
		"filePath":   "main.go",
		"oldString":  "foo",
		"newString":  "qux",
		"replaceAll": true,
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !strings.Contains(out, "3 occurrence") {
		t.Errorf("output = %q, want 3 occurrences", out)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "qux bar qux baz qux\n" {
		t.Errorf("contents = %q", data)
	}
}

func TestEdit_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "a.txt", "something\n")

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"not found", map[string]any{"filePath": "a.txt", "oldString": "absent", "newString": "x"}, "not found"},
		{"identical", map[string]any{"filePath": "a.txt", "oldString": "same", "newString": "same"}, "identical"},
		{"missing file", map[string]any{"filePath": "nope.txt", "oldString": "a", "newString": "b"}, "file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, editHandler, dir, tt.args)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestMkdir_Recursive(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, mkdirHandler, dir, map[string]any{"path": "a/b/c"}); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "a/b/c"))
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
	// second call is a no-op
	if _, err := run(t, mkdirHandler, dir, map[string]any{"path": "a/b/c"}); err != nil {
		t.Errorf("mkdir twice: %v", err)
	}
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"one\n", 1},
		{"one\ntwo", 2},
		{"one\ntwo\n", 2},
	}
	for _, tt := range tests {
		if got := countLines(tt.in); got != tt.want {
			t.Errorf("countLines(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
