package markdown

import (
	"strings"
	"testing"
)

func TestParseTable(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  bool
	}{
		{
			name: "simple table",
			lines: []string{
				"| Name | Age |",
				"|------|-----|",
				"| Alice | 25 |",
			},
			want: true,
		},
		{
			name: "aligned separator",
			lines: []string{
				"| Left | Center |",
				"|:-----|:------:|",
				"| a | b |",
			},
			want: true,
		},
		{
			name:  "too short",
			lines: []string{"| Name |", "|------|"},
			want:  false,
		},
		{
			name: "missing separator",
			lines: []string{
				"| Name | Age |",
				"| Alice | 25 |",
				"| Bob | 30 |",
			},
			want: false,
		},
		{
			name: "interrupted by prose",
			lines: []string{
				"| Name | Age |",
				"|------|-----|",
				"not a row",
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTable(tt.lines)
			if (got != nil) != tt.want {
				t.Errorf("ParseTable = %v, want table=%v", got, tt.want)
			}
		})
	}
}

func TestParseTable_PadsShortRows(t *testing.T) {
	table := ParseTable([]string{
		"| A | B | C |",
		"|---|---|---|",
		"| 1 | 2 |",
	})
	if table == nil {
		t.Fatal("table did not parse")
	}
	if len(table.Rows[0]) != 3 || table.Rows[0][2] != "" {
		t.Errorf("row not padded: %v", table.Rows[0])
	}
}

func TestAlign_ColumnsLineUp(t *testing.T) {
	table := ParseTable([]string{
		"| Name | Role |",
		"|------|------|",
		"| Alice | engineer |",
		"| Bob | designer |",
	})
	out := table.Align(80)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	// Every content row carries the column joint at the same offset.
	joint := strings.Index(lines[0], "│")
	if joint < 0 {
		t.Fatalf("no joint in header: %q", lines[0])
	}
	for _, line := range []string{lines[2], lines[3]} {
		if strings.Index(line, "│") != joint {
			t.Errorf("misaligned row %q (joint at %d, want %d)", line, strings.Index(line, "│"), joint)
		}
	}
	if !strings.Contains(lines[1], "┼") {
		t.Errorf("separator lacks a cross joint: %q", lines[1])
	}
}

func TestAlign_CJKWidths(t *testing.T) {
	table := ParseTable([]string{
		"| 名字 | Role |",
		"|------|------|",
		"| 张三 | engineer |",
		"| Bob | designer |",
	})
	out := table.Align(80)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	// Joints must line up when measured in display cells, with wide runes
	// counting double.
	want := -1
	for i, line := range lines {
		if i == 1 {
			continue
		}
		idx := strings.Index(line, "│")
		if idx < 0 {
			t.Fatalf("row %d has no joint: %q", i, line)
		}
		joint := displayWidth(line[:idx])
		if want == -1 {
			want = joint
		} else if joint != want {
			t.Errorf("row %d joint at %d display cells, want %d: %q", i, joint, want, line)
		}
	}
}

func TestAlign_ShrinksToWidth(t *testing.T) {
	long := strings.Repeat("verylongcell ", 10)
	table := ParseTable([]string{
		"| Key | Value |",
		"|-----|-------|",
		"| a | " + long + " |",
	})
	out := table.Align(40)
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if displayWidth(line) > 40 {
			t.Errorf("line exceeds width %d: %q", displayWidth(line), line)
		}
	}
	if !strings.Contains(out, "…") {
		t.Error("over-wide cell was not truncated with an ellipsis")
	}
}

func TestDisplayWidth(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"abc", 3},
		{"中文", 4},
		{"中a文b", 6},
		{"", 0},
	}
	for _, tt := range tests {
		if got := displayWidth(tt.in); got != tt.want {
			t.Errorf("displayWidth(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTruncateDisplay(t *testing.T) {
	if got := truncateDisplay("hello world", 8); displayWidth(got) > 8 || !strings.HasSuffix(got, "…") {
		t.Errorf("truncateDisplay = %q", got)
	}
	if got := truncateDisplay("short", 10); got != "short" {
		t.Errorf("truncateDisplay kept = %q", got)
	}
	if got := truncateDisplay("中文字符串", 6); displayWidth(got) > 6 {
		t.Errorf("CJK truncation too wide: %q (%d cells)", got, displayWidth(got))
	}
}
