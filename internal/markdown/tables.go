// Package markdown styles model output for the terminal: ANSI escapes for
// the common inline and block constructs, and aligned box-drawing rendering
// for pipe tables. Rendering is line-oriented so it works on a live stream.
package markdown

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// Table is a parsed pipe table.
type Table struct {
	Headers []string
	Rows    [][]string
}

var (
	// tableRowRe matches | cell | cell | lines.
	tableRowRe = regexp.MustCompile(`^\s*\|(.+)\|\s*$`)

	// separatorRe matches the |---|:--:| divider under the header row.
	separatorRe = regexp.MustCompile(`^\s*\|[\s\-:|]+\|\s*$`)
)

// IsTableRow reports whether the line looks like a pipe-table row.
func IsTableRow(line string) bool {
	return tableRowRe.MatchString(line)
}

// ParseTable interprets consecutive lines as one pipe table: a header row, a
// separator, and at least one data row. Returns nil when the lines do not
// form a table.
func ParseTable(lines []string) *Table {
	if len(lines) < 3 {
		return nil
	}
	if !IsTableRow(lines[0]) || !separatorRe.MatchString(lines[1]) {
		return nil
	}
	headers := splitCells(lines[0])
	if len(headers) == 0 {
		return nil
	}

	t := &Table{Headers: headers}
	for _, line := range lines[2:] {
		if !IsTableRow(line) {
			return nil
		}
		cells := splitCells(line)
		for len(cells) < len(headers) {
			cells = append(cells, "")
		}
		t.Rows = append(t.Rows, cells[:len(headers)])
	}
	if len(t.Rows) == 0 {
		return nil
	}
	return t
}

// splitCells extracts trimmed cell contents from a table row.
func splitCells(row string) []string {
	row = strings.TrimSpace(row)
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")
	parts := strings.Split(row, "|")
	cells := make([]string, 0, len(parts))
	for _, part := range parts {
		cells = append(cells, strings.TrimSpace(part))
	}
	return cells
}

// Align renders the table with display-width-padded columns and box-drawing
// separators, fitted to maxWidth terminal cells. Over-wide columns are
// shrunk and their cells truncated with an ellipsis.
func (t *Table) Align(maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 100
	}

	cols := make([]int, len(t.Headers))
	measure := func(cells []string) {
		for i, c := range cells {
			if i < len(cols) && displayWidth(c) > cols[i] {
				cols[i] = displayWidth(c)
			}
		}
	}
	measure(t.Headers)
	for _, row := range t.Rows {
		measure(row)
	}

	// Each column costs its width plus the " │ " joint (3 cells), minus the
	// trailing joint, plus one leading space.
	overhead := 3*len(cols) - 2
	total := func() int {
		n := overhead
		for _, w := range cols {
			n += w
		}
		return n
	}
	for total() > maxWidth {
		widest := 0
		for i := 1; i < len(cols); i++ {
			if cols[i] > cols[widest] {
				widest = i
			}
		}
		if cols[widest] <= 4 {
			break
		}
		cols[widest]--
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString(" ")
		for i, w := range cols {
			cell := ""
			if i < len(cells) {
				cell = truncateDisplay(cells[i], w)
			}
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", w-displayWidth(cell)))
			if i < len(cols)-1 {
				b.WriteString(" │ ")
			}
		}
		b.WriteString("\n")
	}

	writeRow(t.Headers)
	b.WriteString("─")
	for i, w := range cols {
		b.WriteString(strings.Repeat("─", w))
		if i < len(cols)-1 {
			b.WriteString("─┼─")
		}
	}
	b.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(row)
	}
	return b.String()
}

// displayWidth counts terminal cells, treating East Asian wide and fullwidth
// runes as two.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		n += runeWidth(r)
	}
	return n
}

func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	default:
		return 1
	}
}

// truncateDisplay trims s to at most w terminal cells, appending an ellipsis
// when anything was cut.
func truncateDisplay(s string, w int) string {
	if displayWidth(s) <= w {
		return s
	}
	budget := w - 1 // reserve the ellipsis cell
	used := 0
	var b strings.Builder
	for _, r := range s {
		rw := runeWidth(r)
		if used+rw > budget {
			break
		}
		used += rw
		b.WriteRune(r)
	}
	b.WriteString("…")
	return b.String()
}
