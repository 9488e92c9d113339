package markdown

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ANSI escapes used by the renderer.
const (
	ansiReset    = "\033[0m"
	ansiBold     = "\033[1m"
	ansiDim      = "\033[2m"
	ansiItalic   = "\033[3m"
	ansiCyan     = "\033[36m"
	ansiGray     = "\033[90m"
	ansiBoldCyan = "\033[1;36m"
)

var (
	headingRe    = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletRe     = regexp.MustCompile(`^(\s*)([-*+])\s+(.*)$`)
	numberedRe   = regexp.MustCompile(`^(\s*)(\d+\.)\s+(.*)$`)
	quoteRe      = regexp.MustCompile(`^\s*>\s?(.*)$`)
	inlineCodeRe = regexp.MustCompile("`([^`\n]+)`")
	boldSpanRe   = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicSpanRe = regexp.MustCompile(`\*([^*\n]+)\*`)
)

// Options configures a Renderer. The zero value renders unstyled at the
// default width.
type Options struct {
	// Width is the terminal width used to fit tables; 0 selects 100.
	Width int

	// Color enables ANSI styling. Off, the renderer still aligns tables
	// but emits no escapes.
	Color bool
}

// Renderer styles markdown as it streams in. Output is line-buffered: a line
// is emitted once its newline arrives, so block state (fences, tables) is
// decided on whole lines; Flush emits whatever is still pending at
// end-of-stream. Pipe-table runs are held back and emitted aligned when the
// first non-table line (or Flush) closes them.
//
// Not safe for concurrent use; the REPL feeds it from one goroutine.
type Renderer struct {
	w     io.Writer
	width int
	color bool

	pending string
	table   []string
	inFence bool
}

// NewRenderer creates a renderer writing styled output to w.
func NewRenderer(w io.Writer, opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 100
	}
	return &Renderer{w: w, width: opts.Width, color: opts.Color}
}

// Write consumes the next chunk of markdown. It implements io.Writer and
// never fails; downstream write errors are ignored, matching terminal
// output semantics.
func (r *Renderer) Write(p []byte) (int, error) {
	r.WriteString(string(p))
	return len(p), nil
}

// WriteString consumes the next chunk of markdown.
func (r *Renderer) WriteString(chunk string) {
	s := r.pending + chunk
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			break
		}
		r.emitLine(s[:i])
		s = s[i+1:]
	}
	r.pending = s
}

// Flush closes the stream: pending tables are aligned and the trailing
// unterminated line is styled and emitted.
func (r *Renderer) Flush() {
	r.flushTable()
	if r.pending != "" {
		fmt.Fprintln(r.w, r.styleLine(r.pending))
		r.pending = ""
	}
}

// Render styles a complete document in one call.
func Render(text string, opts Options) string {
	var b strings.Builder
	r := NewRenderer(&b, opts)
	r.WriteString(text)
	r.Flush()
	return b.String()
}

func (r *Renderer) emitLine(line string) {
	if !r.inFence && IsTableRow(line) {
		r.table = append(r.table, line)
		return
	}
	r.flushTable()
	fmt.Fprintln(r.w, r.styleLine(line))
}

// flushTable emits the buffered table run: aligned when it parses, styled
// line by line when it does not.
func (r *Renderer) flushTable() {
	if len(r.table) == 0 {
		return
	}
	lines := r.table
	r.table = nil
	if t := ParseTable(lines); t != nil {
		fmt.Fprint(r.w, t.Align(r.width))
		return
	}
	for _, line := range lines {
		fmt.Fprintln(r.w, r.styleLine(line))
	}
}

// styleLine applies block styling and tracks fence state. Inside a fence
// every line renders dim with no inline styling.
func (r *Renderer) styleLine(line string) string {
	if strings.HasPrefix(strings.TrimSpace(line), "```") {
		r.inFence = !r.inFence
		return r.paint(ansiGray, line)
	}
	if r.inFence {
		return r.paint(ansiDim, line)
	}

	if headingRe.MatchString(line) {
		return r.paint(ansiBoldCyan, line)
	}
	if m := quoteRe.FindStringSubmatch(line); m != nil {
		return r.paint(ansiGray, "│ "+m[1])
	}
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		return m[1] + r.paint(ansiCyan, "•") + " " + r.inline(m[3])
	}
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		return m[1] + r.paint(ansiCyan, m[2]) + " " + r.inline(m[3])
	}
	return r.inline(line)
}

// inline styles code spans, bold and italic. Code spans are replaced first
// so asterisks inside them stay literal.
func (r *Renderer) inline(s string) string {
	if !r.color {
		return s
	}
	s = inlineCodeRe.ReplaceAllString(s, ansiCyan+"$1"+ansiReset)
	s = boldSpanRe.ReplaceAllString(s, ansiBold+"$1"+ansiReset)
	s = italicSpanRe.ReplaceAllString(s, ansiItalic+"$1"+ansiReset)
	return s
}

func (r *Renderer) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}
