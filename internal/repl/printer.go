package repl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ggcode-ai/ggcode/internal/agent"
	"github.com/ggcode-ai/ggcode/internal/markdown"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

// ANSI sequences for the progress output around the reply body. The body
// itself is styled by the markdown renderer.
const (
	ansiReset     = "\033[0m"
	ansiGray      = "\033[90m"
	ansiRed       = "\033[31m"
	ansiBoldCyan  = "\033[1;36m"
	ansiClearLine = "\r\033[K"
)

// Printer turns orchestrator events into terminal output: streamed reply
// text goes through the markdown renderer, tool progress and errors print as
// short status lines. One Printer serves one REPL; BeginTurn resets it
// between turns.
type Printer struct {
	out   io.Writer
	color bool

	mu       sync.Mutex
	renderer *markdown.Renderer
	streamed bool
	waiting  bool
}

// NewPrinter creates a printer writing to out. color enables ANSI styling
// for the status lines and the renderer alike.
func NewPrinter(out io.Writer, color bool) *Printer {
	return &Printer{out: out, color: color}
}

// BeginTurn starts a fresh renderer for the next turn. A zero width lets the
// renderer pick its default.
func (p *Printer) BeginTurn(width int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renderer = markdown.NewRenderer(p.out, markdown.Options{Width: width, Color: p.color})
	p.streamed = false
	p.waiting = false
}

// Status consumes one turn event. It satisfies agent.StatusFunc.
func (p *Printer) Status(ev agent.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.renderer == nil {
		p.renderer = markdown.NewRenderer(p.out, markdown.Options{Color: p.color})
	}

	switch ev.Kind {
	case agent.EventThinking:
		if p.color {
			fmt.Fprint(p.out, ansiGray+"thinking…"+ansiReset)
			p.waiting = true
		}

	case agent.EventChunk:
		p.clearWait()
		p.streamed = true
		p.renderer.WriteString(ev.Message)

	case agent.EventToolStart:
		p.clearWait()
		p.renderer.Flush()
		p.statusLine("→ " + callLabel(ev.Call))

	case agent.EventToolEnd:
		p.clearWait()
		p.statusLine(resultLabel(ev.Call, ev.Result))

	case agent.EventCorrection:
		p.clearWait()
		p.renderer.Flush()
		p.statusLine("↻ retrying: " + ev.Message)
		p.streamed = false

	case agent.EventCompleted:
		p.clearWait()
		if !p.streamed && ev.Message != "" {
			p.renderer.WriteString(ev.Message + "\n")
		}
		p.renderer.Flush()
		fmt.Fprintln(p.out)

	case agent.EventError:
		p.clearWait()
		p.renderer.Flush()
		if errors.Is(ev.Err, agent.ErrInterrupted) {
			p.statusLine("Interrupted.")
			return
		}
		if p.color {
			fmt.Fprintf(p.out, "%s✗ %v%s\n", ansiRed, ev.Err, ansiReset)
			return
		}
		fmt.Fprintf(p.out, "✗ %v\n", ev.Err)
	}
}

// clearWait erases the pending "thinking…" marker. Callers hold p.mu.
func (p *Printer) clearWait() {
	if !p.waiting {
		return
	}
	fmt.Fprint(p.out, ansiClearLine)
	p.waiting = false
}

// statusLine prints one gray progress line. Callers hold p.mu.
func (p *Printer) statusLine(text string) {
	if p.color {
		fmt.Fprintf(p.out, "%s%s%s\n", ansiGray, text, ansiReset)
		return
	}
	fmt.Fprintln(p.out, text)
}

// callLabel renders "tool summary" for a tool-start line.
func callLabel(call *models.ToolCall) string {
	if call == nil {
		return "tool"
	}
	summary := callSummary(call.Parameters)
	if summary == "" {
		return call.Tool
	}
	return call.Tool + " " + summary
}

// resultLabel renders the outcome line for a finished tool call.
func resultLabel(call *models.ToolCall, result *models.ToolResult) string {
	name := "tool"
	if call != nil {
		name = call.Tool
	}
	if result == nil {
		return "✓ " + name
	}
	if result.Success {
		dur := time.Duration(result.Metadata.DurationMs) * time.Millisecond
		return fmt.Sprintf("✓ %s (%s)", name, dur)
	}
	return fmt.Sprintf("✗ %s: %s", name, truncateLine(result.Error, 120))
}

// callSummary renders a short single-line view of tool parameters for status
// lines and approval prompts. The usual primary parameter is shown bare;
// anything else falls back to compact JSON.
func callSummary(params map[string]any) string {
	for _, key := range []string{"command", "filePath", "pattern", "path"} {
		if v, ok := params[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return truncateLine(s, 80)
			}
		}
	}
	if len(params) == 0 {
		return ""
	}
	data, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return truncateLine(string(data), 80)
}

// truncateLine collapses newlines and caps the text at max runes with an
// ellipsis.
func truncateLine(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
