package repl

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ggcode-ai/ggcode/internal/agent"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

func TestPrinter_CompletedWithoutChunksRendersMessage(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrinter(out, false)
	p.BeginTurn(0)

	p.Status(agent.Event{Kind: agent.EventCompleted, Message: "Done."})

	if !strings.Contains(out.String(), "Done.") {
		t.Fatalf("output missing completed message:\n%s", out.String())
	}
}

func TestPrinter_StreamedReplyNotDuplicated(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrinter(out, false)
	p.BeginTurn(0)

	p.Status(agent.Event{Kind: agent.EventChunk, Message: "All done."})
	p.Status(agent.Event{Kind: agent.EventCompleted, Message: "All done."})

	if got := strings.Count(out.String(), "All done."); got != 1 {
		t.Fatalf("reply printed %d times, want 1:\n%s", got, out.String())
	}
}

func TestPrinter_ToolLines(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrinter(out, false)
	p.BeginTurn(0)

	call := &models.ToolCall{Tool: "grep", Parameters: map[string]any{"pattern": "TODO"}}
	p.Status(agent.Event{Kind: agent.EventToolStart, Call: call})
	p.Status(agent.Event{Kind: agent.EventToolEnd, Call: call, Result: &models.ToolResult{Success: true}})

	text := out.String()
	if !strings.Contains(text, "→ grep TODO") {
		t.Fatalf("missing start line:\n%s", text)
	}
	if !strings.Contains(text, "✓ grep") {
		t.Fatalf("missing end line:\n%s", text)
	}
}

func TestPrinter_FailedToolShowsError(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrinter(out, false)
	p.BeginTurn(0)

	call := &models.ToolCall{Tool: "read", Parameters: map[string]any{"filePath": "gone.txt"}}
	p.Status(agent.Event{Kind: agent.EventToolEnd, Call: call, Result: &models.ToolResult{
		Success: false,
		Error:   "file not found",
	}})

	if !strings.Contains(out.String(), "✗ read: file not found") {
		t.Fatalf("missing failure line:\n%s", out.String())
	}
}

func TestPrinter_CorrectionResetsStreamedState(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrinter(out, false)
	p.BeginTurn(0)

	p.Status(agent.Event{Kind: agent.EventChunk, Message: "<read>"})
	p.Status(agent.Event{Kind: agent.EventCorrection, Message: "xml style tool call"})
	p.Status(agent.Event{Kind: agent.EventCompleted, Message: "Recovered reply."})

	text := out.String()
	if !strings.Contains(text, "↻ retrying: xml style tool call") {
		t.Fatalf("missing correction notice:\n%s", text)
	}
	if !strings.Contains(text, "Recovered reply.") {
		t.Fatalf("completed message suppressed after correction:\n%s", text)
	}
}

func TestPrinter_InterruptNotice(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrinter(out, false)
	p.BeginTurn(0)

	p.Status(agent.Event{Kind: agent.EventError, Err: agent.ErrInterrupted})

	if !strings.Contains(out.String(), "Interrupted.") {
		t.Fatalf("missing interrupt notice:\n%s", out.String())
	}
}

func TestPrinter_ErrorLine(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrinter(out, false)
	p.BeginTurn(0)

	p.Status(agent.Event{Kind: agent.EventError, Err: errors.New("rate limited")})

	if !strings.Contains(out.String(), "✗ rate limited") {
		t.Fatalf("missing error line:\n%s", out.String())
	}
}

func TestPrinter_ThinkingMarkerCleared(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrinter(out, true)
	p.BeginTurn(0)

	p.Status(agent.Event{Kind: agent.EventThinking})
	p.Status(agent.Event{Kind: agent.EventChunk, Message: "hi\n"})

	text := out.String()
	if !strings.Contains(text, "thinking…") {
		t.Fatalf("missing thinking marker:\n%s", text)
	}
	if !strings.Contains(text, ansiClearLine) {
		t.Fatalf("thinking marker never cleared:\n%s", text)
	}
}

func TestPrinter_NoColorSkipsThinkingMarker(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrinter(out, false)
	p.BeginTurn(0)

	p.Status(agent.Event{Kind: agent.EventThinking})

	if out.Len() != 0 {
		t.Fatalf("plain mode printed a thinking marker:\n%q", out.String())
	}
}

func TestCallSummary(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{
			name:   "command key",
			params: map[string]any{"command": "ls -la", "timeout": 30},
			want:   "ls -la",
		},
		{
			name:   "file path key",
			params: map[string]any{"filePath": "main.go"},
			want:   "main.go",
		},
		{
			name:   "pattern key",
			params: map[string]any{"pattern": "func main"},
			want:   "func main",
		},
		{
			name:   "empty",
			params: map[string]any{},
			want:   "",
		},
		{
			name:   "fallback json",
			params: map[string]any{"depth": 2},
			want:   `{"depth":2}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := callSummary(tt.params); got != tt.want {
				t.Fatalf("callSummary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateLine(t *testing.T) {
	if got := truncateLine("short", 10); got != "short" {
		t.Fatalf("truncateLine = %q, want %q", got, "short")
	}
	got := truncateLine(strings.Repeat("a", 20), 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("truncateLine = %q, want 10 runes ending in ellipsis", got)
	}
	if got := truncateLine("line one\nline two", 80); got != "line one line two" {
		t.Fatalf("truncateLine = %q, want newlines collapsed", got)
	}
}
