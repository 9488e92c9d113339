package repl

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ggcode-ai/ggcode/internal/agent"
	"github.com/ggcode-ai/ggcode/internal/commands"
	"github.com/ggcode-ai/ggcode/internal/conversation"
	"github.com/ggcode-ai/ggcode/internal/llm"
	"github.com/ggcode-ai/ggcode/internal/parser"
	"github.com/ggcode-ai/ggcode/internal/prompts"
	"github.com/ggcode-ai/ggcode/internal/sessions"
	"github.com/ggcode-ai/ggcode/internal/tools"
	"github.com/ggcode-ai/ggcode/internal/tools/builtin"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

// replHarness wires a REPL over a scripted transport, real builtin tools and
// a tempdir session store. input is the whole stdin script.
type replHarness struct {
	repl   *REPL
	out    *bytes.Buffer
	store  *sessions.Store
	client *llm.ScriptedClient
	sessID string
	dir    string
}

func newTestREPL(t *testing.T, input string, responses ...llm.ScriptedResponse) *replHarness {
	t.Helper()

	dir := t.TempDir()
	reg := tools.NewRegistry(nil)
	if err := builtin.Register(reg); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	exec := tools.NewExecutor(reg, tools.ExecutorOptions{WorkDir: dir})

	store, err := sessions.NewStore(sessions.Options{Root: filepath.Join(dir, "sessions")})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sess, err := store.Create("experiments", "build", "")
	if err != nil {
		t.Fatalf("Create session: %v", err)
	}

	conv := conversation.NewManager(conversation.ManagerConfig{MaxTokens: 32000})

	cmdReg := commands.NewRegistry(nil)
	commands.RegisterBuiltins(cmdReg, commands.Deps{
		Conversation: conv,
		Sessions:     store,
		WorkDir:      dir,
		Version:      "test",
	})

	out := &bytes.Buffer{}
	r := New(Config{
		Commands:  cmdReg,
		Sessions:  store,
		AgentType: "build",
		Input:     strings.NewReader(input),
		Output:    out,
	})

	client := llm.NewScripted(responses...)
	orch, err := agent.NewOrchestrator(agent.Config{
		Client:       client,
		Gate:         llm.NewGate(llm.GateOptions{MinCooldown: time.Millisecond, MaxCooldown: 2 * time.Millisecond}),
		Executor:     exec,
		Parser:       parser.New(reg),
		Conversation: conv,
		Sessions:     store,
		Prompts:      prompts.NewComposer(prompts.Config{OverlayDir: filepath.Join(dir, "prompts"), Registry: reg}),
		Run: agent.RunConfig{
			AutoApprove:  true,
			Status:       r.Status,
			SummaryEvery: -1,
		},
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	r.Bind(orch)

	return &replHarness{repl: r, out: out, store: store, client: client, sessID: sess.ID, dir: dir}
}

func (h *replHarness) run(t *testing.T) {
	t.Helper()
	if err := h.repl.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func readCall(path string) string {
	return fmt.Sprintf("{\"tool\": \"read\", \"parameters\": {\"filePath\": %q}}", path)
}

func TestRun_ExitCommandQuits(t *testing.T) {
	h := newTestREPL(t, "/exit\n")
	h.run(t)

	if !strings.Contains(h.out.String(), "Bye.") {
		t.Fatalf("output missing exit text:\n%s", h.out.String())
	}
	if h.client.CallCount() != 0 {
		t.Fatalf("CallCount = %d, want 0", h.client.CallCount())
	}
}

func TestRun_EOFQuits(t *testing.T) {
	h := newTestREPL(t, "")
	h.run(t)

	if !strings.Contains(h.out.String(), "Bye.") {
		t.Fatalf("output missing exit text:\n%s", h.out.String())
	}
}

func TestRun_PromptShowsSessionAndAgent(t *testing.T) {
	h := newTestREPL(t, "")
	h.run(t)

	want := fmt.Sprintf("[%s build] > ", h.sessID[:8])
	if !strings.Contains(h.out.String(), want) {
		t.Fatalf("output missing prompt %q:\n%s", want, h.out.String())
	}
}

func TestRun_UnknownCommandKeepsLooping(t *testing.T) {
	h := newTestREPL(t, "/nope\n/exit\n")
	h.run(t)

	out := h.out.String()
	if !strings.Contains(out, "unknown command /nope") {
		t.Fatalf("output missing unknown-command notice:\n%s", out)
	}
	if !strings.Contains(out, "Bye.") {
		t.Fatalf("loop did not reach /exit:\n%s", out)
	}
}

func TestRun_CommandResultPrinted(t *testing.T) {
	h := newTestREPL(t, "/version\n/exit\n")
	h.run(t)

	if !strings.Contains(h.out.String(), "ggcode test") {
		t.Fatalf("output missing version text:\n%s", h.out.String())
	}
}

func TestRun_EmptyLinesSkipped(t *testing.T) {
	h := newTestREPL(t, "\n   \n/exit\n")
	h.run(t)

	if h.client.CallCount() != 0 {
		t.Fatalf("CallCount = %d, want 0", h.client.CallCount())
	}
}

func TestRun_TurnStreamsReply(t *testing.T) {
	h := newTestREPL(t, "what is 2+2\n/exit\n",
		llm.ScriptedResponse{Text: "The answer is **4**."})
	h.run(t)

	out := h.out.String()
	if !strings.Contains(out, "The answer is **4**.") {
		t.Fatalf("output missing reply text:\n%s", out)
	}
	if strings.Contains(out, "\033") {
		t.Fatalf("non-terminal output contains ANSI escapes:\n%q", out)
	}
	if h.client.CallCount() != 1 {
		t.Fatalf("CallCount = %d, want 1", h.client.CallCount())
	}
}

func TestRun_TurnWithToolShowsProgress(t *testing.T) {
	h := newTestREPL(t, "read hello.txt\n/exit\n",
		llm.ScriptedResponse{Text: readCall("hello.txt")},
		llm.ScriptedResponse{Text: "The file greets you."})
	if err := os.WriteFile(filepath.Join(h.dir, "hello.txt"), []byte("hello\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	h.run(t)

	out := h.out.String()
	if !strings.Contains(out, "→ read hello.txt") {
		t.Fatalf("output missing tool start line:\n%s", out)
	}
	if !strings.Contains(out, "✓ read") {
		t.Fatalf("output missing tool end line:\n%s", out)
	}
	if !strings.Contains(out, "The file greets you.") {
		t.Fatalf("output missing final reply:\n%s", out)
	}
}

func TestRun_TurnErrorKeepsLooping(t *testing.T) {
	h := newTestREPL(t, "hello\n/exit\n",
		llm.ScriptedResponse{Err: fmt.Errorf("transport down")})
	h.run(t)

	out := h.out.String()
	if !strings.Contains(out, "✗") {
		t.Fatalf("output missing error marker:\n%s", out)
	}
	if !strings.Contains(out, "Bye.") {
		t.Fatalf("loop did not survive the error:\n%s", out)
	}
}

func TestRun_TrailingLineWithoutNewline(t *testing.T) {
	h := newTestREPL(t, "/version")
	h.run(t)

	if !strings.Contains(h.out.String(), "ggcode test") {
		t.Fatalf("EOF-terminated command was not handled:\n%s", h.out.String())
	}
}

func TestApprove_Answers(t *testing.T) {
	def := tools.Definition{Name: "shell", Permission: tools.PermissionDangerous}
	call := models.ToolCall{Tool: "shell", Parameters: map[string]any{"command": "rm -rf /tmp/x"}}

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "yes", input: "y\n", want: true},
		{name: "yes word", input: "YES\n", want: true},
		{name: "no", input: "n\n", want: false},
		{name: "default deny", input: "\n", want: false},
		{name: "eof denies", input: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			r := New(Config{Input: strings.NewReader(tt.input), Output: out})
			if got := r.Approve(call, def); got != tt.want {
				t.Fatalf("Approve = %v, want %v", got, tt.want)
			}
			if !strings.Contains(out.String(), "Allow shell rm -rf /tmp/x") {
				t.Fatalf("prompt missing call summary:\n%s", out.String())
			}
			if !strings.Contains(out.String(), "[dangerous]") {
				t.Fatalf("prompt missing permission tier:\n%s", out.String())
			}
		})
	}
}

func TestRun_NoAgentAttached(t *testing.T) {
	out := &bytes.Buffer{}
	cmdReg := commands.NewRegistry(nil)
	commands.RegisterBuiltins(cmdReg, commands.Deps{})
	r := New(Config{
		Commands: cmdReg,
		Input:    strings.NewReader("hello\n/exit\n"),
		Output:   out,
	})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "No agent attached.") {
		t.Fatalf("output missing notice:\n%s", out.String())
	}
}

func TestRun_CanceledContextStops(t *testing.T) {
	h := newTestREPL(t, "/version\n/exit\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.repl.Run(ctx); err == nil {
		t.Fatal("Run returned nil for a canceled context")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Fatalf("shortID = %q, want %q", got, "01234567")
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("shortID = %q, want %q", got, "abc")
	}
}
