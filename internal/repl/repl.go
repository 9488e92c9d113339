// Package repl implements the interactive front-end: a line loop that routes
// slash commands to the command registry and everything else through the
// agent orchestrator, with replies streamed through the markdown renderer.
//
// SIGINT is soft: during a turn it cancels the turn context and the loop
// continues; at the prompt it prints a quit hint. EOF and /exit end the
// loop.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/term"

	"github.com/ggcode-ai/ggcode/internal/agent"
	"github.com/ggcode-ai/ggcode/internal/commands"
	"github.com/ggcode-ai/ggcode/internal/sessions"
	"github.com/ggcode-ai/ggcode/internal/tools"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

const interruptHint = "Interrupt received. Use /exit or Ctrl+D to quit."

// Config wires a REPL.
type Config struct {
	// Commands handles slash-prefixed input.
	Commands *commands.Registry

	// Sessions supplies the current session id shown in the prompt.
	// Optional; the prompt shows a placeholder without it.
	Sessions *sessions.Store

	// AgentType appears in the prompt. Default "build".
	AgentType string

	// Input and Output default to os.Stdin and os.Stdout. ANSI styling is
	// enabled only when Output is a terminal.
	Input  io.Reader
	Output io.Writer

	// Banner prints once before the first prompt.
	Banner string

	Logger *slog.Logger
}

// REPL is the interactive loop. Construct with New, attach the orchestrator
// with Bind, then Run.
type REPL struct {
	commands  *commands.Registry
	sessions  *sessions.Store
	agentType string
	in        io.Reader
	out       io.Writer
	banner    string
	logger    *slog.Logger
	color     bool
	printer   *Printer
	reader    *bufio.Reader

	mu         sync.Mutex
	orch       *agent.Orchestrator
	turnCancel context.CancelFunc
}

// New creates a REPL. The orchestrator attaches afterwards via Bind because
// its run config points back at the REPL's Status and Approve methods.
func New(cfg Config) *REPL {
	if cfg.Input == nil {
		cfg.Input = os.Stdin
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.AgentType == "" {
		cfg.AgentType = "build"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	color := isTerminal(cfg.Output)
	return &REPL{
		commands:  cfg.Commands,
		sessions:  cfg.Sessions,
		agentType: cfg.AgentType,
		in:        cfg.Input,
		out:       cfg.Output,
		banner:    cfg.Banner,
		logger:    cfg.Logger.With("component", "repl"),
		color:     color,
		printer:   NewPrinter(cfg.Output, color),
		reader:    bufio.NewReader(cfg.Input),
	}
}

// Bind attaches the orchestrator that runs prose turns.
func (r *REPL) Bind(orch *agent.Orchestrator) {
	r.mu.Lock()
	r.orch = orch
	r.mu.Unlock()
}

// Status forwards turn events to the printer. It satisfies agent.StatusFunc.
func (r *REPL) Status(ev agent.Event) { r.printer.Status(ev) }

// Approve prompts for tool approval on the REPL's own reader, so the answer
// never races the main loop for stdin. It satisfies agent.ApprovalFunc.
func (r *REPL) Approve(call models.ToolCall, def tools.Definition) bool {
	label := call.Tool
	if summary := callSummary(call.Parameters); summary != "" {
		label += " " + summary
	}
	fmt.Fprintf(r.out, "\nAllow %s [%s]? [y/N] ", label, def.Permission)
	line, err := r.reader.ReadString('\n')
	if err != nil {
		fmt.Fprintln(r.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// Run loops until EOF, /exit, or a read failure. The context cancels the
// whole loop; SIGINT only ever cancels the running turn.
func (r *REPL) Run(ctx context.Context) error {
	if r.banner != "" {
		fmt.Fprintln(r.out, r.banner)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	defer signal.Stop(sigCh)
	done := make(chan struct{})
	defer close(done)
	go r.watchSignals(sigCh, done)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(r.out, r.prompt())
		line, err := r.reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if line != "" && r.handle(ctx, line) {
					return nil
				}
				fmt.Fprintln(r.out, "\nBye.")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if line == "" {
			continue
		}
		if r.handle(ctx, line) {
			return nil
		}
	}
}

// handle routes one input line. Returns true when the REPL should quit.
func (r *REPL) handle(ctx context.Context, line string) bool {
	if commands.IsCommand(line) {
		return r.dispatchCommand(ctx, line)
	}
	r.runTurn(ctx, line)
	return false
}

// dispatchCommand parses and executes a slash command. Handler errors print
// and the loop continues; only a Quit result ends it.
func (r *REPL) dispatchCommand(ctx context.Context, line string) bool {
	if r.commands == nil {
		fmt.Fprintln(r.out, "Commands are not available.")
		return false
	}
	inv := commands.Parse(line)
	if inv == nil {
		fmt.Fprintln(r.out, "Malformed command. Try /help.")
		return false
	}
	result, err := r.commands.Execute(ctx, inv)
	if err != nil {
		fmt.Fprintln(r.out, err.Error())
		return false
	}
	if result == nil {
		return false
	}
	if result.Text != "" {
		fmt.Fprintln(r.out, result.Text)
	}
	return result.Quit
}

// runTurn sends one prose input through the orchestrator. The printer shows
// progress and errors; interrupts just end the turn.
func (r *REPL) runTurn(ctx context.Context, input string) {
	r.mu.Lock()
	orch := r.orch
	r.mu.Unlock()
	if orch == nil {
		fmt.Fprintln(r.out, "No agent attached.")
		return
	}

	turnCtx, cancel := context.WithCancel(ctx)
	r.setTurnCancel(cancel)
	defer func() {
		r.setTurnCancel(nil)
		cancel()
	}()

	r.printer.BeginTurn(r.width())
	if _, err := orch.Turn(turnCtx, input); err != nil {
		if errors.Is(err, agent.ErrInterrupted) {
			return
		}
		r.logger.Error("turn failed", "error", err)
	}
}

// prompt renders "[1a2b3c4d build] > " with the current session short id.
func (r *REPL) prompt() string {
	short := "--------"
	if r.sessions != nil {
		if sess, err := r.sessions.Current(); err == nil && sess != nil {
			short = shortID(sess.ID)
		}
	}
	if r.color {
		return fmt.Sprintf("\n%s[%s %s]%s > ", ansiBoldCyan, short, r.agentType, ansiReset)
	}
	return fmt.Sprintf("\n[%s %s] > ", short, r.agentType)
}

// watchSignals consumes SIGINT for the lifetime of Run: cancel the running
// turn if there is one, otherwise hint at how to quit.
func (r *REPL) watchSignals(sigCh <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-sigCh:
			if cancel := r.currentTurnCancel(); cancel != nil {
				cancel()
				continue
			}
			fmt.Fprintf(r.out, "\n%s\n", interruptHint)
			fmt.Fprint(r.out, r.prompt())
		}
	}
}

func (r *REPL) setTurnCancel(fn context.CancelFunc) {
	r.mu.Lock()
	r.turnCancel = fn
	r.mu.Unlock()
}

func (r *REPL) currentTurnCancel() context.CancelFunc {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turnCancel
}

// width reads the terminal width, or zero to let the renderer default.
func (r *REPL) width() int {
	f, ok := r.out.(*os.File)
	if !ok {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 0
	}
	return w
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// shortID returns the first eight characters of a session id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
