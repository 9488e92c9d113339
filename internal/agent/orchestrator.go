// Package agent drives the tool-use loop: stream a model response through
// the format detector, parse tool calls, approve and execute them in order,
// feed the results back, and repeat until the model answers in plain text or
// the step budget runs out. Background subagents generate session titles and
// summaries off the same transport at low priority.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/ggcode-ai/ggcode/internal/conversation"
	"github.com/ggcode-ai/ggcode/internal/llm"
	"github.com/ggcode-ai/ggcode/internal/parser"
	"github.com/ggcode-ai/ggcode/internal/prompts"
	"github.com/ggcode-ai/ggcode/internal/sessions"
	"github.com/ggcode-ai/ggcode/internal/tools"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

// maxCorrections caps format-correction attempts per turn. Past the cap the
// turn fails with ErrExecutionFailed.
const maxCorrections = 2

const deniedReply = "Tool call denied. Tell me how you would like to proceed."

// RunConfig is the per-run behavior of the loop.
type RunConfig struct {
	// AgentType selects the system prompt persona. Default "build".
	AgentType string

	// MaxIterations bounds the tool rounds in one turn; past it the turn
	// completes with a step-limit notice. Default 25.
	MaxIterations int

	// AutoApprove skips the approval prompt for non-safe tools. Shell
	// commands matching a dangerous pattern still require approval.
	AutoApprove bool

	// DangerousPatterns are regexps evaluated against shell command lines.
	DangerousPatterns []string

	// WorkingDirectory appears in the system prompt environment block.
	// Defaults to the executor's working directory.
	WorkingDirectory string

	Approve ApprovalFunc
	Status  StatusFunc

	// SummaryEvery refreshes the session summary after every N assistant
	// replies. Default 5; negative disables.
	SummaryEvery int
}

// Config wires an Orchestrator. Client, Executor, Parser and Conversation
// are required; the rest degrade gracefully when absent.
type Config struct {
	Client       llm.Client
	Gate         *llm.Gate
	Executor     *tools.Executor
	Parser       *parser.Parser
	Conversation *conversation.Manager
	Compactor    *conversation.Compactor
	Sessions     *sessions.Store
	Prompts      *prompts.Composer
	Subagents    *Subagents
	Logger       *slog.Logger

	// GenOptions supplies per-request generation settings, read once per
	// model round so live config edits apply mid-session.
	GenOptions func() llm.Options

	Run RunConfig
}

// TurnResult summarizes one completed turn.
type TurnResult struct {
	// Reply is the final assistant text shown to the user.
	Reply string

	// Iterations counts model rounds, the final text-only round included.
	Iterations int

	// ToolCalls counts executed calls across all rounds.
	ToolCalls int

	// Corrections counts malformed responses that were cut and retried.
	Corrections int

	// Aborted is set when the turn was interrupted.
	Aborted bool
}

// Orchestrator runs turns against one conversation. It is not safe for
// concurrent turns; the REPL issues them one at a time.
type Orchestrator struct {
	client    llm.Client
	gate      *llm.Gate
	executor  *tools.Executor
	parser    *parser.Parser
	conv      *conversation.Manager
	compactor *conversation.Compactor
	sessions  *sessions.Store
	prompts   *prompts.Composer
	subagents *Subagents
	logger    *slog.Logger
	genOpts   func() llm.Options
	run       RunConfig

	detector  *parser.Detector
	dangerous []*regexp.Regexp
	hookWG    sync.WaitGroup
}

// NewOrchestrator validates cfg and fills defaults.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Client == nil {
		return nil, errors.New("agent: client is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("agent: executor is required")
	}
	if cfg.Parser == nil {
		return nil, errors.New("agent: parser is required")
	}
	if cfg.Conversation == nil {
		return nil, errors.New("agent: conversation manager is required")
	}
	if cfg.Gate == nil {
		cfg.Gate = llm.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.GenOptions == nil {
		cfg.GenOptions = func() llm.Options { return llm.Options{} }
	}
	if cfg.Run.AgentType == "" {
		cfg.Run.AgentType = prompts.AgentBuild
	}
	if cfg.Run.MaxIterations <= 0 {
		cfg.Run.MaxIterations = 25
	}
	if cfg.Run.SummaryEvery == 0 {
		cfg.Run.SummaryEvery = 5
	}

	dangerous := make([]*regexp.Regexp, 0, len(cfg.Run.DangerousPatterns))
	for _, pat := range cfg.Run.DangerousPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("agent: compile dangerous pattern %q: %w", pat, err)
		}
		dangerous = append(dangerous, re)
	}

	return &Orchestrator{
		client:    cfg.Client,
		gate:      cfg.Gate,
		executor:  cfg.Executor,
		parser:    cfg.Parser,
		conv:      cfg.Conversation,
		compactor: cfg.Compactor,
		sessions:  cfg.Sessions,
		prompts:   cfg.Prompts,
		subagents: cfg.Subagents,
		logger:    cfg.Logger.With("component", "agent"),
		genOpts:   cfg.GenOptions,
		run:       cfg.Run,
		detector:  parser.NewDetector(cfg.Executor.Registry().Names()),
		dangerous: dangerous,
	}, nil
}

// Turn runs one user input to completion: model rounds interleaved with tool
// execution until a plain-text reply, a denial, the step limit, or an
// interrupt ends it.
func (o *Orchestrator) Turn(ctx context.Context, input string) (*TurnResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, errors.New("agent: empty input")
	}

	o.refreshSystemPrompt()

	sessID := o.currentSessionID()
	o.conv.Append(models.NewUserText(input))
	o.record(sessID, models.LegacyMessage{Role: models.RoleUser, Content: input})

	res := &TurnResult{}
	defer o.persistContext(sessID)

	rounds := 0
	for {
		if ctx.Err() != nil {
			return o.interrupted(res)
		}

		if o.compactor != nil && o.compactor.NeedsCompaction(o.conv) {
			report := o.compactor.Compact(o.conv)
			if report.Compressed {
				o.logger.Info("compacted context",
					"from", report.OriginalTokens, "to", report.CompressedTokens,
					"saved", report.SavedTokens)
			}
		}

		o.status(Event{Kind: EventThinking})
		text, malformed, err := o.complete(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return o.interrupted(res)
			}
			o.status(Event{Kind: EventError, Err: err})
			return res, err
		}
		res.Iterations++

		if malformed != "" {
			res.Corrections++
			if res.Corrections > maxCorrections {
				failure := fmt.Errorf("%w: model kept producing malformed tool calls after %d corrections",
					ErrExecutionFailed, maxCorrections)
				o.status(Event{Kind: EventError, Err: failure})
				return res, failure
			}
			o.injectCorrection(text, malformed)
			o.status(Event{Kind: EventCorrection, Message: malformed})
			continue
		}

		calls := o.parser.Parse(text)
		if len(calls) == 0 {
			o.conv.Append(models.NewText(models.RoleAssistant, text))
			o.record(sessID, models.LegacyMessage{Role: models.RoleAssistant, Content: text})
			res.Reply = text
			o.afterTurn(sessID, input)
			o.status(Event{Kind: EventCompleted, Message: text})
			return res, nil
		}

		o.appendCallRound(text, calls)

		executedBefore := res.ToolCalls
		denied, err := o.executeRound(ctx, calls, res)
		o.recordToolCalls(sessID, res.ToolCalls-executedBefore)
		if err != nil {
			return o.interrupted(res)
		}
		if denied {
			res.Reply = deniedReply
			o.status(Event{Kind: EventCompleted, Message: deniedReply})
			return res, nil
		}

		rounds++
		if rounds >= o.run.MaxIterations {
			notice := o.maxStepsNotice()
			o.conv.Append(models.NewText(models.RoleAssistant, notice))
			o.record(sessID, models.LegacyMessage{Role: models.RoleAssistant, Content: notice})
			res.Reply = notice
			o.afterTurn(sessID, input)
			o.status(Event{Kind: EventCompleted, Message: notice})
			return res, nil
		}
	}
}

// Wait blocks until background title and summary hooks have finished. The
// front-end calls it before exiting.
func (o *Orchestrator) Wait() { o.hookWG.Wait() }

// complete dispatches one model round through the gate at high priority and
// streams it through the format detector. A detector abort returns the
// partial text as malformed with a nil error; transport failures and
// interrupts return the error.
func (o *Orchestrator) complete(ctx context.Context) (text, malformed string, err error) {
	view := o.conv.ContextView(0)
	o.detector.Reset()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	var buf strings.Builder
	reason := ""

	opts := o.genOpts()
	opts.Stream = true
	opts.OnChunk = func(chunk string) {
		mu.Lock()
		if reason != "" {
			mu.Unlock()
			return
		}
		buf.WriteString(chunk)
		if abort, why := o.detector.Feed(chunk); abort {
			reason = why
			mu.Unlock()
			cancel()
			return
		}
		mu.Unlock()
		o.status(Event{Kind: EventChunk, Message: chunk})
	}

	var full string
	gateErr := o.gate.Do(streamCtx, llm.PriorityHigh, func(reqCtx context.Context) error {
		var cerr error
		full, cerr = o.client.Complete(reqCtx, view, opts)
		return cerr
	})

	mu.Lock()
	partial, why := buf.String(), reason
	mu.Unlock()

	if why != "" {
		return partial, why, nil
	}
	if gateErr != nil {
		return "", "", gateErr
	}
	if full == "" {
		full = partial
	}
	return full, "", nil
}

// injectCorrection records the malformed response as an ignored assistant
// message, invisible to later context views, and appends the format reminder
// as a synthetic user message.
func (o *Orchestrator) injectCorrection(snippet, reason string) {
	part := models.NewPart(models.PartText, snippet)
	part.Ignored = true
	o.conv.AppendParts(models.RoleAssistant, part)

	reminder, err := o.renderPrompt("correction", nil)
	if err != nil {
		o.logger.Warn("render correction prompt", "error", err)
		reminder = `Your last reply was not a usable tool call. Output a JSON array like [{"tool": "name", "parameters": {}}] and do not wrap calls in XML tags.`
	}
	o.conv.Append(models.NewUserText(reminder))
	o.logger.Warn("correcting malformed response", "reason", reason)
}

// appendCallRound records the model round: the raw text plus one tool-call
// part per parsed call. The part ID is the call ID so later result parts can
// reference it.
func (o *Orchestrator) appendCallRound(text string, calls []models.ToolCall) {
	parts := make([]models.Part, 0, len(calls)+1)
	parts = append(parts, models.NewPart(models.PartText, text))
	for _, call := range calls {
		parts = append(parts, models.Part{
			ID:       call.ID,
			Tag:      models.PartToolCall,
			ToolName: call.Tool,
			Args:     call.Parameters,
		})
	}
	o.conv.AppendParts(models.RoleAssistant, parts...)
}

// executeRound runs the calls in arrival order, appending result parts as a
// single user message. A denial stops the sequence after recording a deny
// marker. The returned error is only ever a context error.
func (o *Orchestrator) executeRound(ctx context.Context, calls []models.ToolCall, res *TurnResult) (denied bool, err error) {
	var parts []models.Part
	defer func() {
		if len(parts) > 0 {
			o.conv.AppendParts(models.RoleUser, parts...)
		}
	}()

	for i := range calls {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		call := calls[i]

		def, ok := o.executor.Registry().Get(call.Tool)
		if !ok {
			// the parser only emits registered tools
			continue
		}

		if o.needsApproval(call, def) {
			if o.run.Approve == nil || !o.run.Approve(call, def) {
				parts = append(parts, denyPart(call))
				return true, nil
			}
		}

		o.status(Event{Kind: EventToolStart, Call: &call})
		result := o.executor.Execute(ctx, call)
		o.status(Event{Kind: EventToolEnd, Call: &call, Result: &result})

		parts = append(parts, resultPart(call, result))
		res.ToolCalls++
	}
	return false, nil
}

// needsApproval applies the permission policy: safe tools never prompt,
// dangerous command lines always prompt, everything else prompts unless
// auto-approve is on.
func (o *Orchestrator) needsApproval(call models.ToolCall, def tools.Definition) bool {
	if o.isDangerous(call, def) {
		return true
	}
	if def.Permission == tools.PermissionSafe {
		return false
	}
	return !o.run.AutoApprove
}

func (o *Orchestrator) isDangerous(call models.ToolCall, def tools.Definition) bool {
	if len(o.dangerous) == 0 || def.Category != tools.CategoryCommand {
		return false
	}
	cmd, _ := call.Parameters["command"].(string)
	if cmd == "" {
		return false
	}
	for _, re := range o.dangerous {
		if re.MatchString(cmd) {
			return true
		}
	}
	return false
}

func denyPart(call models.ToolCall) models.Part {
	p := models.NewPart(models.PartToolResult, fmt.Sprintf("[%s] Denied by the user.", call.Tool))
	p.ToolName = call.Tool
	p.CallID = call.ID
	return p
}

func resultPart(call models.ToolCall, result models.ToolResult) models.Part {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] ", call.Tool)
	switch {
	case !result.Success:
		sb.WriteString("Error: " + result.Error)
		if result.Output != "" {
			sb.WriteString("\n" + result.Output)
		}
	case result.Output == "":
		sb.WriteString("(no output)")
	default:
		sb.WriteString(result.Output)
	}

	p := models.NewPart(models.PartToolResult, sb.String())
	p.ToolName = call.Tool
	p.CallID = call.ID
	p.OK = result.Success
	p.DurationMs = result.Metadata.DurationMs
	p.Truncated = result.Metadata.Truncated
	return p
}

// afterTurn fires the session hooks: a title for the first assistant reply
// of a session still carrying its default name, and a summary refresh every
// SummaryEvery replies. Both run in the background on their own contexts.
func (o *Orchestrator) afterTurn(sessID, userInput string) {
	if o.sessions == nil || o.subagents == nil || sessID == "" {
		return
	}
	sess, err := o.sessions.Get(sessID)
	if err != nil {
		o.logger.Warn("load session for hooks", "session", sessID, "error", err)
		return
	}

	if sess.Stats.AssistantMessages == 1 && strings.HasPrefix(sess.Title, "Session ") {
		o.hookWG.Add(1)
		go func() {
			defer o.hookWG.Done()
			title := o.subagents.Title(context.Background(), userInput)
			if title == "" || title == prompts.DefaultTitle {
				return
			}
			if _, err := o.sessions.Rename(sessID, title); err != nil {
				o.logger.Warn("apply generated title", "session", sessID, "error", err)
			}
		}()
	}

	if every := o.run.SummaryEvery; every > 0 && sess.Stats.AssistantMessages%every == 0 {
		o.hookWG.Add(1)
		go func() {
			defer o.hookWG.Done()
			history, err := o.sessions.History(sessID)
			if err != nil {
				o.logger.Warn("load history for summary", "session", sessID, "error", err)
				return
			}
			if len(history) > 10 {
				history = history[len(history)-10:]
			}
			summary := o.subagents.Summary(context.Background(), history)
			if summary == "" {
				return
			}
			err = o.sessions.UpdateSummary(sessID, sessions.SummaryChanges{Content: summary})
			if err != nil {
				o.logger.Warn("apply session summary", "session", sessID, "error", err)
			}
		}()
	}
}

func (o *Orchestrator) refreshSystemPrompt() {
	if o.prompts == nil {
		return
	}
	text, err := o.prompts.System(o.run.AgentType, o.workDir())
	if err != nil {
		o.logger.Warn("compose system prompt", "error", err)
		return
	}
	o.conv.SetSystemPrompt(text)
}

func (o *Orchestrator) maxStepsNotice() string {
	notice, err := o.renderPrompt("max_steps", map[string]any{"MaxIterations": o.run.MaxIterations})
	if err != nil {
		o.logger.Warn("render max_steps prompt", "error", err)
		return fmt.Sprintf("Reached the step limit for this turn (%d steps), so the agent stopped here.", o.run.MaxIterations)
	}
	return notice
}

func (o *Orchestrator) renderPrompt(name string, data any) (string, error) {
	if o.prompts == nil {
		return "", errors.New("no prompt composer")
	}
	return o.prompts.Render(name, data)
}

func (o *Orchestrator) workDir() string {
	if o.run.WorkingDirectory != "" {
		return o.run.WorkingDirectory
	}
	return o.executor.WorkDir()
}

func (o *Orchestrator) currentSessionID() string {
	if o.sessions == nil {
		return ""
	}
	sess, err := o.sessions.Current()
	if err != nil || sess == nil {
		return ""
	}
	return sess.ID
}

func (o *Orchestrator) record(sessID string, msgs ...models.LegacyMessage) {
	if o.sessions == nil || sessID == "" {
		return
	}
	if err := o.sessions.RecordMessages(sessID, msgs...); err != nil {
		o.logger.Warn("record history", "session", sessID, "error", err)
	}
}

func (o *Orchestrator) recordToolCalls(sessID string, n int) {
	if o.sessions == nil || sessID == "" || n <= 0 {
		return
	}
	if err := o.sessions.RecordToolCalls(sessID, n); err != nil {
		o.logger.Warn("record tool calls", "session", sessID, "error", err)
	}
}

func (o *Orchestrator) persistContext(sessID string) {
	if o.sessions == nil || sessID == "" {
		return
	}
	if err := o.conv.SaveContext(o.sessions.ContextPath(sessID)); err != nil {
		o.logger.Warn("persist context", "session", sessID, "error", err)
	}
}

func (o *Orchestrator) interrupted(res *TurnResult) (*TurnResult, error) {
	res.Aborted = true
	o.status(Event{Kind: EventError, Err: ErrInterrupted})
	return res, ErrInterrupted
}

func (o *Orchestrator) status(ev Event) {
	if o.run.Status != nil {
		o.run.Status(ev)
	}
}
