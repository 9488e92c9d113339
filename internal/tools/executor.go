package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// Stable error markers surfaced in ToolResult.Error. The model keys off
// these to self-correct.
const (
	CodeNotFound   = "TOOL_NOT_FOUND"
	CodeValidation = "TOOL_VALIDATION_FAILED"
)

// ExecutorOptions tunes the execution pipeline.
type ExecutorOptions struct {
	WorkDir        string
	MaxOutputBytes int // default 32768
	MaxOutputLines int // default 400
	SpoolDir       string
	Logger         *slog.Logger
}

// Executor resolves and runs tool calls against a registry. Every call
// yields a ToolResult; executor-level failures (unknown tool, bad params,
// handler panic) come back as failed results, never Go errors.
type Executor struct {
	reg      *Registry
	workDir  string
	maxBytes int
	maxLines int
	spoolDir string
	logger   *slog.Logger
	now      func() time.Time
}

// NewExecutor creates an executor, filling option defaults.
func NewExecutor(reg *Registry, opts ExecutorOptions) *Executor {
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = 32768
	}
	if opts.MaxOutputLines <= 0 {
		opts.MaxOutputLines = 400
	}
	if opts.SpoolDir == "" {
		opts.SpoolDir = os.TempDir()
	}
	if opts.WorkDir == "" {
		opts.WorkDir, _ = os.Getwd()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		reg:      reg,
		workDir:  opts.WorkDir,
		maxBytes: opts.MaxOutputBytes,
		maxLines: opts.MaxOutputLines,
		spoolDir: opts.SpoolDir,
		logger:   logger.With("component", "executor"),
		now:      time.Now,
	}
}

// WorkDir returns the directory tool handlers resolve relative paths in.
func (e *Executor) WorkDir() string { return e.workDir }

// Registry returns the registry this executor dispatches against.
func (e *Executor) Registry() *Registry { return e.reg }

// Execute runs one call through the pipeline: lookup, validate, handler,
// truncate. The result always carries start/end timestamps.
func (e *Executor) Execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	start := e.now()
	result := models.ToolResult{Metadata: models.ToolMetadata{StartTime: start}}
	finish := func() models.ToolResult {
		end := e.now()
		result.Metadata.EndTime = end
		result.Metadata.DurationMs = end.Sub(start).Milliseconds()
		return result
	}

	def, ok := e.reg.Get(call.Tool)
	if !ok {
		result.Error = fmt.Sprintf("%s: no tool named %q", CodeNotFound, call.Tool)
		return finish()
	}
	schema, ok := e.reg.schema(def.Name)
	if !ok {
		result.Error = fmt.Sprintf("%s: schema missing for %q", CodeValidation, def.Name)
		return finish()
	}
	if err := validateArgs(schema, call.Parameters); err != nil {
		result.Error = fmt.Sprintf("%s: %v", CodeValidation, err)
		return finish()
	}

	exec := &Execution{
		Args:    applyDefaults(def.Params, call.Parameters),
		WorkDir: e.workDir,
		meta:    result.Metadata.SetExtra,
	}

	output, err := e.run(ctx, def, exec)
	promoteMeta(&result.Metadata)
	if err != nil {
		result.Error = err.Error()
		result.Output = e.truncate(output, &result.Metadata)
		return finish()
	}
	result.Success = true
	result.Output = e.truncate(output, &result.Metadata)
	return finish()
}

// promoteMeta lifts well-known extra keys into their typed metadata fields.
func promoteMeta(meta *models.ToolMetadata) {
	if v, ok := meta.Extra["exitCode"]; ok {
		if code, ok := v.(int); ok {
			meta.ExitCode = &code
		}
	}
	if v, ok := meta.Extra["signal"]; ok {
		if sig, ok := v.(string); ok {
			meta.Signal = sig
		}
	}
}

// run invokes the handler with panic containment.
func (e *Executor) run(ctx context.Context, def Definition, exec *Execution) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool handler panicked", "tool", def.Name, "panic", r)
			output = ""
			err = fmt.Errorf("tool %q panicked: %v", def.Name, r)
		}
	}()
	return def.Handler(ctx, exec)
}

// truncate enforces the byte and line caps, spooling the untrimmed output to
// a file referenced from the kept head+tail window.
func (e *Executor) truncate(output string, meta *models.ToolMetadata) string {
	if len(output) <= e.maxBytes && strings.Count(output, "\n") < e.maxLines {
		return output
	}

	spool := ""
	if f, err := os.CreateTemp(e.spoolDir, "ggcode-tool-*.out"); err == nil {
		if _, werr := f.WriteString(output); werr == nil {
			spool = f.Name()
		}
		f.Close()
	} else {
		e.logger.Warn("spool full tool output", "error", err)
	}

	head, tail, dropped := headTail(output, e.maxBytes, e.maxLines)
	marker := fmt.Sprintf("... [%d bytes truncated", dropped)
	if spool != "" {
		marker += ", full output: " + spool
	}
	marker += "] ..."

	meta.Truncated = true
	meta.TruncationFile = spool
	return head + "\n" + marker + "\n" + tail
}

// headTail splits output into a leading and trailing window that together
// fit the caps, biased two thirds to the head.
func headTail(output string, maxBytes, maxLines int) (head, tail string, dropped int) {
	lines := strings.Split(output, "\n")
	if len(lines) > maxLines {
		h := maxLines * 2 / 3
		t := maxLines - h
		head = strings.Join(lines[:h], "\n")
		tail = strings.Join(lines[len(lines)-t:], "\n")
	} else {
		head = output
		tail = ""
	}

	headBudget := maxBytes * 2 / 3
	tailBudget := maxBytes - headBudget
	if len(head)+len(tail) > maxBytes {
		if len(head) > headBudget {
			head = cutAtRune(head, headBudget)
		}
		if len(tail) > tailBudget {
			tail = tail[len(tail)-tailBudget:]
			// avoid starting mid-rune
			for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
				tail = tail[1:]
			}
		}
	}
	return head, tail, len(output) - len(head) - len(tail)
}

// cutAtRune trims s to at most n bytes without splitting a rune.
func cutAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
