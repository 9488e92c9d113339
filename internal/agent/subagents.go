package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ggcode-ai/ggcode/internal/llm"
	"github.com/ggcode-ai/ggcode/internal/prompts"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

const (
	// subagentTimeout bounds title, summary and compaction calls.
	subagentTimeout = 30 * time.Second

	// projectInitTimeout bounds AGENTS.md generation, which reads a larger
	// prompt and writes a full document.
	projectInitTimeout = 90 * time.Second

	// maxTitleRunes caps a generated session title.
	maxTitleRunes = 60
)

// SubagentsConfig wires the functional subagents.
type SubagentsConfig struct {
	Client  llm.Client
	Gate    *llm.Gate
	Prompts *prompts.Composer
	Logger  *slog.Logger
}

// Subagents issues short template-driven model calls: session titles,
// session summaries, context compaction, and AGENTS.md generation. Every
// call dispatches through the gate at low priority so user turns always go
// first. Title and Summary swallow failures and return a benign default;
// Compaction and ProjectInit report them so the caller can fall back.
type Subagents struct {
	client  llm.Client
	gate    *llm.Gate
	prompts *prompts.Composer
	logger  *slog.Logger
}

// NewSubagents creates the subagent surface. Client and Prompts are
// required; a nil Gate selects the process default.
func NewSubagents(cfg SubagentsConfig) (*Subagents, error) {
	if cfg.Client == nil {
		return nil, errors.New("agent: subagents need a client")
	}
	if cfg.Prompts == nil {
		return nil, errors.New("agent: subagents need a prompt composer")
	}
	if cfg.Gate == nil {
		cfg.Gate = llm.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Subagents{
		client:  cfg.Client,
		gate:    cfg.Gate,
		prompts: cfg.Prompts,
		logger:  cfg.Logger.With("component", "subagents"),
	}, nil
}

// Title names a session from its opening user message. Failures return
// prompts.DefaultTitle.
func (s *Subagents) Title(ctx context.Context, firstUserMsg string) string {
	firstUserMsg = strings.TrimSpace(firstUserMsg)
	if firstUserMsg == "" {
		return prompts.DefaultTitle
	}
	reply, err := s.call(ctx, "title", subagentTimeout, models.LegacyMessage{
		Role:    models.RoleUser,
		Content: firstUserMsg,
	})
	if err != nil {
		s.logger.Debug("title generation failed", "error", err)
		return prompts.DefaultTitle
	}
	title := sanitizeTitle(reply)
	if title == "" {
		return prompts.DefaultTitle
	}
	return title
}

// Summary condenses the tail of a conversation into a few sentences for the
// session overview. Failures return the empty string; the caller keeps the
// previous summary.
func (s *Subagents) Summary(ctx context.Context, last []models.LegacyMessage) string {
	if len(last) > 10 {
		last = last[len(last)-10:]
	}
	reply, err := s.call(ctx, "summary", subagentTimeout, last...)
	if err != nil {
		s.logger.Debug("summary generation failed", "error", err)
		return ""
	}
	return strings.TrimSpace(reply)
}

// Compaction summarizes a conversation so the compactor can replace it with
// a single message. It satisfies conversation.SummarizeFunc.
func (s *Subagents) Compaction(ctx context.Context, msgs []models.LegacyMessage) (string, error) {
	filtered := make([]models.LegacyMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			continue
		}
		filtered = append(filtered, m)
	}
	if len(filtered) == 0 {
		return "", errors.New("agent: nothing to compact")
	}
	return s.call(ctx, "compaction", subagentTimeout, filtered...)
}

// ProjectInit turns a gathered project snapshot into AGENTS.md content.
func (s *Subagents) ProjectInit(ctx context.Context, projectInfo string) (string, error) {
	return s.call(ctx, "project_init", projectInitTimeout, models.LegacyMessage{
		Role:    models.RoleUser,
		Content: projectInfo,
	})
}

// call loads the named template, prepends it as the system message and
// completes through the gate at low priority.
func (s *Subagents) call(ctx context.Context, template string, timeout time.Duration, msgs ...models.LegacyMessage) (string, error) {
	prompt, err := s.prompts.Load(template)
	if err != nil {
		return "", fmt.Errorf("load %s template: %w", template, err)
	}

	request := make([]models.LegacyMessage, 0, len(msgs)+1)
	request = append(request, models.LegacyMessage{Role: models.RoleSystem, Content: prompt})
	request = append(request, msgs...)

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reply string
	err = s.gate.Do(cctx, llm.PriorityLow, func(reqCtx context.Context) error {
		var cerr error
		reply, cerr = s.client.Complete(reqCtx, request, llm.Options{Timeout: timeout})
		return cerr
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// sanitizeTitle normalizes a model-produced title: first line only, quotes
// and trailing punctuation stripped, length capped.
func sanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	title = strings.Trim(title, "\"'`“”‘’ ")
	title = strings.TrimRight(title, ".。!！?？,，")
	runes := []rune(title)
	if len(runes) > maxTitleRunes {
		title = string(runes[:maxTitleRunes])
	}
	return strings.TrimSpace(title)
}
