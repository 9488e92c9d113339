package commands

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ggcode-ai/ggcode/internal/config"
	"github.com/ggcode-ai/ggcode/internal/conversation"
	"github.com/ggcode-ai/ggcode/internal/sessions"
	"github.com/ggcode-ai/ggcode/internal/tools"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

// Subagents is the slice of the background-model surface the commands use.
type Subagents interface {
	// ProjectInit turns gathered project information into AGENTS.md content.
	ProjectInit(ctx context.Context, projectInfo string) (string, error)

	// Compaction summarizes a conversation for in-place compaction.
	Compaction(ctx context.Context, msgs []models.LegacyMessage) (string, error)
}

// Deps are the collaborators the builtin commands operate on. A nil field
// degrades the commands needing it to a notice instead of panicking, so the
// tool-less chat surface can reuse the same set.
type Deps struct {
	Conversation *conversation.Manager
	Compactor    *conversation.Compactor
	Sessions     *sessions.Store
	Config       *config.Config

	// ConfigPath is where /setting and /compress persist edits. Empty means
	// in-memory only.
	ConfigPath string

	// WorkDir anchors /init and /session export file writes.
	WorkDir string

	Registry  *tools.Registry
	Subagents Subagents
	Estimate  func(string) int
	Version   string

	// SwitchModel swaps the live transport to a new model. The front-end
	// wires it; persistence happens here.
	SwitchModel func(model string) error
}

// RegisterBuiltins registers the builtin command set against deps.
func RegisterBuiltins(r *Registry, deps Deps) {
	mustRegister := func(cmd *Command) {
		if err := r.Register(cmd); err != nil {
			panic(fmt.Sprintf("register builtin command %q: %v", cmd.Name, err))
		}
	}

	mustRegister(&Command{
		Name:        "exit",
		Aliases:     []string{"quit", "q"},
		Description: "Exit ggcode",
		Category:    "system",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			return &Result{Text: "Bye.", Quit: true}, nil
		},
	})

	mustRegister(&Command{
		Name:        "help",
		Aliases:     []string{"h"},
		Description: "Show available commands",
		Usage:       "/help [command]",
		Category:    "system",
		Handler:     helpHandler(r, deps),
	})

	mustRegister(&Command{
		Name:        "version",
		Description: "Show the ggcode version",
		Category:    "system",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			v := deps.Version
			if v == "" {
				v = "dev"
			}
			return &Result{Text: "ggcode " + v}, nil
		},
	})

	mustRegister(&Command{
		Name:        "clear",
		Description: "Clear the conversation context",
		Category:    "context",
		Handler: func(ctx context.Context, inv *Invocation) (*Result, error) {
			if deps.Conversation == nil {
				return &Result{Text: "No conversation loaded."}, nil
			}
			deps.Conversation.ClearContext()
			return &Result{Text: "Context cleared."}, nil
		},
	})

	mustRegister(&Command{
		Name:        "tokens",
		Description: "Show context token usage",
		Category:    "context",
		Handler:     tokensHandler(deps),
	})

	mustRegister(&Command{
		Name:        "models",
		Aliases:     []string{"model"},
		Description: "List configured models or switch to one",
		Usage:       "/models [name|number]",
		Category:    "config",
		Handler:     modelsHandler(deps),
	})

	mustRegister(&Command{
		Name:        "setting",
		Aliases:     []string{"settings"},
		Description: "Show or change generation parameters",
		Usage:       "/setting [list|set <param> <value>|reset]",
		Category:    "config",
		Handler:     settingHandler(deps),
	})

	mustRegister(&Command{
		Name:        "session",
		Aliases:     []string{"sessions"},
		Description: "Manage sessions",
		Usage:       "/session [list|switch <id>|fork [keep]|rename <title>|export [path]|import <path>|cleanup|status]",
		Category:    "session",
		Handler:     sessionHandler(deps),
	})

	mustRegister(&Command{
		Name:        "compress",
		Description: "Control conversation compaction",
		Usage:       "/compress [status|on|off|manual|llm]",
		Category:    "context",
		Handler:     compressHandler(deps),
	})

	mustRegister(&Command{
		Name:        "init",
		Description: "Generate AGENTS.md for this project",
		Category:    "system",
		Handler:     initHandler(deps),
	})
}

func helpHandler(r *Registry, deps Deps) Handler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		if inv.Args != "" {
			name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(inv.Args)), "/")
			cmd, exists := r.Get(name)
			if !exists {
				return &Result{Text: fmt.Sprintf("Unknown command: %s\n\nUse /help to see available commands.", name)}, nil
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "**/%s**\n", cmd.Name)
			if cmd.Description != "" {
				sb.WriteString(cmd.Description + "\n")
			}
			if cmd.Usage != "" {
				fmt.Fprintf(&sb, "\nUsage: `%s`\n", cmd.Usage)
			}
			if len(cmd.Aliases) > 0 {
				aliases := make([]string, len(cmd.Aliases))
				for i, a := range cmd.Aliases {
					aliases[i] = "/" + a
				}
				fmt.Fprintf(&sb, "\nAliases: %s\n", strings.Join(aliases, ", "))
			}
			return &Result{Text: strings.TrimRight(sb.String(), "\n")}, nil
		}

		byCategory := r.ListByCategory()
		categories := make([]string, 0, len(byCategory))
		for cat := range byCategory {
			categories = append(categories, cat)
		}
		sort.Strings(categories)

		var sb strings.Builder
		sb.WriteString("**Available Commands**\n")
		for _, cat := range categories {
			fmt.Fprintf(&sb, "\n**%s**\n", strings.ToUpper(cat[:1])+cat[1:])
			for _, cmd := range byCategory[cat] {
				desc := cmd.Description
				if desc == "" {
					desc = "No description"
				}
				fmt.Fprintf(&sb, "  `/%s` - %s\n", cmd.Name, desc)
			}
		}
		sb.WriteString("\nUse `/help <command>` for details.")
		if deps.Registry != nil {
			if n := len(deps.Registry.Names()); n > 0 {
				fmt.Fprintf(&sb, " The agent has %d tools; type a plain message to put them to work.", n)
			}
		}
		return &Result{Text: sb.String()}, nil
	}
}

func tokensHandler(deps Deps) Handler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		if deps.Conversation == nil {
			return &Result{Text: "No conversation loaded."}, nil
		}
		used := deps.Conversation.TokenCount()
		budget := deps.Conversation.MaxTokens()
		pct := 0
		if budget > 0 {
			pct = used * 100 / budget
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Context: %d / %d tokens (%d%%)\n", used, budget, pct)
		fmt.Fprintf(&sb, "Messages: %d", deps.Conversation.Len())
		if deps.Config != nil && deps.Config.Agent.AutoCompress {
			trigger := int(float64(budget) * deps.Config.Agent.CompressThreshold)
			fmt.Fprintf(&sb, "\nAuto compression triggers at %d tokens.", trigger)
		}
		return &Result{Text: sb.String()}, nil
	}
}

func modelsHandler(deps Deps) Handler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		if deps.Config == nil {
			return &Result{Text: "No configuration loaded."}, nil
		}
		cfg := deps.Config

		if inv.Args == "" {
			if len(cfg.API.Models) == 0 {
				current := cfg.API.Model
				if current == "" {
					current = "(provider default)"
				}
				return &Result{Text: fmt.Sprintf("Current model: %s\nNo model list configured; add api.models to the config file.", current)}, nil
			}
			var sb strings.Builder
			sb.WriteString("Models:\n")
			for i, m := range cfg.API.Models {
				marker := " "
				if m == cfg.API.Model {
					marker = "*"
				}
				fmt.Fprintf(&sb, "%s %d. %s\n", marker, i+1, m)
			}
			sb.WriteString("Use /models <name|number> to switch.")
			return &Result{Text: sb.String()}, nil
		}

		target := strings.TrimSpace(inv.Args)
		if idx, err := strconv.Atoi(target); err == nil {
			if idx < 1 || idx > len(cfg.API.Models) {
				return &Result{Text: fmt.Sprintf("No model number %d; /models lists %d entries.", idx, len(cfg.API.Models))}, nil
			}
			target = cfg.API.Models[idx-1]
		}
		if target == cfg.API.Model {
			return &Result{Text: fmt.Sprintf("Already using %s.", target)}, nil
		}

		if deps.SwitchModel != nil {
			if err := deps.SwitchModel(target); err != nil {
				return nil, fmt.Errorf("switch model: %w", err)
			}
		}
		cfg.API.Model = target
		note := ""
		if deps.ConfigPath != "" {
			if err := config.Save(cfg, deps.ConfigPath); err != nil {
				return nil, fmt.Errorf("persist model choice: %w", err)
			}
		} else {
			note = " (not persisted)"
		}
		return &Result{Text: fmt.Sprintf("Switched model to %s.%s", target, note)}, nil
	}
}

func settingHandler(deps Deps) Handler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		if deps.Config == nil {
			return &Result{Text: "No configuration loaded."}, nil
		}
		mc := &deps.Config.ModelConfig

		switch inv.Subcommand() {
		case "", "list":
			var sb strings.Builder
			sb.WriteString("Generation settings:\n")
			fmt.Fprintf(&sb, "  temperature        = %-6v [%v, %v]\n", mc.Temperature, config.TemperatureMin, config.TemperatureMax)
			fmt.Fprintf(&sb, "  top_p              = %-6v [%v, %v]\n", mc.TopP, config.TopPMin, config.TopPMax)
			fmt.Fprintf(&sb, "  top_k              = %-6v [%d, %d]\n", mc.TopK, config.TopKMin, config.TopKMax)
			fmt.Fprintf(&sb, "  repetition_penalty = %-6v [%v, %v]\n", mc.RepetitionPenalty, config.RepetitionPenaltyMin, config.RepetitionPenaltyMax)
			sb.WriteString("Use /setting set <param> <value> to change, /setting reset for defaults.")
			return &Result{Text: sb.String()}, nil

		case "set":
			if len(inv.Fields) != 3 {
				return &Result{Text: "Usage: /setting set <param> <value>"}, nil
			}
			param := strings.ToLower(inv.Fields[1])
			raw := inv.Fields[2]

			switch param {
			case "temperature":
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return &Result{Text: fmt.Sprintf("temperature needs a number, got %q.", raw)}, nil
				}
				if v < config.TemperatureMin || v > config.TemperatureMax {
					return &Result{Text: fmt.Sprintf("temperature must be within [%v, %v].", config.TemperatureMin, config.TemperatureMax)}, nil
				}
				mc.Temperature = v
			case "top_p":
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return &Result{Text: fmt.Sprintf("top_p needs a number, got %q.", raw)}, nil
				}
				if v < config.TopPMin || v > config.TopPMax {
					return &Result{Text: fmt.Sprintf("top_p must be within [%v, %v].", config.TopPMin, config.TopPMax)}, nil
				}
				mc.TopP = v
			case "top_k":
				v, err := strconv.Atoi(raw)
				if err != nil {
					return &Result{Text: fmt.Sprintf("top_k needs an integer, got %q.", raw)}, nil
				}
				if v < config.TopKMin || v > config.TopKMax {
					return &Result{Text: fmt.Sprintf("top_k must be within [%d, %d].", config.TopKMin, config.TopKMax)}, nil
				}
				mc.TopK = v
			case "repetition_penalty":
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return &Result{Text: fmt.Sprintf("repetition_penalty needs a number, got %q.", raw)}, nil
				}
				if v < config.RepetitionPenaltyMin || v > config.RepetitionPenaltyMax {
					return &Result{Text: fmt.Sprintf("repetition_penalty must be within [%v, %v].", config.RepetitionPenaltyMin, config.RepetitionPenaltyMax)}, nil
				}
				mc.RepetitionPenalty = v
			default:
				return &Result{Text: fmt.Sprintf("Unknown parameter %q. Parameters: temperature, top_p, top_k, repetition_penalty.", param)}, nil
			}

			if err := persistConfig(deps); err != nil {
				return nil, err
			}
			return &Result{Text: fmt.Sprintf("%s = %s", param, raw)}, nil

		case "reset":
			deps.Config.ModelConfig = config.Default().ModelConfig
			if err := persistConfig(deps); err != nil {
				return nil, err
			}
			return &Result{Text: "Generation settings reset to defaults."}, nil

		default:
			return &Result{Text: "Usage: /setting [list|set <param> <value>|reset]"}, nil
		}
	}
}

func persistConfig(deps Deps) error {
	if deps.ConfigPath == "" {
		return nil
	}
	if err := config.Save(deps.Config, deps.ConfigPath); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	return nil
}

func sessionHandler(deps Deps) Handler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		if deps.Sessions == nil {
			return &Result{Text: "Session storage is not available."}, nil
		}
		store := deps.Sessions

		switch inv.Subcommand() {
		case "", "list":
			list, err := store.List()
			if err != nil {
				return nil, err
			}
			if len(list) == 0 {
				return &Result{Text: "No sessions yet."}, nil
			}
			current, _ := store.Current()
			var sb strings.Builder
			sb.WriteString("Sessions:\n")
			for i, s := range list {
				marker := " "
				if current != nil && s.ID == current.ID {
					marker = "*"
				}
				fmt.Fprintf(&sb, "%s %d. %s  %s  (%d msgs, active %s)\n",
					marker, i+1, shortID(s.ID), s.Title, s.MessageCount,
					s.LastActiveAt.Format("2006-01-02 15:04"))
			}
			sb.WriteString("Use /session switch <id|number> to change.")
			return &Result{Text: sb.String()}, nil

		case "switch":
			if len(inv.Fields) < 2 {
				return &Result{Text: "Usage: /session switch <id|number>"}, nil
			}
			id, errText := resolveSession(store, inv.Fields[1])
			if errText != "" {
				return &Result{Text: errText}, nil
			}
			sess, err := store.Switch(id)
			if err != nil {
				return nil, err
			}
			reloadConversation(deps, sess.ID)
			return &Result{Text: fmt.Sprintf("Switched to session %s (%s).", sess.Title, shortID(sess.ID))}, nil

		case "fork":
			current, err := store.Current()
			if err != nil {
				return nil, err
			}
			if current == nil {
				return &Result{Text: "No active session to fork."}, nil
			}
			messageIndex := -1
			if len(inv.Fields) > 1 {
				keep, err := strconv.Atoi(inv.Fields[1])
				if err != nil || keep < 1 {
					return &Result{Text: "Usage: /session fork [keep], where keep is how many leading messages the fork keeps."}, nil
				}
				messageIndex = keep - 1
			}
			fork, err := store.Fork(current.ID, messageIndex)
			if err != nil {
				return nil, err
			}
			if _, err := store.Switch(fork.ID); err != nil {
				return nil, err
			}
			reloadConversation(deps, fork.ID)
			return &Result{Text: fmt.Sprintf("Forked to %s (%s) and switched.", fork.Title, shortID(fork.ID))}, nil

		case "rename":
			title := inv.Rest()
			if title == "" {
				return &Result{Text: "Usage: /session rename <new title>"}, nil
			}
			current, err := store.Current()
			if err != nil {
				return nil, err
			}
			if current == nil {
				return &Result{Text: "No active session to rename."}, nil
			}
			if _, err := store.Rename(current.ID, title); err != nil {
				return nil, err
			}
			return &Result{Text: fmt.Sprintf("Renamed session to %s.", title)}, nil

		case "export":
			current, err := store.Current()
			if err != nil {
				return nil, err
			}
			if current == nil {
				return &Result{Text: "No active session to export."}, nil
			}
			blob, err := store.Export(current.ID)
			if err != nil {
				return nil, err
			}
			path := inv.Rest()
			if path == "" {
				path = fmt.Sprintf("ggcode-session-%s.json", shortID(current.ID))
			}
			if !filepath.IsAbs(path) && deps.WorkDir != "" {
				path = filepath.Join(deps.WorkDir, path)
			}
			if err := os.WriteFile(path, blob, 0o644); err != nil {
				return nil, fmt.Errorf("write export: %w", err)
			}
			return &Result{Text: fmt.Sprintf("Exported session to %s.", path)}, nil

		case "import":
			path := inv.Rest()
			if path == "" {
				return &Result{Text: "Usage: /session import <path>"}, nil
			}
			if !filepath.IsAbs(path) && deps.WorkDir != "" {
				path = filepath.Join(deps.WorkDir, path)
			}
			blob, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read import: %w", err)
			}
			sess, err := store.Import(blob)
			if err != nil {
				return nil, fmt.Errorf("import session: %w", err)
			}
			return &Result{Text: fmt.Sprintf("Imported %s (%s). Use /session switch %s to open it.", sess.Title, shortID(sess.ID), shortID(sess.ID))}, nil

		case "cleanup":
			removed, err := store.ManualCleanup()
			if err != nil {
				return nil, err
			}
			return &Result{Text: fmt.Sprintf("Removed %d inactive sessions.", removed)}, nil

		case "status":
			current, err := store.Current()
			if err != nil {
				return nil, err
			}
			if current == nil {
				return &Result{Text: "No active session."}, nil
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "Session:  %s\n", current.Title)
			fmt.Fprintf(&sb, "ID:       %s\n", current.ID)
			if current.AgentType != "" {
				fmt.Fprintf(&sb, "Agent:    %s\n", current.AgentType)
			}
			if current.ParentID != "" {
				fmt.Fprintf(&sb, "Fork of:  %s\n", shortID(current.ParentID))
			}
			fmt.Fprintf(&sb, "Created:  %s\n", current.CreatedAt.Format("2006-01-02 15:04"))
			fmt.Fprintf(&sb, "Active:   %s\n", current.LastActiveAt.Format("2006-01-02 15:04"))
			fmt.Fprintf(&sb, "Messages: %d (%d user, %d assistant, %d tool calls)",
				current.MessageCount, current.Stats.UserMessages,
				current.Stats.AssistantMessages, current.Stats.ToolCalls)
			if current.Summary != nil {
				fmt.Fprintf(&sb, "\nChanges:  +%d -%d across %d files",
					current.Summary.Additions, current.Summary.Deletions,
					len(current.Summary.ModifiedFiles))
			}
			return &Result{Text: sb.String()}, nil

		default:
			return &Result{Text: "Usage: /session [list|switch <id>|fork [keep]|rename <title>|export [path]|import <path>|cleanup|status]"}, nil
		}
	}
}

// resolveSession turns a list number, full id or unique id prefix into a
// session id. The second return value is a user-facing error message.
func resolveSession(store *sessions.Store, token string) (string, string) {
	list, err := store.List()
	if err != nil {
		return "", fmt.Sprintf("List sessions: %v", err)
	}
	if idx, err := strconv.Atoi(token); err == nil {
		if idx < 1 || idx > len(list) {
			return "", fmt.Sprintf("No session number %d; /session list shows %d entries.", idx, len(list))
		}
		return list[idx-1].ID, ""
	}
	var matches []string
	for _, s := range list {
		if s.ID == token {
			return s.ID, ""
		}
		if strings.HasPrefix(s.ID, token) {
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], ""
	case 0:
		return "", fmt.Sprintf("No session matches %q.", token)
	default:
		return "", fmt.Sprintf("%q is ambiguous; %d sessions match.", token, len(matches))
	}
}

// reloadConversation points the in-memory buffer at another session's
// state. The enhanced context dump wins when present; plain history is the
// fallback. A fresh session simply leaves the buffer empty.
func reloadConversation(deps Deps, id string) {
	if deps.Conversation == nil || deps.Sessions == nil {
		return
	}
	deps.Conversation.ClearContext()
	if err := deps.Conversation.LoadContext(deps.Sessions.ContextPath(id)); err == nil {
		return
	}
	// A fresh session has no files yet; an empty buffer is the right outcome.
	_ = deps.Conversation.LoadHistory(deps.Sessions.HistoryPath(id))
}

func compressHandler(deps Deps) Handler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		if deps.Conversation == nil || deps.Compactor == nil {
			return &Result{Text: "Compaction is not available."}, nil
		}

		switch inv.Subcommand() {
		case "", "status":
			var sb strings.Builder
			if deps.Config != nil {
				state := "off"
				if deps.Config.Agent.AutoCompress {
					state = "on"
				}
				fmt.Fprintf(&sb, "Auto compression: %s (threshold %.0f%%)\n",
					state, deps.Config.Agent.CompressThreshold*100)
			}
			used := deps.Conversation.TokenCount()
			budget := deps.Conversation.MaxTokens()
			pct := 0
			if budget > 0 {
				pct = used * 100 / budget
			}
			fmt.Fprintf(&sb, "Context: %d / %d tokens (%d%%)", used, budget, pct)
			return &Result{Text: sb.String()}, nil

		case "on", "off":
			if deps.Config == nil {
				return &Result{Text: "No configuration loaded."}, nil
			}
			deps.Config.Agent.AutoCompress = inv.Subcommand() == "on"
			if err := persistConfig(deps); err != nil {
				return nil, err
			}
			if deps.Config.Agent.AutoCompress {
				return &Result{Text: "Auto compression enabled."}, nil
			}
			return &Result{Text: "Auto compression disabled."}, nil

		case "manual":
			report := deps.Compactor.Compact(deps.Conversation)
			return &Result{Text: formatReport(report)}, nil

		case "llm":
			if deps.Subagents == nil {
				return &Result{Text: "LLM compaction is not available here; try /compress manual."}, nil
			}
			report := deps.Compactor.CompactWithLLM(ctx, deps.Conversation, deps.Subagents.Compaction)
			return &Result{Text: formatReport(report)}, nil

		default:
			return &Result{Text: "Usage: /compress [status|on|off|manual|llm]"}, nil
		}
	}
}

func formatReport(report conversation.Report) string {
	if !report.Compressed {
		return "Nothing to compact."
	}
	return fmt.Sprintf("Compacted %d to %d tokens (saved %d). Removed %d, summarized %d, deduplicated %d.",
		report.OriginalTokens, report.CompressedTokens, report.SavedTokens,
		report.RemovedCount, report.SummarizedCount, report.DeduplicatedCount)
}

func initHandler(deps Deps) Handler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		if deps.Subagents == nil {
			return &Result{Text: "/init needs a model connection and is not available here."}, nil
		}
		dir := deps.WorkDir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			dir = wd
		}

		info := gatherProjectInfo(dir)
		content, err := deps.Subagents.ProjectInit(ctx, info)
		if err != nil {
			return nil, fmt.Errorf("generate AGENTS.md: %w", err)
		}
		content = strings.TrimSpace(content)
		if content == "" {
			return &Result{Text: "The model returned nothing; AGENTS.md was not written."}, nil
		}

		path := filepath.Join(dir, "AGENTS.md")
		_, statErr := os.Stat(path)
		existed := statErr == nil
		if err := os.WriteFile(path, []byte(content+"\n"), 0o644); err != nil {
			return nil, fmt.Errorf("write AGENTS.md: %w", err)
		}
		verb := "Wrote"
		if existed {
			verb = "Rewrote"
		}
		return &Result{Text: fmt.Sprintf("%s %s (%d bytes).", verb, path, len(content)+1)}, nil
	}
}

// skipDirs are never descended into when gathering project info.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, "target": true, "__pycache__": true,
}

// gatherProjectInfo collects a bounded snapshot of the repository for the
// AGENTS.md generator: a two-level file listing plus common build manifests.
func gatherProjectInfo(dir string) string {
	const (
		maxEntries      = 200
		maxManifestSize = 4096
	)

	var sb strings.Builder
	sb.WriteString("Project root: " + dir + "\n\nFiles:\n")

	count := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil || rel == "." {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if skipDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if strings.Count(rel, string(filepath.Separator)) >= 2 {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if count >= maxEntries {
			return filepath.SkipAll
		}
		count++
		sb.WriteString("  " + rel + "\n")
		return nil
	})
	if count >= maxEntries {
		sb.WriteString("  (listing truncated)\n")
	}

	for _, name := range []string{"go.mod", "package.json", "pyproject.toml", "Cargo.toml", "Makefile", "README.md"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if len(data) > maxManifestSize {
			data = data[:maxManifestSize]
		}
		fmt.Fprintf(&sb, "\n--- %s ---\n%s\n", name, data)
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
