// Package prompts loads and assembles the prompt templates the agent and its
// functional subagents run on. Every template ships embedded in the binary;
// dropping a file with the same name into the overlay directory (default
// ${HOME}/.ggcode/prompts) overrides it without a rebuild.
//
// Named templates: system_build, system_explore, system_plan, system_chat,
// correction, max_steps, title, summary, compaction, project_init.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ggcode-ai/ggcode/internal/tools"
)

//go:embed templates/*.md
var builtinFS embed.FS

// DefaultTitle is the session title used when the title subagent fails or
// returns nothing usable.
const DefaultTitle = "未命名会话"

// Agent types with a dedicated system template.
const (
	AgentBuild   = "build"
	AgentExplore = "explore"
	AgentPlan    = "plan"
	AgentChat    = "chat"
)

// Config configures a Composer. Zero values select the defaults.
type Config struct {
	// OverlayDir holds user template overrides, one <name>.md per template.
	// Defaults to ${HOME}/.ggcode/prompts.
	OverlayDir string

	// Registry supplies the tool definitions rendered into system prompts.
	// Nil means a tool-less surface (the chat command).
	Registry *tools.Registry

	Logger *slog.Logger
}

// Composer resolves named templates overlay-first and renders them with
// text/template.
type Composer struct {
	overlay string
	reg     *tools.Registry
	logger  *slog.Logger
	funcs   template.FuncMap

	nowFunc func() time.Time
}

// NewComposer creates a composer, filling defaults for zero-valued config.
func NewComposer(cfg Config) *Composer {
	overlay := cfg.OverlayDir
	if overlay == "" {
		if home, err := os.UserHomeDir(); err == nil {
			overlay = filepath.Join(home, ".ggcode", "prompts")
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		overlay: overlay,
		reg:     cfg.Registry,
		logger:  logger.With("component", "prompts"),
		funcs:   funcMap(),
		nowFunc: time.Now,
	}
}

// Names returns the embedded template names, sorted. Overlay-only templates
// are not listed; they resolve through Load all the same.
func Names() []string {
	entries, err := fs.Glob(builtinFS, "templates/*.md")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, strings.TrimSuffix(filepath.Base(entry), ".md"))
	}
	sort.Strings(names)
	return names
}

// Load returns the raw text of a named template. A readable <name>.md in the
// overlay directory wins over the embedded copy.
func (c *Composer) Load(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid template name %q", name)
	}
	if c.overlay != "" {
		path := filepath.Join(c.overlay, name+".md")
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			c.logger.Debug("using overlay template", "name", name, "path", path)
			return string(data), nil
		case !os.IsNotExist(err):
			c.logger.Warn("overlay template unreadable, using builtin", "name", name, "error", err)
		}
	}
	data, err := builtinFS.ReadFile("templates/" + name + ".md")
	if err != nil {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	return string(data), nil
}

// Render loads a named template and executes it with data.
func (c *Composer) Render(name string, data any) (string, error) {
	text, err := c.Load(name)
	if err != nil {
		return "", err
	}
	return c.render(name, text, data)
}

// System assembles the system prompt for an agent type: the persona template
// rendered with an environment block (working directory, OS, date) and usage
// instructions for every registered tool. Agent types without a template fall
// back to the build persona.
func (c *Composer) System(agentType, workdir string) (string, error) {
	name := "system_" + agentType
	text, err := c.Load(name)
	if err != nil {
		c.logger.Warn("no system template for agent type, using build", "agent_type", agentType)
		name = "system_" + AgentBuild
		if text, err = c.Load(name); err != nil {
			return "", err
		}
	}

	var defs []tools.Definition
	if c.reg != nil {
		defs = c.reg.List()
	}
	data := map[string]any{
		"AgentType": agentType,
		"WorkDir":   workdir,
		"OS":        runtime.GOOS,
		"Date":      c.nowFunc().Format("2006-01-02"),
		"Tools":     defs,
		"HasTools":  len(defs) > 0,
	}
	return c.render(name, text, data)
}

func (c *Composer) render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(c.funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %q: %w", name, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func funcMap() template.FuncMap {
	titleCase := cases.Title(language.Und)
	return template.FuncMap{
		"upper":     strings.ToUpper,
		"lower":     strings.ToLower,
		"title":     titleCase.String,
		"trim":      strings.TrimSpace,
		"join":      strings.Join,
		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"repeat":    strings.Repeat,
		"indent":    indent,
		"quote": func(s string) string {
			return fmt.Sprintf("%q", s)
		},
		"codeBlock": func(lang, code string) string {
			return fmt.Sprintf("```%s\n%s\n```", lang, code)
		},
		"paramLine": paramLine,
	}
}

// paramLine renders one tool parameter as a markdown bullet.
func paramLine(p tools.ParamSpec) string {
	var b strings.Builder
	b.WriteString("- `")
	b.WriteString(p.Name)
	b.WriteString("` (")
	b.WriteString(p.Type)
	if p.Required {
		b.WriteString(", required")
	}
	b.WriteString(")")
	if p.Description != "" {
		b.WriteString(": ")
		b.WriteString(p.Description)
	}
	if len(p.Enum) > 0 {
		b.WriteString(" [one of: ")
		b.WriteString(strings.Join(p.Enum, ", "))
		b.WriteString("]")
	}
	if p.Default != nil {
		fmt.Fprintf(&b, " (default %v)", p.Default)
	}
	return b.String()
}

func indent(spaces int, s string) string {
	pad := strings.Repeat(" ", spaces)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}
