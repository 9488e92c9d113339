package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry holds command definitions keyed by lowercase name, with alias
// resolution.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]string
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewRegistry creates an empty command registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
		logger:   logger.With("component", "commands"),
	}
}

// Register adds a command. Name conflicts are errors; alias conflicts are
// logged and the alias skipped.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("command is nil")
	}
	if cmd.Name == "" {
		return fmt.Errorf("command name is required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %q has no handler", cmd.Name)
	}

	name := strings.ToLower(strings.TrimSpace(cmd.Name))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	if existing, exists := r.aliases[name]; exists {
		return fmt.Errorf("command name %q conflicts with alias for %q", name, existing)
	}

	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		aliasLower := strings.ToLower(strings.TrimSpace(alias))
		if aliasLower == "" || aliasLower == name {
			continue
		}
		if _, exists := r.commands[aliasLower]; exists {
			r.logger.Warn("alias conflicts with command", "alias", aliasLower, "command", name)
			continue
		}
		if _, exists := r.aliases[aliasLower]; exists {
			r.logger.Warn("alias already registered", "alias", aliasLower, "command", name)
			continue
		}
		r.aliases[aliasLower] = name
	}

	r.logger.Debug("registered command", "name", name, "aliases", cmd.Aliases)
	return nil
}

// Get retrieves a command by name or alias, case-insensitively.
func (r *Registry) Get(name string) (*Command, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if cmd, exists := r.commands[name]; exists {
		return cmd, true
	}
	if real, exists := r.aliases[name]; exists {
		if cmd, exists := r.commands[real]; exists {
			return cmd, true
		}
	}
	return nil, false
}

// List returns all commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListByCategory returns commands grouped by category, each group sorted by
// name. Commands without a category land under "general".
func (r *Registry) ListByCategory() map[string][]*Command {
	grouped := make(map[string][]*Command)
	for _, cmd := range r.List() {
		cat := cmd.Category
		if cat == "" {
			cat = "general"
		}
		grouped[cat] = append(grouped[cat], cmd)
	}
	return grouped
}

// Names returns all registered command names (not aliases), sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute resolves the invocation's command and runs its handler.
func (r *Registry) Execute(ctx context.Context, inv *Invocation) (*Result, error) {
	if inv == nil {
		return nil, fmt.Errorf("invocation is nil")
	}
	cmd, exists := r.Get(inv.Name)
	if !exists {
		return nil, fmt.Errorf("unknown command /%s (try /help)", inv.Name)
	}
	inv.Command = cmd
	return cmd.Handler(ctx, inv)
}
