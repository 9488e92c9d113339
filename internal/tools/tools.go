// Package tools defines the tool registry and the execution pipeline the
// agent drives. Tools are declared as data (name, params, permission) plus a
// handler; the executor owns validation, timing, truncation and panic
// containment so handlers stay small.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Category groups tools for listing and prompt rendering.
type Category string

const (
	CategoryFile    Category = "file"
	CategorySearch  Category = "search"
	CategoryCommand Category = "command"
	CategorySystem  Category = "system"
)

// Permission is the approval tier a tool requires before execution.
type Permission string

const (
	PermissionSafe        Permission = "safe"
	PermissionLocalModify Permission = "local-modify"
	PermissionNetwork     Permission = "network"
	PermissionDangerous   Permission = "dangerous"
)

// ParamSpec declares one tool parameter. Specs compile to a JSON Schema at
// registration time; handlers receive an already validated argument bag with
// defaults applied.
type ParamSpec struct {
	Name        string
	Type        string // string, number, integer, boolean, array, object
	Description string
	Required    bool
	Default     any
	Enum        []string
}

// HandlerFunc runs one tool invocation. The returned string is the tool
// output shown to the model; a non-nil error marks the result failed.
type HandlerFunc func(ctx context.Context, exec *Execution) (string, error)

// Definition is a complete registered tool.
type Definition struct {
	Name        string
	Description string
	Category    Category
	Permission  Permission
	Params      []ParamSpec
	Handler     HandlerFunc
}

// Execution is the per-call context handed to a handler.
type Execution struct {
	Args    map[string]any
	WorkDir string

	meta func(key string, value any)
}

// Meta records a metadata value on the pending result (exit codes, changed
// files, line counts).
func (e *Execution) Meta(key string, value any) {
	if e.meta != nil {
		e.meta(key, value)
	}
}

// String returns the named argument as a string, or "" when absent.
func (e *Execution) String(name string) string {
	if v, ok := e.Args[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Int returns the named argument coerced to int, or def when absent.
func (e *Execution) Int(name string, def int) int {
	v, ok := e.Args[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return def
}

// Bool returns the named argument as a bool, or def when absent.
func (e *Execution) Bool(name string, def bool) bool {
	if v, ok := e.Args[name]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

const maxToolNameLength = 256

var toolNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry holds tool definitions keyed by lowercase name. Registration
// happens at startup; lookups are concurrent.
type Registry struct {
	mu      sync.RWMutex
	defs    map[string]Definition
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		defs:    make(map[string]Definition),
		schemas: make(map[string]*jsonschema.Schema),
		logger:  logger.With("component", "tools"),
	}
}

// Register validates the definition, compiles its parameter schema and
// stores it. Re-registering a name replaces the previous definition.
func (r *Registry) Register(def Definition) error {
	name := strings.ToLower(strings.TrimSpace(def.Name))
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if len(name) > maxToolNameLength {
		return fmt.Errorf("tool name %q exceeds %d characters", name, maxToolNameLength)
	}
	if !toolNamePattern.MatchString(name) {
		return fmt.Errorf("tool name %q must match %s", name, toolNamePattern)
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %q has no handler", name)
	}
	schema, err := compileSchema(name, def.Params)
	if err != nil {
		return fmt.Errorf("compile schema for %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[name]; exists {
		r.logger.Debug("replacing tool registration", "tool", name)
	}
	def.Name = name
	r.defs[name] = def
	r.schemas[name] = schema
	return nil
}

// MustRegister panics on registration failure. Used for the builtin set,
// whose definitions are static.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get looks up a tool by name, case-insensitively.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[strings.ToLower(strings.TrimSpace(name))]
	return def, ok
}

// Has reports whether a tool with the name exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ListByCategory returns definitions in the category, sorted by name.
func (r *Registry) ListByCategory(cat Category) []Definition {
	all := r.List()
	out := all[:0:0]
	for _, def := range all {
		if def.Category == cat {
			out = append(out, def)
		}
	}
	return out
}

// ParamNames returns a tool's declared parameter names, required params
// first, in declaration order. Used to map positional shorthand arguments.
func (r *Registry) ParamNames(name string) []string {
	def, ok := r.Get(name)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(def.Params))
	for _, p := range def.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	for _, p := range def.Params {
		if !p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

func (r *Registry) schema(name string) (*jsonschema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[strings.ToLower(name)]
	return s, ok
}
