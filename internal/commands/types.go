// Package commands implements the REPL slash commands: parsing "/name args"
// lines, a registry with alias lookup, and the builtin command set.
package commands

import (
	"context"
	"strings"
)

// Command is one registered slash command.
type Command struct {
	// Name is the command name without the leading slash.
	Name string

	// Aliases are alternative names resolving to this command.
	Aliases []string

	// Description is the one-line help text.
	Description string

	// Usage shows the accepted argument forms.
	Usage string

	// Category groups commands in /help output.
	Category string

	// Handler executes the command.
	Handler Handler
}

// Handler processes a parsed invocation.
type Handler func(ctx context.Context, inv *Invocation) (*Result, error)

// Invocation is one parsed command line.
type Invocation struct {
	// Command is the resolved definition, set by Execute.
	Command *Command

	// Name is the name or alias as typed, lowercased.
	Name string

	// Args is the raw text after the name.
	Args string

	// Fields is Args split on whitespace.
	Fields []string
}

// Result is what a command hands back to the REPL.
type Result struct {
	// Text is rendered to the user; markdown is allowed.
	Text string

	// Quit tells the REPL to exit.
	Quit bool
}

// Subcommand returns the first argument field, lowercased, or "" when the
// invocation has no arguments.
func (inv *Invocation) Subcommand() string {
	if len(inv.Fields) == 0 {
		return ""
	}
	return strings.ToLower(inv.Fields[0])
}

// Rest returns the argument text after the first field, inner spacing
// preserved. Used by subcommands that take free text, like rename titles.
func (inv *Invocation) Rest() string {
	if len(inv.Fields) < 2 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(inv.Args, inv.Fields[0]))
}
