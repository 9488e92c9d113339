package commands

import (
	"regexp"
	"strings"
)

// commandRe matches a whole slash-command line: "/name" optionally followed
// by argument text.
var commandRe = regexp.MustCompile(`^/([a-zA-Z][a-zA-Z0-9_-]*)(?:\s+(.*))?$`)

// IsCommand reports whether a REPL line should be routed to the command
// registry rather than sent to the agent.
func IsCommand(text string) bool {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '/' {
		return false
	}
	next := text[1]
	return (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z')
}

// Parse splits a line like "/session fork 3" into an invocation. Returns nil
// when the line is not a well-formed command.
func Parse(text string) *Invocation {
	text = strings.TrimSpace(text)
	match := commandRe.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	args := strings.TrimSpace(match[2])
	return &Invocation{
		Name:   strings.ToLower(match[1]),
		Args:   args,
		Fields: strings.Fields(args),
	}
}
