package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// correct rescues the malformed dialects models fall into when they stop
// following the JSON contract: XML-style tags and call shorthand.
func (p *Parser) correct(text string) []rawCall {
	calls := p.correctXML(text)
	if len(calls) == 0 {
		calls = p.correctShorthand(text)
	}
	return calls
}

var (
	xmlTagPattern   = regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9_]*)>`)
	xmlParamPattern = regexp.MustCompile(`(?s)<([A-Za-z_][A-Za-z0-9_]*)>(.*?)</([A-Za-z_][A-Za-z0-9_]*)>`)
)

// correctXML converts <read><filePath>x</filePath></read> into a call. Only
// tags naming a registered tool open a candidate.
func (p *Parser) correctXML(text string) []rawCall {
	var calls []rawCall
	for _, loc := range xmlTagPattern.FindAllStringSubmatchIndex(text, -1) {
		name := text[loc[2]:loc[3]]
		lower := strings.ToLower(name)
		if !p.catalog.Has(lower) {
			continue
		}
		closing := "</" + name + ">"
		rest := text[loc[1]:]
		end := strings.Index(rest, closing)
		if end < 0 {
			continue
		}
		calls = append(calls, rawCall{
			tool:   lower,
			params: parseXMLParams(rest[:end]),
		})
	}
	return calls
}

func parseXMLParams(inner string) map[string]any {
	params := map[string]any{}
	for _, m := range xmlParamPattern.FindAllStringSubmatch(inner, -1) {
		if m[1] != m[3] {
			continue
		}
		params[m[1]] = coerce(strings.TrimSpace(m[2]), false)
	}
	return params
}

var shorthandPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\((.*)\)\s*$`)

// correctShorthand converts one-line call syntax like read("src/main.go")
// into a call, mapping positional arguments onto the tool's declared
// parameters (required params first).
func (p *Parser) correctShorthand(text string) []rawCall {
	var calls []rawCall
	for _, line := range strings.Split(text, "\n") {
		m := shorthandPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := strings.ToLower(m[1])
		if !p.catalog.Has(name) {
			continue
		}
		paramNames := p.catalog.ParamNames(name)
		params := map[string]any{}
		for i, arg := range splitArgs(m[2]) {
			if key, value, ok := strings.Cut(arg.text, "="); ok && !arg.quoted && isIdent(strings.TrimSpace(key)) {
				v := strings.TrimSpace(value)
				unquoted, wasQuoted := stripQuotes(v)
				params[strings.TrimSpace(key)] = coerce(unquoted, wasQuoted)
				continue
			}
			if i >= len(paramNames) {
				break
			}
			params[paramNames[i]] = coerce(arg.text, arg.quoted)
		}
		calls = append(calls, rawCall{tool: name, params: params})
	}
	return calls
}

type argToken struct {
	text   string
	quoted bool
}

// splitArgs splits a shorthand argument list on commas outside quotes.
func splitArgs(s string) []argToken {
	var args []argToken
	var current strings.Builder
	var quote byte
	escaped := false

	push := func() {
		raw := strings.TrimSpace(current.String())
		current.Reset()
		if raw == "" {
			return
		}
		text, quoted := stripQuotes(raw)
		args = append(args, argToken{text: text, quoted: quoted})
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			current.WriteByte(ch)
			escaped = false
		case ch == '\\':
			current.WriteByte(ch)
			escaped = true
		case quote != 0:
			current.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			current.WriteByte(ch)
			quote = ch
		case ch == ',':
			push()
		default:
			current.WriteByte(ch)
		}
	}
	push()
	return args
}

func stripQuotes(s string) (string, bool) {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1], true
		}
	}
	return s, false
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func isIdent(s string) bool { return identPattern.MatchString(s) }

// coerce maps unquoted literals to JSON-ish types; quoted values always stay
// strings.
func coerce(s string, quoted bool) any {
	if quoted {
		return s
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}
