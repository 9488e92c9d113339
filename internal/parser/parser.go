// Package parser extracts tool calls from model output. The model is asked
// for strict JSON but rarely honors that under pressure, so extraction is
// layered: a whole-response JSON array, then inline objects found by a
// brace-balancing scan, then fenced code blocks, then auto-corrected
// malformed dialects (XML-style tags, call shorthand, unquoted keys).
package parser

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// maxCallsPerResponse caps how many calls a single response may carry.
const maxCallsPerResponse = 10

// Catalog exposes the registered tool names the parser recognizes.
// *tools.Registry satisfies it.
type Catalog interface {
	Has(name string) bool
	ParamNames(name string) []string
}

// Parser turns raw assistant text into canonical tool calls.
type Parser struct {
	catalog Catalog
	now     func() time.Time
}

// New creates a parser over the catalog.
func New(catalog Catalog) *Parser {
	return &Parser{catalog: catalog, now: time.Now}
}

// rawCall is a pre-canonicalization candidate.
type rawCall struct {
	tool   string
	params map[string]any
}

// Parse extracts at most maxCallsPerResponse canonical calls from text.
// Unknown tools are discarded and duplicate calls collapsed.
func (p *Parser) Parse(text string) []models.ToolCall {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	calls := p.parseArray(trimmed)
	if len(calls) == 0 {
		calls = p.scanInline(text)
	}
	if len(calls) == 0 {
		calls = p.parseFenced(text)
	}
	if len(calls) == 0 {
		calls = p.correct(text)
	}
	return p.finalize(calls)
}

// parseArray accepts a response that is entirely a JSON array of calls.
func (p *Parser) parseArray(trimmed string) []rawCall {
	if !strings.HasPrefix(trimmed, "[") {
		return nil
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
		return nil
	}
	var calls []rawCall
	for _, item := range items {
		if call, ok := asCall(item); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// scanInline walks the text for balanced {...} spans and keeps the ones
// shaped like tool calls. Objects that fail strict JSON get one repair pass.
func (p *Parser) scanInline(text string) []rawCall {
	var calls []rawCall
	for _, item := range scanJSONObjects(text) {
		if call, ok := asCall(item); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

// parseFenced tries each fenced code block as an array, then as inline
// objects.
func (p *Parser) parseFenced(text string) []rawCall {
	for _, block := range fencedBlocks(text) {
		trimmed := strings.TrimSpace(block)
		if calls := p.parseArray(trimmed); len(calls) > 0 {
			return calls
		}
		if calls := p.scanInline(block); len(calls) > 0 {
			return calls
		}
	}
	return nil
}

// asCall validates the decoded object shape: a string "tool" field plus an
// optional parameter object under parameters/params/arguments.
func asCall(item map[string]any) (rawCall, bool) {
	name, ok := item["tool"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return rawCall{}, false
	}
	params := map[string]any{}
	for _, key := range []string{"parameters", "params", "arguments"} {
		if v, ok := item[key]; ok {
			if m, ok := v.(map[string]any); ok {
				params = m
			}
			break
		}
	}
	return rawCall{tool: name, params: params}, true
}

// finalize canonicalizes names, drops unknown tools, dedupes, caps and
// mints IDs.
func (p *Parser) finalize(calls []rawCall) []models.ToolCall {
	seen := make(map[string]bool)
	out := make([]models.ToolCall, 0, len(calls))
	for _, c := range calls {
		name := strings.ToLower(strings.TrimSpace(c.tool))
		if !p.catalog.Has(name) {
			continue
		}
		if c.params == nil {
			c.params = map[string]any{}
		}
		key := identity(name, c.params)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.ToolCall{
			ID:         p.mintID(),
			Tool:       name,
			Parameters: c.params,
		})
		if len(out) == maxCallsPerResponse {
			break
		}
	}
	return out
}

// identity builds the dedup key: tool name plus the canonical JSON encoding
// of the parameters (object keys sort on marshal).
func identity(name string, params map[string]any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", params))
	}
	return name + ":" + string(raw)
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// mintID returns "tool_<unix-ms>_<random9>".
func (p *Parser) mintID() string {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		// fall back to time-derived noise
		for i := range buf {
			buf[i] = byte(p.now().UnixNano() >> (i * 7))
		}
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return fmt.Sprintf("tool_%d_%s", p.now().UnixMilli(), buf)
}
