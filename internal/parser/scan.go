package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// scanJSONObjects finds JSON objects embedded in prose. From each opening
// brace it takes the string-aware balanced span and tries to decode it; on
// failure the scan resumes one byte later, so a stray prose brace cannot
// mask a real object following it.
func scanJSONObjects(text string) []map[string]any {
	var out []map[string]any
	pos := 0
	for pos < len(text) {
		rel := strings.IndexByte(text[pos:], '{')
		if rel < 0 {
			break
		}
		idx := pos + rel
		span, end := balanceFrom(text, idx)
		if span != "" {
			if item, ok := decodeObject(span); ok {
				out = append(out, item)
				pos = end + 1
				continue
			}
		}
		pos = idx + 1
	}
	return out
}

// balanceFrom returns the balanced {...} span starting at idx, tracking
// double-quoted strings and escapes. Returns "" when the span never closes.
func balanceFrom(text string, idx int) (string, int) {
	depth := 0
	inString := false
	escaped := false
	for i := idx; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[idx : i+1], i
			}
		}
	}
	return "", -1
}

// decodeObject parses a candidate span as a JSON object, applying one
// permissive repair pass (quote bare keys, drop trailing commas) when strict
// parsing fails.
func decodeObject(span string) (map[string]any, bool) {
	var item map[string]any
	if err := json.Unmarshal([]byte(span), &item); err == nil {
		return item, true
	}
	repaired := repairJSON(span)
	if repaired == span {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &item); err == nil {
		return item, true
	}
	return nil, false
}

var (
	bareKeyPattern       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// repairJSON fixes the two dialect errors models actually produce: unquoted
// object keys and trailing commas. Quoted regions are left untouched.
func repairJSON(span string) string {
	var b strings.Builder
	b.Grow(len(span) + 16)
	inString := false
	escaped := false
	segStart := 0

	flush := func(end int) {
		segment := span[segStart:end]
		segment = bareKeyPattern.ReplaceAllString(segment, `$1"$2":`)
		segment = trailingCommaPattern.ReplaceAllString(segment, `$1`)
		b.WriteString(segment)
	}

	for i := 0; i < len(span); i++ {
		ch := span[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
				b.WriteString(span[segStart : i+1])
				segStart = i + 1
			}
			continue
		}
		if ch == '"' {
			flush(i)
			inString = true
			segStart = i
		}
	}
	if !inString {
		flush(len(span))
	} else {
		b.WriteString(span[segStart:])
	}
	return b.String()
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\n(.*?)```")

// fencedBlocks returns the inner content of every ``` code fence.
func fencedBlocks(text string) []string {
	matches := fencePattern.FindAllStringSubmatch(text, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}
