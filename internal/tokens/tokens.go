// Package tokens provides a fast deterministic token estimate used for
// context budgeting. It is a heuristic, not a tokenizer: CJK text counts
// one token per rune, everything else four characters per token.
package tokens

import "github.com/ggcode-ai/ggcode/pkg/models"

// cjk reports whether the rune falls in a CJK block that tokenizers treat
// as roughly one token per character.
func cjk(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // unified ideographs
		return true
	case r >= 0x3400 && r <= 0x4DBF: // ideograph extension A
		return true
	case r >= 0xF900 && r <= 0xFAFF: // compatibility ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // hiragana + katakana
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // hangul syllables
		return true
	case r >= 0x3000 && r <= 0x303F: // CJK symbols and punctuation
		return true
	case r >= 0xFF00 && r <= 0xFFEF: // fullwidth forms
		return true
	}
	return false
}

// Estimate returns the approximate token count of s. Single pass, O(len(s)).
func Estimate(s string) int {
	if s == "" {
		return 0
	}
	var cjkCount, other int
	for _, r := range s {
		if cjk(r) {
			cjkCount++
		} else {
			other++
		}
	}
	return cjkCount + (other+3)/4
}

// EstimateMessages sums the estimate over flat message contents.
func EstimateMessages(msgs []models.LegacyMessage) int {
	total := 0
	for _, m := range msgs {
		total += Estimate(m.Content)
	}
	return total
}
