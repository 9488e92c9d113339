package conversation

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/ggcode-ai/ggcode/internal/tokens"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

// CompactorConfig tunes compaction. Numeric zero values select the
// defaults; the Enable* booleans are taken as given.
type CompactorConfig struct {
	Enabled bool

	// MaxTokens and ReserveTokens define the trigger: compaction is due
	// when the buffer exceeds MaxTokens-ReserveTokens.
	MaxTokens     int
	ReserveTokens int

	// MinImportanceScore removes messages scoring below it. Default 0.3.
	MinImportanceScore float64

	// SimilarityThreshold marks near-duplicates for removal. Default 0.8.
	SimilarityThreshold float64

	// SummarizeOlderThan is the age, in turns, past which long messages
	// are summarized. Default 10.
	SummarizeOlderThan int

	// SummaryMaxTokens caps a generated summary. Default 500.
	SummaryMaxTokens int

	EnableDeduplication bool
	EnableSummarization bool
}

// DefaultCompactorConfig returns the production settings.
func DefaultCompactorConfig() CompactorConfig {
	return CompactorConfig{
		Enabled:             true,
		MaxTokens:           32000,
		ReserveTokens:       2000,
		MinImportanceScore:  0.3,
		SimilarityThreshold: 0.8,
		SummarizeOlderThan:  10,
		SummaryMaxTokens:    500,
		EnableDeduplication: true,
		EnableSummarization: true,
	}
}

// Report describes what a compaction pass changed.
type Report struct {
	Compressed        bool `json:"compressed"`
	OriginalTokens    int  `json:"original_tokens"`
	CompressedTokens  int  `json:"compressed_tokens"`
	SavedTokens       int  `json:"saved_tokens"`
	RemovedCount      int  `json:"removed_count"`
	SummarizedCount   int  `json:"summarized_count"`
	DeduplicatedCount int  `json:"deduplicated_count"`
}

// SummarizeFunc produces a conversation summary, typically via the
// compaction subagent.
type SummarizeFunc func(ctx context.Context, msgs []models.LegacyMessage) (string, error)

// Compactor shrinks a conversation buffer by scoring, deduplicating and
// summarizing messages. System messages are never touched.
type Compactor struct {
	cfg      CompactorConfig
	estimate Estimator
}

// NewCompactor creates a compactor, filling zero numeric config fields with
// the defaults.
func NewCompactor(cfg CompactorConfig) *Compactor {
	def := DefaultCompactorConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.ReserveTokens <= 0 {
		cfg.ReserveTokens = def.ReserveTokens
	}
	if cfg.MinImportanceScore <= 0 {
		cfg.MinImportanceScore = def.MinImportanceScore
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if cfg.SummarizeOlderThan <= 0 {
		cfg.SummarizeOlderThan = def.SummarizeOlderThan
	}
	if cfg.SummaryMaxTokens <= 0 {
		cfg.SummaryMaxTokens = def.SummaryMaxTokens
	}
	return &Compactor{cfg: cfg, estimate: tokens.Estimate}
}

// NeedsCompaction reports whether the buffer has outgrown the configured
// headroom.
func (c *Compactor) NeedsCompaction(m *Manager) bool {
	if !c.cfg.Enabled {
		return false
	}
	return m.TokenCount() > c.cfg.MaxTokens-c.cfg.ReserveTokens
}

// summaryPrefix marks replaced content so later passes and readers can tell
// summaries from originals.
const summaryPrefix = "[摘要] "

// Compact runs the rule-based pass: score, drop low-importance messages,
// deduplicate, summarize old long messages, then drop tool results whose
// call disappeared.
func (c *Compactor) Compact(m *Manager) Report {
	msgs := m.snapshot()
	original := c.totalTokens(msgs)
	report := Report{OriginalTokens: original, CompressedTokens: original}

	var idx []int
	for i, msg := range msgs {
		if msg.Role != models.RoleSystem {
			idx = append(idx, i)
		}
	}
	n := len(idx)
	if n == 0 {
		return report
	}

	scores := make([]float64, n)
	for k, i := range idx {
		scores[k] = c.importance(msgs[i], k, n)
	}

	remove := make(map[int]bool, n)
	for k := range scores {
		if scores[k] < c.cfg.MinImportanceScore {
			remove[k] = true
			report.RemovedCount++
		}
	}

	if c.cfg.EnableDeduplication {
		keys := make([]string, n)
		for k, i := range idx {
			keys[k] = dedupKey(msgs[i])
		}
		for newer := 1; newer < n; newer++ {
			if remove[newer] {
				continue
			}
			for older := 0; older < newer; older++ {
				if remove[older] {
					continue
				}
				if similarity(keys[older], keys[newer]) > c.cfg.SimilarityThreshold &&
					scores[older] >= scores[newer] {
					remove[newer] = true
					report.DeduplicatedCount++
					break
				}
			}
		}
	}

	summaries := make(map[int]string)
	if c.cfg.EnableSummarization {
		cutoff := n - c.cfg.SummarizeOlderThan*2
		for k := 0; k < cutoff && k < n; k++ {
			if remove[k] {
				continue
			}
			flat := msgs[idx[k]].Flatten()
			if c.estimate(flat) > c.cfg.SummaryMaxTokens/2 {
				summaries[idx[k]] = c.summarize(flat)
				report.SummarizedCount++
			}
		}
	}

	removedAt := make(map[int]bool, len(remove))
	for k := range remove {
		removedAt[idx[k]] = true
	}

	rebuilt := make([]models.Message, 0, len(msgs))
	for i, msg := range msgs {
		if removedAt[i] {
			continue
		}
		if summary, ok := summaries[i]; ok {
			msg.Parts = []models.Part{models.NewPart(models.PartText, summaryPrefix+summary)}
			msg.Content = ""
		}
		rebuilt = append(rebuilt, msg)
	}

	rebuilt, orphans := dropOrphanResults(rebuilt)
	report.RemovedCount += orphans

	m.replace(rebuilt)

	report.CompressedTokens = c.totalTokens(rebuilt)
	report.SavedTokens = original - report.CompressedTokens
	report.Compressed = report.CompressedTokens < original
	return report
}

// CompactWithLLM asks the model for a summary and collapses the non-system
// buffer into one assistant message. Timeout or failure falls back to the
// rule-based pass.
func (c *Compactor) CompactWithLLM(ctx context.Context, m *Manager, summarize SummarizeFunc) Report {
	if summarize == nil {
		return c.Compact(m)
	}

	msgs := m.snapshot()
	original := c.totalTokens(msgs)

	var filtered []models.LegacyMessage
	for _, msg := range msgs {
		if msg.Role != models.RoleUser && msg.Role != models.RoleAssistant {
			continue
		}
		lm := msg.Legacy()
		if strings.TrimSpace(lm.Content) == "" {
			continue
		}
		filtered = append(filtered, lm)
	}
	if len(filtered) == 0 {
		return Report{OriginalTokens: original, CompressedTokens: original}
	}

	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	summary, err := summarize(cctx, filtered)
	if err != nil || strings.TrimSpace(summary) == "" {
		return c.Compact(m)
	}

	rebuilt := make([]models.Message, 0, 8)
	for _, msg := range msgs {
		if msg.Role == models.RoleSystem {
			rebuilt = append(rebuilt, msg)
		}
	}
	rebuilt = append(rebuilt, models.NewText(models.RoleAssistant, summaryPrefix+summary))
	m.replace(rebuilt)

	compressed := c.totalTokens(rebuilt)
	return Report{
		Compressed:       compressed < original,
		OriginalTokens:   original,
		CompressedTokens: compressed,
		SavedTokens:      original - compressed,
		RemovedCount:     len(msgs) - len(rebuilt),
		SummarizedCount:  1,
	}
}

func (c *Compactor) totalTokens(msgs []models.Message) int {
	total := 0
	for _, msg := range msgs {
		total += c.estimate(msg.Flatten())
	}
	return total
}

var fileModifyingTools = map[string]bool{
	"write": true,
	"edit":  true,
	"mkdir": true,
}

// importance scores a message in [0,1]. pos is the message's position among
// the total non-system messages, 0 being the oldest.
func (c *Compactor) importance(msg models.Message, pos, total int) float64 {
	score := 0.0

	if total > 0 {
		switch frac := float64(pos) / float64(total); {
		case frac >= 0.7:
			score += 0.25
		case frac >= 0.4:
			score += 0.10
		}
	}

	hasResult, hasError := false, false
	for _, p := range msg.Parts {
		if p.Tag == models.PartToolResult {
			hasResult = true
			if !p.OK {
				hasError = true
			}
		}
	}
	switch {
	case hasError:
		score += 0.20
	case hasResult:
		score += 0.15
	}

	if isFileModifying(msg) {
		score += 0.25
	}
	if msg.HasTag(models.PartReasoning) {
		score += 0.10
	}
	if msg.Role == models.RoleUser && isNewTaskOpener(msg.Flatten()) {
		score += 0.20
	}

	if score > 1 {
		score = 1
	}
	return score
}

func isFileModifying(msg models.Message) bool {
	for _, p := range msg.Parts {
		if p.Tag == models.PartFile {
			return true
		}
		if p.Tag == models.PartToolCall && fileModifyingTools[strings.ToLower(p.ToolName)] {
			return true
		}
	}
	return false
}

var newTaskOpeners = []string{
	"now ", "next ", "let's ", "lets ", "new task", "start ",
	"现在", "接下来", "下一步", "新任务", "帮我", "请",
}

func isNewTaskOpener(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, opener := range newTaskOpeners {
		if strings.HasPrefix(t, opener) {
			return true
		}
	}
	return false
}

// dedupKey reduces a message to the content that matters for similarity:
// tool calls by name and arguments, results by name and a short preview,
// text as-is.
func dedupKey(msg models.Message) string {
	if len(msg.Parts) == 0 {
		return msg.Content
	}
	var parts []string
	for _, p := range msg.Parts {
		switch p.Tag {
		case models.PartToolCall:
			args, _ := json.Marshal(p.Args)
			parts = append(parts, "tool:"+p.ToolName+" "+string(args))
		case models.PartToolResult:
			parts = append(parts, "result:"+p.ToolName+" "+preview(p.Content, 100))
		default:
			if !p.Ignored && p.Content != "" {
				parts = append(parts, p.Content)
			}
		}
	}
	return strings.Join(parts, " ")
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// similarity averages case-sensitive and case-folded Jaccard over word
// tokens.
func similarity(a, b string) float64 {
	raw := jaccard(strings.Fields(a), strings.Fields(b))
	folded := jaccard(strings.Fields(strings.ToLower(a)), strings.Fields(strings.ToLower(b)))
	return (raw + folded) / 2
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	sa := make(map[string]bool, len(a))
	for _, w := range a {
		sa[w] = true
	}
	sb := make(map[string]bool, len(b))
	for _, w := range b {
		sb[w] = true
	}
	inter := 0
	for w := range sa {
		if sb[w] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

var summaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+[.)]\s`),
	regexp.MustCompile(`^(func|class|def|type|const|var|interface)\s+\w+`),
	regexp.MustCompile(`(?i)\b(error|warning|failed|exception|panic)\b`),
	regexp.MustCompile(`\bTest\w+|\btest_\w+`),
}

// summarize keeps the structurally important lines (numbered points, symbol
// declarations, failure mentions, test names) or falls back to the first
// three sentences, capped at SummaryMaxTokens.
func (c *Compactor) summarize(text string) string {
	var keep []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		for _, pat := range summaryPatterns {
			if pat.MatchString(trimmed) {
				keep = append(keep, trimmed)
				break
			}
		}
	}

	summary := strings.Join(keep, "\n")
	if summary == "" {
		summary = firstSentences(text, 3)
	}

	for c.estimate(summary) > c.cfg.SummaryMaxTokens && summary != "" {
		if cut := strings.LastIndexByte(summary, '\n'); cut > 0 {
			summary = summary[:cut]
			continue
		}
		runes := []rune(summary)
		summary = string(runes[:len(runes)*3/4])
	}
	return strings.TrimSpace(summary)
}

func firstSentences(text string, n int) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	count := 0
	for _, r := range text {
		b.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？':
			count++
			if count >= n {
				return b.String()
			}
		}
	}
	return b.String()
}

// dropOrphanResults removes tool-result parts whose originating call no
// longer exists in the buffer. Messages left with no parts are dropped; the
// count of dropped messages is returned.
func dropOrphanResults(msgs []models.Message) ([]models.Message, int) {
	calls := make(map[string]bool)
	for _, m := range msgs {
		for _, p := range m.Parts {
			if p.Tag == models.PartToolCall {
				calls[p.ID] = true
			}
		}
	}

	out := make([]models.Message, 0, len(msgs))
	dropped := 0
	for _, m := range msgs {
		if len(m.Parts) == 0 {
			out = append(out, m)
			continue
		}
		var kept []models.Part
		changed := false
		for _, p := range m.Parts {
			if p.Tag == models.PartToolResult && p.CallID != "" && !calls[p.CallID] {
				changed = true
				continue
			}
			kept = append(kept, p)
		}
		if !changed {
			out = append(out, m)
			continue
		}
		if len(kept) == 0 {
			dropped++
			continue
		}
		m.Parts = kept
		out = append(out, m)
	}
	return out, dropped
}
