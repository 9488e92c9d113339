package conversation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// wordCount makes view budgets easy to reason about in tests.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

func newWordManager(budget int) *Manager {
	return NewManager(ManagerConfig{MaxTokens: budget, Estimate: wordCount})
}

func TestSetSystemPrompt_ReplacesAndLeads(t *testing.T) {
	m := newWordManager(100)
	m.Append(models.NewUserText("hello"))
	m.SetSystemPrompt("first prompt")
	m.SetSystemPrompt("second prompt")

	msgs := m.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != models.RoleSystem || msgs[0].Flatten() != "second prompt" {
		t.Errorf("head = %+v, want the new system prompt", msgs[0])
	}
	if msgs[1].Role != models.RoleUser {
		t.Errorf("user message not preserved")
	}
}

func TestClearContext(t *testing.T) {
	m := newWordManager(100)
	m.SetSystemPrompt("prompt")
	m.Append(models.NewUserText("hello"))
	m.ClearContext()

	if m.Len() != 0 {
		t.Errorf("Len = %d after clear", m.Len())
	}
	if m.TokenCount() != 0 {
		t.Errorf("TokenCount = %d after clear", m.TokenCount())
	}
}

func TestContextView_BudgetWalk(t *testing.T) {
	m := newWordManager(100)
	m.SetSystemPrompt("system words here do not count")
	m.Append(models.NewUserText("a b c"))           // 3 words, oldest
	m.Append(models.NewText(models.RoleAssistant, "d e")) // 2
	m.Append(models.NewUserText("f g"))             // 2
	m.Append(models.NewText(models.RoleAssistant, "h")) // 1

	view := m.ContextView(5)

	// System rides for free; the newest three messages fill the budget of 5;
	// the oldest is cut.
	want := []string{"system words here do not count", "d e", "f g", "h"}
	if len(view) != len(want) {
		t.Fatalf("view = %d messages, want %d: %+v", len(view), len(want), view)
	}
	for i, content := range want {
		if view[i].Content != content {
			t.Errorf("view[%d] = %q, want %q", i, view[i].Content, content)
		}
	}
	if view[0].Role != models.RoleSystem {
		t.Errorf("view[0].Role = %s, want system", view[0].Role)
	}
}

func TestContextView_SystemAlwaysIncluded(t *testing.T) {
	m := newWordManager(100)
	m.SetSystemPrompt("one two three four five six seven eight nine ten")
	m.Append(models.NewUserText("hi"))

	view := m.ContextView(1)
	if len(view) != 2 {
		t.Fatalf("view = %+v, want system plus the one affordable message", view)
	}
	if view[0].Role != models.RoleSystem {
		t.Errorf("system message missing from view head")
	}
}

func TestContextView_DropsEmptyAndIgnored(t *testing.T) {
	m := newWordManager(100)
	m.Append(models.NewUserText("keep me"))

	bad := models.NewText(models.RoleAssistant, "<bad>syntax</bad>")
	m.Append(bad)
	if err := m.MarkIgnored(1, ""); err != nil {
		t.Fatalf("MarkIgnored: %v", err)
	}
	m.Append(models.Message{Role: models.RoleAssistant})

	view := m.ContextView(0)
	if len(view) != 1 || view[0].Content != "keep me" {
		t.Errorf("view = %+v, want only the kept message", view)
	}
}

func TestMarkIgnored_Errors(t *testing.T) {
	m := newWordManager(100)
	m.Append(models.NewUserText("hello"))

	if err := m.MarkIgnored(5, ""); err == nil {
		t.Error("out-of-range index accepted")
	}
	if err := m.MarkIgnored(0, "part_nope"); err == nil {
		t.Error("unknown part id accepted")
	}
	if err := m.MarkIgnored(-1, ""); err == nil {
		t.Error("negative index accepted")
	}
}

func TestMarkIgnored_SinglePart(t *testing.T) {
	m := newWordManager(100)
	p1 := models.NewPart(models.PartText, "visible")
	p2 := models.NewPart(models.PartText, "hidden")
	m.AppendParts(models.RoleAssistant, p1, p2)

	if err := m.MarkIgnored(0, p2.ID); err != nil {
		t.Fatalf("MarkIgnored: %v", err)
	}
	got := m.Messages()[0].Flatten()
	if got != "visible" {
		t.Errorf("Flatten = %q, want %q", got, "visible")
	}
}

func TestHistory_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")

	m := newWordManager(100)
	m.SetSystemPrompt("you are helpful")
	m.Append(models.NewUserText("question"))
	m.Append(models.NewText(models.RoleAssistant, "answer"))

	if err := m.SaveHistory(path); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}

	loaded := newWordManager(100)
	if err := loaded.LoadHistory(path); err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}

	msgs := loaded.Messages()
	if len(msgs) != 3 {
		t.Fatalf("loaded %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != models.RoleSystem || msgs[0].Flatten() != "you are helpful" {
		t.Errorf("system message lost: %+v", msgs[0])
	}
	if msgs[2].Flatten() != "answer" {
		t.Errorf("assistant content = %q", msgs[2].Flatten())
	}
}

func TestLoadHistory_PreservesInMemorySystem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")

	// History written without a system message.
	src := newWordManager(100)
	src.Append(models.NewUserText("old question"))
	if err := src.SaveHistory(path); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}

	m := newWordManager(100)
	m.SetSystemPrompt("current prompt")
	m.Append(models.NewUserText("will be replaced"))
	if err := m.LoadHistory(path); err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}

	msgs := m.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want system + loaded", len(msgs))
	}
	if msgs[0].Role != models.RoleSystem || msgs[0].Flatten() != "current prompt" {
		t.Errorf("in-memory system prompt not preserved: %+v", msgs[0])
	}
	if msgs[1].Flatten() != "old question" {
		t.Errorf("loaded content = %q", msgs[1].Flatten())
	}
}

func TestSaveHistory_OmitsIgnoredOnlyMessages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")

	m := newWordManager(100)
	m.Append(models.NewUserText("real message"))
	m.Append(models.NewText(models.RoleAssistant, "malformed snippet"))
	if err := m.MarkIgnored(1, ""); err != nil {
		t.Fatalf("MarkIgnored: %v", err)
	}

	if err := m.SaveHistory(path); err != nil {
		t.Fatalf("SaveHistory: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "malformed snippet") {
		t.Errorf("ignored content leaked into legacy history:\n%s", data)
	}
}

func TestContext_RoundTripKeepsParts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "context.json")

	m := newWordManager(100)
	call := models.NewPart(models.PartToolCall, "read /tmp/a")
	call.ToolName = "read"
	call.Args = map[string]any{"filePath": "/tmp/a"}
	m.AppendParts(models.RoleAssistant, call)
	m.Append(models.NewText(models.RoleAssistant, "ignored bit"))
	if err := m.MarkIgnored(1, ""); err != nil {
		t.Fatalf("MarkIgnored: %v", err)
	}

	if err := m.SaveContext(path); err != nil {
		t.Fatalf("SaveContext: %v", err)
	}

	loaded := newWordManager(100)
	if err := loaded.LoadContext(path); err != nil {
		t.Fatalf("LoadContext: %v", err)
	}

	msgs := loaded.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	part, ok := msgs[0].FirstPart(models.PartToolCall)
	if !ok || part.ToolName != "read" {
		t.Errorf("tool-call part lost: %+v", msgs[0])
	}
	if !msgs[1].Parts[0].Ignored {
		t.Errorf("ignored flag lost in context dump")
	}
}

func TestLoadHistory_MissingFile(t *testing.T) {
	m := newWordManager(100)
	if err := m.LoadHistory(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestTokenCount(t *testing.T) {
	m := newWordManager(100)
	m.SetSystemPrompt("a b") // 2 words
	m.Append(models.NewUserText("c d e"))
	if got := m.TokenCount(); got != 5 {
		t.Errorf("TokenCount = %d, want 5", got)
	}
}
