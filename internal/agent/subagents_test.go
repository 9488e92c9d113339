package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ggcode-ai/ggcode/internal/llm"
	"github.com/ggcode-ai/ggcode/internal/prompts"
	"github.com/ggcode-ai/ggcode/pkg/models"
)

func newTestSubagents(t *testing.T, client *llm.ScriptedClient) *Subagents {
	t.Helper()
	sub, err := NewSubagents(SubagentsConfig{
		Client:  client,
		Gate:    llm.NewGate(llm.GateOptions{MinCooldown: time.Millisecond, MaxCooldown: 2 * time.Millisecond}),
		Prompts: prompts.NewComposer(prompts.Config{OverlayDir: t.TempDir()}),
	})
	if err != nil {
		t.Fatalf("NewSubagents: %v", err)
	}
	return sub
}

func TestTitle_UsesTemplateAsSystemMessage(t *testing.T) {
	client := llm.NewScripted(llm.ScriptedResponse{Text: "Fix flaky auth test"})
	sub := newTestSubagents(t, client)

	got := sub.Title(context.Background(), "my auth test fails every third run")
	if got != "Fix flaky auth test" {
		t.Errorf("Title = %q", got)
	}

	calls := client.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	req := calls[0]
	if len(req) != 2 || req[0].Role != models.RoleSystem || req[1].Role != models.RoleUser {
		t.Fatalf("request shape = %+v, want system+user", req)
	}
	if !strings.Contains(req[0].Content, "title") {
		t.Errorf("system prompt does not look like the title template: %q", req[0].Content)
	}
}

func TestTitle_FailureReturnsDefault(t *testing.T) {
	client := llm.NewScripted(llm.ScriptedResponse{Err: errors.New("boom")})
	sub := newTestSubagents(t, client)

	if got := sub.Title(context.Background(), "hello"); got != prompts.DefaultTitle {
		t.Errorf("Title = %q, want %q", got, prompts.DefaultTitle)
	}
}

func TestTitle_EmptyInputSkipsCall(t *testing.T) {
	client := llm.NewScripted()
	sub := newTestSubagents(t, client)

	if got := sub.Title(context.Background(), "  "); got != prompts.DefaultTitle {
		t.Errorf("Title = %q, want default", got)
	}
	if client.CallCount() != 0 {
		t.Error("empty input still dispatched a model call")
	}
}

func TestTitle_SanitizesReply(t *testing.T) {
	client := llm.NewScripted(llm.ScriptedResponse{Text: "\"Refactor config loader.\"\nExtra explanation."})
	sub := newTestSubagents(t, client)

	if got := sub.Title(context.Background(), "clean up config"); got != "Refactor config loader" {
		t.Errorf("Title = %q", got)
	}
}

func TestSummary_KeepsLastTen(t *testing.T) {
	client := llm.NewScripted(llm.ScriptedResponse{Text: "All sorted."})
	sub := newTestSubagents(t, client)

	var msgs []models.LegacyMessage
	for i := 0; i < 25; i++ {
		msgs = append(msgs, models.LegacyMessage{Role: models.RoleUser, Content: fmt.Sprintf("msg %d", i)})
	}
	if got := sub.Summary(context.Background(), msgs); got != "All sorted." {
		t.Errorf("Summary = %q", got)
	}

	req := client.Calls()[0]
	if len(req) != 11 { // template + last 10
		t.Fatalf("request carried %d messages, want 11", len(req))
	}
	if req[1].Content != "msg 15" || req[10].Content != "msg 24" {
		t.Errorf("wrong window: first=%q last=%q", req[1].Content, req[10].Content)
	}
}

func TestSummary_FailureReturnsEmpty(t *testing.T) {
	client := llm.NewScripted(llm.ScriptedResponse{Err: errors.New("boom")})
	sub := newTestSubagents(t, client)

	if got := sub.Summary(context.Background(), []models.LegacyMessage{{Role: models.RoleUser, Content: "hi"}}); got != "" {
		t.Errorf("Summary = %q, want empty", got)
	}
}

func TestCompaction_FiltersToUserAssistant(t *testing.T) {
	client := llm.NewScripted(llm.ScriptedResponse{Text: "compacted"})
	sub := newTestSubagents(t, client)

	got, err := sub.Compaction(context.Background(), []models.LegacyMessage{
		{Role: models.RoleSystem, Content: "persona"},
		{Role: models.RoleUser, Content: "question"},
		{Role: models.RoleAssistant, Content: "answer"},
	})
	if err != nil {
		t.Fatalf("Compaction: %v", err)
	}
	if got != "compacted" {
		t.Errorf("Compaction = %q", got)
	}

	req := client.Calls()[0]
	if len(req) != 3 {
		t.Fatalf("request carried %d messages, want template+2", len(req))
	}
	for _, m := range req[1:] {
		if m.Role == models.RoleSystem {
			t.Errorf("conversation system message leaked into the request")
		}
	}
}

func TestCompaction_NothingToCompact(t *testing.T) {
	sub := newTestSubagents(t, llm.NewScripted())
	if _, err := sub.Compaction(context.Background(), []models.LegacyMessage{
		{Role: models.RoleSystem, Content: "persona"},
	}); err == nil {
		t.Fatal("want error for an all-system conversation")
	}
}

func TestProjectInit_PassesSnapshot(t *testing.T) {
	client := llm.NewScripted(llm.ScriptedResponse{Text: "# Project overview\n..."})
	sub := newTestSubagents(t, client)

	got, err := sub.ProjectInit(context.Background(), "FILES:\nmain.go")
	if err != nil {
		t.Fatalf("ProjectInit: %v", err)
	}
	if !strings.HasPrefix(got, "# Project overview") {
		t.Errorf("ProjectInit = %q", got)
	}
	req := client.Calls()[0]
	if req[1].Content != "FILES:\nmain.go" {
		t.Errorf("snapshot not passed through: %q", req[1].Content)
	}
}
