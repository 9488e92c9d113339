package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// Anthropic adapts the Messages API. Requests always use the streaming
// endpoint; non-stream callers simply get the accumulated text.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic creates an Anthropic adapter.
func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		options = append(options, option.WithBaseURL(base))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{
		client: anthropic.NewClient(options...),
		model:  model,
	}, nil
}

// Name returns "anthropic".
func (c *Anthropic) Name() string {
	return "anthropic"
}

// Complete sends a Messages request. Leading system messages become the
// system prompt; the rest map onto user/assistant turns.
func (c *Anthropic) Complete(ctx context.Context, msgs []models.LegacyMessage, opts Options) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeoutOr(opts.Timeout))
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokensOr(opts.MaxTokens)),
		Messages:  convertAnthropicMessages(msgs),
	}
	if system := systemPromptOf(msgs); system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	if opts.TopP != nil {
		params.TopP = anthropic.Float(*opts.TopP)
	}
	if opts.TopK != nil && *opts.TopK >= 0 {
		params.TopK = anthropic.Int(int64(*opts.TopK))
	}
	// RepetitionPenalty is not part of the Messages API.

	emit := opts.OnChunk
	if !opts.Stream {
		emit = nil
	}

	stream := c.client.Messages.NewStreaming(cctx, params)
	var text strings.Builder
	for stream.Next() {
		event := stream.Current()
		if event.Type != "content_block_delta" {
			continue
		}
		delta := event.AsContentBlockDelta().Delta
		if delta.Type != "text_delta" || delta.Text == "" {
			continue
		}
		text.WriteString(delta.Text)
		if emit != nil {
			emit(delta.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return "", c.mapError(ctx, err)
	}

	if text.Len() == 0 {
		return "", NewAPIError(KindEmpty, "anthropic", nil).WithMessage("stream produced no content")
	}
	out := text.String()
	if strings.TrimSpace(out) == "" {
		return "", NewAPIError(KindBlank, "anthropic", nil).WithMessage("stream content is blank")
	}
	return out, nil
}

type anthropicErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Anthropic) mapError(parent context.Context, err error) error {
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return NewAPIError(KindAborted, "anthropic", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewAPIError(KindAborted, "anthropic", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAPIError(KindTimeout, "anthropic", err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		e := NewAPIError(KindNetwork, "anthropic", err).WithStatus(apiErr.StatusCode)
		if raw := apiErr.RawJSON(); raw != "" {
			var body anthropicErrorBody
			if json.Unmarshal([]byte(raw), &body) == nil {
				if body.Error.Message != "" {
					e = e.WithMessage(body.Error.Message)
				}
				if body.Error.Type != "" {
					e = e.WithCode(body.Error.Type)
				}
			}
		}
		return e
	}

	return Classify("anthropic", err)
}

// systemPromptOf joins the system messages into one prompt block. The
// Messages API carries the system prompt outside the turn list.
func systemPromptOf(msgs []models.LegacyMessage) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == models.RoleSystem && strings.TrimSpace(m.Content) != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func convertAnthropicMessages(msgs []models.LegacyMessage) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	for _, m := range msgs {
		if m.Role == models.RoleSystem || m.Content == "" {
			continue
		}
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == models.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
