package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAI speaks the chat-completions shape. With a custom BaseURL it also
// covers self-hosted gateways that expose the same wire format.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI-compatible adapter.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientConfig.BaseURL = strings.TrimRight(base, "/")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// Name returns "openai".
func (c *OpenAI) Name() string {
	return "openai"
}

// Complete sends one chat-completions request. In stream mode each delta is
// forwarded to opts.OnChunk as it arrives.
func (c *OpenAI) Complete(ctx context.Context, msgs []models.LegacyMessage, opts Options) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeoutOr(opts.Timeout))
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: convertOpenAIMessages(msgs),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature != nil {
		req.Temperature = float32(*opts.Temperature)
	}
	if opts.TopP != nil {
		req.TopP = float32(*opts.TopP)
	}
	// TopK and RepetitionPenalty have no chat-completions field; the
	// enterprise transport carries them instead.

	if opts.Stream && opts.OnChunk != nil {
		return c.streamCompletion(ctx, cctx, req, opts.OnChunk)
	}

	resp, err := c.client.CreateChatCompletion(cctx, req)
	if err != nil {
		return "", c.mapError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", NewAPIError(KindEmpty, "openai", nil).WithMessage("response contained no choices")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", NewAPIError(KindBlank, "openai", nil).WithMessage("response content is blank")
	}
	return content, nil
}

func (c *OpenAI) streamCompletion(parent, cctx context.Context, req openai.ChatCompletionRequest, onChunk func(string)) (string, error) {
	req.Stream = true
	stream, err := c.client.CreateChatCompletionStream(cctx, req)
	if err != nil {
		return "", c.mapError(parent, err)
	}
	defer stream.Close()

	var text strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", c.mapError(parent, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		text.WriteString(delta)
		onChunk(delta)
	}

	if text.Len() == 0 {
		return "", NewAPIError(KindEmpty, "openai", nil).WithMessage("stream produced no content")
	}
	out := text.String()
	if strings.TrimSpace(out) == "" {
		return "", NewAPIError(KindBlank, "openai", nil).WithMessage("stream content is blank")
	}
	return out, nil
}

// mapError converts go-openai errors into APIErrors. The parent context is
// consulted so an SDK-wrapped cancellation still classifies as aborted
// rather than timeout.
func (c *OpenAI) mapError(parent context.Context, err error) error {
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return NewAPIError(KindAborted, "openai", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewAPIError(KindAborted, "openai", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAPIError(KindTimeout, "openai", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		e := NewAPIError(KindNetwork, "openai", err).
			WithMessage(apiErr.Message).
			WithStatus(apiErr.HTTPStatusCode)
		if code, ok := apiErr.Code.(string); ok && code != "" {
			e = e.WithCode(code)
		}
		return e
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewAPIError(KindNetwork, "openai", err).WithStatus(reqErr.HTTPStatusCode)
	}

	return Classify("openai", err)
}

func convertOpenAIMessages(msgs []models.LegacyMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}
