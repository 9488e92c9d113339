package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// Enterprise speaks the double-wrapped gateway protocol: the HTTP body is an
// envelope whose result.data field carries a chat-completions-shaped JSON
// document as a string. The gateway does not stream; in stream mode the
// decoded text is delivered through OnChunk in a single call.
type Enterprise struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	appSecret  string
	model      string
}

// envelope is the outer gateway response. Status "00" with business code
// 20000 marks success.
type envelope struct {
	Status string `json:"C-API-Status"`
	Result struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	} `json:"result"`
}

// innerResponse is the chat-completions document carried inside
// envelope.Result.Data.
type innerResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type enterpriseRequest struct {
	Model             string                 `json:"model"`
	Messages          []models.LegacyMessage `json:"messages"`
	MaxTokens         int                    `json:"max_tokens,omitempty"`
	Temperature       *float64               `json:"temperature,omitempty"`
	TopP              *float64               `json:"top_p,omitempty"`
	TopK              *int                   `json:"top_k,omitempty"`
	RepetitionPenalty *float64               `json:"repetition_penalty,omitempty"`
}

// NewEnterprise creates an enterprise gateway adapter.
func NewEnterprise(cfg Config) (*Enterprise, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("enterprise: base URL is required")
	}
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, errors.New("enterprise: app id and app secret are required")
	}
	return &Enterprise{
		// Transport default; per-request deadlines come from the context.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    strings.TrimRight(base, "/"),
		appID:      cfg.AppID,
		appSecret:  cfg.AppSecret,
		model:      cfg.Model,
	}, nil
}

// Name returns "enterprise".
func (c *Enterprise) Name() string {
	return "enterprise"
}

// Complete posts one request and unwraps both envelope layers.
func (c *Enterprise) Complete(ctx context.Context, msgs []models.LegacyMessage, opts Options) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeoutOr(opts.Timeout))
	defer cancel()

	payload := enterpriseRequest{
		Model:             c.model,
		Messages:          msgs,
		Temperature:       opts.Temperature,
		TopP:              opts.TopP,
		TopK:              opts.TopK,
		RepetitionPenalty: opts.RepetitionPenalty,
	}
	if opts.MaxTokens > 0 {
		payload.MaxTokens = opts.MaxTokens
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", NewAPIError(KindMalformed, "enterprise", fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", NewAPIError(KindNetwork, "enterprise", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-App-Id", c.appID)
	req.Header.Set("X-App-Secret", c.appSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", c.mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", c.mapTransportError(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", NewAPIError(KindNetwork, "enterprise", nil).
			WithStatus(resp.StatusCode).
			WithMessage(clipBody(raw))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", NewAPIError(KindEmpty, "enterprise", nil).WithMessage("empty response body")
	}

	text, err := decodeEnvelope(raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", NewAPIError(KindBlank, "enterprise", nil).WithMessage("response content is blank")
	}

	// The gateway returns the full text at once.
	if opts.Stream && opts.OnChunk != nil {
		opts.OnChunk(text)
	}
	return text, nil
}

// decodeEnvelope unwraps the outer envelope and the inner chat-completions
// document. Gateway-level rejections map onto auth or rate-limit kinds by
// business code.
func decodeEnvelope(raw []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", NewAPIError(KindMalformed, "enterprise", fmt.Errorf("decode envelope: %w", err))
	}
	if env.Status != "00" {
		return "", NewAPIError(KindNetwork, "enterprise", nil).
			WithCode(env.Status).
			WithMessage(fmt.Sprintf("gateway status %q: %s", env.Status, env.Result.Message))
	}
	if env.Result.Code != 20000 {
		kind := KindMalformed
		switch env.Result.Code {
		case 40100, 40300:
			kind = KindAuth
		case 42900:
			kind = KindRateLimit
		}
		return "", NewAPIError(kind, "enterprise", nil).
			WithCode(fmt.Sprintf("%d", env.Result.Code)).
			WithMessage(env.Result.Message)
	}
	if strings.TrimSpace(env.Result.Data) == "" {
		return "", NewAPIError(KindEmpty, "enterprise", nil).WithMessage("envelope carried no data")
	}

	var inner innerResponse
	if err := json.Unmarshal([]byte(env.Result.Data), &inner); err != nil {
		return "", NewAPIError(KindMalformed, "enterprise", fmt.Errorf("decode inner document: %w", err))
	}
	if len(inner.Choices) == 0 {
		return "", NewAPIError(KindEmpty, "enterprise", nil).WithMessage("inner document contained no choices")
	}
	return inner.Choices[0].Message.Content, nil
}

func (c *Enterprise) mapTransportError(parent context.Context, err error) error {
	if parent.Err() != nil && errors.Is(parent.Err(), context.Canceled) {
		return NewAPIError(KindAborted, "enterprise", err)
	}
	return Classify("enterprise", err)
}

func clipBody(raw []byte) string {
	const max = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
