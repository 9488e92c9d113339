// Package llm provides the transport layer for model requests: provider
// adapters (OpenAI-compatible, Anthropic, enterprise proxy), a shared typed
// error vocabulary, transient-failure retry, and a process-wide concurrency
// gate that serializes outgoing calls.
//
// The adapters speak the flattened message format. Request shaping that
// depends on conversation structure (context windows, part filtering)
// happens upstream; by the time a request reaches this package it is a
// plain ordered list of role/content pairs.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ggcode-ai/ggcode/pkg/models"
)

// API modes accepted by New.
const (
	ModeOpenAI     = "openai"
	ModeAnthropic  = "anthropic"
	ModeEnterprise = "enterprise"
)

const (
	// defaultTimeout bounds a single completion request, including the
	// full streaming read.
	defaultTimeout = 60 * time.Second

	// defaultMaxTokens is used when the caller does not cap generation.
	defaultMaxTokens = 4096
)

// Options carries per-request generation settings. Pointer fields are
// tri-state: nil means "do not send", letting the provider apply its own
// default.
type Options struct {
	Temperature       *float64
	TopP              *float64
	TopK              *int
	RepetitionPenalty *float64

	// MaxTokens caps generation; 0 selects the adapter default.
	MaxTokens int

	// Stream requests incremental delivery. When set, OnChunk receives
	// each text fragment as it arrives. The full text is still returned
	// from Complete.
	Stream  bool
	OnChunk func(chunk string)

	// Timeout bounds the whole request; 0 selects the 60s default.
	Timeout time.Duration
}

// Client is a synchronous completion transport. Complete returns the full
// assistant text, or an *APIError describing the failure.
type Client interface {
	Complete(ctx context.Context, msgs []models.LegacyMessage, opts Options) (string, error)
	Name() string
}

// Config selects and configures a transport adapter.
type Config struct {
	// Mode picks the adapter: "openai" (default), "anthropic" or
	// "enterprise".
	Mode string

	// BaseURL overrides the provider endpoint. Required for enterprise
	// mode, optional elsewhere.
	BaseURL string

	// APIKey authenticates openai and anthropic modes.
	APIKey string

	// Model is the model identifier sent with each request.
	Model string

	// AppID and AppSecret authenticate the enterprise proxy.
	AppID     string
	AppSecret string
}

// New builds the configured adapter wrapped with the retry policy. The
// returned Client is safe for concurrent use.
func New(cfg Config, logger *slog.Logger) (Client, error) {
	var inner Client
	var err error

	switch cfg.Mode {
	case "", ModeOpenAI:
		inner, err = NewOpenAI(cfg)
	case ModeAnthropic:
		inner, err = NewAnthropic(cfg)
	case ModeEnterprise:
		inner, err = NewEnterprise(cfg)
	default:
		return nil, fmt.Errorf("unknown api mode %q", cfg.Mode)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(inner, RetryConfig{Logger: logger}), nil
}

func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

func maxTokensOr(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
