// Package config loads, validates and persists the ggcode configuration
// file. The default location is ${HOME}/.ggcode/config.json; JSON5 comments
// are accepted there, and .yaml/.yml files work the same way.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

// Config is the full configuration tree.
type Config struct {
	API         APIConfig      `json:"api" yaml:"api"`
	Agent       AgentConfig    `json:"agent" yaml:"agent"`
	Sessions    SessionsConfig `json:"sessions" yaml:"sessions"`
	ModelConfig ModelConfig    `json:"model_config" yaml:"model_config"`
}

// APIConfig selects and configures the LLM transport.
type APIConfig struct {
	// Mode picks the provider adapter: "openai", "anthropic" or
	// "enterprise".
	Mode    string   `json:"mode" yaml:"mode"`
	BaseURL string   `json:"base_url" yaml:"base_url"`
	APIKey  string   `json:"api_key" yaml:"api_key"`
	Model   string   `json:"model" yaml:"model"`
	Models  []string `json:"models" yaml:"models"`

	// Enterprise proxy credential pair.
	AppID     string `json:"app_id" yaml:"app_id"`
	AppSecret string `json:"app_secret" yaml:"app_secret"`
}

// AgentConfig tunes the orchestrator loop and context management.
type AgentConfig struct {
	MaxContextTokens  int      `json:"max_context_tokens" yaml:"max_context_tokens"`
	MaxHistory        int      `json:"max_history" yaml:"max_history"`
	MaxIterations     int      `json:"max_iterations" yaml:"max_iterations"`
	AutoApprove       bool     `json:"auto_approve" yaml:"auto_approve"`
	AutoCompress      bool     `json:"auto_compress" yaml:"auto_compress"`
	CompressThreshold float64  `json:"compress_threshold" yaml:"compress_threshold"`
	CompressReserve   int      `json:"compress_reserve" yaml:"compress_reserve"`
	SummaryEvery      int      `json:"summary_every" yaml:"summary_every"`
	DangerousPatterns []string `json:"dangerous_patterns" yaml:"dangerous_patterns"`
}

// SessionsConfig tunes session retention.
type SessionsConfig struct {
	MaxSessions            int  `json:"max_sessions" yaml:"max_sessions"`
	MaxInactiveDays        int  `json:"max_inactive_days" yaml:"max_inactive_days"`
	AutoCleanup            bool `json:"auto_cleanup" yaml:"auto_cleanup"`
	CleanupIntervalHours   int  `json:"cleanup_interval_hours" yaml:"cleanup_interval_hours"`
	PreserveRecentSessions int  `json:"preserve_recent_sessions" yaml:"preserve_recent_sessions"`
}

// ModelConfig carries generation parameters sent with every request. The
// /setting command edits these at runtime.
type ModelConfig struct {
	Temperature       float64 `json:"temperature" yaml:"temperature"`
	TopP              float64 `json:"top_p" yaml:"top_p"`
	TopK              int     `json:"top_k" yaml:"top_k"`
	RepetitionPenalty float64 `json:"repetition_penalty" yaml:"repetition_penalty"`
}

// Default returns a configuration with every documented default filled in.
// Load decodes the user file over this, so absent keys keep their defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Mode: "openai",
		},
		Agent: AgentConfig{
			MaxContextTokens:  32000,
			MaxHistory:        200,
			MaxIterations:     25,
			AutoApprove:       false,
			AutoCompress:      true,
			CompressThreshold: 0.8,
			CompressReserve:   2000,
			SummaryEvery:      5,
		},
		Sessions: SessionsConfig{
			MaxSessions:            50,
			MaxInactiveDays:        30,
			AutoCleanup:            true,
			CleanupIntervalHours:   24,
			PreserveRecentSessions: 5,
		},
		ModelConfig: ModelConfig{
			Temperature:       0.7,
			TopP:              0.9,
			TopK:              40,
			RepetitionPenalty: 1.0,
		},
	}
}

// Dir returns the ggcode state directory, ${HOME}/.ggcode.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ggcode"
	}
	return filepath.Join(home, ".ggcode")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// SessionsDir returns the session storage directory.
func SessionsDir() string {
	return filepath.Join(Dir(), "sessions")
}

// PromptsDir returns the prompt template overlay directory.
func PromptsDir() string {
	return filepath.Join(Dir(), "prompts")
}

// Parameter ranges shared by Validate and the /setting command.
const (
	TemperatureMin       = 0.0
	TemperatureMax       = 2.0
	TopPMin              = 0.0
	TopPMax              = 1.0
	TopKMin              = -1
	TopKMax              = 100
	RepetitionPenaltyMin = 1.0
	RepetitionPenaltyMax = 2.0
)

// Validate checks ranges and cross-field requirements. Startup treats any
// returned error as fatal (exit code 2).
func (c *Config) Validate() error {
	switch c.API.Mode {
	case "", "openai", "anthropic", "enterprise":
	default:
		return fmt.Errorf("api.mode: unknown mode %q", c.API.Mode)
	}
	if c.API.Mode == "enterprise" && c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required in enterprise mode")
	}

	if c.Agent.MaxContextTokens <= 0 {
		return fmt.Errorf("agent.max_context_tokens must be positive, got %d", c.Agent.MaxContextTokens)
	}
	if c.Agent.MaxHistory <= 0 {
		return fmt.Errorf("agent.max_history must be positive, got %d", c.Agent.MaxHistory)
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Agent.CompressThreshold < 0 || c.Agent.CompressThreshold > 1 {
		return fmt.Errorf("agent.compress_threshold must be within [0,1], got %v", c.Agent.CompressThreshold)
	}
	if c.Agent.CompressReserve < 0 {
		return fmt.Errorf("agent.compress_reserve must not be negative, got %d", c.Agent.CompressReserve)
	}
	if c.Agent.SummaryEvery < 0 {
		return fmt.Errorf("agent.summary_every must not be negative, got %d", c.Agent.SummaryEvery)
	}
	for _, pattern := range c.Agent.DangerousPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("agent.dangerous_patterns: %q does not compile: %w", pattern, err)
		}
	}

	if c.Sessions.MaxSessions <= 0 {
		return fmt.Errorf("sessions.max_sessions must be positive, got %d", c.Sessions.MaxSessions)
	}
	if c.Sessions.CleanupIntervalHours <= 0 {
		return fmt.Errorf("sessions.cleanup_interval_hours must be positive, got %d", c.Sessions.CleanupIntervalHours)
	}
	if c.Sessions.PreserveRecentSessions < 0 {
		return fmt.Errorf("sessions.preserve_recent_sessions must not be negative, got %d", c.Sessions.PreserveRecentSessions)
	}

	mc := c.ModelConfig
	if mc.Temperature < TemperatureMin || mc.Temperature > TemperatureMax {
		return fmt.Errorf("model_config.temperature must be within [%v,%v], got %v", TemperatureMin, TemperatureMax, mc.Temperature)
	}
	if mc.TopP < TopPMin || mc.TopP > TopPMax {
		return fmt.Errorf("model_config.top_p must be within [%v,%v], got %v", TopPMin, TopPMax, mc.TopP)
	}
	if mc.TopK < TopKMin || mc.TopK > TopKMax {
		return fmt.Errorf("model_config.top_k must be within [%d,%d], got %d", TopKMin, TopKMax, mc.TopK)
	}
	if mc.RepetitionPenalty < RepetitionPenaltyMin || mc.RepetitionPenalty > RepetitionPenaltyMax {
		return fmt.Errorf("model_config.repetition_penalty must be within [%v,%v], got %v", RepetitionPenaltyMin, RepetitionPenaltyMax, mc.RepetitionPenalty)
	}

	return nil
}
