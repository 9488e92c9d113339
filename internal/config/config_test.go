package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_Valid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{"api": {"api_key": "sk-1"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.APIKey != "sk-1" {
		t.Errorf("APIKey = %q", cfg.API.APIKey)
	}
	if cfg.API.Mode != "openai" {
		t.Errorf("Mode = %q, want default openai", cfg.API.Mode)
	}
	if cfg.Agent.MaxContextTokens != 32000 {
		t.Errorf("MaxContextTokens = %d, want 32000", cfg.Agent.MaxContextTokens)
	}
	if !cfg.Agent.AutoCompress {
		t.Error("AutoCompress should default to true")
	}
	if !cfg.Sessions.AutoCleanup {
		t.Error("AutoCleanup should default to true")
	}
	if cfg.ModelConfig.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", cfg.ModelConfig.Temperature)
	}
}

func TestLoad_JSON5Comments(t *testing.T) {
	path := writeConfig(t, "config.json", `{
  // transport settings
  "api": {"mode": "anthropic", "api_key": "sk-2"},
  "agent": {
    "max_iterations": 10 // tighter loop
  }
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Mode != "anthropic" {
		t.Errorf("Mode = %q", cfg.API.Mode)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d", cfg.Agent.MaxIterations)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
api:
  mode: openai
  model: gpt-4o
agent:
  auto_compress: false
model_config:
  temperature: 1.2
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.Model != "gpt-4o" {
		t.Errorf("Model = %q", cfg.API.Model)
	}
	if cfg.Agent.AutoCompress {
		t.Error("explicit auto_compress: false was ignored")
	}
	if cfg.ModelConfig.Temperature != 1.2 {
		t.Errorf("Temperature = %v", cfg.ModelConfig.Temperature)
	}
	// Untouched sections keep defaults.
	if cfg.Sessions.MaxSessions != 50 {
		t.Errorf("MaxSessions = %d, want 50", cfg.Sessions.MaxSessions)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("GGCODE_TEST_KEY", "from-env")
	path := writeConfig(t, "config.json", `{"api": {"api_key": "${GGCODE_TEST_KEY}"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.API.APIKey)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "config.json", `{"agent": {"max_context_tokenz": 100}}`)
	if _, err := Load(path); err == nil {
		t.Fatal("want error for unknown key")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("want error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown mode", func(c *Config) { c.API.Mode = "local" }, "unknown mode"},
		{"enterprise needs base_url", func(c *Config) { c.API.Mode = "enterprise" }, "base_url"},
		{"enterprise with base_url ok", func(c *Config) {
			c.API.Mode = "enterprise"
			c.API.BaseURL = "https://gw.internal"
		}, ""},
		{"zero context", func(c *Config) { c.Agent.MaxContextTokens = 0 }, "max_context_tokens"},
		{"threshold above one", func(c *Config) { c.Agent.CompressThreshold = 1.5 }, "compress_threshold"},
		{"bad dangerous pattern", func(c *Config) { c.Agent.DangerousPatterns = []string{"["} }, "does not compile"},
		{"zero sessions", func(c *Config) { c.Sessions.MaxSessions = 0 }, "max_sessions"},
		{"negative inactive days allowed", func(c *Config) { c.Sessions.MaxInactiveDays = -1 }, ""},
		{"temperature too high", func(c *Config) { c.ModelConfig.Temperature = 2.5 }, "temperature"},
		{"top_p negative", func(c *Config) { c.ModelConfig.TopP = -0.1 }, "top_p"},
		{"top_k too high", func(c *Config) { c.ModelConfig.TopK = 101 }, "top_k"},
		{"top_k disabled ok", func(c *Config) { c.ModelConfig.TopK = -1 }, ""},
		{"repetition penalty low", func(c *Config) { c.ModelConfig.RepetitionPenalty = 0.5 }, "repetition_penalty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.API.Model = "gpt-4o-mini"
	cfg.API.Models = []string{"gpt-4o-mini", "gpt-4o"}
	cfg.Agent.DangerousPatterns = []string{`rm\s+-rf`}
	cfg.ModelConfig.Temperature = 1.1
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if got.API.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q", got.API.Model)
	}
	if len(got.API.Models) != 2 || got.API.Models[1] != "gpt-4o" {
		t.Errorf("Models = %v", got.API.Models)
	}
	if len(got.Agent.DangerousPatterns) != 1 || got.Agent.DangerousPatterns[0] != `rm\s+-rf` {
		t.Errorf("DangerousPatterns = %v", got.Agent.DangerousPatterns)
	}
	if got.ModelConfig.Temperature != 1.1 {
		t.Errorf("Temperature = %v", got.ModelConfig.Temperature)
	}
}

func TestInit_WritesLoadableDefaults(t *testing.T) {
	t.Setenv("GGCODE_API_KEY", "")
	path := filepath.Join(t.TempDir(), "config.json")

	if err := Init(path); err != nil {
		t.Fatalf("Init: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of Init file: %v", err)
	}

	def := Default()
	if cfg.Agent.MaxContextTokens != def.Agent.MaxContextTokens ||
		cfg.Agent.MaxHistory != def.Agent.MaxHistory ||
		cfg.Agent.MaxIterations != def.Agent.MaxIterations ||
		cfg.Agent.AutoApprove != def.Agent.AutoApprove ||
		cfg.Agent.AutoCompress != def.Agent.AutoCompress ||
		cfg.Agent.CompressThreshold != def.Agent.CompressThreshold ||
		cfg.Agent.CompressReserve != def.Agent.CompressReserve ||
		cfg.Agent.SummaryEvery != def.Agent.SummaryEvery {
		t.Errorf("Agent = %+v, want defaults %+v", cfg.Agent, def.Agent)
	}
	if len(cfg.Agent.DangerousPatterns) != 0 {
		t.Errorf("DangerousPatterns = %v, want empty", cfg.Agent.DangerousPatterns)
	}
	if cfg.Sessions != def.Sessions {
		t.Errorf("Sessions = %+v, want %+v", cfg.Sessions, def.Sessions)
	}
	if cfg.ModelConfig != def.ModelConfig {
		t.Errorf("ModelConfig = %+v, want %+v", cfg.ModelConfig, def.ModelConfig)
	}
}

func TestInit_RefusesOverwrite(t *testing.T) {
	path := writeConfig(t, "config.json", `{}`)
	if err := Init(path); err == nil {
		t.Fatal("want error when config exists")
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "config.json", `{"model_config": {"temperature": 0.5}}`)

	changes := make(chan *Config, 4)
	w, err := Watch(context.Background(), path, func(cfg *Config) {
		changes <- cfg
	}, WatchOptions{Debounce: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte(`{"model_config": {"temperature": 1.5}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		if cfg.ModelConfig.Temperature != 1.5 {
			t.Errorf("reloaded Temperature = %v, want 1.5", cfg.ModelConfig.Temperature)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}
}
