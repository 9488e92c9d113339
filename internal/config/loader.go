package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file, expands ${ENV_VAR} references, decodes it
// over the defaults and validates the result. The format follows the file
// extension: .json and .json5 parse as JSON5 (comments allowed), everything
// else as YAML.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	raw, err := parseRawBytes([]byte(expanded), path)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg, err := FromMap(raw)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// parseRawBytes decodes one document into a raw map, choosing the parser by
// file extension.
func parseRawBytes(data []byte, pathHint string) (map[string]any, error) {
	format := strings.ToLower(filepath.Ext(pathHint))
	if format == ".json" || format == ".json5" {
		var raw map[string]any
		if err := json5.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw == nil {
			raw = map[string]any{}
		}
		return raw, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		if err == io.EOF {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("expected a single document")
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// FromMap funnels a raw map through a strict YAML decode on top of the
// defaults, so unknown keys fail loudly and absent keys keep their defaults.
// The config subcommands use it to rebuild a Config after path edits.
func FromMap(raw map[string]any) (*Config, error) {
	payload, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("serialize config: %w", err)
	}
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(payload))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON via a temp file rename.
// Hand-written comments in the previous file do not survive a Save.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

// Init writes a commented default configuration file. It refuses to
// overwrite an existing file.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(initTemplate), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// initTemplate is JSON5: the loader accepts the comments, and any ${VAR}
// reference expands from the environment at load time.
const initTemplate = `{
  // LLM transport. mode is one of "openai", "anthropic", "enterprise".
  "api": {
    "mode": "openai",
    // Endpoint override; required for enterprise mode.
    "base_url": "",
    "api_key": "${GGCODE_API_KEY}",
    "model": "",
    // Models offered by /models; the first one is used when "model" is empty.
    "models": [],
    // Enterprise credential pair.
    "app_id": "",
    "app_secret": ""
  },
  "agent": {
    "max_context_tokens": 32000,
    "max_history": 200,
    "max_iterations": 25,
    // Ask before running tools that modify state. /setting can flip this.
    "auto_approve": false,
    "auto_compress": true,
    "compress_threshold": 0.8,
    "compress_reserve": 2000,
    "summary_every": 5,
    // Regexps matched against shell commands; matches always require approval.
    "dangerous_patterns": []
  },
  "sessions": {
    "max_sessions": 50,
    "max_inactive_days": 30,
    "auto_cleanup": true,
    "cleanup_interval_hours": 24,
    "preserve_recent_sessions": 5
  },
  "model_config": {
    "temperature": 0.7,
    "top_p": 0.9,
    "top_k": 40,
    "repetition_penalty": 1.0
  }
}
`
