package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ggcode-ai/ggcode/internal/config"
)

// buildConfigCmd creates the "config" command group.
func buildConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the ggcode configuration",
	}
	cmd.AddCommand(
		buildConfigShowCmd(opts),
		buildConfigGetCmd(opts),
		buildConfigSetCmd(opts),
		buildConfigInitCmd(opts),
		buildConfigValidateCmd(opts),
	)
	return cmd
}

func buildConfigShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func buildConfigGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print one configuration value by dotted path",
		Example: `  ggcode config get api.model
  ggcode config get agent.max_iterations`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(opts)
			if err != nil {
				return err
			}
			raw, err := configMap(cfg)
			if err != nil {
				return err
			}
			value, err := lookupPath(raw, args[0])
			if err != nil {
				return err
			}
			data, err := json.Marshal(value)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func buildConfigSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <path> <value>",
		Short: "Set one configuration value and save the file",
		Example: `  ggcode config set api.model qwen-coder
  ggcode config set model_config.temperature 0.2
  ggcode config set api.models '["qwen-coder", "deepseek-chat"]'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(opts)
			if err != nil {
				return err
			}
			raw, err := configMap(cfg)
			if err != nil {
				return err
			}
			if err := setPath(raw, args[0], coerceValue(args[1])); err != nil {
				return err
			}
			next, err := config.FromMap(raw)
			if err != nil {
				return configError(err)
			}
			if err := next.Validate(); err != nil {
				return configError(err)
			}
			if err := config.Save(next, path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s and saved %s\n", args[0], path)
			return nil
		},
	}
}

func buildConfigInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.Init(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
}

func buildConfigValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the config file loads and passes validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			cfg, err := config.Load(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) && opts.configPath == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "No config file at %s; defaults apply.\n", path)
					return nil
				}
				return configError(err)
			}
			mode := cfg.API.Mode
			if mode == "" {
				mode = "openai"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (mode %s).\n", path, mode)
			return nil
		},
	}
}

// configMap round-trips a Config through JSON into a generic map keyed the
// way the file is.
func configMap(cfg *config.Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// lookupPath walks a dotted path like "api.model" through nested maps.
func lookupPath(raw map[string]any, path string) (any, error) {
	keys := strings.Split(path, ".")
	var cur any = raw
	for i, key := range keys {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s is not an object", strings.Join(keys[:i], "."))
		}
		cur, ok = node[key]
		if !ok {
			return nil, fmt.Errorf("unknown config key %q", strings.Join(keys[:i+1], "."))
		}
	}
	return cur, nil
}

// setPath writes value at a dotted path. Every key on the path must already
// exist, so typos fail instead of growing new sections.
func setPath(raw map[string]any, path string, value any) error {
	keys := strings.Split(path, ".")
	node := raw
	for i, key := range keys[:len(keys)-1] {
		next, ok := node[key].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown config section %q", strings.Join(keys[:i+1], "."))
		}
		node = next
	}
	leaf := keys[len(keys)-1]
	if _, ok := node[leaf]; !ok {
		return fmt.Errorf("unknown config key %q", path)
	}
	node[leaf] = value
	return nil
}

// coerceValue parses a CLI argument into the JSON type it looks like:
// integer, float, bool, JSON array/object, or plain string. Integers are
// tried before bools so "1" stays numeric.
func coerceValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if v, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(trimmed); err == nil {
		return v
	}
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return raw
}
