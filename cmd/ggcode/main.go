// Package main provides the CLI entry point for ggcode, an interactive AI
// coding agent for the terminal.
//
// # Basic Usage
//
// Start the coding agent in the current directory:
//
//	ggcode
//
// Start a tool-less chat session:
//
//	ggcode chat
//
// Manage configuration:
//
//	ggcode config init
//	ggcode config set api.model qwen-coder
//	ggcode config validate
//
// Configuration lives at ${HOME}/.ggcode/config.json; the GGCODE_API_KEY
// style ${VAR} references inside it expand from the environment at load
// time.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ggcode-ai/ggcode/internal/prompts"
)

// Build information, populated by ldflags.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v0.4.0 -X main.commit=$(git rev-parse --short HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitError carries a process exit code through cobra's error return. Config
// load and validation failures map to code 2.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configError(err error) error { return &exitError{code: 2, err: err} }

// rootOptions are the global flags shared by every command.
type rootOptions struct {
	configPath string
	workDir    string
	model      string
	verbose    bool
}

func main() {
	// Conservative default until the session logger takes over; the REPL
	// owns stdout, so anything early goes to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	// SIGINT stays with the REPL, which treats it as a soft interrupt.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	if err := buildRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ggcode: %v\n", err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Running ggcode with no subcommand starts the full coding agent.
func buildRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "ggcode",
		Short: "Interactive AI coding agent for the terminal",
		Long: `ggcode is an interactive AI coding agent. It talks to an OpenAI-compatible,
Anthropic or enterprise LLM endpoint, reads and edits files, searches the
tree and runs shell commands, with every step of the loop visible in the
terminal.

Sessions, configuration and logs live under ${HOME}/.ggcode/.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), opts, prompts.AgentBuild, true)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default ${HOME}/.ggcode/config.json)")
	flags.StringVarP(&opts.workDir, "workdir", "w", "", "working directory for tools (default: current directory)")
	flags.StringVarP(&opts.model, "model", "m", "", "model override for this run")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "mirror debug logs to stderr")

	root.AddCommand(
		buildAgentCmd(opts),
		buildChatCmd(opts),
		buildConfigCmd(opts),
	)
	return root
}

// buildAgentCmd creates the "agent" command, the explicit spelling of the
// root default.
func buildAgentCmd(opts *rootOptions) *cobra.Command {
	var agentType string
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the interactive coding agent (the default command)",
		Example: `  # Build persona with full tool access
  ggcode agent

  # Read-only exploration persona
  ggcode agent --type explore`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch agentType {
			case prompts.AgentBuild, prompts.AgentExplore, prompts.AgentPlan:
			default:
				return fmt.Errorf("unknown agent type %q (want build, explore or plan)", agentType)
			}
			return runSession(cmd.Context(), opts, agentType, true)
		},
	}
	cmd.Flags().StringVarP(&agentType, "type", "t", prompts.AgentBuild, "agent persona: build, explore or plan")
	return cmd
}

// buildChatCmd creates the "chat" command: the same loop without any tools,
// for conversations that should never touch the filesystem.
func buildChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a plain chat session without tool access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), opts, prompts.AgentChat, false)
		},
	}
}
