package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ggcode-ai/ggcode/internal/agent"
	"github.com/ggcode-ai/ggcode/internal/commands"
	"github.com/ggcode-ai/ggcode/internal/config"
	"github.com/ggcode-ai/ggcode/internal/conversation"
	"github.com/ggcode-ai/ggcode/internal/llm"
	"github.com/ggcode-ai/ggcode/internal/parser"
	"github.com/ggcode-ai/ggcode/internal/prompts"
	"github.com/ggcode-ai/ggcode/internal/repl"
	"github.com/ggcode-ai/ggcode/internal/sessions"
	"github.com/ggcode-ai/ggcode/internal/tokens"
	"github.com/ggcode-ai/ggcode/internal/tools"
	"github.com/ggcode-ai/ggcode/internal/tools/builtin"
)

// runSession wires the whole stack and hands control to the REPL. withTools
// distinguishes the coding agent from the tool-less chat surface; both share
// every other component.
func runSession(ctx context.Context, opts *rootOptions, agentType string, withTools bool) error {
	cfg, cfgPath, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.model != "" {
		cfg.API.Model = opts.model
	}

	logger, closeLogs, err := setupLogging(opts.verbose)
	if err != nil {
		return err
	}
	defer closeLogs()
	logger.Info("starting ggcode",
		"version", version,
		"agent_type", agentType,
		"config", cfgPath,
		"mode", cfg.API.Mode,
	)

	workDir := opts.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
	} else if workDir, err = filepath.Abs(workDir); err != nil {
		return fmt.Errorf("resolve workdir flag: %w", err)
	}

	model := cfg.API.Model
	if model == "" && len(cfg.API.Models) > 0 {
		model = cfg.API.Models[0]
	}
	base, err := llm.New(llm.Config{
		Mode:      cfg.API.Mode,
		BaseURL:   cfg.API.BaseURL,
		APIKey:    cfg.API.APIKey,
		Model:     model,
		AppID:     cfg.API.AppID,
		AppSecret: cfg.API.AppSecret,
	}, logger)
	if err != nil {
		return fmt.Errorf("configure transport: %w", err)
	}
	client := llm.NewSwitchable(base)

	gate := llm.NewGate(llm.GateOptions{})
	defer gate.Drain()

	reg := tools.NewRegistry(logger)
	if withTools {
		if err := builtin.Register(reg); err != nil {
			return fmt.Errorf("register tools: %w", err)
		}
	}
	exec := tools.NewExecutor(reg, tools.ExecutorOptions{WorkDir: workDir, Logger: logger})

	conv := conversation.NewManager(conversation.ManagerConfig{
		MaxTokens: cfg.Agent.MaxContextTokens,
	})
	compactor := conversation.NewCompactor(conversation.CompactorConfig{
		Enabled:             cfg.Agent.AutoCompress,
		MaxTokens:           cfg.Agent.MaxContextTokens,
		ReserveTokens:       compressReserve(cfg),
		EnableDeduplication: true,
		EnableSummarization: true,
	})

	store, err := sessions.NewStore(sessions.Options{
		Root:            config.SessionsDir(),
		MaxSessions:     cfg.Sessions.MaxSessions,
		MaxInactiveDays: cfg.Sessions.MaxInactiveDays,
		PreserveRecent:  cfg.Sessions.PreserveRecentSessions,
		AutoCleanup:     cfg.Sessions.AutoCleanup,
		CleanupEvery:    time.Duration(cfg.Sessions.CleanupIntervalHours) * time.Hour,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	if cfg.Sessions.AutoCleanup {
		if err := store.StartCleanup(); err != nil {
			logger.Warn("session cleanup disabled", "error", err)
		} else {
			defer store.StopCleanup()
		}
	}

	sess, err := store.Current()
	if err != nil {
		return fmt.Errorf("read current session: %w", err)
	}
	if sess == nil {
		if sess, err = store.Create("", agentType, ""); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		logger.Info("created session", "id", sess.ID)
	} else {
		ctxPath := store.ContextPath(sess.ID)
		if _, statErr := os.Stat(ctxPath); statErr == nil {
			if loadErr := conv.LoadContext(ctxPath); loadErr != nil {
				logger.Warn("context restore failed", "session", sess.ID, "error", loadErr)
			}
		}
		logger.Info("resumed session", "id", sess.ID, "title", sess.Title)
	}

	promptReg := reg
	if !withTools {
		promptReg = nil
	}
	composer := prompts.NewComposer(prompts.Config{
		OverlayDir: config.PromptsDir(),
		Registry:   promptReg,
		Logger:     logger,
	})

	subs, err := agent.NewSubagents(agent.SubagentsConfig{
		Client:  client,
		Gate:    gate,
		Prompts: composer,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("configure subagents: %w", err)
	}

	// Generation settings are read per request so /setting edits and config
	// file reloads apply mid-session. The mutex covers the watcher.
	var genMu sync.Mutex
	genOptions := func() llm.Options {
		genMu.Lock()
		mc := cfg.ModelConfig
		genMu.Unlock()
		return llm.Options{
			Temperature:       &mc.Temperature,
			TopP:              &mc.TopP,
			TopK:              &mc.TopK,
			RepetitionPenalty: &mc.RepetitionPenalty,
		}
	}

	switchModel := func(model string) error {
		next, err := llm.New(llm.Config{
			Mode:      cfg.API.Mode,
			BaseURL:   cfg.API.BaseURL,
			APIKey:    cfg.API.APIKey,
			Model:     model,
			AppID:     cfg.API.AppID,
			AppSecret: cfg.API.AppSecret,
		}, logger)
		if err != nil {
			return err
		}
		client.Swap(next)
		logger.Info("switched model", "model", model)
		return nil
	}

	cmdReg := commands.NewRegistry(logger)
	commands.RegisterBuiltins(cmdReg, commands.Deps{
		Conversation: conv,
		Compactor:    compactor,
		Sessions:     store,
		Config:       cfg,
		ConfigPath:   cfgPath,
		WorkDir:      workDir,
		Registry:     reg,
		Subagents:    subs,
		Estimate:     tokens.Estimate,
		Version:      version,
		SwitchModel:  switchModel,
	})

	front := repl.New(repl.Config{
		Commands:  cmdReg,
		Sessions:  store,
		AgentType: agentType,
		Banner:    banner(agentType, client.Name()),
		Logger:    logger,
	})

	summaryEvery := cfg.Agent.SummaryEvery
	if summaryEvery == 0 {
		summaryEvery = -1
	}
	orch, err := agent.NewOrchestrator(agent.Config{
		Client:       client,
		Gate:         gate,
		Executor:     exec,
		Parser:       parser.New(reg),
		Conversation: conv,
		Compactor:    compactor,
		Sessions:     store,
		Prompts:      composer,
		Subagents:    subs,
		Logger:       logger,
		GenOptions:   genOptions,
		Run: agent.RunConfig{
			AgentType:         agentType,
			MaxIterations:     cfg.Agent.MaxIterations,
			AutoApprove:       cfg.Agent.AutoApprove,
			DangerousPatterns: cfg.Agent.DangerousPatterns,
			WorkingDirectory:  workDir,
			Approve:           front.Approve,
			Status:            front.Status,
			SummaryEvery:      summaryEvery,
		},
	})
	if err != nil {
		return fmt.Errorf("configure agent: %w", err)
	}
	front.Bind(orch)
	defer orch.Wait()

	// Live reload: edits to the config file adjust generation settings and
	// compression toggles without restarting the session.
	watcher, err := config.Watch(ctx, cfgPath, func(next *config.Config) {
		genMu.Lock()
		cfg.ModelConfig = next.ModelConfig
		cfg.Agent.AutoCompress = next.Agent.AutoCompress
		cfg.Agent.CompressThreshold = next.Agent.CompressThreshold
		genMu.Unlock()
	}, config.WatchOptions{Logger: logger})
	if err != nil {
		logger.Warn("config watch disabled", "error", err)
	} else {
		defer watcher.Close()
	}

	return front.Run(ctx)
}

// loadConfig resolves the config path and loads it. A missing file at the
// default path falls back to defaults; anything else that fails to load or
// validate exits with code 2.
func loadConfig(opts *rootOptions) (*config.Config, string, error) {
	path := opts.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && opts.configPath == "" {
			return config.Default(), path, nil
		}
		return nil, path, configError(err)
	}
	return cfg, path, nil
}

// setupLogging routes logs to ${HOME}/.ggcode/ggcode.log, keeping stdout for
// the REPL. verbose mirrors everything to stderr at debug level.
func setupLogging(verbose bool) (*slog.Logger, func(), error) {
	dir := config.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create state dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(dir, "ggcode.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	var sink io.Writer = file
	if verbose {
		level = slog.LevelDebug
		sink = io.MultiWriter(file, os.Stderr)
	}
	logger := slog.New(slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, func() { file.Close() }, nil
}

// compressReserve derives the compactor headroom from the configured
// threshold, floored by the explicit reserve, so compaction triggers at
// threshold * max_context_tokens.
func compressReserve(cfg *config.Config) int {
	reserve := cfg.Agent.CompressReserve
	byThreshold := cfg.Agent.MaxContextTokens - int(float64(cfg.Agent.MaxContextTokens)*cfg.Agent.CompressThreshold)
	if byThreshold > reserve {
		reserve = byThreshold
	}
	return reserve
}

func banner(agentType, transport string) string {
	return fmt.Sprintf("ggcode %s (%s agent, %s transport)\nType /help for commands, /exit to quit.",
		version, agentType, transport)
}
