// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/beak/lib/config"
	"github.com/bureau-foundation/beak/lib/conversation"
	"github.com/bureau-foundation/beak/lib/llm"
	llmcontext "github.com/bureau-foundation/beak/lib/llm/context"
	"github.com/bureau-foundation/beak/lib/tui"
	"github.com/bureau-foundation/beak/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var manifestPath string
	var model string
	var baseURL string
	var logOutput string
	var debug bool

	flagSet := pflag.NewFlagSet("beak", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $BEAK_CONFIG, or built-in defaults)")
	flagSet.StringVar(&manifestPath, "manifest", "", "JSONC function manifest (overrides chat.manifest)")
	flagSet.StringVarP(&model, "model", "m", "", "model name (overrides openai.model)")
	flagSet.StringVar(&baseURL, "base-url", "", "API or relay root URL (overrides openai.base_url)")
	flagSet.StringVar(&logOutput, "log-output", "", "write JSON log records to this file")
	flagSet.BoolVar(&debug, "debug", false, "log at debug level")
	showVersion := flagSet.Bool("version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		version.Print("beak")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if model != "" {
		cfg.OpenAI.Model = model
	}
	if baseURL != "" {
		cfg.OpenAI.BaseURL = baseURL
	}
	if manifestPath != "" {
		cfg.Chat.Manifest = manifestPath
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, closeLog, err := newLogger(logOutput, debug)
	if err != nil {
		return err
	}
	defer closeLog()

	conv, err := newConversation(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer := tui.NewRenderer(os.Stdout, tui.DefaultTheme)
	return newSession(conv, renderer).run(ctx, os.Stdin)
}

// loadConfig loads --config or BEAK_CONFIG when either is set, and
// otherwise resolves the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("BEAK_CONFIG") != "" {
		return config.Load()
	}
	cfg := config.Default()
	cfg.Resolve()
	return cfg, nil
}

// newLogger logs to logOutput as JSON, or discards records when no
// file is given so they do not interleave with the conversation.
func newLogger(logOutput string, debug bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	if logOutput == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	file, err := os.OpenFile(logOutput, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log output: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	return logger, func() { file.Close() }, nil
}

// newConversation builds a conversation against the configured API,
// with the manifest's functions and info entries registered.
func newConversation(cfg *config.Config, logger *slog.Logger) (*conversation.Conversation, error) {
	client := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:    cfg.OpenAI.APIKey,
		BaseURL:   cfg.OpenAI.BaseURL,
		Model:     cfg.OpenAI.Model,
		UserAgent: version.UserAgent("beak"),
		Logger:    logger,
	})
	adapter := conversation.NewOpenAIAdapter(client, llmcontext.NewCharEstimator(), logger)

	conv, err := conversation.New(conversation.Config{
		MaxFeedback:            cfg.Chat.MaxFeedback,
		Instructions:           cfg.Chat.Instructions,
		FormattingInstructions: cfg.Chat.FormattingInstructions,
		Temperature:            cfg.Chat.Temperature,
		MaxTokens:              cfg.Chat.MaxTokens,
		Logger:                 logger,
	}, adapter)
	if err != nil {
		return nil, err
	}

	if cfg.Chat.Manifest == "" {
		return conv, nil
	}
	manifest, err := ReadManifest(cfg.Chat.Manifest)
	if err != nil {
		return nil, err
	}
	for _, definition := range manifest.Definitions() {
		if err := conv.AddFunction(definition); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Chat.Manifest, err)
		}
	}
	for _, info := range manifest.Info {
		conv.AddInfo(info.Description, info.Data)
	}
	logger.Info("manifest loaded",
		"path", cfg.Chat.Manifest,
		"functions", len(manifest.Functions),
		"info", len(manifest.Info),
	)
	return conv, nil
}
