// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/beak/lib/config"
	"github.com/bureau-foundation/beak/lib/version"
	"github.com/bureau-foundation/beak/relay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var listen string
	var debug bool

	flagSet := pflag.NewFlagSet("beak-relay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $BEAK_CONFIG)")
	flagSet.StringVar(&listen, "listen", "", "override relay.listen")
	flagSet.BoolVar(&debug, "debug", false, "log at debug level")
	showVersion := flagSet.Bool("version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if *showVersion {
		version.Print("beak-relay")
		return nil
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if listen != "" {
		cfg.Relay.Listen = listen
	}
	if err := cfg.ValidateRelay(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger.Info("starting beak-relay",
		"version", version.Info(),
		"environment", cfg.Environment,
		"listen", cfg.Relay.Listen,
		"redis", cfg.Relay.Redis != nil,
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server, err := relay.New(relayConfig(cfg, logger, registry))
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}
	defer server.Close()

	mux := http.NewServeMux()
	if cfg.Relay.MetricsPath != "" {
		mux.Handle(cfg.Relay.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", relay.NewHandler(server, relay.HandlerConfig{
		ClientKey: clientKeyFromHeader(cfg.Relay.ClientKeyHeader),
		Logger:    logger,
	}))

	listener, err := net.Listen("tcp", cfg.Relay.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", cfg.Relay.Listen, err)
	}
	httpServer := &http.Server{
		Handler:  mux,
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()
	logger.Info("relay listening", "address", listener.Addr().String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}
	logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Relay.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// loadConfig loads the file named by --config, falling back to
// BEAK_CONFIG.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func relayConfig(cfg *config.Config, logger *slog.Logger, registerer prometheus.Registerer) relay.Config {
	limits := relay.LimiterOptions{
		RequestsPerSecond:         cfg.Relay.RequestsPerSecond,
		MaxConcurrent:             cfg.Relay.MaxConcurrent,
		RequestsPerSecondByClient: cfg.Relay.RequestsPerSecondByClient,
		MaxConcurrentByClient:     cfg.Relay.MaxConcurrentByClient,
	}
	if redis := cfg.Relay.Redis; redis != nil {
		limits.Redis = &relay.RedisOptions{
			Address:   redis.Address,
			Port:      redis.Port,
			Password:  redis.Password,
			DB:        redis.DB,
			KeyPrefix: redis.KeyPrefix,
		}
	}
	return relay.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.Model,
		Limits:     limits,
		UserAgent:  version.UserAgent("beak-relay"),
		Logger:     logger,
		Registerer: registerer,
	}
}

func clientKeyFromHeader(header string) func(*http.Request) string {
	if header == "" {
		return nil
	}
	return func(r *http.Request) string {
		return r.Header.Get(header)
	}
}
