// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/bureau-foundation/beak/lib/clock"
	"github.com/bureau-foundation/beak/lib/llm"
)

// Relay forwards chat completion requests upstream behind rate
// limiters. It is safe for concurrent use.
type Relay struct {
	upstream *llm.OpenAI
	global   Limiter
	clients  LimiterGroup
	redis    *redis.Client
	metrics  *Metrics
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates a relay from config, applying defaults.
func New(config Config) (*Relay, error) {
	if config.APIKey == "" {
		config.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if config.APIKey == "" {
		return nil, errors.New("relay: API key is required (set APIKey or OPENAI_API_KEY)")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}

	metrics, err := NewMetrics(config.Registerer)
	if err != nil {
		return nil, fmt.Errorf("relay: registering metrics: %w", err)
	}

	upstream := llm.NewOpenAI(llm.OpenAIConfig{
		APIKey:     config.APIKey,
		BaseURL:    config.BaseURL,
		Model:      config.Model,
		HTTPClient: config.HTTPClient,
		UserAgent:  config.UserAgent,
		Logger:     logger,
	})
	logger = logger.With("component", "relay")

	relay := &Relay{
		upstream: upstream,
		metrics:  metrics,
		clock:    clk,
		logger:   logger,
	}

	limits := config.Limits.withDefaults()
	if limits.Redis == nil {
		relay.global = NewLocalLimiter(limits.MaxConcurrent, limits.RequestsPerSecond, clk)
		relay.clients = NewLocalGroup(limits.MaxConcurrentByClient, limits.RequestsPerSecondByClient, clk)
		return relay, nil
	}

	relay.redis = redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(limits.Redis.Address, strconv.Itoa(limits.Redis.Port)),
		Password: limits.Redis.Password,
		DB:       limits.Redis.DB,
	})
	relay.global = NewRedisLimiter(relay.redis, RedisLimiterConfig{
		Key:               limits.Redis.KeyPrefix + "global",
		MaxConcurrent:     limits.MaxConcurrent,
		RequestsPerSecond: limits.RequestsPerSecond,
		Clock:             clk,
		Logger:            logger,
	})
	relay.clients = NewRedisGroup(relay.redis, RedisLimiterConfig{
		Key:               limits.Redis.KeyPrefix + "client",
		MaxConcurrent:     limits.MaxConcurrentByClient,
		RequestsPerSecond: limits.RequestsPerSecondByClient,
		Clock:             clk,
		Logger:            logger,
	})
	logger.Info("limiter state in redis", "address", relay.redis.Options().Addr)
	return relay, nil
}

// Close releases the Redis connection, if any.
func (relay *Relay) Close() error {
	if relay.redis != nil {
		return relay.redis.Close()
	}
	return nil
}

// Metrics returns the relay's collectors.
func (relay *Relay) Metrics() *Metrics {
	return relay.metrics
}

// HandleRequest waits for the limiters, sends request upstream and
// forwards every frame of the response to sink. A non-empty clientKey
// selects a per-client limiter.
//
// Failures are reported to sink.Error and returned. When sink.Data
// fails the stream is abandoned and that error is returned without
// calling sink.Error.
func (relay *Relay) HandleRequest(ctx context.Context, clientKey string, request llm.ChatRequest, sink Sink) error {
	fingerprint := Fingerprint(clientKey)
	logger := relay.logger
	if fingerprint != "" {
		logger = logger.With("client", fingerprint)
	}

	release, err := relay.admit(ctx, clientKey)
	if err != nil {
		relay.metrics.Requests.WithLabelValues(outcomeLimiterError).Inc()
		logger.Warn("relay request not admitted", "error", err)
		sink.Error(err)
		return err
	}
	defer release()

	relay.metrics.InFlight.Inc()
	defer relay.metrics.InFlight.Dec()

	start := relay.clock.Now()
	decoder, err := relay.upstream.Stream(ctx, request)
	if err != nil {
		relay.metrics.Requests.WithLabelValues(outcomeUpstreamError).Inc()
		logger.Warn("upstream request failed", "error", err)
		sink.Error(err)
		return err
	}
	defer decoder.Close()

	frames := 0
	for {
		frame, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			relay.metrics.Requests.WithLabelValues(outcomeStreamError).Inc()
			logger.Warn("upstream stream failed", "error", err, "frames", frames)
			sink.Error(err)
			return err
		}
		if err := sink.Data(frame); err != nil {
			relay.metrics.Requests.WithLabelValues(outcomeClientGone).Inc()
			logger.Info("client went away during stream", "error", err, "frames", frames)
			return fmt.Errorf("relay: writing to client: %w", err)
		}
		frames++
		relay.metrics.FramesForwarded.Inc()
	}

	if err := sink.End(); err != nil {
		relay.metrics.Requests.WithLabelValues(outcomeClientGone).Inc()
		return fmt.Errorf("relay: ending client stream: %w", err)
	}
	relay.metrics.Requests.WithLabelValues(outcomeCompleted).Inc()
	logger.Info("relay request completed",
		"frames", frames,
		"duration", relay.clock.Now().Sub(start),
	)
	return nil
}

// admit passes the limiters for one request and returns the release
// for the limiter held during the upstream call.
func (relay *Relay) admit(ctx context.Context, clientKey string) (func(), error) {
	release, err := relay.acquire(ctx, relay.global, scopeGlobal)
	if err != nil {
		return nil, err
	}
	if clientKey == "" {
		return release, nil
	}

	// With a client key the global limiter only spaces starts; the
	// client's limiter bounds the call.
	release()
	return relay.acquire(ctx, relay.clients.Key(clientKey), scopeClient)
}

func (relay *Relay) acquire(ctx context.Context, limiter Limiter, scope string) (func(), error) {
	start := relay.clock.Now()
	release, err := limiter.Acquire(ctx)
	relay.metrics.LimiterWait.WithLabelValues(scope).Observe(relay.clock.Now().Sub(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("relay: waiting for %s limiter: %w", scope, err)
	}
	return release, nil
}
