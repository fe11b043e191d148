// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/beak/lib/clock"
)

// Limiter defaults.
const (
	DefaultRequestsPerSecond         = 10
	DefaultMaxConcurrent             = 2
	DefaultRequestsPerSecondByClient = 0.5
	DefaultMaxConcurrentByClient     = 1
)

// LimiterOptions configures the global and per-client limiters. Zero
// values take the defaults above.
type LimiterOptions struct {
	RequestsPerSecond         float64
	MaxConcurrent             int
	RequestsPerSecondByClient float64
	MaxConcurrentByClient     int

	// Redis moves limiter state into Redis when set.
	Redis *RedisOptions
}

// RedisOptions locates the Redis server holding shared limiter state.
type RedisOptions struct {
	// Address is the host name or IP address.
	Address string

	// Port defaults to DefaultRedisPort.
	Port int

	Password string
	DB       int

	// KeyPrefix defaults to DefaultRedisKeyPrefix.
	KeyPrefix string
}

func (options LimiterOptions) withDefaults() LimiterOptions {
	if options.RequestsPerSecond <= 0 {
		options.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if options.MaxConcurrent <= 0 {
		options.MaxConcurrent = DefaultMaxConcurrent
	}
	if options.RequestsPerSecondByClient <= 0 {
		options.RequestsPerSecondByClient = DefaultRequestsPerSecondByClient
	}
	if options.MaxConcurrentByClient <= 0 {
		options.MaxConcurrentByClient = DefaultMaxConcurrentByClient
	}
	if options.Redis != nil {
		redisOptions := *options.Redis
		if redisOptions.Port == 0 {
			redisOptions.Port = DefaultRedisPort
		}
		if redisOptions.KeyPrefix == "" {
			redisOptions.KeyPrefix = DefaultRedisKeyPrefix
		}
		options.Redis = &redisOptions
	}
	return options
}

// Config holds the configuration for creating a [Relay].
type Config struct {
	// APIKey authenticates upstream requests. Falls back to the
	// OPENAI_API_KEY environment variable; one of them is required.
	APIKey string

	// BaseURL is the upstream API. Default: llm.DefaultBaseURL.
	BaseURL string

	// Model is used for requests that do not name one.
	Model string

	Limits LimiterOptions

	// HTTPClient performs upstream requests.
	HTTPClient *http.Client

	// UserAgent is sent upstream when set.
	UserAgent string

	Logger *slog.Logger

	// Clock drives limiter waits. Default: clock.Real().
	Clock clock.Clock

	// Registerer receives the relay's metrics. Nil leaves them
	// unregistered.
	Registerer prometheus.Registerer
}
