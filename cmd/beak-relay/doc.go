// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Beak-relay serves the chat completions endpoint on behalf of clients
// that must not hold the upstream API key. Requests are admitted by a
// global rate limiter and, when the configured client key header is
// present, by a per-client limiter. Limiter state is kept in process or
// in Redis.
//
// Configuration comes from --config or BEAK_CONFIG (see lib/config).
// Prometheus metrics are served on relay.metrics_path.
package main
