// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay forwards streamed chat completion requests to the
// upstream API behind a global and a per-client rate limiter, so that
// browser clients can use the API without holding its key.
//
// A limiter admits a job when fewer than its concurrency limit are
// running and at least its minimum spacing has passed since the
// previous job started. The relay passes every request through the
// global limiter. Requests that carry a client key then wait for that
// client's limiter and hold it for the whole upstream call; requests
// without a key hold the global limiter instead.
//
// Limiter state lives in process ([NewLocalLimiter], [NewLocalGroup])
// or in Redis ([NewRedisLimiter], [NewRedisGroup]) when several relay
// processes share one API key.
//
// [Relay.HandleRequest] writes upstream frames to a [Sink] unparsed.
// [NewHandler] adapts it to HTTP: POST requests to a path ending in
// /v1/chat/completions receive "data: <json>" lines terminated by
// "data: [DONE]".
//
// Client keys never appear in logs, metrics, or Redis keys; they are
// replaced by [Fingerprint].
package relay
