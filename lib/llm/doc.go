// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm speaks the streamed, function-calling chat completions
// protocol and turns its byte stream into application-level events.
//
// The pipeline has two stages, both scoped to a single in-flight
// request:
//
//   - [StreamDecoder] reassembles "data: <json>" lines from the raw
//     response body, tolerating arbitrary read boundaries, skipping
//     malformed frames, and stopping at the "[DONE]" sentinel.
//   - [Completion] consumes decoded frames and tracks whether the
//     model is producing text or a function call. Text surfaces as
//     [EventContent]; function-call fragments surface as
//     [EventPartial] while they accumulate and as a single
//     [EventFunction] once the call is complete and its arguments have
//     been repaired and parsed.
//
// Both stages follow the io.EOF convention: Next returns io.EOF when
// the stream ended cleanly, and any other error is terminal.
//
// [OpenAI] sends requests to an OpenAI-compatible endpoint (the
// upstream API or a beak relay) and returns the decoder for the
// response body. The HTTP client is caller-supplied; the package never
// manages connections.
package llm
