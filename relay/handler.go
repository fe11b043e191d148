// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bureau-foundation/beak/lib/llm"
)

// maxRequestBody bounds the size of an incoming completion request.
const maxRequestBody = 4 << 20

// doneLine terminates every successful response stream.
const doneLine = "data: [DONE]\n"

// HandlerConfig configures the HTTP front of a [Relay].
type HandlerConfig struct {
	// ClientKey extracts the per-client limiter key from a request.
	// Nil, or an empty result, applies only the global limiter.
	ClientKey func(*http.Request) string

	Logger *slog.Logger
}

// Handler serves POST requests to any path ending in
// llm.CompletionsPath. The request body is a chat completion request;
// the response is one "data: <json>" line per upstream frame followed
// by "data: [DONE]".
type Handler struct {
	relay     *Relay
	clientKey func(*http.Request) string
	logger    *slog.Logger
}

// NewHandler creates a handler in front of relay.
func NewHandler(relay *Relay, config HandlerConfig) *Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		relay:     relay,
		clientKey: config.ClientKey,
		logger:    logger.With("component", "relay-http"),
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, llm.CompletionsPath) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	var request llm.ChatRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&request); err != nil {
		h.logger.Warn("decoding completion request", "error", err)
		http.Error(w, fmt.Sprintf("Error: decoding request body: %v", err), http.StatusInternalServerError)
		return
	}

	var clientKey string
	if h.clientKey != nil {
		clientKey = h.clientKey(r)
	}

	sink := &httpSink{writer: w, logger: h.logger}
	sink.flusher, _ = w.(http.Flusher)

	// Failures are reported through the sink; the returned error only
	// matters for logging, which HandleRequest already does.
	_ = h.relay.HandleRequest(r.Context(), clientKey, request, sink)
}

// httpSink writes relayed frames to an HTTP response. Headers are sent
// with the first frame, so a failure before any frame can still become
// a 500.
type httpSink struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	logger  *slog.Logger
	started bool
}

func (sink *httpSink) start() {
	if sink.started {
		return
	}
	sink.started = true
	header := sink.writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("X-Content-Type-Options", "nosniff")
	sink.writer.WriteHeader(http.StatusOK)
}

func (sink *httpSink) Data(frame json.RawMessage) error {
	sink.start()
	if _, err := fmt.Fprintf(sink.writer, "data: %s\n", frame); err != nil {
		return err
	}
	if sink.flusher != nil {
		sink.flusher.Flush()
	}
	return nil
}

func (sink *httpSink) End() error {
	sink.start()
	if _, err := io.WriteString(sink.writer, doneLine); err != nil {
		return err
	}
	if sink.flusher != nil {
		sink.flusher.Flush()
	}
	return nil
}

func (sink *httpSink) Error(err error) {
	if sink.started {
		// The status line is gone; the client sees a stream without
		// the done line.
		sink.logger.Warn("completion stream failed after response started", "error", err)
		return
	}
	status := http.StatusInternalServerError
	var providerErr *llm.ProviderError
	if errors.As(err, &providerErr) && providerErr.IsRateLimited() {
		status = http.StatusTooManyRequests
	}
	http.Error(sink.writer, "Error: "+err.Error(), status)
}
