// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// ProviderError is returned when the completions API responds with an
// error, either as a non-200 HTTP status or as an error object inside
// the stream.
type ProviderError struct {
	// StatusCode is the HTTP status code. Errors reported inside an
	// otherwise successful stream carry 200.
	StatusCode int

	// Type is the provider-specific error type string
	// (e.g., "invalid_request_error", "rate_limit_error").
	Type string

	// Message is the human-readable error description.
	Message string
}

func (err *ProviderError) Error() string {
	if err.Type != "" {
		return fmt.Sprintf("llm: HTTP %d: %s: %s", err.StatusCode, err.Type, err.Message)
	}
	return fmt.Sprintf("llm: HTTP %d: %s", err.StatusCode, err.Message)
}

// IsRateLimited returns true if the error is a rate limit response (HTTP 429).
func (err *ProviderError) IsRateLimited() bool {
	return err.StatusCode == http.StatusTooManyRequests
}

// doProviderRequest marshals wireRequest as JSON, POSTs it to endpoint
// via httpClient with the given extra headers, and returns the HTTP
// response. Returns a ProviderError for non-200 status codes. When
// streaming is true, the Accept header is set to text/event-stream.
//
// On success the caller is responsible for closing the response body.
// On error the body is already closed.
func doProviderRequest(ctx context.Context, httpClient *http.Client, endpoint string, wireRequest any, headers map[string]string, prefix string, streaming bool) (*http.Response, error) {
	body, err := json.Marshal(wireRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: marshaling request: %w", prefix, err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: creating request: %w", prefix, err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	if streaming {
		httpRequest.Header.Set("Accept", "text/event-stream")
	}
	for name, value := range headers {
		httpRequest.Header.Set(name, value)
	}

	httpResponse, err := httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("%s: sending request: %w", prefix, err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		defer httpResponse.Body.Close()
		return nil, readProviderError(httpResponse)
	}

	if httpResponse.Body == nil || httpResponse.Body == http.NoBody {
		return nil, fmt.Errorf("%s: response body is empty", prefix)
	}

	return httpResponse, nil
}

// readProviderError parses an error response body in the provider
// error format {"error":{"type":"...","message":"..."}}. Extra fields
// in the error object (such as "code" and "param") are ignored. A body
// in any other shape becomes the message verbatim.
func readProviderError(httpResponse *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 4096))

	var wire struct {
		Error *wireError `json:"error"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Error != nil && wire.Error.Message != "" {
		return &ProviderError{
			StatusCode: httpResponse.StatusCode,
			Type:       wire.Error.Type,
			Message:    wire.Error.Message,
		}
	}

	message := string(bytes.TrimSpace(body))
	if message == "" {
		message = http.StatusText(httpResponse.StatusCode)
	}
	return &ProviderError{
		StatusCode: httpResponse.StatusCode,
		Message:    message,
	}
}
