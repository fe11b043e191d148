// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultBaseURL is the upstream API used when no base URL is configured.
const DefaultBaseURL = "https://api.openai.com"

// CompletionsPath is the chat completions endpoint path. A beak relay
// serves the same path, so a client can point BaseURL at a relay.
const CompletionsPath = "/v1/chat/completions"

// DefaultTemperature is sent when a request does not set one.
const DefaultTemperature = 0.5

// Function call modes for [ChatRequest.FunctionCall].
const (
	FunctionCallAuto = "auto"
	FunctionCallNone = "none"
)

// OpenAIConfig configures an [OpenAI] client.
type OpenAIConfig struct {
	// APIKey is sent as a bearer token. May be empty when BaseURL
	// points at a relay that holds the key.
	APIKey string

	// BaseURL is the scheme and host (and optional path prefix) the
	// completions path is appended to. Default: DefaultBaseURL.
	BaseURL string

	// Model is used for requests that do not name one.
	// Default: DefaultModel.
	Model string

	// HTTPClient performs requests. Default: a client with no overall
	// timeout, since streamed responses are long-lived.
	HTTPClient *http.Client

	// UserAgent is sent as the User-Agent header when set.
	UserAgent string

	Logger *slog.Logger
}

// OpenAI sends streamed chat completion requests to an
// OpenAI-compatible endpoint.
type OpenAI struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewOpenAI creates a client from config, applying defaults.
func NewOpenAI(config OpenAIConfig) *OpenAI {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "chat-api")

	baseURL := config.BaseURL
	if baseURL == "" {
		if config.APIKey == "" {
			logger.Warn("no API key or base URL configured")
		}
		baseURL = DefaultBaseURL
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &OpenAI{
		apiKey:     config.APIKey,
		endpoint:   strings.TrimSuffix(baseURL, "/") + CompletionsPath,
		model:      model,
		httpClient: httpClient,
		userAgent:  config.UserAgent,
		logger:     logger,
	}
}

// Model returns the model used for requests that do not name one.
func (client *OpenAI) Model() string {
	return client.model
}

// Stream sends a streaming request and returns a decoder over the
// response body. The caller must Close the decoder.
func (client *OpenAI) Stream(ctx context.Context, request ChatRequest) (*StreamDecoder, error) {
	wireRequest := client.prepareRequest(request)

	client.logger.Debug("fetching chat completion",
		"model", wireRequest.Model,
		"messages", len(wireRequest.Messages),
		"functions", len(wireRequest.Functions),
		"function_call", wireRequest.FunctionCall,
	)

	headers := make(map[string]string, 2)
	if client.apiKey != "" {
		headers["Authorization"] = "Bearer " + client.apiKey
	}
	if client.userAgent != "" {
		headers["User-Agent"] = client.userAgent
	}

	httpResponse, err := doProviderRequest(ctx, client.httpClient,
		client.endpoint, wireRequest, headers, "llm/openai", true)
	if err != nil {
		client.logger.Debug("chat completion request failed", "error", err)
		return nil, err
	}

	return NewStreamDecoder(httpResponse.Body, client.logger), nil
}

// prepareRequest applies request defaults: the configured model, the
// default temperature, streaming, and function_call only when there
// are functions to call.
func (client *OpenAI) prepareRequest(request ChatRequest) ChatRequest {
	if request.Model == "" {
		request.Model = client.model
	}
	if request.Temperature == nil {
		temperature := DefaultTemperature
		request.Temperature = &temperature
	}
	if len(request.Functions) == 0 {
		request.Functions = nil
		request.FunctionCall = ""
	} else if request.FunctionCall == "" {
		request.FunctionCall = FunctionCallAuto
	}
	if request.Messages == nil {
		request.Messages = []ChatMessage{}
	}
	request.Stream = true
	return request
}

// --- Wire types ---
//
// ChatRequest and its parts are exported because the relay decodes
// client requests into them and forwards them upstream unchanged
// apart from defaults.

// ChatRequest is the JSON body of a chat completions request.
type ChatRequest struct {
	Model        string           `json:"model"`
	Messages     []ChatMessage    `json:"messages"`
	Functions    []FunctionSchema `json:"functions,omitempty"`
	FunctionCall string           `json:"function_call,omitempty"`
	Temperature  *float64         `json:"temperature,omitempty"`
	Stream       bool             `json:"stream"`
}

// ChatMessage is one message in a [ChatRequest].
type ChatMessage struct {
	Role         Role              `json:"role"`
	Content      string            `json:"content"`
	Name         string            `json:"name,omitempty"`
	FunctionCall *ChatFunctionCall `json:"function_call,omitempty"`
}

// ChatFunctionCall is a function call with JSON-encoded arguments.
type ChatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionSchema advertises a callable function. Parameters is a JSON
// Schema object.
type FunctionSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToChatMessage converts a message to its wire form. System messages
// carry only role and content, function-role messages add the
// function name, and other roles add the function call if any.
func ToChatMessage(message Message) ChatMessage {
	wire := ChatMessage{Role: message.Role, Content: message.Content}
	switch message.Role {
	case RoleSystem:
	case RoleFunction:
		wire.Name = message.Name
	default:
		if message.FunctionCall != nil {
			arguments, _ := json.Marshal(message.FunctionCall.Arguments)
			wire.FunctionCall = &ChatFunctionCall{
				Name:      message.FunctionCall.Name,
				Arguments: string(arguments),
			}
		}
	}
	return wire
}

// Streaming chunk types. Each chunk's first choice carries a delta
// with either a content fragment or a function call fragment.

type chatChunk struct {
	ID      string            `json:"id"`
	Model   string            `json:"model"`
	Choices []chatChunkChoice `json:"choices"`
	Error   *wireError        `json:"error,omitempty"`
}

type chatChunkChoice struct {
	Index        int       `json:"index"`
	Delta        chatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

type chatDelta struct {
	Role         string                 `json:"role,omitempty"`
	Content      *string                `json:"content"`
	FunctionCall *chatFunctionCallDelta `json:"function_call,omitempty"`
}

type chatFunctionCallDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
