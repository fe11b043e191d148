// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// Status is the lifecycle state of a message. Content may change while
// a message is pending or partial and is frozen once it reaches
// success or error.
type Status string

const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// FunctionCall is a function invocation requested by the model.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Copy returns a deep copy of the call.
func (call *FunctionCall) Copy() *FunctionCall {
	if call == nil {
		return nil
	}
	arguments, _ := cloneValue(call.Arguments).(map[string]any)
	return &FunctionCall{Name: call.Name, Arguments: arguments}
}

// Message is one unit of conversation.
type Message struct {
	// ID is assigned at creation and never changes.
	ID string

	Role    Role
	Content string
	Status  Status

	// FunctionCall is set only on assistant messages that invoked a
	// function.
	FunctionCall *FunctionCall

	// Name is the function that produced a function-role message.
	Name string

	// Result is the raw value returned by a function handler.
	// Content holds its serialized form.
	Result any

	// NumTokens is the message's estimated cost against the prompt
	// budget. Zero means not yet computed.
	NumTokens int

	CreatedAt time.Time
}

// NewMessage returns a pending message with a fresh ID.
func NewMessage(role Role, createdAt time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Status:    StatusPending,
		CreatedAt: createdAt,
	}
}

// Copy returns an independent snapshot of the message. The function
// call arguments and the handler result are cloned so that mutating
// the copy never reaches the original.
func (message Message) Copy() Message {
	message.FunctionCall = message.FunctionCall.Copy()
	message.Result = cloneValue(message.Result)
	return message
}

// cloneValue deep-copies JSON-shaped values (maps, slices, scalars).
// Other values are returned as-is.
func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		if typed == nil {
			return typed
		}
		clone := make(map[string]any, len(typed))
		for key, element := range typed {
			clone[key] = cloneValue(element)
		}
		return clone
	case []any:
		if typed == nil {
			return typed
		}
		clone := make([]any, len(typed))
		for i, element := range typed {
			clone[i] = cloneValue(element)
		}
		return clone
	default:
		return value
	}
}

// Parameter describes one argument of a callable function. Type is
// "string" or "number"; an empty Type means "string". When Enum is
// non-empty the argument is restricted to those strings.
type Parameter struct {
	Description string
	Type        string
	Enum        []string
	Optional    bool
}

// Function is a callable capability advertised to the model.
type Function struct {
	Name        string
	Description string
	Parameters  map[string]Parameter
}

// Schema converts the function to its wire definition: a JSON Schema
// object whose properties are the parameters and whose required list
// contains every parameter not marked Optional.
func (function Function) Schema() FunctionSchema {
	names := make([]string, 0, len(function.Parameters))
	for name := range function.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)

	properties := make(map[string]jsonSchemaProperty, len(names))
	var required []string
	for _, name := range names {
		parameter := function.Parameters[name]
		property := jsonSchemaProperty{
			Type:        parameter.Type,
			Description: parameter.Description,
		}
		if property.Type == "" {
			property.Type = "string"
		}
		if len(parameter.Enum) > 0 {
			property.Type = "string"
			property.Enum = parameter.Enum
		}
		properties[name] = property
		if !parameter.Optional {
			required = append(required, name)
		}
	}

	parameters, _ := json.Marshal(jsonSchemaObject{
		Type:       "object",
		Properties: properties,
		Required:   required,
	})

	return FunctionSchema{
		Name:        function.Name,
		Description: function.Description,
		Parameters:  parameters,
	}
}

type jsonSchemaObject struct {
	Type       string                        `json:"type"`
	Properties map[string]jsonSchemaProperty `json:"properties"`
	Required   []string                      `json:"required,omitempty"`
}

type jsonSchemaProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}
