// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/bureau-foundation/beak/lib/llm"
)

// ErrUnknownFunction is reported when the model calls a function that
// is not registered.
var ErrUnknownFunction = errors.New("function not found")

// Feedback controls whether a function's result is sent back to the
// model for another round.
type Feedback string

const (
	// FeedbackAuto sends the result back and lets the model call more
	// functions. It is the zero value's meaning.
	FeedbackAuto Feedback = "auto"

	// FeedbackNone ends the turn after the handler returns, unless
	// another function in the same round asks for feedback.
	FeedbackNone Feedback = "none"

	// FeedbackText sends the result back and requires the model to
	// answer in plain text.
	FeedbackText Feedback = "text"
)

// Handler executes a function call. It receives the parsed arguments
// and returns a value that is serialized into the function-role
// message: strings verbatim, everything else as JSON.
type Handler func(ctx context.Context, arguments map[string]any) (any, error)

// FunctionDefinition is a function the model may call.
type FunctionDefinition struct {
	Name        string `validate:"required"`
	Description string
	Parameters  map[string]llm.Parameter

	// Feedback defaults to FeedbackAuto.
	Feedback Feedback `validate:"omitempty,oneof=auto none text"`

	Handler Handler `validate:"required"`
}

// feedback returns the effective feedback mode.
func (definition FunctionDefinition) feedback() Feedback {
	if definition.Feedback == "" {
		return FeedbackAuto
	}
	return definition.Feedback
}

// wire returns the definition as advertised to the model.
func (definition FunctionDefinition) wire() llm.Function {
	return llm.Function{
		Name:        definition.Name,
		Description: definition.Description,
		Parameters:  definition.Parameters,
	}
}

var validate = validator.New()

func validateDefinition(definition FunctionDefinition) error {
	if err := validate.Struct(definition); err != nil {
		return fmt.Errorf("conversation: invalid function %q: %w", definition.Name, err)
	}
	for name, parameter := range definition.Parameters {
		switch parameter.Type {
		case "", "string", "number":
		default:
			return fmt.Errorf("conversation: function %q parameter %q: unsupported type %q",
				definition.Name, name, parameter.Type)
		}
	}
	return nil
}
