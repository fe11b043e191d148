// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/beak/lib/conversation"
	"github.com/bureau-foundation/beak/lib/llm"
)

// Manifest declares the functions and info entries of a chat session.
type Manifest struct {
	Functions []ManifestFunction `json:"functions"`
	Info      []ManifestInfo     `json:"info"`
}

// ManifestFunction is a function backed by an external command.
type ManifestFunction struct {
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	Parameters  map[string]ManifestParameter `json:"parameters"`

	// Feedback is "auto" (default), "none", or "text".
	Feedback string `json:"feedback"`

	// Command is the argv of the process run for each call.
	Command []string `json:"command"`
}

// ManifestParameter describes one function parameter.
type ManifestParameter struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum"`
	Optional    bool     `json:"optional"`
}

// ManifestInfo is a piece of context data shown to the model.
type ManifestInfo struct {
	Description string `json:"description"`
	Data        any    `json:"data"`
}

// ParseManifest strips JSONC comments and trailing commas from data,
// then unmarshals the result.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	for i, function := range manifest.Functions {
		if len(function.Command) == 0 {
			return nil, fmt.Errorf("parsing manifest: function %d (%q) has no command", i, function.Name)
		}
	}
	return &manifest, nil
}

// ReadManifest reads and parses a JSONC manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return manifest, nil
}

// Definitions converts the manifest's functions into conversation
// function definitions with command-running handlers.
func (manifest *Manifest) Definitions() []conversation.FunctionDefinition {
	definitions := make([]conversation.FunctionDefinition, 0, len(manifest.Functions))
	for _, function := range manifest.Functions {
		parameters := make(map[string]llm.Parameter, len(function.Parameters))
		for name, parameter := range function.Parameters {
			parameters[name] = llm.Parameter{
				Description: parameter.Description,
				Type:        parameter.Type,
				Enum:        parameter.Enum,
				Optional:    parameter.Optional,
			}
		}
		definitions = append(definitions, conversation.FunctionDefinition{
			Name:        function.Name,
			Description: function.Description,
			Parameters:  parameters,
			Feedback:    conversation.Feedback(function.Feedback),
			Handler:     commandHandler(function.Command),
		})
	}
	return definitions
}

// commandHandler runs argv with the call's arguments as JSON on stdin.
// Stdout that is valid JSON is returned decoded; anything else is
// returned as trimmed text. A non-zero exit is an error carrying the
// command's stderr.
func commandHandler(argv []string) conversation.Handler {
	return func(ctx context.Context, arguments map[string]any) (any, error) {
		input, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("encoding arguments: %w", err)
		}

		var stdout, stderr bytes.Buffer
		command := exec.CommandContext(ctx, argv[0], argv[1:]...)
		command.Stdin = bytes.NewReader(input)
		command.Stdout = &stdout
		command.Stderr = &stderr

		if err := command.Run(); err != nil {
			detail := strings.TrimSpace(stderr.String())
			if detail == "" {
				return nil, fmt.Errorf("%s: %w", argv[0], err)
			}
			return nil, fmt.Errorf("%s: %w: %s", argv[0], err, detail)
		}

		output := bytes.TrimSpace(stdout.Bytes())
		var decoded any
		if len(output) > 0 && json.Unmarshal(output, &decoded) == nil {
			return decoded, nil
		}
		return string(output), nil
	}
}
