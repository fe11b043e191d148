// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

// Supported chat models. Configuration accepts only these; a model
// named in a relayed request is passed through to the API unchanged.
const (
	ModelGPT35Turbo        = "gpt-3.5-turbo"
	ModelGPT35Turbo16k     = "gpt-3.5-turbo-16k"
	ModelGPT4              = "gpt-4"
	ModelGPT432k           = "gpt-4-32k"
	ModelGPT35Turbo0301    = "gpt-3.5-turbo-0301"
	ModelGPT40314          = "gpt-4-0314"
	ModelGPT432k0314       = "gpt-4-32k-0314"
	ModelGPT35Turbo0613    = "gpt-3.5-turbo-0613"
	ModelGPT40613          = "gpt-4-0613"
	ModelGPT432k0613       = "gpt-4-32k-0613"
	ModelGPT35Turbo16k0613 = "gpt-3.5-turbo-16k-0613"
)

// DefaultModel is used when neither the request nor the client names one.
const DefaultModel = ModelGPT4

var supportedModels = map[string]bool{
	ModelGPT35Turbo:        true,
	ModelGPT35Turbo16k:     true,
	ModelGPT4:              true,
	ModelGPT432k:           true,
	ModelGPT35Turbo0301:    true,
	ModelGPT40314:          true,
	ModelGPT432k0314:       true,
	ModelGPT35Turbo0613:    true,
	ModelGPT40613:          true,
	ModelGPT432k0613:       true,
	ModelGPT35Turbo16k0613: true,
}

// SupportedModel reports whether model is one of the supported chat
// models.
func SupportedModel(model string) bool {
	return supportedModels[model]
}
