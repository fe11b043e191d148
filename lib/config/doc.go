// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the beak relay
// and the beak chat client.
//
// Configuration is loaded from a single file specified by either the
// BEAK_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. A command that
// can run without a file starts from [Default] and calls
// [Config.Resolve] itself.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches.
//
// Variable expansion is performed on string fields that name secrets,
// addresses, and paths: ${HOME}, ${VAR}, and ${VAR:-default} patterns
// are expanded. The only environment variable read without being named
// in the file is OPENAI_API_KEY, which supplies openai.api_key when the
// file leaves it empty.
//
// Key exports:
//
//   - [Config] -- master struct with OpenAI, Relay, and Chat sections
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.Validate] and [Config.ValidateRelay] -- validation
//
// This package depends on no other beak packages.
package config
