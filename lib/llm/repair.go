// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// RepairArguments turns the accumulated argument text of a streamed
// function call into valid JSON object text.
//
// An empty string becomes "{}". Otherwise the text is trimmed and
// wrapped in braces where the opening or closing brace is missing,
// then handed to jsonrepair, which closes unterminated strings and
// containers, quotes bare keys, normalizes single quotes and Python
// constants, and escapes raw control characters. Returns an error if
// the text still cannot be read as JSON.
func RepairArguments(text string) (string, error) {
	if text == "" {
		text = "{}"
	}
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		text = "{" + text
	}
	if !strings.HasSuffix(text, "}") {
		text = text + "}"
	}

	repaired, err := jsonrepair.Repair(text)
	if err != nil {
		return "", fmt.Errorf("llm: function arguments are not repairable JSON: %q: %w", truncateForLog([]byte(text)), err)
	}
	if !json.Valid([]byte(repaired)) {
		return "", fmt.Errorf("llm: function arguments are not repairable JSON: %q", truncateForLog([]byte(text)))
	}
	return repaired, nil
}
