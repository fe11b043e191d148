// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Beak is a line-oriented terminal chat client. Each input line is one
// user turn; the assistant's reply streams to the terminal as it
// arrives. Functions the model may call are declared in a JSONC
// manifest and run as external commands: the call's arguments are
// written to the command's stdin as a JSON object, and its stdout is
// the result (parsed as JSON when it is valid JSON, text otherwise).
//
// The manifest also lists info entries, data the model should know
// about without calling anything:
//
//	{
//	  "functions": [
//	    {
//	      "name": "weather",
//	      "description": "Current weather for a city",
//	      "parameters": {"city": {"type": "string"}},
//	      "command": ["./weather.sh"],
//	    },
//	  ],
//	  "info": [
//	    {"description": "The user's location", "data": {"city": "Berlin"}},
//	  ],
//	}
//
// Point openai.base_url at a beak-relay to chat without holding an API
// key.
package main
