// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// doneSentinel terminates a chat completions stream.
const doneSentinel = "[DONE]"

// dataPrefix precedes the payload of every frame line.
const dataPrefix = "data: "

// readChunkSize is the size of each read from the response body.
const readChunkSize = 16 * 1024

// FrameSource yields raw JSON frames from a streamed response. Next
// returns io.EOF when the stream ended cleanly.
type FrameSource interface {
	Next() (json.RawMessage, error)
	Close() error
}

// StreamDecoder reads "data: <json>" lines from a streamed chat
// completions response body.
//
// Bytes are buffered across reads and split on newlines; a trailing
// partial line waits for the next read, so the decoded frame sequence
// does not depend on how the transport chunked the body. A line equal
// to "[DONE]" ends the stream. Lines that are not valid JSON are
// logged and skipped.
//
// Usage:
//
//	decoder := NewStreamDecoder(response.Body, logger)
//	defer decoder.Close()
//	for {
//	    frame, err := decoder.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // process frame
//	}
//
// StreamDecoder is not safe for concurrent use.
type StreamDecoder struct {
	body    io.ReadCloser
	logger  *slog.Logger
	buffer  []byte
	lines   [][]byte
	readBuf []byte

	// terminal is the sticky end-of-stream result: io.EOF or a read
	// error. Once set, Next returns it on every call.
	terminal error
}

// NewStreamDecoder creates a decoder over body. The decoder owns body
// and closes it on Close.
func NewStreamDecoder(body io.ReadCloser, logger *slog.Logger) *StreamDecoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamDecoder{
		body:    body,
		logger:  logger,
		readBuf: make([]byte, readChunkSize),
	}
}

// Next returns the next JSON frame. Returns io.EOF after the "[DONE]"
// sentinel or a clean end of body, and a wrapped error if reading the
// body fails. The returned frame does not alias internal buffers.
func (decoder *StreamDecoder) Next() (json.RawMessage, error) {
	for {
		for len(decoder.lines) > 0 {
			line := decoder.lines[0]
			decoder.lines = decoder.lines[1:]

			line = bytes.TrimSuffix(line, []byte("\r"))
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			payload := bytes.TrimPrefix(line, []byte(dataPrefix))

			if string(payload) == doneSentinel {
				decoder.logger.Debug("stream done sentinel received")
				decoder.finish(io.EOF)
				return nil, io.EOF
			}

			if !json.Valid(payload) {
				decoder.logger.Warn("skipping malformed stream frame",
					"frame", truncateForLog(payload),
				)
				continue
			}

			return bytes.Clone(payload), nil
		}

		if decoder.terminal != nil {
			return nil, decoder.terminal
		}

		if err := decoder.fill(); err != nil {
			return nil, err
		}
	}
}

// fill reads one chunk from the body and moves every complete line
// into the pending line queue. Returns the terminal error only when no
// complete lines were produced; otherwise the terminal state is
// recorded and surfaces after the queued lines drain.
func (decoder *StreamDecoder) fill() error {
	n, readErr := decoder.body.Read(decoder.readBuf)
	if n > 0 {
		decoder.buffer = append(decoder.buffer, decoder.readBuf[:n]...)
		if index := bytes.LastIndexByte(decoder.buffer, '\n'); index >= 0 {
			complete := decoder.buffer[:index]
			decoder.lines = append(decoder.lines, bytes.Split(bytes.Clone(complete), []byte("\n"))...)
			decoder.buffer = append(decoder.buffer[:0], decoder.buffer[index+1:]...)
		}
	}

	switch {
	case readErr == nil:
		return nil
	case errors.Is(readErr, io.EOF):
		if len(bytes.TrimSpace(decoder.buffer)) > 0 {
			decoder.logger.Debug("discarding incomplete trailing line",
				"bytes", len(decoder.buffer),
			)
		}
		decoder.terminal = io.EOF
	default:
		decoder.terminal = fmt.Errorf("llm: reading stream: %w", readErr)
	}

	if len(decoder.lines) > 0 {
		return nil
	}
	decoder.buffer = nil
	return decoder.terminal
}

// finish records the terminal result and drops anything still
// buffered.
func (decoder *StreamDecoder) finish(err error) {
	decoder.terminal = err
	decoder.lines = nil
	decoder.buffer = nil
}

// Close releases the response body. Safe to call more than once.
func (decoder *StreamDecoder) Close() error {
	if decoder.terminal == nil {
		decoder.finish(io.EOF)
	}
	if decoder.body == nil {
		return nil
	}
	body := decoder.body
	decoder.body = nil
	return body.Close()
}

// truncateForLog bounds frame text included in log records.
func truncateForLog(payload []byte) string {
	const limit = 256
	if len(payload) <= limit {
		return string(payload)
	}
	return string(payload[:limit]) + "..."
}
