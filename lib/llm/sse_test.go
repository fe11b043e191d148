// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func drainDecoder(t *testing.T, decoder *StreamDecoder) ([]string, error) {
	t.Helper()
	var frames []string
	for {
		frame, err := decoder.Next()
		if err != nil {
			return frames, err
		}
		frames = append(frames, string(frame))
	}
}

func TestStreamDecoderBasic(t *testing.T) {
	t.Parallel()

	input := "data: {\"a\":1}\ndata: {\"b\":2}\ndata: [DONE]\n"
	decoder := NewStreamDecoder(io.NopCloser(strings.NewReader(input)), discardLogger())

	frames, err := drainDecoder(t, decoder)
	if err != io.EOF {
		t.Fatalf("terminal error = %v, want io.EOF", err)
	}
	want := []string{`{"a":1}`, `{"b":2}`}
	if len(frames) != len(want) {
		t.Fatalf("got %d frames, want %d: %q", len(frames), len(want), frames)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame[%d] = %q, want %q", i, frames[i], want[i])
		}
	}
}

func TestStreamDecoderChunkBoundaryInvariance(t *testing.T) {
	t.Parallel()

	stream := strings.Join(contentStreamLines("Hello world! How are you today?"), "")

	whole := NewStreamDecoder(io.NopCloser(strings.NewReader(stream)), discardLogger())
	expected, err := drainDecoder(t, whole)
	if err != io.EOF {
		t.Fatalf("single-chunk decode terminal = %v, want io.EOF", err)
	}

	for size := 1; size <= 17; size++ {
		body := &chunkedBody{pieces: splitEvery(stream, size)}
		frames, err := drainDecoder(t, NewStreamDecoder(body, discardLogger()))
		if err != io.EOF {
			t.Fatalf("chunk size %d: terminal = %v, want io.EOF", size, err)
		}
		if len(frames) != len(expected) {
			t.Fatalf("chunk size %d: got %d frames, want %d", size, len(frames), len(expected))
		}
		for i := range expected {
			if frames[i] != expected[i] {
				t.Errorf("chunk size %d: frame[%d] = %q, want %q", size, i, frames[i], expected[i])
			}
		}
	}
}

func TestStreamDecoderMultibyteSplit(t *testing.T) {
	t.Parallel()

	// The UTF-8 encoding of "ü" is split across two reads.
	stream := "data: {\"text\":\"gr\xc3\xbc\xc3\x9fe\"}\ndata: [DONE]\n"
	index := strings.Index(stream, "\xc3\xbc") + 1
	body := &chunkedBody{pieces: []string{stream[:index], stream[index:]}}

	frames, err := drainDecoder(t, NewStreamDecoder(body, discardLogger()))
	if err != io.EOF {
		t.Fatalf("terminal = %v, want io.EOF", err)
	}
	if len(frames) != 1 || frames[0] != `{"text":"grüße"}` {
		t.Errorf("frames = %q, want one frame with grüße", frames)
	}
}

func TestStreamDecoderSkipsMalformedFrame(t *testing.T) {
	t.Parallel()

	input := "data: {\"a\":1}\ndata: {not json\ndata: {\"b\":2}\ndata: [DONE]\n"
	decoder := NewStreamDecoder(io.NopCloser(strings.NewReader(input)), discardLogger())

	frames, err := drainDecoder(t, decoder)
	if err != io.EOF {
		t.Fatalf("terminal = %v, want io.EOF", err)
	}
	if len(frames) != 2 || frames[0] != `{"a":1}` || frames[1] != `{"b":2}` {
		t.Errorf("frames = %q, want the two valid frames", frames)
	}
}

func TestStreamDecoderDoneDiscardsRemainder(t *testing.T) {
	t.Parallel()

	input := "data: {\"a\":1}\ndata: [DONE]\ndata: {\"b\":2}\n"
	decoder := NewStreamDecoder(io.NopCloser(strings.NewReader(input)), discardLogger())

	frames, err := drainDecoder(t, decoder)
	if err != io.EOF {
		t.Fatalf("terminal = %v, want io.EOF", err)
	}
	if len(frames) != 1 {
		t.Errorf("frames = %q, want only the frame before [DONE]", frames)
	}
}

func TestStreamDecoderAcceptsUnprefixedDone(t *testing.T) {
	t.Parallel()

	input := "data: {\"a\":1}\r\n\r\n[DONE]\n"
	decoder := NewStreamDecoder(io.NopCloser(strings.NewReader(input)), discardLogger())

	frames, err := drainDecoder(t, decoder)
	if err != io.EOF {
		t.Fatalf("terminal = %v, want io.EOF", err)
	}
	if len(frames) != 1 || frames[0] != `{"a":1}` {
		t.Errorf("frames = %q, want [{\"a\":1}]", frames)
	}
}

func TestStreamDecoderEOFWithoutDone(t *testing.T) {
	t.Parallel()

	input := "data: {\"a\":1}\ndata: {\"partial\":"
	decoder := NewStreamDecoder(io.NopCloser(strings.NewReader(input)), discardLogger())

	frames, err := drainDecoder(t, decoder)
	if err != io.EOF {
		t.Fatalf("terminal = %v, want io.EOF", err)
	}
	if len(frames) != 1 {
		t.Errorf("frames = %q, want one complete frame", frames)
	}
}

func TestStreamDecoderReadError(t *testing.T) {
	t.Parallel()

	readErr := errors.New("connection reset")
	body := &chunkedBody{
		pieces: []string{"data: {\"a\":1}\n", "data: {\"b\""},
		err:    readErr,
	}
	decoder := NewStreamDecoder(body, discardLogger())

	frames, err := drainDecoder(t, decoder)
	if !errors.Is(err, readErr) {
		t.Fatalf("terminal = %v, want wrapped %v", err, readErr)
	}
	if len(frames) != 1 {
		t.Errorf("frames = %q, want the frame delivered before the error", frames)
	}

	// The terminal result is sticky.
	if _, again := decoder.Next(); !errors.Is(again, readErr) {
		t.Errorf("second Next after error = %v, want %v", again, readErr)
	}
}

func TestStreamDecoderTerminalIsSticky(t *testing.T) {
	t.Parallel()

	decoder := NewStreamDecoder(io.NopCloser(strings.NewReader("data: [DONE]\n")), discardLogger())
	for i := 0; i < 3; i++ {
		if _, err := decoder.Next(); err != io.EOF {
			t.Fatalf("Next #%d = %v, want io.EOF", i, err)
		}
	}
}

func TestStreamDecoderFramesDoNotAlias(t *testing.T) {
	t.Parallel()

	input := "data: {\"a\":1}\ndata: {\"b\":2}\ndata: [DONE]\n"
	decoder := NewStreamDecoder(io.NopCloser(strings.NewReader(input)), discardLogger())

	first, err := decoder.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	first[2] = 'z'
	second, err := decoder.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(second) != `{"b":2}` {
		t.Errorf("second frame = %q, want {\"b\":2}", second)
	}
}

func TestStreamDecoderCloseClosesBody(t *testing.T) {
	t.Parallel()

	body := &chunkedBody{pieces: []string{"data: {\"a\":1}\n"}}
	decoder := NewStreamDecoder(body, discardLogger())
	if err := decoder.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !body.closed {
		t.Error("body was not closed")
	}
	if err := decoder.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := decoder.Next(); err != io.EOF {
		t.Errorf("Next after Close = %v, want io.EOF", err)
	}
}
