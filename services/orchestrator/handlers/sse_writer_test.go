// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseSSEEvents extracts the JSON payloads from a raw SSE body, skipping
// comment lines.
func parseSSEEvents(t *testing.T, body string) []datatypes.StreamEvent {
	t.Helper()
	var events []datatypes.StreamEvent
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event datatypes.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func TestSSEWriter_WireFormat(t *testing.T) {
	recorder := httptest.NewRecorder()
	writer, err := NewSSEWriter(recorder)
	require.NoError(t, err)

	require.NoError(t, writer.WriteChunk("hello world"))

	body := recorder.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: chunk\ndata: "), "body: %q", body)
	assert.True(t, strings.HasSuffix(body, "\n\n"))
	assert.True(t, recorder.Flushed, "events must be flushed immediately")
}

// TestSSEWriter_HashChain verifies each event links to its predecessor and
// that every hash is recomputable from the event's own content.
func TestSSEWriter_HashChain(t *testing.T) {
	recorder := httptest.NewRecorder()
	writer, err := NewSSEWriter(recorder)
	require.NoError(t, err)

	require.NoError(t, writer.WriteThread("thread-1"))
	require.NoError(t, writer.WriteChunk("one two three"))
	require.NoError(t, writer.WriteChunk("four five"))
	require.NoError(t, writer.WriteDone("thread-1", true))

	events := parseSSEEvents(t, recorder.Body.String())
	require.Len(t, events, 4)

	assert.Empty(t, events[0].PrevHash, "first event must anchor the chain")
	for i, event := range events {
		require.NotEmpty(t, event.Id)
		require.NotZero(t, event.CreatedAt)

		expected := event
		expected.Hash = ""
		assert.Equal(t, computeEventHash(expected), event.Hash, "event %d hash mismatch", i)

		if i > 0 {
			assert.Equal(t, events[i-1].Hash, event.PrevHash, "event %d broke the chain", i)
		}
	}
}

func TestSSEWriter_DoneEventShape(t *testing.T) {
	recorder := httptest.NewRecorder()
	writer, err := NewSSEWriter(recorder)
	require.NoError(t, err)

	require.NoError(t, writer.WriteDone("thread-1", false))

	events := parseSSEEvents(t, recorder.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, datatypes.StreamEventDone, events[0].Type)
	assert.Equal(t, "thread-1", events[0].ThreadID)
	assert.True(t, events[0].Done)
	require.NotNil(t, events[0].Saved)
	assert.False(t, *events[0].Saved)
}

func TestSetSSEHeaders(t *testing.T) {
	recorder := httptest.NewRecorder()
	SetSSEHeaders(recorder)

	assert.Equal(t, "text/event-stream", recorder.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", recorder.Header().Get("Cache-Control"))
	assert.Equal(t, "no", recorder.Header().Get("X-Accel-Buffering"))
}
