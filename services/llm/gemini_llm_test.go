// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGeminiClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.0-flash")
	t.Setenv("GEMINI_BASE_URL", server.URL)

	client, err := NewGeminiClient()
	require.NoError(t, err)
	return client
}

func TestGeminiChat_Success(t *testing.T) {
	var captured geminiRequest
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": "Take a "}, {"text": "deep breath."}},
				},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	})

	turns := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "hello"},
		{Role: datatypes.RoleAssistant, Content: "hi"},
		{Role: datatypes.RoleInstruction, Content: "<prompt>wrapped query</prompt>"},
	}
	text, err := client.Chat(context.Background(), turns, GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "Take a deep breath.", text, "candidate parts must be concatenated")

	require.Len(t, captured.Contents, 3)
	// History turns collapse to role-tagged user text.
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "role: user\ncontent: hello", captured.Contents[0].Parts[0].Text)
	assert.Equal(t, "role: assistant\ncontent: hi", captured.Contents[1].Parts[0].Text)
	// The instruction turn passes through verbatim.
	assert.Equal(t, "<prompt>wrapped query</prompt>", captured.Contents[2].Parts[0].Text)
}

func TestGeminiChat_APIError(t *testing.T) {
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "message": "quota exceeded", "status": "RESOURCE_EXHAUSTED"},
		})
	})

	_, err := client.Chat(context.Background(),
		[]datatypes.Message{{Role: datatypes.RoleInstruction, Content: "q"}}, GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGeminiChat_NoCandidates(t *testing.T) {
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	})

	_, err := client.Chat(context.Background(),
		[]datatypes.Message{{Role: datatypes.RoleInstruction, Content: "q"}}, GenerationParams{})
	require.Error(t, err)
}

func TestGeminiChat_GenerationConfigForwarded(t *testing.T) {
	var captured geminiRequest
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]string{{"text": "ok"}}},
			}},
		})
	})

	temp := float32(0.7)
	maxTokens := 256
	_, err := client.Chat(context.Background(),
		[]datatypes.Message{{Role: datatypes.RoleInstruction, Content: "q"}},
		GenerationParams{Temperature: &temp, MaxTokens: &maxTokens})
	require.NoError(t, err)

	require.NotNil(t, captured.GenerationConfig)
	assert.InDelta(t, 0.7, float64(*captured.GenerationConfig.Temperature), 0.0001)
	assert.Equal(t, 256, *captured.GenerationConfig.MaxOutputTokens)
}

func TestGeminiChat_KeyReusableAcrossCalls(t *testing.T) {
	var keys []string
	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("x-goog-api-key"))
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]string{{"text": "ok"}}},
			}},
		})
	})

	turns := []datatypes.Message{{Role: datatypes.RoleInstruction, Content: "q"}}
	for i := 0; i < 3; i++ {
		_, err := client.Chat(context.Background(), turns, GenerationParams{})
		require.NoError(t, err)
	}

	// Unsealing the enclave per request must not consume it.
	require.Len(t, keys, 3)
	for _, key := range keys {
		assert.Equal(t, "test-key", key)
	}
}

func TestNewGeminiClient_MissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := NewGeminiClient()
	require.Error(t, err)
}

func TestToOpenAIMessages_RoleTranslation(t *testing.T) {
	turns := []datatypes.Message{
		{Role: datatypes.RoleUser, Content: "u"},
		{Role: datatypes.RoleAssistant, Content: "a"},
		{Role: datatypes.RoleInstruction, Content: "sys"},
	}

	messages := toOpenAIMessages(turns)
	require.Len(t, messages, 3)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "system", messages[2].Role)
	assert.Equal(t, "sys", messages[2].Content)
}
