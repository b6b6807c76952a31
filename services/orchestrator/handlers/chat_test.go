// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rafiq-ai/rafiq/services/llm"
	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
	"github.com/rafiq-ai/rafiq/services/orchestrator/middleware"
	"github.com/rafiq-ai/rafiq/services/orchestrator/repository"
	"github.com/rafiq-ai/rafiq/services/orchestrator/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedLLM returns a fixed answer for every generation call.
type scriptedLLM struct {
	answer string
}

func (s *scriptedLLM) Chat(ctx context.Context, turns []datatypes.Message,
	params llm.GenerationParams) (string, error) {
	return s.answer, nil
}

func newChatTestRouter(t *testing.T, answer string) (*gin.Engine, *repository.MemoryThreadRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryThreadRepository()
	svc := services.NewChatService(repo, &scriptedLLM{answer: answer}, 0)

	router := gin.New()
	router.Use(middleware.Auth(""))
	router.POST("/v1/chat/send", HandleSendMessage(svc))
	return router, repo
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestHandleSendMessage_NewThread(t *testing.T) {
	router, repo := newChatTestRouter(t, "I'm here for you.")

	recorder := postJSON(t, router, "/v1/chat/send",
		datatypes.SendMessageRequest{Message: "rough day"}, nil)

	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	var resp datatypes.SendMessageResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "I'm here for you.", resp.Message)
	assert.True(t, resp.Saved)
	require.NotEmpty(t, resp.ThreadID)

	thread, err := repo.GetByID(context.Background(), resp.ThreadID)
	require.NoError(t, err)
	assert.Len(t, thread.History, 2)
}

func TestHandleSendMessage_OwnerFromHeader(t *testing.T) {
	router, repo := newChatTestRouter(t, "ok")

	recorder := postJSON(t, router, "/v1/chat/send",
		datatypes.SendMessageRequest{Message: "hi"},
		map[string]string{middleware.HeaderOwnerID: "alice"})

	require.Equal(t, http.StatusOK, recorder.Code)
	var resp datatypes.SendMessageResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))

	thread, err := repo.GetByID(context.Background(), resp.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, "alice", thread.OwnerID)
}

func TestHandleSendMessage_UnknownThread(t *testing.T) {
	router, _ := newChatTestRouter(t, "never")

	recorder := postJSON(t, router, "/v1/chat/send", datatypes.SendMessageRequest{
		Message:  "hello",
		ThreadID: "11111111-2222-4333-8444-555555555555",
	}, nil)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "thread not found")
}

func TestHandleSendMessage_ValidationFailures(t *testing.T) {
	router, _ := newChatTestRouter(t, "never")

	cases := []struct {
		name string
		body any
	}{
		{"empty message", datatypes.SendMessageRequest{Message: ""}},
		{"malformed thread id", datatypes.SendMessageRequest{Message: "hi", ThreadID: "not-a-uuid"}},
		{"malformed request id", datatypes.SendMessageRequest{Message: "hi", RequestID: "nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := postJSON(t, router, "/v1/chat/send", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, recorder.Code)
		})
	}
}

func TestHandleSendMessage_MalformedJSON(t *testing.T) {
	router, _ := newChatTestRouter(t, "never")

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/send",
		bytes.NewReader([]byte("{not json")))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}
