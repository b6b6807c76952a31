// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
	"github.com/rafiq-ai/rafiq/services/orchestrator/middleware"
	"github.com/rafiq-ai/rafiq/services/orchestrator/observability"
	"github.com/rafiq-ai/rafiq/services/orchestrator/repository"
	"github.com/rafiq-ai/rafiq/services/orchestrator/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var chatTracer = otel.Tracer("rafiq.orchestrator.handlers")

// HandleSendMessage processes POST /v1/chat/send: one conversation turn with
// the whole reply returned as JSON.
//
// # Outputs
//
// HTTP Status:
//   - 200 OK: reply generated (possibly the fixed fallback sentence); the
//     body's saved field reports whether persistence succeeded
//   - 400 Bad Request: invalid body or validation failure
//   - 404 Not Found: the supplied thread id is unknown
//   - 409 Conflict: thread id collision on create
//   - 500 Internal Server Error: unexpected store failure
func HandleSendMessage(chatService *services.ChatService) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		endpoint := observability.EndpointSend

		ctx, span := chatTracer.Start(c.Request.Context(), "HandleSendMessage")
		defer span.End()

		success := false
		defer func() {
			if m := observability.DefaultMetrics; m != nil {
				m.RecordRequest(endpoint, success)
				m.RecordSendDuration(endpoint, time.Since(startTime).Seconds(), success)
			}
		}()

		var req datatypes.SendMessageRequest
		if err := c.BindJSON(&req); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid request body")
			slog.Error("Failed to parse the chat request", "error", err)
			recordError(endpoint, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "validation failed")
			slog.Error("Chat request validation failed", "error", err)
			recordError(endpoint, observability.ErrorCodeValidation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
			return
		}

		ownerID := middleware.GetOwnerID(c)
		span.SetAttributes(attribute.String("user.id", ownerID))

		result, err := chatService.SendMessage(ctx, ownerID, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			writeStoreError(c, endpoint, req.ThreadID, err)
			return
		}

		success = true
		span.SetAttributes(attribute.String("thread.id", result.ThreadID))
		c.JSON(http.StatusOK, datatypes.SendMessageResponse{
			Message:  result.Answer,
			ThreadID: result.ThreadID,
			Saved:    result.Saved,
		})
	}
}

// writeStoreError maps thread-store failures onto HTTP status codes.
func writeStoreError(c *gin.Context, endpoint observability.Endpoint, threadID string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		recordError(endpoint, observability.ErrorCodeNotFound)
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found", "thread_id": threadID})
	case errors.Is(err, repository.ErrDuplicateID):
		recordError(endpoint, observability.ErrorCodeStore)
		c.JSON(http.StatusConflict, gin.H{"error": "thread id already exists"})
	case errors.Is(err, repository.ErrConflict):
		recordError(endpoint, observability.ErrorCodeStore)
		c.JSON(http.StatusConflict, gin.H{"error": "thread was modified concurrently", "thread_id": threadID})
	default:
		slog.Error("Thread store operation failed", "error", err)
		recordError(endpoint, observability.ErrorCodeStore)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "thread store unavailable"})
	}
}

func recordError(endpoint observability.Endpoint, code observability.ErrorCode) {
	if m := observability.DefaultMetrics; m != nil {
		m.RecordError(endpoint, code)
	}
}
