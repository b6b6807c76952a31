// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
	"github.com/rafiq-ai/rafiq/services/orchestrator/middleware"
	"github.com/rafiq-ai/rafiq/services/orchestrator/observability"
	"github.com/rafiq-ai/rafiq/services/orchestrator/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Streaming defaults: words per chunk and the fixed inter-chunk delay that
// provides the "typing" pace.
const (
	DefaultChunkWordCount = 3
	DefaultChunkDelay     = 150 * time.Millisecond
)

// StreamOptions tunes chunked delivery. Zero values fall back to the
// defaults above.
type StreamOptions struct {
	ChunkWordCount int
	ChunkDelay     time.Duration
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.ChunkWordCount <= 0 {
		o.ChunkWordCount = DefaultChunkWordCount
	}
	if o.ChunkDelay <= 0 {
		o.ChunkDelay = DefaultChunkDelay
	}
	return o
}

// StreamingChatHandler handles chat requests with SSE chunk streaming.
type StreamingChatHandler interface {
	HandleSendMessageStream(c *gin.Context)
}

// streamingChatHandler implements StreamingChatHandler.
//
// The full reply is generated and persisted by the ChatService before the
// first event is written: a client disconnect mid-stream only loses the live
// display, never the stored assistant turn.
type streamingChatHandler struct {
	chatService *services.ChatService
	opts        StreamOptions
	tracer      trace.Tracer
}

// NewStreamingChatHandler creates a StreamingChatHandler. chatService must
// not be nil.
func NewStreamingChatHandler(chatService *services.ChatService, opts StreamOptions) StreamingChatHandler {
	if chatService == nil {
		panic("NewStreamingChatHandler: chatService must not be nil")
	}
	return &streamingChatHandler{
		chatService: chatService,
		opts:        opts.withDefaults(),
		tracer:      otel.Tracer("rafiq.orchestrator.handlers.chat_streaming"),
	}
}

// HandleSendMessageStream processes POST /v1/chat/stream.
//
// # Description
//
// The flow is:
//  1. Parse and validate the request body
//  2. Run the full send-message flow (generate + persist)
//  3. Set SSE headers and create the writer
//  4. Emit the thread event, then the reply in word-grouped chunks with a
//     fixed delay, then the done event
//
// # Outputs
//
// SSE events, in order:
//   - event: thread, data: {"type":"thread","thread_id":"..."}
//   - event: chunk,  data: {"type":"chunk","chunk":"one two three"} (repeated)
//   - event: done,   data: {"type":"done","done":true,"thread_id":"...","saved":true}
//
// HTTP status (before streaming starts):
//   - 400 Bad Request: invalid body or validation failure
//   - 404 Not Found: the supplied thread id is unknown
//   - 409 Conflict: thread id collision on create
//   - 500 Internal Server Error: store failure or SSE setup failure
//
// # Limitations
//
//   - Once streaming has started, no further HTTP status can be sent; a
//     write failure means the client disconnected and emission simply stops.
//     The reply is already persisted by then, so nothing is lost.
func (h *streamingChatHandler) HandleSendMessageStream(c *gin.Context) {
	startTime := time.Now()
	endpoint := observability.EndpointStream

	ctx, span := h.tracer.Start(c.Request.Context(), "HandleSendMessageStream")
	defer span.End()

	if m := observability.DefaultMetrics; m != nil {
		m.StreamStarted(endpoint)
		defer m.StreamEnded(endpoint)
	}
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
		slog.Error("Failed to parse the streaming chat request", "error", err)
		recordError(endpoint, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		slog.Error("Streaming chat request validation failed", "error", err)
		recordError(endpoint, observability.ErrorCodeValidation)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
		return
	}

	ownerID := middleware.GetOwnerID(c)
	span.SetAttributes(attribute.String("user.id", ownerID))

	// Generate and persist before the first event goes out.
	result, err := h.chatService.SendMessage(ctx, ownerID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		writeStoreError(c, endpoint, req.ThreadID, err)
		return
	}
	span.SetAttributes(attribute.String("thread.id", result.ThreadID))

	SetSSEHeaders(c.Writer)
	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "SSE setup failed")
		slog.Error("Streaming not supported by the response writer", "error", err)
		recordError(endpoint, observability.ErrorCodeInternal)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	if err := streamResponse(ctx, writer, result, h.opts); err != nil {
		// The thread is already persisted; the client only lost the live view.
		slog.Warn("Client disconnected mid-stream", "threadId", result.ThreadID, "error", err)
		recordError(endpoint, observability.ErrorCodeClientDisconnect)
		if m := observability.DefaultMetrics; m != nil {
			m.ClientDisconnectsTotal.WithLabelValues(string(endpoint)).Inc()
		}
		return
	}
	success = true
}

// streamResponse emits the framed event sequence for one completed reply:
// the thread event, each word-grouped chunk in order with a fixed delay, and
// the terminating done event. Emission stops as soon as the consumer goes
// away (context cancellation or a write failure).
func streamResponse(ctx context.Context, writer SSEWriter, result *services.ChatResult, opts StreamOptions) error {
	opts = opts.withDefaults()

	if err := writer.WriteThread(result.ThreadID); err != nil {
		return err
	}
	for _, chunk := range ChunkWords(result.Answer, opts.ChunkWordCount) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(opts.ChunkDelay):
		}
		if err := writer.WriteChunk(chunk); err != nil {
			return err
		}
	}
	return writer.WriteDone(result.ThreadID, result.Saved)
}

// ChunkWords tokenizes text on whitespace and regroups the words into chunks
// of wordsPerChunk, preserving order. The final chunk may be shorter. Empty
// or all-whitespace text yields no chunks.
func ChunkWords(text string, wordsPerChunk int) []string {
	if wordsPerChunk <= 0 {
		wordsPerChunk = DefaultChunkWordCount
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(words)+wordsPerChunk-1)/wordsPerChunk)
	for start := 0; start < len(words); start += wordsPerChunk {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
