// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rafiq-ai/rafiq/services/llm"
	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
	"github.com/rafiq-ai/rafiq/services/orchestrator/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ChatService ties the thread store, the context assembler, and the
// generation client together into the send-message flow.
//
// # Flow per send
//
//  1. Resolve: fetch the thread when an id was supplied (an unknown id is a
//     terminal failure), or synthesize and persist a new one.
//  2. Append the sanitized user message.
//  3. Assemble the bounded context window and call the generation client.
//     Any returned text is treated as a successful completion, the fixed
//     fallback sentence included.
//  4. Append the assistant message and replace the full thread document. A
//     failed or conflicted replace is logged and reported via Saved=false;
//     the already-generated answer is still returned.
//
// No step is retried automatically. A client retry of an already-applied
// request id (see SendMessageRequest.RequestID) replays the recorded
// assistant turn instead of appending a duplicate user+assistant pair.
//
// # Concurrency
//
// No lock is held across the flow. Two concurrent sends against the same
// thread race on the final replace; the version check makes the loser
// explicit (logged, Saved=false) instead of silently discarding its turns.
type ChatService struct {
	repo          repository.ThreadRepository
	llmClient     llm.LLMClient
	historyWindow int
	tracer        trace.Tracer
}

// ChatResult is the outcome of one send-message call.
//
//   - Saved: whether the assistant turn reached durable storage.
//   - Replayed: the request id matched the thread's last applied request, so
//     the recorded assistant turn was returned without re-generating.
type ChatResult struct {
	Answer   string
	ThreadID string
	Saved    bool
	Replayed bool
}

// NewChatService creates a ChatService. repo and llmClient must not be nil;
// historyWindow <= 0 falls back to DefaultHistoryWindow.
func NewChatService(repo repository.ThreadRepository, llmClient llm.LLMClient, historyWindow int) *ChatService {
	if repo == nil {
		panic("NewChatService: repo must not be nil")
	}
	if llmClient == nil {
		panic("NewChatService: llmClient must not be nil")
	}
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &ChatService{
		repo:          repo,
		llmClient:     llmClient,
		historyWindow: historyWindow,
		tracer:        otel.Tracer("rafiq.orchestrator.services.chat"),
	}
}

// SendMessage runs one conversation turn for the given owner.
//
// Terminal errors are repository.ErrNotFound (unknown thread id) and
// repository.ErrDuplicateID (id collision on create); generation-provider
// problems alone never fail the call.
func (s *ChatService) SendMessage(ctx context.Context, ownerID string, req datatypes.SendMessageRequest) (*ChatResult, error) {
	ctx, span := s.tracer.Start(ctx, "ChatService.SendMessage")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", ownerID))

	thread, replay, err := s.resolveThread(ctx, ownerID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "thread resolution failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("thread.id", thread.ThreadID))
	if replay {
		slog.Info("Replaying completed send for repeated request id",
			"threadId", thread.ThreadID, "requestId", req.RequestID)
		return &ChatResult{
			Answer:   thread.LastAssistantContent(),
			ThreadID: thread.ThreadID,
			Saved:    true,
			Replayed: true,
		}, nil
	}

	thread.Append(datatypes.RoleUser, req.Message, time.Now().UTC())
	if req.RequestID != "" {
		thread.LastRequestID = req.RequestID
	}

	turns := BuildTurns(thread.History, s.historyWindow, req.Message)
	answer, err := s.llmClient.Chat(ctx, turns, llm.GenerationParams{})
	if err != nil {
		// The failover client converts provider failures into the fallback
		// text itself; this path only exists for clients wired without it.
		slog.Error("Generation failed, substituting fallback message", "error", err,
			"threadId", thread.ThreadID)
		answer = llm.FallbackMessage
	}

	thread.Append(datatypes.RoleAssistant, answer, time.Now().UTC())

	saved := true
	if err := s.repo.Replace(ctx, thread); err != nil {
		// The answer is already generated; trade durability for availability
		// and report the gap instead of losing the reply.
		saved = false
		span.RecordError(err)
		if errors.Is(err, repository.ErrConflict) {
			slog.Warn("Thread changed concurrently, send not persisted",
				"threadId", thread.ThreadID)
		} else {
			slog.Error("Failed to persist thread after generation",
				"threadId", thread.ThreadID, "error", err)
		}
	}

	return &ChatResult{Answer: answer, ThreadID: thread.ThreadID, Saved: saved}, nil
}

// resolveThread loads the addressed thread or creates a fresh one. The
// boolean reports a request-id replay: the thread's last applied request
// matches the incoming one, so the send already completed.
func (s *ChatService) resolveThread(ctx context.Context, ownerID string, req datatypes.SendMessageRequest) (*datatypes.Thread, bool, error) {
	if req.ThreadID != "" {
		thread, err := s.repo.GetByID(ctx, req.ThreadID)
		if err != nil {
			return nil, false, err
		}
		replay := req.RequestID != "" && thread.LastRequestID == req.RequestID
		return thread, replay, nil
	}

	thread := datatypes.NewThread(ownerID, req.ThreadName)
	if err := s.repo.Create(ctx, thread); err != nil {
		return nil, false, err
	}
	slog.Info("Created a new chat thread", "threadId", thread.ThreadID, "ownerId", ownerID)
	return thread, false, nil
}
