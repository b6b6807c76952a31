// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains request and response types for the chat endpoints.
// Persisted documents live in thread.go, streaming events in stream.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of a single inbound message.
	// Checked in bytes, not runes, to bound memory regardless of encoding.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// MaxThreadNameLength bounds user-supplied display names.
	MaxThreadNameLength = 256
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces the MaxMessageContentBytes limit on string fields.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Send Message Types
// =============================================================================

// SendMessageRequest is the body for POST /v1/chat/send and
// POST /v1/chat/stream.
//
// # Fields
//
//   - Message: Required. The user's message text, at most 32KB.
//   - ThreadID: Optional. Continue an existing thread; an unknown id is a
//     terminal not-found failure. Empty means start a new thread.
//   - ThreadName: Optional. Display name for a newly created thread. Ignored
//     when ThreadID is set.
//   - RequestID: Optional. Client-generated UUID v4 used to de-duplicate
//     retries: a repeat of the last applied request id replays the recorded
//     assistant turn instead of appending a duplicate user+assistant pair.
type SendMessageRequest struct {
	Message    string `json:"message" validate:"required,maxbytes"`
	ThreadID   string `json:"thread_id,omitempty" validate:"omitempty,uuid4"`
	ThreadName string `json:"thread_name,omitempty" validate:"omitempty,max=256"`
	RequestID  string `json:"request_id,omitempty" validate:"omitempty,uuid4"`
}

// Validate validates the SendMessageRequest fields using the shared
// validator. Call after binding the JSON body.
func (r *SendMessageRequest) Validate() error {
	return chatValidate.Struct(r)
}

// SendMessageResponse is the non-streaming reply for POST /v1/chat/send.
//
// Saved reports whether the assistant turn reached durable storage. The
// answer is returned either way; a false value means the reply was delivered
// but the final persist failed or lost a concurrent-write race.
type SendMessageResponse struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id"`
	Saved    bool   `json:"saved"`
}

// =============================================================================
// Thread Management Types
// =============================================================================

// CreateThreadRequest is the body for POST /v1/threads.
type CreateThreadRequest struct {
	ThreadName string `json:"thread_name,omitempty" validate:"omitempty,max=256"`
}

// Validate validates the CreateThreadRequest fields.
func (r *CreateThreadRequest) Validate() error {
	return chatValidate.Struct(r)
}

// RenameThreadRequest is the body for PATCH /v1/threads/:threadId.
type RenameThreadRequest struct {
	ThreadName string `json:"thread_name" validate:"required,max=256"`
}

// Validate validates the RenameThreadRequest fields.
func (r *RenameThreadRequest) Validate() error {
	return chatValidate.Struct(r)
}

// ThreadSummary is the listing shape for a thread, without its history.
type ThreadSummary struct {
	ThreadID   string    `json:"thread_id"`
	ThreadName string    `json:"thread_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Summarize converts a Thread into its listing shape.
func Summarize(t *Thread) ThreadSummary {
	return ThreadSummary{
		ThreadID:   t.ThreadID,
		ThreadName: t.ThreadName,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}
