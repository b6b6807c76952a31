// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the persisted conversation documents: Thread and its
// embedded Messages. Request/response shapes live in chat.go, streaming
// event shapes in stream.go.
package datatypes

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message roles. RoleInstruction is a wire-only role used for the trailing
// persona turn handed to the generation providers; it is never persisted.
const (
	RoleUser        = "user"
	RoleAssistant   = "assistant"
	RoleInstruction = "instruction"
)

// Message is one immutable turn inside a Thread's history. Messages are owned
// by their Thread and are never persisted independently.
type Message struct {
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
}

// Thread is a persisted conversation document.
//
// # Invariants
//
//   - ThreadID is globally unique (unique index, see repository.EnsureIndexes)
//   - History is append-only; entries are never edited or reordered
//   - UpdatedAt is monotonically non-decreasing and refreshed on every mutation
//   - Version increments by one on every successful Replace (optimistic
//     concurrency; a stale writer gets repository.ErrConflict instead of
//     silently overwriting)
//
// # Fields
//
//   - LastRequestID: id of the last send-message request applied against this
//     thread. Used to de-duplicate client retries of an already-completed send.
type Thread struct {
	OwnerID       string    `bson:"owner_id" json:"owner_id"`
	ThreadID      string    `bson:"thread_id" json:"thread_id"`
	ThreadName    string    `bson:"thread_name" json:"thread_name"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
	Version       int64     `bson:"version" json:"-"`
	LastRequestID string    `bson:"last_request_id,omitempty" json:"-"`
	History       []Message `bson:"history" json:"history"`
}

// NewThread creates an empty Thread for the given owner with a fresh unique
// id. An empty name falls back to a date-derived default.
func NewThread(ownerID, name string) *Thread {
	now := time.Now().UTC()
	if name == "" {
		name = DefaultThreadName(now)
	}
	return &Thread{
		OwnerID:    ownerID,
		ThreadID:   uuid.New().String(),
		ThreadName: SanitizeText(name),
		CreatedAt:  now,
		UpdatedAt:  now,
		History:    []Message{},
	}
}

// DefaultThreadName derives a display name from the given time.
func DefaultThreadName(at time.Time) string {
	return "Chat " + at.Format("2006-01-02 15:04")
}

// Append adds one message to the in-memory history and refreshes UpdatedAt.
// Content is sanitized to valid UTF-8 before it enters the document.
func (t *Thread) Append(role, content string, at time.Time) {
	t.History = append(t.History, Message{
		CreatedAt: at,
		Role:      role,
		Content:   SanitizeText(content),
	})
	t.Touch(at)
}

// Touch refreshes UpdatedAt, keeping it monotonically non-decreasing.
func (t *Thread) Touch(at time.Time) {
	if at.After(t.UpdatedAt) {
		t.UpdatedAt = at
	}
}

// LastAssistantContent returns the content of the most recent assistant
// message, or "" if the thread has none. Used when replaying a de-duplicated
// send-message retry.
func (t *Thread) LastAssistantContent() string {
	for i := len(t.History) - 1; i >= 0; i-- {
		if t.History[i].Role == RoleAssistant {
			return t.History[i].Content
		}
	}
	return ""
}

// SanitizeText replaces invalid byte sequences so interpolated content is
// always encodable, rather than failing the whole request.
func SanitizeText(s string) string {
	return strings.ToValidUTF8(s, "�")
}
