// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewThread_Defaults(t *testing.T) {
	thread := NewThread("alice", "")

	if _, err := uuid.Parse(thread.ThreadID); err != nil {
		t.Errorf("expected a UUID thread id, got %q: %v", thread.ThreadID, err)
	}
	if thread.OwnerID != "alice" {
		t.Errorf("expected owner 'alice', got %q", thread.OwnerID)
	}
	if thread.ThreadName == "" {
		t.Error("expected a synthesized display name for an empty input")
	}
	if !thread.CreatedAt.Equal(thread.UpdatedAt) {
		t.Error("expected created and updated timestamps to match at creation")
	}
	if len(thread.History) != 0 {
		t.Errorf("expected empty history, got %d messages", len(thread.History))
	}
}

func TestNewThread_UniqueIDs(t *testing.T) {
	a := NewThread("alice", "one")
	b := NewThread("alice", "two")

	if a.ThreadID == b.ThreadID {
		t.Error("expected distinct thread ids")
	}
}

func TestDefaultThreadName(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	got := DefaultThreadName(at)
	if got != "Chat 2025-03-14 09:26" {
		t.Errorf("unexpected default name: %q", got)
	}
}

func TestThread_Append(t *testing.T) {
	thread := NewThread("alice", "appending")
	later := thread.CreatedAt.Add(time.Minute)

	thread.Append(RoleUser, "hello", later)

	if len(thread.History) != 1 {
		t.Fatalf("expected 1 message, got %d", len(thread.History))
	}
	msg := thread.History[0]
	if msg.Role != RoleUser || msg.Content != "hello" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if !msg.CreatedAt.Equal(later) {
		t.Errorf("expected message timestamp %v, got %v", later, msg.CreatedAt)
	}
	if !thread.UpdatedAt.Equal(later) {
		t.Errorf("expected UpdatedAt to advance to %v, got %v", later, thread.UpdatedAt)
	}
}

func TestThread_Append_SanitizesContent(t *testing.T) {
	thread := NewThread("alice", "sanitizing")

	thread.Append(RoleUser, "bad \xff byte", thread.CreatedAt)

	if strings.Contains(thread.History[0].Content, "\xff") {
		t.Error("expected invalid bytes to be replaced on append")
	}
}

func TestThread_Touch_Monotonic(t *testing.T) {
	thread := NewThread("alice", "touched")
	earlier := thread.UpdatedAt.Add(-time.Hour)

	thread.Touch(earlier)

	if thread.UpdatedAt.Before(thread.CreatedAt) {
		t.Error("expected UpdatedAt to never move backwards")
	}
}

func TestThread_LastAssistantContent(t *testing.T) {
	thread := NewThread("alice", "replaying")
	if got := thread.LastAssistantContent(); got != "" {
		t.Errorf("expected empty content for empty history, got %q", got)
	}

	now := thread.CreatedAt
	thread.Append(RoleUser, "q1", now)
	thread.Append(RoleAssistant, "a1", now)
	thread.Append(RoleUser, "q2", now)
	thread.Append(RoleAssistant, "a2", now)
	thread.Append(RoleUser, "unanswered", now)

	if got := thread.LastAssistantContent(); got != "a2" {
		t.Errorf("expected the most recent assistant turn, got %q", got)
	}
}

func TestSanitizeText(t *testing.T) {
	if got := SanitizeText("clean text"); got != "clean text" {
		t.Errorf("expected clean text untouched, got %q", got)
	}
	got := SanitizeText("broken \xfe\xff text")
	if strings.Contains(got, "\xfe") || strings.Contains(got, "\xff") {
		t.Errorf("expected invalid bytes replaced, got %q", got)
	}
	if !strings.Contains(got, "�") {
		t.Errorf("expected replacement character, got %q", got)
	}
}
