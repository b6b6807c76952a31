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
)

// =============================================================================
// SendMessageRequest Validation Tests
// =============================================================================

func TestSendMessageRequest_Validate_Success(t *testing.T) {
	req := &SendMessageRequest{
		Message:   "Hello",
		ThreadID:  "550e8400-e29b-41d4-a716-446655440000",
		RequestID: "6ba7b810-9dad-41d1-80b4-00c04fd430c8",
	}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got error: %v", err)
	}
}

func TestSendMessageRequest_Validate_MinimalSuccess(t *testing.T) {
	req := &SendMessageRequest{Message: "Hello"}

	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request without optional fields, got error: %v", err)
	}
}

func TestSendMessageRequest_Validate_MissingMessage(t *testing.T) {
	req := &SendMessageRequest{}

	if err := req.Validate(); err == nil {
		t.Error("expected error for missing message, got nil")
	}
}

func TestSendMessageRequest_Validate_InvalidThreadID(t *testing.T) {
	req := &SendMessageRequest{Message: "Hello", ThreadID: "not-a-uuid"}

	if err := req.Validate(); err == nil {
		t.Error("expected error for invalid thread_id, got nil")
	}
}

func TestSendMessageRequest_Validate_InvalidRequestID(t *testing.T) {
	req := &SendMessageRequest{Message: "Hello", RequestID: "not-a-uuid"}

	if err := req.Validate(); err == nil {
		t.Error("expected error for invalid request_id, got nil")
	}
}

func TestSendMessageRequest_Validate_MessageTooLarge(t *testing.T) {
	req := &SendMessageRequest{Message: strings.Repeat("a", MaxMessageContentBytes+1)}

	if err := req.Validate(); err == nil {
		t.Errorf("expected error for message over %d bytes, got nil", MaxMessageContentBytes)
	}
}

func TestSendMessageRequest_Validate_MessageAtLimit(t *testing.T) {
	req := &SendMessageRequest{Message: strings.Repeat("a", MaxMessageContentBytes)}

	if err := req.Validate(); err != nil {
		t.Errorf("expected message at exactly the byte limit to pass, got: %v", err)
	}
}

func TestSendMessageRequest_Validate_LimitCountsBytesNotRunes(t *testing.T) {
	// Four bytes per rune; a quarter of the limit in runes already fills it.
	req := &SendMessageRequest{Message: strings.Repeat("\U0001F600", MaxMessageContentBytes/4+1)}

	if err := req.Validate(); err == nil {
		t.Error("expected the limit to apply to encoded bytes, got nil")
	}
}

func TestSendMessageRequest_Validate_ThreadNameTooLong(t *testing.T) {
	req := &SendMessageRequest{
		Message:    "Hello",
		ThreadName: strings.Repeat("n", MaxThreadNameLength+1),
	}

	if err := req.Validate(); err == nil {
		t.Error("expected error for oversized thread_name, got nil")
	}
}

// =============================================================================
// Thread Management Request Tests
// =============================================================================

func TestCreateThreadRequest_Validate(t *testing.T) {
	if err := (&CreateThreadRequest{}).Validate(); err != nil {
		t.Errorf("expected empty create request to be valid, got: %v", err)
	}
	if err := (&CreateThreadRequest{ThreadName: "A fine name"}).Validate(); err != nil {
		t.Errorf("expected named create request to be valid, got: %v", err)
	}
	long := &CreateThreadRequest{ThreadName: strings.Repeat("n", MaxThreadNameLength+1)}
	if err := long.Validate(); err == nil {
		t.Error("expected error for oversized thread_name, got nil")
	}
}

func TestRenameThreadRequest_Validate(t *testing.T) {
	if err := (&RenameThreadRequest{ThreadName: "renamed"}).Validate(); err != nil {
		t.Errorf("expected rename request to be valid, got: %v", err)
	}
	if err := (&RenameThreadRequest{}).Validate(); err == nil {
		t.Error("expected error for missing thread_name, got nil")
	}
}
