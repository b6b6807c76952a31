// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services contains the conversation orchestration logic: the
// send-message flow (chat_service.go) and the prompt/context assembly
// (this file).
package services

import (
	"fmt"

	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
)

// DefaultHistoryWindow is the number of most recent history messages carried
// into the generation context when no override is configured.
const DefaultHistoryWindow = 50

// personaTemplate is the fixed instruction wrapped around every user query.
// It is static configuration content, not business logic; the %s slot takes
// the sanitized query.
const personaTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<prompt>
    <instruction>
        You are a warm, supportive companion, not a clinical assistant.
        - Speak honestly and briefly, like a close friend who truly cares
        - Use simple language and short sentences
        - Listen with real empathy before offering anything
        - Offer small, practical suggestions that are easy to act on
        - Avoid long lectures and detailed explanations
        - Remember you are not a substitute for professional help,
          but you can be a steady, caring presence
        - Keep replies to a paragraph or two at most
    </instruction>
    <userquery>
        %s
    </userquery>
</prompt>`

// BuildTurns assembles the ordered generation context for one send.
//
// It takes at most the last `window` messages of history, oldest first, and
// appends one final instruction turn built from the persona template with the
// sanitized user query interpolated. Pure and deterministic: same inputs
// always produce the same turn list, and the input history is never mutated.
func BuildTurns(history []datatypes.Message, window int, userQuery string) []datatypes.Message {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	start := len(history) - window
	if start < 0 {
		start = 0
	}

	turns := make([]datatypes.Message, 0, len(history)-start+1)
	for _, msg := range history[start:] {
		turns = append(turns, datatypes.Message{Role: msg.Role, Content: msg.Content})
	}
	turns = append(turns, datatypes.Message{
		Role:    datatypes.RoleInstruction,
		Content: BuildInstruction(userQuery),
	})
	return turns
}

// BuildInstruction renders the persona template with the sanitized query.
func BuildInstruction(userQuery string) string {
	return fmt.Sprintf(personaTemplate, datatypes.SanitizeText(userQuery))
}
