// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"

	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
)

// GenerationParams carries optional sampling parameters. Nil fields fall back
// to each provider's defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
}

// FallbackMessage is returned by the failover client when every provider
// fails. It is a reply, not an error: the orchestrator records it as the
// assistant turn so the conversation keeps a saved record of the failure.
const FallbackMessage = "I am unable to generate a response at this time."

// LLMClient defines the standard interface for any generation backend.
//
// Turns are ordered oldest-first, with a trailing RoleInstruction turn
// carrying the persona prompt; each implementation translates that shared
// vocabulary into its own wire roles. Chat returns the complete reply text,
// never a partial stream; chunked delivery is a downstream concern.
type LLMClient interface {
	Chat(ctx context.Context, turns []datatypes.Message, params GenerationParams) (string, error)
}
