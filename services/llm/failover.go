// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"log/slog"

	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var failoverTracer = otel.Tracer("rafiq.llm.failover")

// FailoverClient routes generation across an ordered provider list: primary
// first, then secondary on any primary failure. Network errors, quota
// rejections, timeouts and malformed responses are all treated alike.
//
// Chat never returns an error: when the secondary also fails, the fixed
// FallbackMessage is returned as the completion text so the caller can still
// record an assistant turn. There is no third-level retry, and the client is
// not idempotent; callers must not invoke it twice for one logical send.
type FailoverClient struct {
	primary   LLMClient
	secondary LLMClient
}

// NewFailoverClient creates the failover chain. primary must not be nil;
// secondary may be nil, in which case a primary failure goes straight to the
// fallback text.
func NewFailoverClient(primary, secondary LLMClient) *FailoverClient {
	if primary == nil {
		panic("NewFailoverClient: primary must not be nil")
	}
	return &FailoverClient{primary: primary, secondary: secondary}
}

// Chat implements the LLMClient interface.
func (f *FailoverClient) Chat(ctx context.Context, turns []datatypes.Message,
	params GenerationParams) (string, error) {

	ctx, span := failoverTracer.Start(ctx, "FailoverClient.Chat")
	defer span.End()

	text, err := f.primary.Chat(ctx, turns, params)
	if err == nil {
		span.SetAttributes(attribute.String("llm.provider", "primary"))
		return text, nil
	}
	slog.Warn("Primary generation provider failed, retrying with secondary", "error", err)

	if f.secondary != nil {
		text, err = f.secondary.Chat(ctx, turns, params)
		if err == nil {
			span.SetAttributes(attribute.String("llm.provider", "secondary"))
			return text, nil
		}
		slog.Error("Secondary generation provider failed, using fallback message", "error", err)
	} else {
		slog.Error("No secondary generation provider configured, using fallback message")
	}

	span.SetAttributes(attribute.String("llm.provider", "fallback"))
	return FallbackMessage, nil
}

var _ LLMClient = (*FailoverClient)(nil)
