// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var geminiTracer = otel.Tracer("rafiq.llm.gemini")

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini generateContent request/response structures.
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig *geminiGenConf  `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConf struct {
	Temperature     *float32 `json:"temperature,omitempty"`
	TopP            *float32 `json:"topP,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GeminiClient is the primary generation backend, talking to the Gemini
// generateContent REST API. The API key is sealed in a memguard enclave so
// it never sits in plain heap memory between requests.
type GeminiClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     *memguard.Enclave
	model      string
}

// NewGeminiClient builds a client from the environment: GEMINI_API_KEY (or
// the mounted secret), GEMINI_MODEL, GEMINI_BASE_URL.
func NewGeminiClient() (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		secretPath := "/run/secrets/gemini_api_key"
		if content, err := os.ReadFile(secretPath); err == nil {
			apiKey = strings.TrimSpace(string(content))
			slog.Info("Read the Gemini API Key from secrets")
		} else {
			slog.Error("GEMINI_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.0-flash"
		slog.Warn("GEMINI_MODEL not set, defaulting to gemini-2.0-flash")
	}
	baseURL := os.Getenv("GEMINI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Gemini client", "model", model)
	return &GeminiClient{
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		baseURL:    baseURL,
		apiKey:     memguard.NewEnclave([]byte(apiKey)),
		model:      model,
	}, nil
}

// Chat implements the LLMClient interface.
//
// History turns are rendered as single role-tagged text blocks, matching the
// flat context the model was tuned against; the trailing instruction turn is
// passed through as its own content entry.
func (g *GeminiClient) Chat(ctx context.Context, turns []datatypes.Message,
	params GenerationParams) (string, error) {

	ctx, span := geminiTracer.Start(ctx, "GeminiClient.Chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", g.model),
		attribute.Int("llm.turn_count", len(turns)),
	)
	slog.Debug("Generating text via Gemini", "model", g.model, "turns", len(turns))

	payload := geminiRequest{Contents: toGeminiContents(turns)}
	if params.Temperature != nil || params.TopP != nil || params.MaxTokens != nil {
		payload.GenerationConfig = &geminiGenConf{
			Temperature:     params.Temperature,
			TopP:            params.TopP,
			MaxOutputTokens: params.MaxTokens,
		}
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal Gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("create Gemini request: %w", err)
	}
	key, err := g.apiKey.Open()
	if err != nil {
		return "", fmt.Errorf("unseal Gemini API key: %w", err)
	}
	defer key.Destroy()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", key.String())

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read Gemini response: %w", err)
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("decode Gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := resp.Status
		if geminiResp.Error != nil {
			msg = geminiResp.Error.Message
		}
		span.SetStatus(codes.Error, msg)
		slog.Error("Gemini API returned an error", "status", resp.StatusCode, "message", msg)
		return "", fmt.Errorf("Gemini API error (status %d): %s", resp.StatusCode, msg)
	}
	if len(geminiResp.Candidates) == 0 {
		slog.Warn("Gemini returned no candidates")
		return "", fmt.Errorf("Gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range geminiResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("Gemini returned an empty completion")
	}
	return text.String(), nil
}

// toGeminiContents renders the shared turn vocabulary into Gemini contents.
// History turns collapse to user-role text blocks of the form
// "role: <role>\ncontent: <content>"; the instruction turn stays verbatim.
func toGeminiContents(turns []datatypes.Message) []geminiContent {
	contents := make([]geminiContent, 0, len(turns))
	for _, turn := range turns {
		text := turn.Content
		if turn.Role != datatypes.RoleInstruction {
			text = fmt.Sprintf("role: %s\ncontent: %s", turn.Role, turn.Content)
		}
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: text}},
		})
	}
	return contents
}
