// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter defines the contract for writing Server-Sent Events to HTTP
// responses.
//
// # Description
//
// SSEWriter abstracts SSE event serialization and writing, enabling
// testability and separation from HTTP response mechanics. Implementations
// handle the SSE wire format (event: type\ndata: json\n\n) internally.
//
// Each event is automatically assigned:
//   - Id: UUID v4 for ordering and deduplication
//   - CreatedAt: Unix timestamp in milliseconds
//   - Hash: SHA-256 hash of event content for integrity
//   - PrevHash: Hash of previous event for chain verification
//
// # Thread Safety
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Assumptions
//
//   - Caller has set Content-Type: text/event-stream before writing
//   - Caller has disabled buffering (X-Accel-Buffering: no)
type SSEWriter interface {
	// WriteEvent writes a single SSE event to the response.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteThread writes the stream-opening event carrying the thread id, so
	// the client can bind the stream to a conversation before any content
	// arrives.
	WriteThread(threadID string) error

	// WriteChunk writes one word-grouped fragment of the reply.
	WriteChunk(chunk string) error

	// WriteDone writes the terminating event. saved reports whether the
	// assistant turn reached durable storage.
	WriteDone(threadID string, saved bool) error
}

// =============================================================================
// Struct Definition
// =============================================================================

// sseWriter implements SSEWriter over an http.ResponseWriter.
//
// Each event is written as:
//
//	event: {type}
//	data: {json}
//
// The writer maintains a hash chain: each event's Hash covers its content and
// its PrevHash links to the previous event, giving the client a way to detect
// dropped or reordered frames.
type sseWriter struct {
	writer   http.ResponseWriter
	flusher  http.Flusher
	prevHash string
	mu       sync.Mutex
}

// NewSSEWriter creates an SSEWriter for the given ResponseWriter. The caller
// must set SSE headers first via SetSSEHeaders. Fails if the ResponseWriter
// does not support http.Flusher.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{
		writer:   w,
		flusher:  flusher,
		prevHash: "",
	}, nil
}

// =============================================================================
// Methods
// =============================================================================

// WriteEvent populates event metadata (Id, CreatedAt, Hash, PrevHash),
// serializes to JSON, and writes in SSE format. Flushes immediately.
func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event.Id = uuid.New().String()
	event.CreatedAt = time.Now().UnixMilli()
	event.PrevHash = w.prevHash
	event.Hash = computeEventHash(event)
	w.prevHash = event.Hash

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// computeEventHash hashes all content fields of the event. Called with the
// Hash field still empty.
func computeEventHash(event datatypes.StreamEvent) string {
	saved := ""
	if event.Saved != nil {
		saved = fmt.Sprintf("%t", *event.Saved)
	}
	hashInput := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%t|%s",
		event.Id,
		event.Type,
		event.CreatedAt,
		event.PrevHash,
		event.ThreadID,
		event.Chunk,
		event.Done,
		saved,
	)
	hash := sha256.Sum256([]byte(hashInput))
	return hex.EncodeToString(hash[:])
}

// WriteThread writes the stream-opening thread event.
func (w *sseWriter) WriteThread(threadID string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:     datatypes.StreamEventThread,
		ThreadID: threadID,
	})
}

// WriteChunk writes one chunk event.
func (w *sseWriter) WriteChunk(chunk string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:  datatypes.StreamEventChunk,
		Chunk: chunk,
	})
}

// WriteDone writes the terminating done event.
func (w *sseWriter) WriteDone(threadID string, saved bool) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:     datatypes.StreamEventDone,
		ThreadID: threadID,
		Done:     true,
		Saved:    &saved,
	})
}

// =============================================================================
// Helper Functions
// =============================================================================

// SetSSEHeaders configures HTTP response headers for SSE streaming. Must be
// called before writing any response body.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

var _ SSEWriter = (*sseWriter)(nil)
