// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// StreamEventType represents the type of a streaming event.
type StreamEventType string

const (
	// StreamEventThread is the first event of every stream. It carries the
	// thread id so the client can bind the stream to a conversation before
	// any content arrives.
	StreamEventThread StreamEventType = "thread"

	// StreamEventChunk carries one word-grouped fragment of the reply.
	StreamEventChunk StreamEventType = "chunk"

	// StreamEventDone terminates the stream.
	StreamEventDone StreamEventType = "done"
)

// StreamEvent is a single framed event of a chat response stream.
//
// Metadata fields (Id, CreatedAt, Hash, PrevHash) are populated by the SSE
// writer: each event gets a UUID and timestamp, its content is hashed, and
// each hash links to the previous event's so a client can verify nothing was
// dropped or reordered.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	ThreadID string          `json:"thread_id,omitempty"`
	Chunk    string          `json:"chunk,omitempty"`
	Done     bool            `json:"done,omitempty"`
	Saved    *bool           `json:"saved,omitempty"`

	Id        string `json:"id,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`
	Hash      string `json:"hash,omitempty"`
	PrevHash  string `json:"prev_hash,omitempty"`
}
