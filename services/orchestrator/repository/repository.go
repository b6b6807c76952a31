// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package repository provides persistence for conversation threads.
//
// Two implementations exist: MongoThreadRepository for production, and
// MemoryThreadRepository for lightweight mode (no MONGO_URI configured) and
// for tests. Both enforce the same contract, including thread-id uniqueness
// and version-checked replacement.
package repository

import (
	"context"
	"errors"

	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
)

var (
	// ErrNotFound indicates no thread exists with the given id.
	ErrNotFound = errors.New("thread not found")

	// ErrDuplicateID indicates a create collided with an existing thread id.
	// This should not occur under correct unique-id generation; when it does
	// it is surfaced as a terminal failure, never silently overwritten.
	ErrDuplicateID = errors.New("thread id already exists")

	// ErrConflict indicates a replace raced another writer: the stored
	// version no longer matches the version the caller read. The caller's
	// mutation was not applied.
	ErrConflict = errors.New("thread was modified concurrently")
)

// ThreadRepository is the persistence boundary for conversation threads.
//
// # Contract
//
//   - Create fails with ErrDuplicateID if the thread id already exists.
//   - GetByID returns ErrNotFound for unknown ids; never partial documents.
//   - GetByOwner returns all threads for an owner in unspecified order.
//   - Replace is a full-document overwrite keyed by thread id, guarded by the
//     document version the caller read: ErrNotFound if the id is gone,
//     ErrConflict if another writer got there first. On success the passed
//     thread's Version is advanced to the stored value.
//   - Delete is idempotent and reports whether a document was removed.
//   - EnsureIndexes establishes the uniqueness constraint on thread_id; call
//     it once at startup, before traffic is served.
type ThreadRepository interface {
	EnsureIndexes(ctx context.Context) error
	Create(ctx context.Context, thread *datatypes.Thread) error
	GetByID(ctx context.Context, threadID string) (*datatypes.Thread, error)
	GetByOwner(ctx context.Context, ownerID string) ([]*datatypes.Thread, error)
	Replace(ctx context.Context, thread *datatypes.Thread) error
	Delete(ctx context.Context, threadID string) (bool, error)
}
