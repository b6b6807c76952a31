// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
)

// MemoryThreadRepository is an in-process ThreadRepository.
//
// It backs lightweight mode (no MONGO_URI configured) and tests. Threads are
// deep-copied on the way in and out so callers cannot mutate stored state
// without going through Replace.
type MemoryThreadRepository struct {
	mu      sync.RWMutex
	threads map[string]*datatypes.Thread
}

// NewMemoryThreadRepository creates an empty in-memory repository.
func NewMemoryThreadRepository() *MemoryThreadRepository {
	return &MemoryThreadRepository{threads: make(map[string]*datatypes.Thread)}
}

// EnsureIndexes is a no-op; uniqueness is inherent to the backing map.
func (r *MemoryThreadRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

// Create stores a new thread, failing on an id collision.
func (r *MemoryThreadRepository) Create(ctx context.Context, thread *datatypes.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.threads[thread.ThreadID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, thread.ThreadID)
	}
	r.threads[thread.ThreadID] = cloneThread(thread)
	return nil
}

// GetByID returns a copy of the stored thread.
func (r *MemoryThreadRepository) GetByID(ctx context.Context, threadID string) (*datatypes.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	thread, ok := r.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	return cloneThread(thread), nil
}

// GetByOwner returns copies of all threads for an owner, order unspecified.
func (r *MemoryThreadRepository) GetByOwner(ctx context.Context, ownerID string) ([]*datatypes.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var threads []*datatypes.Thread
	for _, thread := range r.threads {
		if thread.OwnerID == ownerID {
			threads = append(threads, cloneThread(thread))
		}
	}
	return threads, nil
}

// Replace overwrites the stored thread if the caller's version still matches.
func (r *MemoryThreadRepository) Replace(ctx context.Context, thread *datatypes.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.threads[thread.ThreadID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, thread.ThreadID)
	}
	if stored.Version != thread.Version {
		return fmt.Errorf("%w: %s", ErrConflict, thread.ThreadID)
	}
	next := cloneThread(thread)
	next.Version = thread.Version + 1
	r.threads[thread.ThreadID] = next
	thread.Version = next.Version
	return nil
}

// Delete removes a thread; unknown ids report false without error.
func (r *MemoryThreadRepository) Delete(ctx context.Context, threadID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[threadID]; !ok {
		return false, nil
	}
	delete(r.threads, threadID)
	return true, nil
}

func cloneThread(t *datatypes.Thread) *datatypes.Thread {
	clone := *t
	clone.History = make([]datatypes.Message, len(t.History))
	copy(clone.History, t.History)
	return &clone
}

var _ ThreadRepository = (*MemoryThreadRepository)(nil)
