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
	"log/slog"

	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const threadCollection = "threads"

// MongoThreadRepository stores Thread documents in a MongoDB collection.
//
// Each thread is one document keyed by its thread_id field; messages are
// embedded, so thread deletion is a single-document operation.
type MongoThreadRepository struct {
	coll *mongo.Collection
}

// NewMongoThreadRepository creates a repository over the given database.
func NewMongoThreadRepository(db *mongo.Database) *MongoThreadRepository {
	return &MongoThreadRepository{coll: db.Collection(threadCollection)}
}

// EnsureIndexes creates the unique index on thread_id and the owner lookup
// index. Idempotent; Mongo treats re-creation of an identical index as a
// no-op.
func (r *MongoThreadRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "thread_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "owner_id", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create thread indexes: %w", err)
	}
	slog.Info("Thread store indexes ensured", "collection", threadCollection)
	return nil
}

// Create persists a new thread document.
func (r *MongoThreadRepository) Create(ctx context.Context, thread *datatypes.Thread) error {
	if _, err := r.coll.InsertOne(ctx, thread); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, thread.ThreadID)
		}
		return fmt.Errorf("insert thread %s: %w", thread.ThreadID, err)
	}
	return nil
}

// GetByID fetches one thread by its id.
func (r *MongoThreadRepository) GetByID(ctx context.Context, threadID string) (*datatypes.Thread, error) {
	var thread datatypes.Thread
	err := r.coll.FindOne(ctx, bson.M{"thread_id": threadID}).Decode(&thread)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("find thread %s: %w", threadID, err)
	}
	return &thread, nil
}

// GetByOwner fetches all threads belonging to an owner. Order is whatever the
// store returns; callers must not assume recency ordering.
func (r *MongoThreadRepository) GetByOwner(ctx context.Context, ownerID string) ([]*datatypes.Thread, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("find threads for owner: %w", err)
	}
	var threads []*datatypes.Thread
	if err := cursor.All(ctx, &threads); err != nil {
		return nil, fmt.Errorf("decode threads for owner: %w", err)
	}
	return threads, nil
}

// Replace overwrites the full thread document, guarded by the version the
// caller read. A matched-count of zero means either the document is gone or a
// concurrent writer advanced the version; the two are distinguished with a
// follow-up existence check so the caller gets ErrNotFound vs ErrConflict.
func (r *MongoThreadRepository) Replace(ctx context.Context, thread *datatypes.Thread) error {
	readVersion := thread.Version
	next := *thread
	next.Version = readVersion + 1

	result, err := r.coll.ReplaceOne(ctx,
		bson.M{"thread_id": thread.ThreadID, "version": readVersion}, &next)
	if err != nil {
		return fmt.Errorf("replace thread %s: %w", thread.ThreadID, err)
	}
	if result.MatchedCount == 0 {
		count, countErr := r.coll.CountDocuments(ctx, bson.M{"thread_id": thread.ThreadID})
		if countErr != nil {
			return fmt.Errorf("replace thread %s: %w", thread.ThreadID, countErr)
		}
		if count == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, thread.ThreadID)
		}
		return fmt.Errorf("%w: %s", ErrConflict, thread.ThreadID)
	}
	thread.Version = next.Version
	return nil
}

// Delete removes a thread and its embedded messages atomically. Deleting an
// unknown id is not an error; the boolean reports whether anything was
// removed.
func (r *MongoThreadRepository) Delete(ctx context.Context, threadID string) (bool, error) {
	result, err := r.coll.DeleteOne(ctx, bson.M{"thread_id": threadID})
	if err != nil {
		return false, fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return result.DeletedCount == 1, nil
}

var _ ThreadRepository = (*MongoThreadRepository)(nil)
