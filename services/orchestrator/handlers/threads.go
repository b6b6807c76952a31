// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rafiq-ai/rafiq/services/orchestrator/datatypes"
	"github.com/rafiq-ai/rafiq/services/orchestrator/middleware"
	"github.com/rafiq-ai/rafiq/services/orchestrator/observability"
	"github.com/rafiq-ai/rafiq/services/orchestrator/repository"
)

// Thread management endpoints: thin pass-throughs to the thread store plus
// the obvious not-found mapping. The conversation flow itself lives in the
// chat handlers.

// CreateThread handles POST /v1/threads: creates a new empty thread for the
// calling owner.
func CreateThread(repo repository.ThreadRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateThreadRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
			return
		}

		ownerID := middleware.GetOwnerID(c)
		thread := datatypes.NewThread(ownerID, req.ThreadName)
		if err := repo.Create(c.Request.Context(), thread); err != nil {
			writeStoreError(c, observability.EndpointThreads, thread.ThreadID, err)
			return
		}
		slog.Info("Created an empty chat thread", "threadId", thread.ThreadID, "ownerId", ownerID)
		c.JSON(http.StatusOK, datatypes.Summarize(thread))
	}
}

// ListThreads handles GET /v1/threads: all threads for the calling owner,
// without histories. Order is unspecified.
func ListThreads(repo repository.ThreadRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := middleware.GetOwnerID(c)
		threads, err := repo.GetByOwner(c.Request.Context(), ownerID)
		if err != nil {
			writeStoreError(c, observability.EndpointThreads, "", err)
			return
		}
		summaries := make([]datatypes.ThreadSummary, 0, len(threads))
		for _, thread := range threads {
			summaries = append(summaries, datatypes.Summarize(thread))
		}
		c.JSON(http.StatusOK, summaries)
	}
}

// GetThreadHistory handles GET /v1/threads/:threadId/messages.
func GetThreadHistory(repo repository.ThreadRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("threadId")
		thread, err := repo.GetByID(c.Request.Context(), threadID)
		if err != nil {
			writeStoreError(c, observability.EndpointThreads, threadID, err)
			return
		}
		c.JSON(http.StatusOK, thread.History)
	}
}

// DeleteThread handles DELETE /v1/threads/:threadId. Deletion is idempotent:
// an unknown id reports removed=false with status 200 rather than an error.
func DeleteThread(repo repository.ThreadRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("threadId")
		slog.Info("Received a request to delete a thread", "threadId", threadID)
		removed, err := repo.Delete(c.Request.Context(), threadID)
		if err != nil {
			writeStoreError(c, observability.EndpointThreads, threadID, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"thread_id": threadID, "removed": removed})
	}
}

// RenameThread handles PATCH /v1/threads/:threadId: updates the display name.
// Retries the version-checked replace a few times so a rename does not fail
// just because a concurrent send advanced the document.
func RenameThread(repo repository.ThreadRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("threadId")
		var req datatypes.RenameThreadRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: validation failed"})
			return
		}

		const renameAttempts = 3
		var lastErr error
		for attempt := 0; attempt < renameAttempts; attempt++ {
			thread, err := repo.GetByID(c.Request.Context(), threadID)
			if err != nil {
				writeStoreError(c, observability.EndpointThreads, threadID, err)
				return
			}
			thread.ThreadName = datatypes.SanitizeText(req.ThreadName)
			thread.Touch(time.Now().UTC())
			lastErr = repo.Replace(c.Request.Context(), thread)
			if lastErr == nil {
				c.JSON(http.StatusOK, datatypes.Summarize(thread))
				return
			}
			if !errors.Is(lastErr, repository.ErrConflict) {
				break
			}
		}
		writeStoreError(c, observability.EndpointThreads, threadID, lastErr)
	}
}

// HealthCheck handles GET /health.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "rafiq-orchestrator"})
}
