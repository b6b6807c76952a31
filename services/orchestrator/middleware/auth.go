// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the orchestrator service.
//
// Authentication proper (token issuance, identity providers) lives outside
// this service; the middleware here only enforces the shared API key and
// resolves the owner identity the upstream layer forwarded, so handlers can
// rely on a non-empty owner id.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ownerIDKey is the gin context key for the resolved owner identity.
const ownerIDKey = "rafiq_owner_id"

// AnonymousOwner is the owner identity used when no identity header was
// forwarded. Single-user deployments run entirely under it.
const AnonymousOwner = "anonymous"

// HeaderAPIKey and HeaderOwnerID are the inbound headers this middleware
// consumes.
const (
	HeaderAPIKey  = "X-API-Key"
	HeaderOwnerID = "X-User-ID"
)

// SetOwnerID stores the resolved owner identity in the gin context.
func SetOwnerID(c *gin.Context, ownerID string) {
	c.Set(ownerIDKey, ownerID)
}

// GetOwnerID retrieves the resolved owner identity. Falls back to
// AnonymousOwner when the middleware did not run (direct handler tests).
func GetOwnerID(c *gin.Context) string {
	if v, ok := c.Get(ownerIDKey); ok {
		if ownerID, ok := v.(string); ok && ownerID != "" {
			return ownerID
		}
	}
	return AnonymousOwner
}

// Auth returns the request-gate middleware.
//
// When apiKey is non-empty, requests must carry it in the X-API-Key header;
// the comparison is constant-time. An empty apiKey disables the check
// (lightweight/local mode). Either way the owner identity is resolved from
// X-User-ID and stored for handlers.
func Auth(apiKey string) gin.HandlerFunc {
	if apiKey == "" {
		slog.Warn("RAFIQ_API_KEY not set, serving without an API-key check")
	}
	return func(c *gin.Context) {
		if apiKey != "" {
			provided := c.GetHeader(HeaderAPIKey)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				slog.Warn("Rejected request with a missing or invalid API key",
					"path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
				return
			}
		}

		ownerID := c.GetHeader(HeaderOwnerID)
		if ownerID == "" {
			ownerID = AnonymousOwner
		}
		SetOwnerID(c, ownerID)
		c.Next()
	}
}
