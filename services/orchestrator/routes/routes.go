// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rafiq-ai/rafiq/services/orchestrator/handlers"
	"github.com/rafiq-ai/rafiq/services/orchestrator/middleware"
	"github.com/rafiq-ai/rafiq/services/orchestrator/repository"
	"github.com/rafiq-ai/rafiq/services/orchestrator/services"
)

// SetupRoutes wires every endpoint of the orchestrator onto the router.
//
// /health and /metrics are unauthenticated; everything under /v1 passes
// through the API-key middleware. apiKey may be empty, which disables the
// key check for local deployments.
func SetupRoutes(router *gin.Engine, repo repository.ThreadRepository,
	chatService *services.ChatService, streamHandler handlers.StreamingChatHandler,
	apiKey string) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(apiKey))
	{
		v1.POST("/chat/send", handlers.HandleSendMessage(chatService))
		v1.POST("/chat/stream", streamHandler.HandleSendMessageStream)
		// Thread administration routes
		threads := v1.Group("/threads")
		{
			threads.POST("", handlers.CreateThread(repo))
			threads.GET("", handlers.ListThreads(repo))
			threads.GET("/:threadId/messages", handlers.GetThreadHistory(repo))
			threads.PATCH("/:threadId", handlers.RenameThread(repo))
			threads.DELETE("/:threadId", handlers.DeleteThread(repo))
		}
	}
}
