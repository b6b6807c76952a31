// Copyright (C) 2025 Rafiq AI (dev@rafiq-ai.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rafiq-ai/rafiq/services/llm"
	"github.com/rafiq-ai/rafiq/services/orchestrator/handlers"
	"github.com/rafiq-ai/rafiq/services/orchestrator/observability"
	"github.com/rafiq-ai/rafiq/services/orchestrator/repository"
	"github.com/rafiq-ai/rafiq/services/orchestrator/routes"
	"github.com/rafiq-ai/rafiq/services/orchestrator/services"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "rafiq-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("rafiq-orchestrator")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildThreadRepository connects to Mongo when MONGO_URI is set, and falls
// back to the in-memory store otherwise so the service still runs without a
// database (lightweight mode; threads do not survive a restart).
func buildThreadRepository(ctx context.Context) repository.ThreadRepository {
	mongoURI := strings.Trim(os.Getenv("MONGO_URI"), "\"' ")
	if mongoURI == "" {
		slog.Info("MONGO_URI not set or empty. Running in lightweight mode (in-memory threads).")
		return repository.NewMemoryThreadRepository()
	}

	client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to create the Mongo client: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		log.Fatalf("Failed to reach Mongo at startup: %v", err)
	}

	dbName := os.Getenv("MONGO_DATABASE")
	if dbName == "" {
		dbName = "rafiq"
	}
	repo := repository.NewMongoThreadRepository(client.Database(dbName))
	if err := repo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("Failed to ensure the thread indexes: %v", err)
	}
	slog.Info("Connected to the Mongo thread store", "database", dbName)
	return repo
}

func buildLLMClient() llm.LLMClient {
	primary, err := llm.NewGeminiClient()
	if err != nil {
		log.Fatalf("Failed to initialize the Gemini client: %v", err)
	}

	secondary, err := llm.NewOpenAIClient()
	if err != nil {
		// The failover client tolerates a missing secondary; generation
		// then degrades straight to the canned fallback reply.
		slog.Warn("OpenAI client unavailable, running without a secondary provider",
			"error", err)
		return llm.NewFailoverClient(primary, nil)
	}
	return llm.NewFailoverClient(primary, secondary)
}

// envInt reads an integer env var, returning fallback when unset or invalid.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("Ignoring a non-integer env var", "name", name, "value", raw)
		return fallback
	}
	return v
}

func main() {
	port := os.Getenv("ORCHESTRATOR_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	ctx := context.Background()
	repo := buildThreadRepository(ctx)
	llmClient := buildLLMClient()

	chatService := services.NewChatService(repo, llmClient,
		envInt("HISTORY_WINDOW", services.DefaultHistoryWindow))

	streamOpts := handlers.StreamOptions{
		ChunkWordCount: envInt("STREAM_CHUNK_WORDS", handlers.DefaultChunkWordCount),
		ChunkDelay: time.Duration(envInt("STREAM_CHUNK_DELAY_MS",
			int(handlers.DefaultChunkDelay/time.Millisecond))) * time.Millisecond,
	}
	streamHandler := handlers.NewStreamingChatHandler(chatService, streamOpts)

	router := gin.Default()
	router.Use(otelgin.Middleware("rafiq-orchestrator"))

	routes.SetupRoutes(router, repo, chatService, streamHandler, os.Getenv("RAFIQ_API_KEY"))

	log.Println("Starting the orchestrator server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
