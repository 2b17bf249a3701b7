// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/AleutianShield/pkg/logging"
	"github.com/AleutianAI/AleutianShield/services/llm"
	"github.com/AleutianAI/AleutianShield/services/shield/auth"
	"github.com/AleutianAI/AleutianShield/services/shield/config"
	"github.com/AleutianAI/AleutianShield/services/shield/memoryctx"
	"github.com/AleutianAI/AleutianShield/services/shield/observability"
	"github.com/AleutianAI/AleutianShield/services/shield/orchestrator"
	"github.com/AleutianAI/AleutianShield/services/shield/routes"
	"github.com/AleutianAI/AleutianShield/services/shield/routing"
	"github.com/AleutianAI/AleutianShield/services/shield/store"
	"github.com/AleutianAI/AleutianShield/services/shield/tiers"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		// No collector configured; tracing stays local and cheap.
		return func(context.Context) {}, nil
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
		resource.WithAttributes(semconv.ServiceNameKey.String("shield-service")))
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

// buildProviders assembles the answer chain in fallback order from
// whatever is configured. Missing providers are skipped, not fatal.
func buildProviders(cfg *config.Config) []llm.LLMClient {
	var providers []llm.LLMClient

	if primary, err := llm.NewPrimaryClient(cfg.Providers.Primary.BaseURL, cfg.Providers.Primary.Timeout); err == nil {
		providers = append(providers, primary)
	} else {
		slog.Warn("primary inference provider not configured", "error", err)
	}
	if local, err := llm.NewLocalLlamaCppClient(cfg.Providers.Local.BaseURL, cfg.Providers.Local.Timeout); err == nil {
		providers = append(providers, local)
	} else {
		slog.Warn("local model provider not configured", "error", err)
	}
	if cloud, err := llm.NewOpenAIClient(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.Model); err == nil {
		providers = append(providers, cloud)
	} else {
		slog.Warn("OpenAI fallback not configured", "error", err)
	}
	return providers
}

func main() {
	cfg, err := config.Load(os.Getenv("SHIELD_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  cfg.LogDir,
		Service: "shield",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	kv, err := store.Open(store.Options{Path: cfg.Store.Path, InMemory: cfg.Store.InMemory})
	if err != nil {
		slog.Warn("local store unavailable, sessions will not persist", "error", err)
		kv = nil
	} else {
		defer kv.Close()
	}

	sessions := auth.NewSessionManager(auth.Config{
		BaseURL:      cfg.Auth.BaseURL,
		Email:        cfg.Auth.Email,
		Password:     cfg.Auth.Password,
		SessionTTL:   cfg.Auth.SessionTTL,
		ExpiryBuffer: cfg.Auth.ExpiryBuffer,
		Timeout:      cfg.Auth.Timeout,
		OnLogin:      metrics.RecordLogin,
	}, kv)

	edge := tiers.NewEdgeClient(cfg.Tiers.Edge.BaseURL, cfg.Tiers.Edge.Timeout)
	hybrid := tiers.NewHybridClient(cfg.Tiers.Hybrid.BaseURL, cfg.Tiers.Hybrid.Timeout, sessions)
	deep := tiers.NewDeepClient(tiers.DeepConfig{
		BaseURL:       cfg.Tiers.Deep.BaseURL,
		Timeout:       cfg.Tiers.Deep.Timeout,
		MaxRetries:    cfg.Tiers.Deep.MaxRetries,
		RetryBackoff:  cfg.Tiers.Deep.RetryBackoff,
		RatePerSecond: cfg.Tiers.Deep.RatePerSecond,
	}, sessions)

	memory := memoryctx.New(memoryctx.Config{
		BaseURL:       cfg.Memory.BaseURL,
		Timeout:       cfg.Memory.Timeout,
		CacheCapacity: cfg.Memory.CacheCapacity,
		CacheTTL:      cfg.Memory.CacheTTL,
	}, sessions)

	scanner := orchestrator.New(orchestrator.Config{
		CacheCapacity: cfg.Cache.Capacity,
		CacheTTL:      cfg.Cache.TTL,
	}, orchestrator.Deps{
		Edge:   edge,
		Hybrid: hybrid,
		Deep:   deep,
		Router: routing.New(routing.Thresholds{
			High:   cfg.Routing.HighConfidence,
			Medium: cfg.Routing.MediumConfidence,
		}),
		Memory:  memory,
		Metrics: metrics,
	})

	chain := llm.NewAnswerGenerationChain(llm.ChainConfig{
		MaxTokens:  cfg.Providers.MaxToken,
		OnFallback: metrics.RecordProviderFallback,
	}, buildProviders(cfg)...)

	if !edge.Ping(context.Background()) {
		slog.Info("edge inference sidecar not reachable, assessments start at the hybrid tier")
	}

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware("shield-service"))
	routes.SetupRoutes(router, routes.Deps{
		Assessor: scanner,
		Answerer: chain,
		Memory:   memory,
		Sessions: sessions,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	slog.Info("shield service listening", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
