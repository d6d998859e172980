// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/shopassist/shopassist/services/dispatcher/config"
	"github.com/shopassist/shopassist/services/dispatcher/handlers"
	"github.com/shopassist/shopassist/services/dispatcher/middleware"
	"github.com/shopassist/shopassist/services/dispatcher/observability"
	"github.com/shopassist/shopassist/services/dispatcher/pipeline"
	"github.com/shopassist/shopassist/services/dispatcher/router"
	"github.com/shopassist/shopassist/services/dispatcher/routes"
	"github.com/shopassist/shopassist/services/dispatcher/session"
	"github.com/shopassist/shopassist/services/dispatcher/strategy"
	"github.com/shopassist/shopassist/services/llm"
	"github.com/shopassist/shopassist/services/productdb"
	"github.com/shopassist/shopassist/services/search"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatcher HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
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
		resource.WithAttributes(semconv.ServiceNameKey.String("shopassist-dispatcher")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient builds a client from WEAVIATE_SERVICE_URL. Quotes and
// whitespace are trimmed in case the container runtime passes them
// literally.
func newWeaviateClient() (*weaviate.Client, error) {
	raw := strings.Trim(envOr("WEAVIATE_SERVICE_URL", "http://localhost:8080"), "\"' ")
	parsedURL, err := url.Parse(raw)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("WEAVIATE_SERVICE_URL %q is not a valid URL", raw)
	}
	return weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
}

func loadRegistry() *config.Registry {
	path := os.Getenv("INTENT_CONFIG_PATH")
	if path == "" {
		slog.Info("INTENT_CONFIG_PATH not set, using the built-in intent registry")
		return config.Default()
	}
	reg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load intent registry: %v", err)
	}
	slog.Info("Loaded intent registry", "path", path, "routes", len(reg.Routes))
	return reg
}

func runServe() {
	ctx := context.Background()
	start := time.Now()

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	registry := loadRegistry()

	weaviateClient, err := newWeaviateClient()
	if err != nil {
		log.Fatalf("Failed to create Weaviate client: %v", err)
	}
	if err := search.EnsureSchema(ctx, weaviateClient); err != nil {
		log.Fatalf("Failed to ensure Weaviate schema: %v", err)
	}
	if err := seedUtterances(ctx, weaviateClient, registry); err != nil {
		log.Fatalf("Failed to seed route utterances: %v", err)
	}

	productStore, err := productdb.Open(envOr("PRODUCT_DB_PATH", "db.sqlite"), 5)
	if err != nil {
		log.Fatalf("Failed to open product database: %v", err)
	}
	defer productStore.Close()

	groqClient, err := llm.NewGroqClient()
	if err != nil {
		log.Fatalf("Failed to configure completion client: %v", err)
	}

	sessions := session.NewStore(session.DefaultTTL, session.DefaultMaxTurns)

	searcher := search.NewFaqSearcher(weaviateClient, 2)
	utterances := search.NewUtteranceIndex(weaviateClient)
	queryRouter := router.New(utterances, registry.Thresholds(), registry.DefaultThreshold)

	strategies := make(map[string]strategy.Strategy, len(registry.Routes))
	for _, rt := range registry.Routes {
		switch rt.Strategy {
		case "faq":
			strategies[rt.Name] = strategy.NewFAQStrategy(searcher, groqClient)
		case "sql":
			strategies[rt.Name] = strategy.NewSQLStrategy(productStore, groqClient)
		}
	}
	fallback := strategy.NewFallbackStrategy(groqClient)

	dispatcher := pipeline.New(queryRouter, strategies, fallback, sessions)

	routeNames := make([]string, 0, len(registry.Routes))
	for _, rt := range registry.Routes {
		routeNames = append(routeNames, rt.Name)
	}

	engine := gin.Default()
	routes.SetupRoutes(engine, routes.Deps{
		Dispatcher: dispatcher,
		Stats: handlers.StatsDeps{
			Start:    start,
			Sessions: sessions,
			FAQIndex: searcher,
			Products: productStore,
			Routes:   routeNames,
		},
		FAQCSVPath: envOr("FAQ_CSV_PATH", "resources/faq_data.csv"),
		Ingest: func(ctx context.Context, entries []search.FaqEntry) (int, error) {
			return search.IngestFAQ(ctx, weaviateClient, entries)
		},
		RateLimit: middleware.NewRateLimiter(20),
	})

	port := envOr("DISPATCHER_PORT", "8000")
	slog.Info("Starting the dispatcher server", "port", port)
	if err := engine.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// seedUtterances loads the registry's routing examples into the utterance
// index. Deterministic IDs make this an idempotent upsert.
func seedUtterances(ctx context.Context, client *weaviate.Client, registry *config.Registry) error {
	var all []search.Utterance
	for _, rt := range registry.Routes {
		for _, u := range rt.Utterances {
			all = append(all, search.Utterance{Text: u, Route: rt.Name})
		}
	}
	_, err := search.IngestUtterances(ctx, client, all)
	return err
}
