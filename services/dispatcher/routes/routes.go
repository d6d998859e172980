// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/shopassist/shopassist/services/dispatcher/handlers"
	"github.com/shopassist/shopassist/services/dispatcher/middleware"
)

// Deps carries everything the route table needs.
type Deps struct {
	Dispatcher handlers.Dispatcher
	Stats      handlers.StatsDeps
	FAQCSVPath string
	Ingest     handlers.Ingester
	RateLimit  *middleware.RateLimiter
}

// SetupRoutes mounts all endpoints on the engine. The chat endpoints sit
// behind the per-IP rate limiter; ops and admin endpoints do not.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(otelgin.Middleware("shopassist-dispatcher"))

	router.GET("/health", handlers.HealthCheck())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := router.Group("/admin")
	{
		admin.GET("/stats", handlers.Stats(deps.Stats))
	}

	router.POST("/ingest/faq", handlers.IngestFAQ(deps.FAQCSVPath, deps.Ingest))

	// API version 1 group
	v1 := router.Group("/v1")
	if deps.RateLimit != nil {
		v1.Use(deps.RateLimit.Middleware())
	}
	{
		v1.POST("/chat", handlers.Chat(deps.Dispatcher))
		v1.POST("/chat/stream", handlers.ChatStream(deps.Dispatcher))
	}
}
