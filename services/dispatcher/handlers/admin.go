// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
	"github.com/shopassist/shopassist/services/dispatcher/session"
	"github.com/shopassist/shopassist/services/productdb"
	"github.com/shopassist/shopassist/services/search"
)

// HealthCheck is the liveness probe.
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// Counter exposes a backend's record count for the stats endpoint.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// StatsDeps collects everything the stats endpoint reports on.
type StatsDeps struct {
	Start    time.Time
	Sessions *session.Store
	FAQIndex Counter
	Products Counter
	Routes   []string
}

// Stats reports uptime, session counts, backend health, and the configured
// routes. Backend probes are best-effort; a failing backend shows its error
// string instead of taking the endpoint down.
func Stats(deps StatsDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uptime := time.Since(deps.Start)
		uptimeSeconds := int64(uptime.Seconds())
		hours := uptimeSeconds / 3600
		minutes := (uptimeSeconds % 3600) / 60
		seconds := uptimeSeconds % 60

		resp := datatypes.StatsResponse{
			Uptime:        fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds),
			UptimeSeconds: uptimeSeconds,
			Sessions: datatypes.SessionStats{
				Active:      deps.Sessions.ActiveCount(),
				TotalStored: deps.Sessions.StoredMessageCount(),
				TTLMinutes:  int(deps.Sessions.TTL().Minutes()),
			},
			FAQIndex:  probe(c.Request.Context(), deps.FAQIndex),
			ProductDB: probe(c.Request.Context(), deps.Products),
			Routes:    deps.Routes,
		}

		c.JSON(http.StatusOK, resp)
	}
}

func probe(ctx context.Context, counter Counter) datatypes.BackendStatus {
	if counter == nil {
		return datatypes.BackendStatus{Status: "not configured"}
	}
	n, err := counter.Count(ctx)
	if err != nil {
		return datatypes.BackendStatus{Status: err.Error()}
	}
	return datatypes.BackendStatus{Status: "ok", Count: &n}
}

// Ingester loads FAQ entries into the search index.
type Ingester func(ctx context.Context, entries []search.FaqEntry) (int, error)

// IngestFAQ loads the FAQ CSV at csvPath into the search index. Entries
// carry deterministic IDs, so calling it again upserts instead of
// duplicating.
func IngestFAQ(csvPath string, ingest Ingester) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := os.Open(csvPath)
		if err != nil {
			slog.Error("Failed to open FAQ CSV", "path", csvPath, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "FAQ data file not available"})
			return
		}
		defer f.Close()

		entries, err := search.ReadFaqCSV(f)
		if err != nil {
			slog.Error("Failed to parse FAQ CSV", "path", csvPath, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "FAQ data file is malformed"})
			return
		}

		n, err := ingest(c.Request.Context(), entries)
		if err != nil {
			slog.Error("FAQ ingestion failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "FAQ ingestion failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "FAQ data ingested successfully.",
			"ingested": n,
		})
	}
}

var _ Counter = (*productdb.Store)(nil)
