// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
	"github.com/shopassist/shopassist/services/dispatcher/observability"
)

// heartbeatInterval is how often keepalive comments are sent while the
// model is generating.
const heartbeatInterval = 15 * time.Second

// ChatStream handles the streaming chat endpoint.
//
// # Description
//
// The response is an SSE stream. Event order on success:
//
//  1. status: acknowledgment that processing started
//  2. token: response fragments in generation order
//  3. products: structured catalog rows, only for product results
//  4. done: final event carrying the resolved route and session ID
//
// A fault after the stream opened is reported as an error event; the HTTP
// status is already committed at that point. Nothing is persisted on a
// faulted stream.
//
// # Limitations
//
//   - Keepalive comments may interleave with events. SSE clients ignore
//     comment lines, so ordering of real events is unaffected.
func ChatStream(p Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
			return
		}
		req.EnsureDefaults()
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		SetSSEHeaders(c.Writer)
		writer, err := NewSSEWriter(c.Writer)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.StreamStarted()
			defer m.StreamEnded()
		}
		start := time.Now()

		if err := writer.WriteStatus("Processing your question..."); err != nil {
			return
		}

		// Heartbeat until the pipeline finishes.
		heartbeatDone := make(chan struct{})
		var heartbeatWG sync.WaitGroup
		heartbeatWG.Add(1)
		go func() {
			defer heartbeatWG.Done()
			ticker := time.NewTicker(heartbeatInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := writer.WriteKeepAlive(); err != nil {
						return
					}
					if m := observability.DefaultMetrics; m != nil {
						m.RecordKeepAlive()
					}
				case <-heartbeatDone:
					return
				}
			}
		}()

		firstFragment := true
		emit := func(fragment string) error {
			if firstFragment {
				firstFragment = false
				if m := observability.DefaultMetrics; m != nil {
					m.RecordTimeToFirstFragment(time.Since(start).Seconds())
				}
			}
			return writer.WriteToken(fragment)
		}

		resp, execErr := p.Execute(c.Request.Context(), req, emit)

		close(heartbeatDone)
		heartbeatWG.Wait()

		if execErr != nil {
			if errors.Is(execErr, context.Canceled) {
				slog.Info("Client disconnected mid-stream", "session", req.SessionID)
				if m := observability.DefaultMetrics; m != nil {
					m.RecordClientDisconnect()
				}
			} else if err := writer.WriteError("failed to process the query"); err != nil {
				slog.Warn("Could not deliver error event", "error", err)
			}
			if m := observability.DefaultMetrics; m != nil {
				m.RecordStreamDuration(time.Since(start).Seconds(), false)
			}
			return
		}

		if len(resp.Products) > 0 {
			if err := writer.WriteProducts(resp.Products); err != nil {
				return
			}
		}
		if err := writer.WriteDone(resp.Route, req.SessionID); err != nil {
			return
		}
		if m := observability.DefaultMetrics; m != nil {
			m.RecordStreamDuration(time.Since(start).Seconds(), true)
		}
	}
}
