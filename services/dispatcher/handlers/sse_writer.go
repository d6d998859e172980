// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter writes Server-Sent Events to an HTTP response.
//
// # Description
//
// Abstracts the SSE wire format (event: type\ndata: json\n\n) so streaming
// handlers stay independent of response mechanics. Every event is assigned
// a UUID and a millisecond timestamp before serialization.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; the keepalive ticker
// writes from its own goroutine.
type SSEWriter interface {
	// WriteEvent writes one event, filling in Id and CreatedAt, and
	// flushes immediately.
	WriteEvent(event datatypes.StreamEvent) error

	// WriteStatus writes a status event with a human-readable message.
	WriteStatus(message string) error

	// WriteToken streams one response fragment in display order.
	WriteToken(content string) error

	// WriteProducts writes the structured product rows backing a catalog
	// answer, sent once after the token fragments and before done.
	WriteProducts(products []map[string]any) error

	// WriteError informs the client of a failure. The message must be
	// sanitized; internal details stay in the server log.
	WriteError(errMsg string) error

	// WriteDone terminates a successful stream with the resolved route
	// and session ID. Nothing may be written after it.
	WriteDone(route, sessionID string) error

	// WriteKeepAlive sends an SSE comment line to keep intermediaries
	// from timing out the connection during slow generations.
	WriteKeepAlive() error
}

// =============================================================================
// Implementation
// =============================================================================

// sseWriter wraps an http.ResponseWriter to emit SSE events. Writes are
// serialized by a mutex and flushed immediately.
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewSSEWriter wraps w. The caller must have set SSE headers already; see
// SetSSEHeaders.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}
	return &sseWriter{writer: w, flusher: flusher}, nil
}

func (w *sseWriter) WriteEvent(event datatypes.StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	event.Id = uuid.New().String()
	event.CreatedAt = time.Now().UnixMilli()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(w.writer, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	w.flusher.Flush()
	return nil
}

func (w *sseWriter) WriteStatus(message string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamEventStatus,
		Message: message,
	})
}

func (w *sseWriter) WriteToken(content string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:    datatypes.StreamEventToken,
		Content: content,
	})
}

func (w *sseWriter) WriteProducts(products []map[string]any) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:     datatypes.StreamEventProducts,
		Products: products,
	})
}

func (w *sseWriter) WriteError(errMsg string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:  datatypes.StreamEventError,
		Error: errMsg,
	})
}

func (w *sseWriter) WriteDone(route, sessionID string) error {
	return w.WriteEvent(datatypes.StreamEvent{
		Type:      datatypes.StreamEventDone,
		Route:     route,
		SessionId: sessionID,
	})
}

// WriteKeepAlive sends a comment line. Comments are ignored by SSE clients
// but keep the TCP connection active through proxies with idle timeouts.
func (w *sseWriter) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprint(w.writer, ": ping\n\n"); err != nil {
		return fmt.Errorf("write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetSSEHeaders sets the response headers required for SSE streaming.
// Must be called before the first write.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
