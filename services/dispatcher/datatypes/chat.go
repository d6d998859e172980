// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the dispatcher service.
//
// This file contains request, response, and wire types for the chat
// endpoints (buffered and streaming).
package datatypes

import "fmt"

// Role values for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry in a conversation.
//
// # Description
//
// Messages are the unit of both session history and completion-service
// payloads. History holds alternating user/assistant messages, oldest
// first; system messages are only ever prepended when building a
// completion request and are never stored in a session.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the input for both chat endpoints.
//
// SessionID is caller-supplied and opaque; it is not validated for
// uniqueness. An empty SessionID falls back to "default", matching the
// behavior clients already rely on.
type ChatRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

// EnsureDefaults fills in the default session id when the caller omits it.
func (r *ChatRequest) EnsureDefaults() {
	if r.SessionID == "" {
		r.SessionID = "default"
	}
}

// Validate checks request fields that gin's binding tags cannot express.
func (r *ChatRequest) Validate() error {
	if len(r.Query) > maxQueryBytes {
		return fmt.Errorf("query exceeds %d bytes", maxQueryBytes)
	}
	return nil
}

// maxQueryBytes bounds the accepted query size. Queries are forwarded to
// external services verbatim, so the cap protects their token budgets too.
const maxQueryBytes = 8192

// ChatResponse is the buffered endpoint's output.
//
// Route is the final recorded route, which is "fallback" whenever the
// escalation policy fired, regardless of the router's original decision.
// Products is populated only for link-bearing structured results; Response
// always carries the rendered display text.
type ChatResponse struct {
	Route    string           `json:"route"`
	Response string           `json:"response"`
	Products []map[string]any `json:"products,omitempty"`
}

// Stream event types emitted on the SSE endpoint.
const (
	StreamEventStatus   = "status"
	StreamEventToken    = "token"
	StreamEventProducts = "products"
	StreamEventDone     = "done"
	StreamEventError    = "error"
)

// StreamEvent is the payload of a single SSE event on the streaming chat
// endpoint. Id and CreatedAt are stamped by the writer; the remaining
// fields are populated per event type.
type StreamEvent struct {
	Type      string           `json:"type"`
	Id        string           `json:"id,omitempty"`
	CreatedAt int64            `json:"created_at,omitempty"`
	Content   string           `json:"content,omitempty"`
	Message   string           `json:"message,omitempty"`
	Error     string           `json:"error,omitempty"`
	Route     string           `json:"route,omitempty"`
	SessionId string           `json:"session_id,omitempty"`
	Products  []map[string]any `json:"products,omitempty"`
}
