// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides clients for text-completion backends.
package llm

import (
	"context"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
)

// GenerationParams carries optional sampling controls. Nil fields leave
// the backend's defaults in place.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamCallback receives one text delta per invocation, in display order.
// Returning a non-nil error aborts the stream; the client must stop
// reading and propagate that error unchanged so callers can distinguish
// their own cancellation from a backend fault.
type StreamCallback func(delta string) error

// Client defines the standard interface for any completion backend.
//
// # Description
//
// Chat returns the full completion for an ordered role-tagged message
// list. ChatStream delivers the same completion incrementally through
// the callback; the concatenation of all deltas is byte-identical to
// what Chat would have returned for the same backend response.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Client interface {
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error
}

// Temperature returns a GenerationParams with only the temperature set.
// Convenience for the common single-knob call sites.
func Temperature(t float32) GenerationParams {
	return GenerationParams{Temperature: &t}
}
