// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package strategy

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
	"github.com/shopassist/shopassist/services/llm"
)

var fallbackTracer = otel.Tracer("shopassist/strategy/fallback")

// FallbackStrategy answers from conversation history alone.
//
// An empty history short-circuits to the canned out-of-scope message with
// zero model calls; there is nothing to ground an answer on, so spending a
// completion on it would only invite hallucination. With history present
// the model is confined to that history by the system prompt and told never
// to ask clarifying questions.
type FallbackStrategy struct {
	client llm.Client
}

func NewFallbackStrategy(client llm.Client) *FallbackStrategy {
	return &FallbackStrategy{client: client}
}

const fallbackTemperature = 0.1

func (s *FallbackStrategy) Resolve(ctx context.Context, query string, history []datatypes.Message, emit Emitter) (Result, error) {
	ctx, span := fallbackTracer.Start(ctx, "strategy.fallback.Resolve")
	defer span.End()
	span.SetAttributes(attribute.Int("fallback.history_len", len(history)))

	if len(history) == 0 {
		return Result{Kind: KindAnswer, Text: OutOfScopeMessage}, nil
	}

	messages := []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: fallbackSystemPrompt},
	}
	messages = append(messages, recentHistory(history)...)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleUser, Content: query})

	var full strings.Builder
	err := s.client.ChatStream(ctx, messages, llm.Temperature(fallbackTemperature), func(delta string) error {
		full.WriteString(delta)
		return emit(delta)
	})
	if err != nil {
		return Result{}, fmt.Errorf("fallback generation: %w", err)
	}

	return Result{Kind: KindAnswer, Text: full.String(), Streamed: true}, nil
}
