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
	"github.com/shopassist/shopassist/services/search"
)

var faqTracer = otel.Tracer("shopassist/strategy/faq")

// Searcher retrieves FAQ entries relevant to a query. Implemented by
// search.FaqSearcher.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.FaqHit, error)
}

// FAQStrategy answers support questions grounded on the knowledge base.
//
// # Description
//
// Retrieves the nearest FAQ entries, concatenates their answers into a
// context block, and asks the model to answer from that context alone. The
// model's answer streams through the emitter as it is generated; the
// returned Result carries the identical accumulated text.
//
// # Limitations
//
//   - An empty knowledge base is not an error. The model sees an empty
//     context and is expected to decline, which surfaces as KindNoData.
type FAQStrategy struct {
	searcher Searcher
	client   llm.Client
}

func NewFAQStrategy(searcher Searcher, client llm.Client) *FAQStrategy {
	return &FAQStrategy{searcher: searcher, client: client}
}

func (s *FAQStrategy) Resolve(ctx context.Context, query string, history []datatypes.Message, emit Emitter) (Result, error) {
	ctx, span := faqTracer.Start(ctx, "strategy.faq.Resolve")
	defer span.End()

	hits, err := s.searcher.Search(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("faq retrieval: %w", err)
	}
	span.SetAttributes(attribute.Int("faq.hits", len(hits)))

	var contextBlock strings.Builder
	for _, hit := range hits {
		contextBlock.WriteString(hit.Answer)
	}

	messages := []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: faqSystemPrompt},
	}
	messages = append(messages, recentHistory(history)...)
	messages = append(messages, datatypes.Message{
		Role:    datatypes.RoleUser,
		Content: fmt.Sprintf(faqQuestionTemplate, query, contextBlock.String()),
	})

	hb := newHoldbackEmitter(emit)
	var full strings.Builder
	err = s.client.ChatStream(ctx, messages, llm.GenerationParams{}, func(delta string) error {
		full.WriteString(delta)
		return hb.Write(delta)
	})
	if err != nil {
		return Result{}, fmt.Errorf("faq generation: %w", err)
	}
	if err := hb.Flush(); err != nil {
		return Result{}, fmt.Errorf("faq generation: %w", err)
	}

	answer := full.String()
	if hb.NoData() || IsNoDataText(answer) {
		return Result{Kind: KindNoData, Text: answer}, nil
	}
	return Result{Kind: KindAnswer, Text: answer, Streamed: true}, nil
}
