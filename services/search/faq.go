// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// FaqHit is one question/answer pair returned by semantic search.
type FaqHit struct {
	Question  string
	Answer    string
	Certainty float64
}

// FaqSearcher retrieves the FAQ entries closest to a customer query.
//
// # Description
//
// Wraps a Weaviate nearText query over the Faq class. The top results are
// used verbatim as grounding context for answer generation, so the searcher
// returns the stored answer text unmodified.
//
// # Limitations
//
//   - Relies on the class vectorizer configured at schema creation time; the
//     searcher itself never embeds anything.
type FaqSearcher struct {
	client *weaviate.Client
	topK   int
}

// NewFaqSearcher returns a searcher over the Faq class. topK values below 1
// are clamped to the default of 2.
func NewFaqSearcher(client *weaviate.Client, topK int) *FaqSearcher {
	if topK < 1 {
		topK = 2
	}
	return &FaqSearcher{client: client, topK: topK}
}

// Search returns up to topK FAQ entries nearest to the query, most relevant
// first. An empty slice means nothing in the knowledge base was close enough
// for Weaviate to return at all.
func (s *FaqSearcher) Search(ctx context.Context, query string) ([]FaqHit, error) {
	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "question"},
		{Name: "answer"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(FaqClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(s.topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("faq search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("faq search: %s", result.Errors[0].Message)
	}

	hits := parseFaqHits(result.Data)
	slog.Info("FAQ search complete", "query_len", len(query), "hits", len(hits))
	return hits, nil
}

// Count returns the number of stored FAQ entries.
func (s *FaqSearcher) Count(ctx context.Context) (int64, error) {
	return aggregateCount(ctx, s.client, FaqClassName)
}

func parseFaqHits(data map[string]models.JSONObject) []FaqHit {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil
	}
	objects, ok := get[FaqClassName].([]interface{})
	if !ok {
		return nil
	}

	hits := make([]FaqHit, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		hit := FaqHit{
			Question: getString(m, "question"),
			Answer:   getString(m, "answer"),
		}
		if additional, ok := m["_additional"].(map[string]interface{}); ok {
			if certainty, ok := additional["certainty"].(float64); ok {
				hit.Certainty = certainty
			}
		}
		hits = append(hits, hit)
	}
	return hits
}

// aggregateCount runs a meta count aggregate over the given class.
func aggregateCount(ctx context.Context, client *weaviate.Client, className string) (int64, error) {
	result, err := client.GraphQL().Aggregate().
		WithClassName(className).
		WithFields(graphql.Field{
			Name: "meta",
			Fields: []graphql.Field{
				{Name: "count"},
			},
		}).
		Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("aggregate %s: %w", className, err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("aggregate %s: %s", className, result.Errors[0].Message)
	}
	return parseMetaCount(result.Data, className)
}

func parseMetaCount(data map[string]models.JSONObject, className string) (int64, error) {
	agg, ok := data["Aggregate"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate response shape")
	}
	groups, ok := agg[className].([]interface{})
	if !ok || len(groups) == 0 {
		return 0, nil
	}
	group, ok := groups[0].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("unexpected aggregate group shape")
	}
	meta, ok := group["meta"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("missing meta field in aggregate response")
	}
	count, ok := meta["count"].(float64)
	if !ok {
		return 0, fmt.Errorf("missing count field in aggregate response")
	}
	return int64(count), nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
