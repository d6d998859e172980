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

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// UtteranceIndex classifies customer queries by nearest labeled example.
//
// # Description
//
// Routes are represented as labeled example phrases stored in the
// RouteUtterance class. Classification is a single nearText query: the route
// of the closest utterance wins, and its certainty score lets the caller
// apply a per-route threshold.
type UtteranceIndex struct {
	client *weaviate.Client
}

func NewUtteranceIndex(client *weaviate.Client) *UtteranceIndex {
	return &UtteranceIndex{client: client}
}

// Nearest returns the route label of the utterance closest to the query and
// the certainty of that match. An empty route means the index holds no
// utterances at all.
func (u *UtteranceIndex) Nearest(ctx context.Context, query string) (string, float64, error) {
	nearText := u.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "utterance"},
		{Name: "route"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	result, err := u.client.GraphQL().Get().
		WithClassName(UtteranceClassName).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("utterance search: %w", err)
	}
	if len(result.Errors) > 0 {
		return "", 0, fmt.Errorf("utterance search: %s", result.Errors[0].Message)
	}

	get, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return "", 0, nil
	}
	objects, ok := get[UtteranceClassName].([]interface{})
	if !ok || len(objects) == 0 {
		return "", 0, nil
	}
	m, ok := objects[0].(map[string]interface{})
	if !ok {
		return "", 0, nil
	}

	route := getString(m, "route")
	certainty := 0.0
	if additional, ok := m["_additional"].(map[string]interface{}); ok {
		if c, ok := additional["certainty"].(float64); ok {
			certainty = c
		}
	}
	return route, certainty, nil
}

// Count returns the number of stored route utterances.
func (u *UtteranceIndex) Count(ctx context.Context) (int64, error) {
	return aggregateCount(ctx, u.client, UtteranceClassName)
}
