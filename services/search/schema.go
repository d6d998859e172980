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
	"os"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	// FaqClassName holds one question/answer pair from the support knowledge base.
	FaqClassName = "Faq"

	// UtteranceClassName holds one labeled example phrase used for intent routing.
	UtteranceClassName = "RouteUtterance"
)

// vectorizerModule returns the text2vec module Weaviate should use for the
// support classes. Overridable so deployments can swap the embedding backend
// without a code change.
func vectorizerModule() string {
	if v := os.Getenv("WEAVIATE_VECTORIZER"); v != "" {
		return v
	}
	return "text2vec-transformers"
}

func GetFaqSchema() *models.Class {
	return &models.Class{
		Class:       FaqClassName,
		Description: "A frequently asked question and its curated answer.",
		Vectorizer:  vectorizerModule(),
		Properties: []*models.Property{
			{
				Name:         "question",
				DataType:     []string{"text"},
				Description:  "The customer-facing question text.",
				Tokenization: "word",
			},
			{
				Name:         "answer",
				DataType:     []string{"text"},
				Description:  "The curated answer shown to the model as grounding context.",
				Tokenization: "word",
			},
		},
	}
}

func GetUtteranceSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       UtteranceClassName,
		Description: "An example phrase labeled with the intent route it belongs to.",
		Vectorizer:  vectorizerModule(),
		Properties: []*models.Property{
			{
				Name:         "utterance",
				DataType:     []string{"text"},
				Description:  "The example phrase.",
				Tokenization: "word",
			},
			{
				Name:            "route",
				DataType:        []string{"text"},
				Description:     "The intent route this phrase exemplifies.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

// EnsureSchema checks for each support class and creates any that are
// missing. Existing classes are left untouched.
func EnsureSchema(ctx context.Context, client *weaviate.Client) error {
	schemaGetters := []func() *models.Class{
		GetFaqSchema,
		GetUtteranceSchema,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(ctx)
		if err != nil {
			// The client returns an error when the class does not exist.
			slog.Info("Schema not found, creating it", "class", class.Class)
			if err := client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
				return fmt.Errorf("create schema for class %s: %w", class.Class, err)
			}
			slog.Info("Successfully created schema", "class", class.Class)
		} else {
			slog.Info("Schema already exists", "class", class.Class)
		}
	}
	return nil
}
