// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// FaqEntry is one knowledge-base record to ingest.
type FaqEntry struct {
	Question string
	Answer   string
}

// Utterance is one labeled routing example to ingest.
type Utterance struct {
	Text  string
	Route string
}

// deterministicID derives a stable object ID from content so re-running an
// ingest upserts rather than duplicates.
func deterministicID(parts ...string) strfmt.UUID {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	sum := h.Sum(nil)
	id, _ := uuid.FromBytes(sum[:16])
	return strfmt.UUID(id.String())
}

// IngestFAQ batch-writes FAQ entries into the Faq class.
func IngestFAQ(ctx context.Context, client *weaviate.Client, entries []FaqEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, len(entries))
	for i, e := range entries {
		objects[i] = &models.Object{
			Class: FaqClassName,
			ID:    deterministicID("faq", e.Question),
			Properties: map[string]interface{}{
				"question": e.Question,
				"answer":   e.Answer,
			},
		}
	}

	result, err := client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch ingest faq: %w", err)
	}
	if err := firstBatchError(result); err != nil {
		return 0, err
	}

	slog.Info("Ingested FAQ entries", "count", len(entries))
	return len(entries), nil
}

// IngestUtterances batch-writes labeled routing examples into the
// RouteUtterance class.
func IngestUtterances(ctx context.Context, client *weaviate.Client, utterances []Utterance) (int, error) {
	if len(utterances) == 0 {
		return 0, nil
	}

	objects := make([]*models.Object, len(utterances))
	for i, u := range utterances {
		objects[i] = &models.Object{
			Class: UtteranceClassName,
			ID:    deterministicID("utterance", u.Route, u.Text),
			Properties: map[string]interface{}{
				"utterance": u.Text,
				"route":     u.Route,
			},
		}
	}

	result, err := client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("batch ingest utterances: %w", err)
	}
	if err := firstBatchError(result); err != nil {
		return 0, err
	}

	slog.Info("Ingested route utterances", "count", len(utterances))
	return len(utterances), nil
}

func firstBatchError(result []models.ObjectsGetResponse) error {
	for _, obj := range result {
		if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch object %s: %s", obj.ID, obj.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// ReadFaqCSV parses a CSV stream with a header row containing question and
// answer columns. Column order does not matter; extra columns are ignored.
func ReadFaqCSV(r io.Reader) ([]FaqEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	qIdx, aIdx := -1, -1
	for i, col := range header {
		switch col {
		case "question":
			qIdx = i
		case "answer":
			aIdx = i
		}
	}
	if qIdx < 0 || aIdx < 0 {
		return nil, fmt.Errorf("csv header must contain question and answer columns, got %v", header)
	}

	var entries []FaqEntry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		if qIdx >= len(record) || aIdx >= len(record) {
			continue
		}
		if record[qIdx] == "" {
			continue
		}
		entries = append(entries, FaqEntry{Question: record[qIdx], Answer: record[aIdx]})
	}
	return entries, nil
}
