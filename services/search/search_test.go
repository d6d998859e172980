// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestParseFaqHits(t *testing.T) {
	data := map[string]models.JSONObject{
		"Get": map[string]interface{}{
			FaqClassName: []interface{}{
				map[string]interface{}{
					"question": "How do I track my order?",
					"answer":   "Use the tracking link in your confirmation email.",
					"_additional": map[string]interface{}{
						"certainty": 0.91,
					},
				},
				map[string]interface{}{
					"question": "What is the return window?",
					"answer":   "Returns are accepted within 30 days.",
				},
			},
		},
	}

	hits := parseFaqHits(data)
	require.Len(t, hits, 2)
	assert.Equal(t, "How do I track my order?", hits[0].Question)
	assert.InDelta(t, 0.91, hits[0].Certainty, 1e-9)
	assert.Equal(t, "Returns are accepted within 30 days.", hits[1].Answer)
	assert.Zero(t, hits[1].Certainty)
}

func TestParseFaqHitsEmptyResponse(t *testing.T) {
	if hits := parseFaqHits(map[string]models.JSONObject{}); len(hits) != 0 {
		t.Errorf("expected no hits from empty response, got %d", len(hits))
	}
}

func TestParseMetaCount(t *testing.T) {
	data := map[string]models.JSONObject{
		"Aggregate": map[string]interface{}{
			FaqClassName: []interface{}{
				map[string]interface{}{
					"meta": map[string]interface{}{
						"count": float64(42),
					},
				},
			},
		},
	}

	count, err := parseMetaCount(data, FaqClassName)
	require.NoError(t, err)
	assert.Equal(t, int64(42), count)
}

func TestParseMetaCountEmptyClass(t *testing.T) {
	data := map[string]models.JSONObject{
		"Aggregate": map[string]interface{}{
			FaqClassName: []interface{}{},
		},
	}

	count, err := parseMetaCount(data, FaqClassName)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestReadFaqCSV(t *testing.T) {
	t.Run("standard columns", func(t *testing.T) {
		input := "question,answer\nHow do I pay?,We accept cards and UPI.\nWhere is my refund?,Refunds take 5-7 business days.\n"
		entries, err := ReadFaqCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "How do I pay?", entries[0].Question)
		assert.Equal(t, "Refunds take 5-7 business days.", entries[1].Answer)
	})

	t.Run("reordered columns with extras", func(t *testing.T) {
		input := "id,answer,question\n1,Yes we ship abroad.,Do you ship internationally?\n"
		entries, err := ReadFaqCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Do you ship internationally?", entries[0].Question)
		assert.Equal(t, "Yes we ship abroad.", entries[0].Answer)
	})

	t.Run("missing required column", func(t *testing.T) {
		_, err := ReadFaqCSV(strings.NewReader("question,text\nfoo,bar\n"))
		if err == nil {
			t.Error("expected error for missing answer column")
		}
	})

	t.Run("blank question skipped", func(t *testing.T) {
		input := "question,answer\n,orphan answer\nReal question?,Real answer.\n"
		entries, err := ReadFaqCSV(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Real question?", entries[0].Question)
	})
}

func TestDeterministicID(t *testing.T) {
	a := deterministicID("faq", "How do I pay?")
	b := deterministicID("faq", "How do I pay?")
	c := deterministicID("faq", "Where is my order?")

	if a != b {
		t.Errorf("same input produced different IDs: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different inputs produced the same ID: %s", a)
	}
}
