// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderProductList(t *testing.T) {
	products := []map[string]any{
		{
			"title":        "Campus Women Running Shoes",
			"price":        float64(1104),
			"discount":     0.35,
			"avg_rating":   4.4,
			"product_link": "https://shop.example/p/1",
		},
		{
			"title":        "Canvas Sneakers",
			"price":        float64(39.99),
			"discount":     float64(0),
			"avg_rating":   3.9,
			"product_link": "https://shop.example/p/4",
		},
	}

	got := RenderProductList(products)
	lines := strings.Split(got, "\n\n")
	assert.Len(t, lines, 2)

	assert.Equal(t, "**Campus Women Running Shoes**: Rs. 1104, (35% off), Rating: 4.4 [🔗](https://shop.example/p/1)", lines[0])
	assert.Contains(t, lines[1], "(No discount)")
	assert.Contains(t, lines[1], "Rs. 39.99")
}

func TestRenderProductListMissingColumns(t *testing.T) {
	got := RenderProductList([]map[string]any{{}})
	assert.Contains(t, got, "Unknown Product")
	assert.Contains(t, got, "Rs. N/A")
	assert.Contains(t, got, "Rating: No rating")
	assert.Contains(t, got, "(#)")
}

func TestRenderProductListEmpty(t *testing.T) {
	assert.Equal(t, "", RenderProductList(nil))
}
