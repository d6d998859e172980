// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderProductList formats catalog rows as a markdown list, one product
// per line. Missing columns degrade to placeholders rather than failing;
// the rows come from a SELECT * the model wrote, not from code we control.
func RenderProductList(products []map[string]any) string {
	var out strings.Builder
	for _, item := range products {
		title := stringOr(item["title"], "Unknown Product")
		price := numberOr(item["price"], "N/A")
		rating := numberOr(item["avg_rating"], "No rating")
		link := stringOr(item["product_link"], "#")

		discText := "(No discount)"
		if d, ok := asFloat(item["discount"]); ok && d > 0 {
			discText = fmt.Sprintf("(%d%% off)", int(d*100))
		}

		out.WriteString(fmt.Sprintf("**%s**: Rs. %s, %s, Rating: %s [🔗](%s)\n\n",
			title, price, discText, rating, link))
	}
	return strings.TrimSpace(out.String())
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}

// numberOr renders a numeric column compactly: integral values lose the
// trailing ".0" that float scanning introduces.
func numberOr(v any, fallback string) string {
	f, ok := asFloat(v)
	if !ok {
		return fallback
	}
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
