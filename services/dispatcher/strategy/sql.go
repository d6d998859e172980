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
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
	"github.com/shopassist/shopassist/services/llm"
	"github.com/shopassist/shopassist/services/productdb"
)

var sqlTracer = otel.Tracer("shopassist/strategy/sql")

// sqlTagPattern extracts the statement between SQL tags. DOTALL so the
// model can split the query across lines.
var sqlTagPattern = regexp.MustCompile(`(?s)<SQL>(.*?)</SQL>`)

// Executor runs validated statements against the product catalog.
// Implemented by productdb.Store.
type Executor interface {
	Execute(ctx context.Context, query string) ([]map[string]any, error)
}

// SQLStrategy resolves catalog questions through text-to-SQL.
//
// # Description
//
// Two model calls at most. The first generates a SELECT wrapped in SQL
// tags; the statement is extracted, validated, and executed against the
// catalog. Result rows that carry a product_link column are returned
// structured for downstream rendering. Anything else, such as an aggregate,
// goes through a second comprehension call that phrases the raw rows as a
// plain answer.
//
// A missing or malformed tag pair, a statement that fails validation, and
// an empty result set all resolve to KindNoData rather than an error; only
// backend faults are errors. The generation call sees the recent
// conversation history so that follow-ups like "cheaper than those" can
// resolve against earlier results.
type SQLStrategy struct {
	executor Executor
	client   llm.Client
}

func NewSQLStrategy(executor Executor, client llm.Client) *SQLStrategy {
	return &SQLStrategy{executor: executor, client: client}
}

const (
	sqlGenTemperature     = 0.2
	sqlGenMaxTokens       = 1024
	comprehendTemperature = 0.2
)

func (s *SQLStrategy) Resolve(ctx context.Context, query string, history []datatypes.Message, _ Emitter) (Result, error) {
	ctx, span := sqlTracer.Start(ctx, "strategy.sql.Resolve")
	defer span.End()

	messages := []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: sqlGenerationPrompt},
	}
	messages = append(messages, recentHistory(history)...)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleUser, Content: query})

	maxTokens := sqlGenMaxTokens
	params := llm.Temperature(sqlGenTemperature)
	params.MaxTokens = &maxTokens
	raw, err := s.client.Chat(ctx, messages, params)
	if err != nil {
		return Result{}, fmt.Errorf("sql generation: %w", err)
	}

	statement, ok := extractSQL(raw)
	if !ok {
		slog.Warn("Model output carried no SQL tags", "output_len", len(raw))
		return Result{Kind: KindNoData, Text: NoDataMessage}, nil
	}
	span.SetAttributes(attribute.Int("sql.statement_len", len(statement)))

	if err := productdb.Validate(statement); err != nil {
		if productdb.IsQueryRejected(err) {
			slog.Warn("Generated statement rejected", "reason", err.Error())
			return Result{Kind: KindNoData, Text: InvalidQueryMessage}, nil
		}
		return Result{}, err
	}

	rows, err := s.executor.Execute(ctx, statement)
	if err != nil {
		return Result{}, fmt.Errorf("sql execution: %w", err)
	}
	span.SetAttributes(attribute.Int("sql.rows", len(rows)))

	if len(rows) == 0 {
		return Result{Kind: KindNoData, Text: NoDataMessage}, nil
	}

	if _, ok := rows[0]["product_link"]; ok {
		return Result{Kind: KindRows, Rows: rows}, nil
	}

	answer, err := s.comprehend(ctx, query, rows)
	if err != nil {
		return Result{}, fmt.Errorf("sql comprehension: %w", err)
	}
	if IsNoDataText(answer) {
		return Result{Kind: KindNoData, Text: answer}, nil
	}
	return Result{Kind: KindAnswer, Text: answer}, nil
}

// comprehend phrases non-product rows as a natural-language answer.
func (s *SQLStrategy) comprehend(ctx context.Context, query string, rows []map[string]any) (string, error) {
	return s.client.Chat(ctx, []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: comprehensionPrompt},
		{Role: datatypes.RoleUser, Content: fmt.Sprintf("Question: %s\nData: %v", query, rows)},
	}, llm.Temperature(comprehendTemperature))
}

// extractSQL pulls the statement out of the first SQL tag pair. Both tags
// must be present; a lone opener or trailing junk without a closer fails
// closed.
func extractSQL(output string) (string, bool) {
	matches := sqlTagPattern.FindStringSubmatch(output)
	if matches == nil {
		return "", false
	}
	statement := strings.TrimSpace(matches[1])
	if statement == "" {
		return "", false
	}
	return statement, true
}
