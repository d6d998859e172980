// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline drives one query from routing through resolution to
// session persistence.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shopassist/shopassist/services/dispatcher/datatypes"
	"github.com/shopassist/shopassist/services/dispatcher/observability"
	"github.com/shopassist/shopassist/services/dispatcher/router"
	"github.com/shopassist/shopassist/services/dispatcher/strategy"
)

var tracer = otel.Tracer("shopassist/pipeline")

// RouteFallback is recorded whenever the fallback strategy produced the
// final answer, whether routing failed to match or a strategy came back
// empty-handed.
const RouteFallback = "fallback"

// Router narrows router.Router for testability.
type Router interface {
	Route(ctx context.Context, query string) (string, error)
}

// HistoryStore is the session store surface the pipeline needs.
type HistoryStore interface {
	History(sessionID string) []datatypes.Message
	AppendExchange(sessionID, userText, assistantText string)
}

// Pipeline executes one query end to end.
//
// # Description
//
// A query moves through routing, strategy resolution, optional escalation
// to the fallback strategy, and finally session persistence. Persistence
// happens exactly once per successful query and never on a fault, so a
// failed request leaves the conversation history exactly as it found it.
//
// The same pipeline serves buffered and streaming callers. Strategies push
// response fragments through the emitter as they are generated; a buffered
// caller passes an emitter that discards them and reads the final text off
// the returned response instead. Stored text is always the concatenation of
// the emitted fragments, so the two modes cannot drift apart.
//
// # Limitations
//
//   - A query that escalates streams nothing until the fallback strategy
//     starts producing. The first strategy's output is withheld because it
//     is about to be replaced.
type Pipeline struct {
	router     Router
	strategies map[string]strategy.Strategy
	fallback   strategy.Strategy
	store      HistoryStore
}

// New wires a pipeline. strategies maps route name to the strategy that
// serves it; fallback handles everything the map cannot.
func New(r Router, strategies map[string]strategy.Strategy, fallback strategy.Strategy, store HistoryStore) *Pipeline {
	return &Pipeline{
		router:     r,
		strategies: strategies,
		fallback:   fallback,
		store:      store,
	}
}

// Execute resolves one query. emit receives response fragments in order;
// it must not be nil. On error nothing was persisted and the emitted
// fragments, if any, must be treated as abandoned.
func (p *Pipeline) Execute(ctx context.Context, req datatypes.ChatRequest, emit strategy.Emitter) (datatypes.ChatResponse, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Execute")
	defer span.End()

	start := time.Now()
	routeName := "unknown"

	resp, err := p.execute(ctx, req, emit, &routeName)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Chat request failed",
			"route", routeName,
			"session", truncate(req.SessionID, 8),
			"query", truncate(req.Query, 60),
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.RecordRequest(routeName, "error", elapsed.Seconds())
		}
		return datatypes.ChatResponse{}, err
	}

	span.SetAttributes(attribute.String("chat.route", resp.Route))
	slog.Info("Chat request complete",
		"route", resp.Route,
		"session", truncate(req.SessionID, 8),
		"query", truncate(req.Query, 60),
		"elapsed_ms", elapsed.Milliseconds(),
		"status", "ok")
	if m := observability.DefaultMetrics; m != nil {
		m.RecordRequest(resp.Route, "ok", elapsed.Seconds())
	}
	return resp, nil
}

func (p *Pipeline) execute(ctx context.Context, req datatypes.ChatRequest, emit strategy.Emitter, routeName *string) (datatypes.ChatResponse, error) {
	history := p.store.History(req.SessionID)

	route, err := p.router.Route(ctx, req.Query)
	if err != nil {
		return datatypes.ChatResponse{}, fmt.Errorf("routing: %w", err)
	}

	var res strategy.Result
	escalated := false

	strat, known := p.strategies[route]
	if route == router.RouteUnknown || !known {
		// Nothing can serve this query directly; hand it straight to the
		// fallback without a second routing attempt.
		escalated = true
	} else {
		*routeName = route
		res, err = strat.Resolve(ctx, req.Query, history, emit)
		if err != nil {
			return datatypes.ChatResponse{}, err
		}
		if res.Kind == strategy.KindNoData {
			escalated = true
		}
	}

	if escalated {
		*routeName = RouteFallback
		if m := observability.DefaultMetrics; m != nil {
			m.RecordEscalation(route)
		}
		res, err = p.fallback.Resolve(ctx, req.Query, history, emit)
		if err != nil {
			return datatypes.ChatResponse{}, err
		}
		route = RouteFallback
	}

	var text string
	var products []map[string]any
	switch res.Kind {
	case strategy.KindRows:
		text = RenderProductList(res.Rows)
		products = res.Rows
	default:
		text = res.Text
	}

	if !res.Streamed {
		if err := emit(text); err != nil {
			return datatypes.ChatResponse{}, fmt.Errorf("emit response: %w", err)
		}
	}

	p.store.AppendExchange(req.SessionID, req.Query, text)

	return datatypes.ChatResponse{
		Route:    route,
		Response: text,
		Products: products,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
