// Copyright (C) 2025 Shopassist Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package router maps customer queries to intent routes by semantic
// similarity to labeled example utterances.
package router

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("shopassist/router")

// RouteUnknown is returned when no route clears its similarity threshold.
const RouteUnknown = ""

// Classifier finds the route whose example utterances sit closest to a
// query. Implemented by search.UtteranceIndex in production.
type Classifier interface {
	Nearest(ctx context.Context, query string) (route string, certainty float64, err error)
}

// Router applies per-route certainty thresholds on top of a Classifier.
//
// Every query is classified independently. Results are never cached, so two
// identical queries in one session can legitimately land on different routes
// if the index changes between them.
type Router struct {
	classifier Classifier
	thresholds map[string]float64
	fallback   float64
}

// New builds a Router. thresholds maps route name to the minimum certainty
// that route requires; routes absent from the map use defaultThreshold.
func New(classifier Classifier, thresholds map[string]float64, defaultThreshold float64) *Router {
	return &Router{
		classifier: classifier,
		thresholds: thresholds,
		fallback:   defaultThreshold,
	}
}

// Route classifies a query. It returns RouteUnknown when the nearest match
// does not clear the route's threshold, and a non-nil error only when the
// classifier itself fails.
func (r *Router) Route(ctx context.Context, query string) (string, error) {
	ctx, span := tracer.Start(ctx, "router.Route")
	defer span.End()

	route, certainty, err := r.classifier.Nearest(ctx, query)
	if err != nil {
		return RouteUnknown, fmt.Errorf("classify query: %w", err)
	}
	if route == RouteUnknown {
		return RouteUnknown, nil
	}

	threshold, ok := r.thresholds[route]
	if !ok {
		threshold = r.fallback
	}

	span.SetAttributes(
		attribute.String("route.candidate", route),
		attribute.Float64("route.certainty", certainty),
		attribute.Float64("route.threshold", threshold),
	)

	if certainty < threshold {
		slog.Debug("Route below threshold",
			"route", route,
			"certainty", certainty,
			"threshold", threshold)
		return RouteUnknown, nil
	}

	return route, nil
}
